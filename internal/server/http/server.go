// Package httpserver exposes the identity API over HTTP/JSON.
package httpserver

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/and161185/food-advisor/internal/access"
	"github.com/and161185/food-advisor/internal/service"
)

const serviceName = "food-advisor"

// Options configures the HTTP server.
type Options struct {
	// CORSOrigins lists allowed origins; empty means any origin.
	CORSOrigins []string
	// Now overrides the clock used by the health endpoint.
	Now func() time.Time
}

// Server wires services into fiber handlers.
type Server struct {
	app   *fiber.App
	auth  service.AuthService
	users service.UserService
	gate  *access.Gate
	log   *zap.Logger
	now   func() time.Time
}

// New constructs the server and registers every route.
func New(auth service.AuthService, users service.UserService, gate *access.Gate, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{auth: auth, users: users, gate: gate, log: log, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}

	s.app = fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           60 * time.Second,
	})

	origins := "*"
	if len(opts.CORSOrigins) > 0 {
		origins = strings.Join(opts.CORSOrigins, ",")
	}
	s.app.Use(
		requestID,
		s.accessLog,
		s.recoverPanic,
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + HeaderRequestID,
			ExposeHeaders: HeaderRequestID,
			MaxAge:        3600,
		}),
	)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", s.register)
	auth.Post("/login", s.login)
	auth.Get("/me", s.requireAuth, s.me)

	api.Get("/users/all", s.requireAuth, s.requireAdmin, s.listUsers)

	admin := api.Group("/admin", s.requireAuth, s.requireAdmin)
	admin.Post("/create", s.createAdmin)
	admin.Post("/users/:id/deactivate", s.setActive(false))
	admin.Post("/users/:id/activate", s.setActive(true))
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves plain HTTP, or HTTPS when both certFile and keyFile are set.
func (s *Server) Listen(addr, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return s.app.ListenTLS(addr, certFile, keyFile)
	}
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
