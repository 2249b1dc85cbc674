package httpserver

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

const localRequestID = "request_id"

// requestID reuses an inbound X-Request-ID of sane length or generates a new one.
func requestID(c *fiber.Ctx) error {
	id := c.Get(HeaderRequestID)
	if id == "" || len(id) > 128 {
		u, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("request id: %w", err)
		}
		id = u.String()
	}
	c.Locals(localRequestID, id)
	c.Set(HeaderRequestID, id)
	return c.Next()
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

// accessLog logs request metadata only, never bodies.
func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}
	s.log.Info("http",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("dur", time.Since(start)),
		zap.String("peer", c.IP()),
		zap.String("request_id", requestIDOf(c)),
	)
	return nil
}

func (s *Server) recoverPanic(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic",
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
				zap.String("path", c.Path()),
			)
			err = writeError(c, fiber.StatusInternalServerError, msgInternal)
		}
	}()
	return c.Next()
}

// requireAuth admits requests with a valid bearer token and stores the claims in the
// request's user context.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	ctx, _, err := s.gate.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return s.fail(c, err)
	}
	c.SetUserContext(ctx)
	return c.Next()
}

// requireAdmin must run after requireAuth.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if err := s.gate.Authorize(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.Next()
}

// handleError is the fiber error handler for errors that escaped a handler.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusNotFound:
			return writeError(c, fe.Code, "Not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, fe.Code, "Method not allowed")
		}
		if fe.Code < fiber.StatusInternalServerError {
			return writeError(c, fe.Code, fe.Message)
		}
	}
	return s.fail(c, err)
}
