// Command food-advisor starts the identity and access API (HTTP, optionally gRPC).
package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/food-advisor/internal/access"
	"github.com/and161185/food-advisor/internal/config"
	"github.com/and161185/food-advisor/internal/crypto"
	"github.com/and161185/food-advisor/internal/limiter"
	"github.com/and161185/food-advisor/internal/migrate"
	"github.com/and161185/food-advisor/internal/repository/postgres"
	grpcserver "github.com/and161185/food-advisor/internal/server/grpc"
	httpserver "github.com/and161185/food-advisor/internal/server/http"
	"github.com/and161185/food-advisor/internal/service"
	"github.com/and161185/food-advisor/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func newLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTPAddr),
		zap.String("grpc", cfg.GRPCAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseDSN, cfg.DBConnectAttempts, cfg.DBConnectDelay, logger)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	db := &postgres.DB{Pool: pool}
	defer db.Close()

	userRepo := postgres.NewUserRepo(db)

	var lim limiter.Limiter = limiter.Nop{}
	if cfg.LoginMaxFails > 0 {
		lim = limiter.NewPG(pool, limiter.Policy{
			Window:   cfg.LoginWindow,
			MaxFails: cfg.LoginMaxFails,
			BlockFor: cfg.LoginBlockFor,
		})
	} else {
		logger.Warn("login rate limiting disabled")
	}

	codec, err := token.NewCodec([]byte(cfg.JWTSecret))
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}
	hasher := crypto.NewHasher(cfg.HashWorkers, cfg.HashCost)
	gate := access.NewGate(codec, logger)

	authSvc := service.NewAuthService(userRepo, codec, hasher, lim, service.AuthConfig{
		TokenTTL:               cfg.TokenTTL,
		AllowEmptyPasswordHash: cfg.AllowEmptyPasswordHash,
	}, logger)
	userSvc := service.NewUserService(userRepo, hasher, logger)

	if cfg.BootstrapAdminEmail != "" {
		created, err := userSvc.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			logger.Fatal("bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap administrator created")
		}
	}

	errCh := make(chan error, 2)

	httpSrv := httpserver.New(authSvc, userSvc, gate, logger, httpserver.Options{CORSOrigins: cfg.Origins()})
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- httpSrv.Listen(cfg.HTTPAddr, cfg.TLSCert, cfg.TLSKey)
	}()

	var gs *grpc.Server
	if cfg.GRPCAddr != "" {
		opts := []grpc.ServerOption{
			grpc.ChainUnaryInterceptor(
				grpcserver.RecoverUnary(logger),
				grpcserver.LoggingUnary(logger),
				grpcserver.AuthUnary(gate, logger, grpcserver.PublicMethods),
				grpcserver.AdminUnary(gate, logger, grpcserver.AdminMethods),
			),
		}
		if cfg.TLSCert != "" {
			creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				logger.Fatal("failed to load TLS cert/key", zap.Error(err))
			}
			opts = append(opts, grpc.Creds(creds))
		}
		gs = grpc.NewServer(opts...)
		grpcserver.RegisterIdentityServer(gs, grpcserver.New(authSvc, userSvc, logger))

		hs := health.NewServer()
		healthpb.RegisterHealthServer(gs, hs)
		if cfg.Dev {
			reflection.Register(gs)
		}

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("listen", zap.Error(err))
		}
		go func() {
			logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
			errCh <- gs.Serve(lis)
		}()
	}

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("server error", zap.Error(err))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if gs != nil {
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			gs.Stop()
		}
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
}
