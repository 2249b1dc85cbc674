// Package config builds the server configuration from command-line flags with
// environment-variable fallbacks. It is loaded once at startup and never re-read.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds runtime settings for the server.
type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC listener
	TLSCert  string // both listeners; cert and key set together or not at all
	TLSKey   string

	DatabaseDSN       string
	DBConnectAttempts int
	DBConnectDelay    time.Duration

	// JWTSecret signs session tokens (HS256). Required.
	JWTSecret string
	// TokenTTL is the session token lifetime. Required, whole seconds.
	TokenTTL time.Duration

	// AllowEmptyPasswordHash lets identities with an empty stored hash log in without a
	// password. Development seed data only.
	AllowEmptyPasswordHash bool
	HashWorkers            int
	HashCost               int

	LoginMaxFails int // 0 disables rate limiting
	LoginWindow   time.Duration
	LoginBlockFor time.Duration

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	CORSOrigins string
	Dev         bool
}

// Load parses args (without the program name). getenv supplies fallbacks for unset flags,
// usually os.Getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	var (
		cfg    Config
		ttlSec int
		envErr error
	)
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	envInt := func(key string, def int) int {
		v := env(key, "")
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			envErr = errors.Join(envErr, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}
	envBool := func(key string, def bool) bool {
		v := env(key, "")
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			envErr = errors.Join(envErr, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return b
	}
	envDur := func(key string, def time.Duration) time.Duration {
		v := env(key, "")
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			envErr = errors.Join(envErr, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}

	fs := flag.NewFlagSet("food-advisor", flag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "http-addr", env("HTTP_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", env("GRPC_ADDR", ""), "gRPC listen address (empty disables)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", env("TLS_CERT", ""), "TLS certificate (PEM)")
	fs.StringVar(&cfg.TLSKey, "tls-key", env("TLS_KEY", ""), "TLS private key (PEM)")
	fs.StringVar(&cfg.DatabaseDSN, "dsn", env("DATABASE_URL", ""), "PostgreSQL DSN")
	fs.IntVar(&cfg.DBConnectAttempts, "db-attempts", envInt("DB_CONNECT_ATTEMPTS", 5), "database connect attempts")
	fs.DurationVar(&cfg.DBConnectDelay, "db-retry-delay", envDur("DB_CONNECT_DELAY", 5*time.Second), "delay between connect attempts")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", env("JWT_SECRET", ""), "HS256 signing secret (required)")
	fs.IntVar(&ttlSec, "jwt-expiration", envInt("JWT_EXPIRATION", 0), "token lifetime in seconds (required)")
	fs.BoolVar(&cfg.AllowEmptyPasswordHash, "allow-empty-hash", envBool("AUTH_ALLOW_EMPTY_HASH", false), "DEV ONLY: accept logins for identities without a password hash")
	fs.IntVar(&cfg.HashWorkers, "hash-workers", envInt("HASH_WORKERS", 0), "concurrent bcrypt operations (0 = GOMAXPROCS)")
	fs.IntVar(&cfg.HashCost, "hash-cost", envInt("HASH_COST", 0), "bcrypt cost (0 = default)")
	fs.IntVar(&cfg.LoginMaxFails, "login-max-fails", envInt("LOGIN_MAX_FAILS", 5), "failed logins before lockout (0 disables)")
	fs.DurationVar(&cfg.LoginWindow, "login-window", envDur("LOGIN_WINDOW", 15*time.Minute), "failed login counting window")
	fs.DurationVar(&cfg.LoginBlockFor, "login-block", envDur("LOGIN_BLOCK", 15*time.Minute), "lockout duration")
	fs.StringVar(&cfg.BootstrapAdminEmail, "bootstrap-admin-email", env("BOOTSTRAP_ADMIN_EMAIL", ""), "administrator created on startup when absent")
	fs.StringVar(&cfg.BootstrapAdminPassword, "bootstrap-admin-password", env("BOOTSTRAP_ADMIN_PASSWORD", ""), "password for the bootstrap administrator")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", env("CORS_ORIGINS", "*"), "comma-separated allowed origins")
	fs.BoolVar(&cfg.Dev, "dev", envBool("DEV", false), "development logging and gRPC reflection")

	if envErr != nil {
		return Config{}, envErr
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.TokenTTL = time.Duration(ttlSec) * time.Second

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_URL must be set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be a positive number of seconds"))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("TLS_CERT and TLS_KEY must be set together"))
	}
	if c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword == "" {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_PASSWORD must be set with BOOTSTRAP_ADMIN_EMAIL"))
	}
	if c.HashCost != 0 && (c.HashCost < bcrypt.MinCost || c.HashCost > bcrypt.MaxCost) {
		errs = append(errs, fmt.Errorf("HASH_COST must be 0 or within %d..%d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.LoginMaxFails < 0 {
		errs = append(errs, errors.New("LOGIN_MAX_FAILS must be >= 0"))
	}
	if c.LoginMaxFails > 0 && (c.LoginWindow <= 0 || c.LoginBlockFor <= 0) {
		errs = append(errs, errors.New("LOGIN_WINDOW and LOGIN_BLOCK must be > 0"))
	}
	return errors.Join(errs...)
}

// Origins splits CORSOrigins into a trimmed list.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
