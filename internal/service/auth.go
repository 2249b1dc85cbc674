// Package service contains application services for authentication and identities.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.uber.org/zap"

	"github.com/and161185/food-advisor/internal/crypto"
	"github.com/and161185/food-advisor/internal/errs"
	"github.com/and161185/food-advisor/internal/limiter"
	"github.com/and161185/food-advisor/internal/model"
	"github.com/and161185/food-advisor/internal/repository"
	"github.com/and161185/food-advisor/internal/token"
)

// AuthService defines login and registration.
type AuthService interface {
	// Login checks credentials and returns a fresh session token.
	Login(ctx context.Context, email, password, ip string) (model.Session, error)
	// Register creates a Regular identity and returns a session for it.
	Register(ctx context.Context, in RegisterInput) (model.Session, error)
}

// PasswordHasher is implemented by *crypto.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, stored string) (bool, error)
}

// RegisterInput is the data a client supplies to create an identity.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate checks the input; bcrypt caps passwords at 72 bytes.
func (in RegisterInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Length(0, 100)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return nil
}

// AuthConfig carries the issuer settings taken from configuration.
type AuthConfig struct {
	TokenTTL time.Duration
	// AllowEmptyPasswordHash admits identities whose stored hash is empty without a
	// password check. Development seed data only; every such login is logged.
	AllowEmptyPasswordHash bool
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	tokens *token.Codec
	hasher PasswordHasher
	lim    limiter.Limiter
	cfg    AuthConfig
	log    *zap.Logger

	dummyHash string
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tokens *token.Codec, hasher PasswordHasher, lim limiter.Limiter, cfg AuthConfig, log *zap.Logger) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.AllowEmptyPasswordHash {
		log.Warn("empty password hashes are accepted at login; never enable this in production")
	}
	s := &AuthServiceImpl{users: users, tokens: tokens, hasher: hasher, lim: lim, cfg: cfg, log: log}
	h, err := hasher.Hash(context.Background(), "not-a-real-password")
	if err != nil {
		log.Warn("dummy hash unavailable; unknown emails skip the verify step", zap.Error(err))
	} else {
		s.dummyHash = h
	}
	return s
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Login authenticates by email and password with rate limiting by (email, ip).
//
// An unknown email and a wrong password both yield errs.ErrInvalidCredentials. A known but
// deactivated identity yields errs.ErrAccountInactive.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Session, error) {
	email = normalizeEmail(email)
	key := limiter.NewKey(email, ip)

	d, err := s.lim.Allow(ctx, key)
	if err != nil {
		return model.Session{}, fmt.Errorf("limiter allow: %w", err)
	}
	if d.Blocked {
		return model.Session{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		s.burnVerify(ctx, password)
		return model.Session{}, s.failure(ctx, key)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.Active {
		return model.Session{}, errs.ErrAccountInactive
	}

	ok, err := s.checkPassword(ctx, u, password)
	if err != nil {
		return model.Session{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return model.Session{}, s.failure(ctx, key)
	}

	if err := s.lim.Success(ctx, key); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}
	return s.IssueForUser(*u)
}

func (s *AuthServiceImpl) checkPassword(ctx context.Context, u *model.User, password string) (bool, error) {
	if u.PasswordHash != "" {
		return s.hasher.Verify(ctx, password, u.PasswordHash)
	}
	if !s.cfg.AllowEmptyPasswordHash {
		s.log.Warn("login rejected: identity has no password hash", zap.Int64("user_id", u.ID))
		return false, nil
	}
	s.log.Warn("LOGIN WITHOUT PASSWORD VERIFICATION (empty stored hash, dev mode)", zap.Int64("user_id", u.ID))
	return true, nil
}

// failure records a failed attempt and returns the error to surface.
func (s *AuthServiceImpl) failure(ctx context.Context, key limiter.Key) error {
	d, err := s.lim.Failure(ctx, key)
	if err != nil {
		s.log.Warn("limiter failure record failed", zap.Error(err))
		return errs.ErrInvalidCredentials
	}
	if d.Blocked {
		return errs.ErrRateLimited
	}
	return errs.ErrInvalidCredentials
}

// burnVerify spends one verification on a throwaway hash so an unknown email costs about
// as much time as a wrong password.
func (s *AuthServiceImpl) burnVerify(ctx context.Context, password string) {
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
	}
}

// IssueForUser mints a session token for u without checking a password. Used right
// after an identity has been persisted.
func (s *AuthServiceImpl) IssueForUser(u model.User) (model.Session, error) {
	raw, claims, err := s.tokens.Mint(u, s.cfg.TokenTTL)
	if err != nil {
		return model.Session{}, fmt.Errorf("mint token: %w", err)
	}
	return model.Session{
		Token:     raw,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
		User:      u.Public(),
	}, nil
}

// Register validates input, stores a Regular identity with a bcrypt hash and issues a token.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (model.Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := in.Validate(); err != nil {
		return model.Session{}, err
	}

	u, err := createUser(ctx, s.users, s.hasher, in, model.RoleRegular)
	if err != nil {
		return model.Session{}, err
	}
	return s.IssueForUser(u)
}

func createUser(ctx context.Context, users repository.UserRepository, hasher PasswordHasher, in RegisterInput, role model.Role) (model.User, error) {
	hash, err := hasher.Hash(ctx, in.Password)
	if err != nil {
		if errors.Is(err, crypto.ErrHashing) {
			return model.User{}, fmt.Errorf("%w: password cannot be hashed", errs.ErrValidation)
		}
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	nu := model.NewUser{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	id, err := users.Create(ctx, nu)
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:           id,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
