package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/and161185/food-advisor/internal/errs"
	"github.com/and161185/food-advisor/internal/model"
	"github.com/and161185/food-advisor/internal/repository"
)

// Paging defaults for user listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*pageSize far from int overflow.
	MaxPage = 1_000_000
)

// UserService exposes identity lookups and the administrator operations.
type UserService interface {
	// Profile returns the public view of one identity.
	Profile(ctx context.Context, id int64) (model.PublicUser, error)
	// List returns a page of identities ordered by id.
	List(ctx context.Context, page, pageSize int) (model.Page, error)
	// CreateAdmin stores a new Administrator identity and returns its id.
	CreateAdmin(ctx context.Context, in RegisterInput) (int64, error)
	// SetActive activates or deactivates an identity on behalf of actorID.
	SetActive(ctx context.Context, actorID, id int64, active bool) error
	// EnsureAdmin creates the bootstrap administrator if the email is not taken yet.
	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
}

type UserServiceImpl struct {
	users  repository.UserRepository
	hasher PasswordHasher
	log    *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository, hasher PasswordHasher, log *zap.Logger) *UserServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserServiceImpl{users: users, hasher: hasher, log: log}
}

func (s *UserServiceImpl) Profile(ctx context.Context, id int64) (model.PublicUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.PublicUser{}, err
	}
	return u.Public(), nil
}

// List validates paging (1 <= page <= MaxPage, 1 <= pageSize <= MaxPageSize). Zero values
// take defaults.
func (s *UserServiceImpl) List(ctx context.Context, page, pageSize int) (model.Page, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	err := validation.Errors{
		"page":      validation.Validate(page, validation.Min(1), validation.Max(MaxPage)),
		"page_size": validation.Validate(pageSize, validation.Min(1), validation.Max(MaxPageSize)),
	}.Filter()
	if err != nil {
		return model.Page{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	rows, total, err := s.users.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return model.Page{}, fmt.Errorf("list users: %w", err)
	}
	out := model.Page{Users: make([]model.PublicUser, 0, len(rows)), Total: total, Page: page, PageSize: pageSize}
	for _, u := range rows {
		out.Users = append(out.Users, u.Public())
	}
	return out, nil
}

func (s *UserServiceImpl) CreateAdmin(ctx context.Context, in RegisterInput) (int64, error) {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := in.Validate(); err != nil {
		return 0, err
	}
	u, err := createUser(ctx, s.users, s.hasher, in, model.RoleAdministrator)
	if err != nil {
		return 0, err
	}
	s.log.Info("administrator created", zap.Int64("user_id", u.ID))
	return u.ID, nil
}

// SetActive refuses to let an administrator deactivate their own identity.
func (s *UserServiceImpl) SetActive(ctx context.Context, actorID, id int64, active bool) error {
	if id <= 0 {
		return fmt.Errorf("%w: bad user id", errs.ErrValidation)
	}
	if !active && actorID == id {
		return fmt.Errorf("%w: cannot deactivate own account", errs.ErrValidation)
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.log.Info("user active flag changed",
		zap.Int64("actor_id", actorID),
		zap.Int64("user_id", id),
		zap.Bool("active", active),
	)
	return nil
}

func (s *UserServiceImpl) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return false, fmt.Errorf("lookup bootstrap admin: %w", err)
	}
	in := RegisterInput{Email: email, Password: password, FirstName: "Admin", LastName: "User"}
	if _, err := s.CreateAdmin(ctx, in); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("create bootstrap admin: %w", err)
	}
	return true, nil
}
