// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/food-advisor/internal/model"
)

// UserRepository provides access to stored identities.
//
// Implementations return errs.ErrNotFound for a missing row and errs.ErrAlreadyExists for
// a duplicate email; any other error is a storage failure.
type UserRepository interface {
	// Create inserts a new user and returns its id.
	Create(ctx context.Context, u model.NewUser) (int64, error)
	// GetByID loads a user by id.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// List returns one page of users ordered by id plus the total count.
	List(ctx context.Context, limit, offset int) ([]model.User, int64, error)
	// SetActive flips the active flag of a user.
	SetActive(ctx context.Context, id int64, active bool) error
}
