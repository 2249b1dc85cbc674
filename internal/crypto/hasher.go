package crypto

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Hasher runs bcrypt work on a bounded number of concurrent slots so a burst of logins
// cannot starve the rest of the process. Waiting for a slot honours ctx; once a hash
// has started it runs to completion.
type Hasher struct {
	slots *semaphore.Weighted
	cost  int
}

// NewHasher constructs a Hasher. workers <= 0 means GOMAXPROCS, cost <= 0 means DefaultCost.
func NewHasher(workers, cost int) *Hasher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if cost <= 0 {
		cost = DefaultCost
	}
	return &Hasher{slots: semaphore.NewWeighted(int64(workers)), cost: cost}
}

// Hash hashes password with the configured cost.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)
	return HashPassword(password, h.cost)
}

// Verify compares password with a stored hash. See VerifyPassword.
func (h *Hasher) Verify(ctx context.Context, password, stored string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.slots.Release(1)
	return VerifyPassword(password, stored)
}
