// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"
)

// Key identifies a login source: the attempted email and the hashed client address.
type Key struct {
	Email  string
	IPHash []byte
}

// NewKey builds a Key, normalizing the email and hashing the address so raw IPs are never stored.
func NewKey(email, ip string) Key {
	h := sha256.Sum256([]byte(ip))
	return Key{Email: strings.ToLower(strings.TrimSpace(email)), IPHash: h[:]}
}

// Decision is the limiter verdict for a key.
type Decision struct {
	Blocked    bool
	RetryAfter time.Duration
}

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login attempt may proceed.
	Allow(ctx context.Context, k Key) (Decision, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, k Key) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, k Key) (Decision, error)
}

// Nop never blocks. Used when rate limiting is disabled.
type Nop struct{}

func (Nop) Allow(context.Context, Key) (Decision, error)   { return Decision{}, nil }
func (Nop) Success(context.Context, Key) error              { return nil }
func (Nop) Failure(context.Context, Key) (Decision, error) { return Decision{}, nil }
