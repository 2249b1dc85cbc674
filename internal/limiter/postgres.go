package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Policy configures the sliding window and lockout.
type Policy struct {
	Window   time.Duration // failures older than this restart the count
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG is a PostgreSQL-backed limiter keeping one counter row per (email, ip_hash).
type PG struct {
	q      pgxQuerier
	policy Policy
	now    func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter. *pgxpool.Pool satisfies q.
func NewPG(q pgxQuerier, p Policy) *PG {
	return &PG{q: q, policy: p, now: time.Now}
}

// Allow reports whether the key is currently blocked.
func (l *PG) Allow(ctx context.Context, k Key) (Decision, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE email=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, q, k.Email, k.IPHash).Scan(&blockedUntil)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Decision{}, nil
	case err != nil:
		return Decision{}, err
	}
	if now := l.now(); blockedUntil.After(now) {
		return Decision{Blocked: true, RetryAfter: blockedUntil.Sub(now)}, nil
	}
	return Decision{}, nil
}

// Success resets counters for the key.
func (l *PG) Success(ctx context.Context, k Key) error {
	const q = `
INSERT INTO auth_limiter (email, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', now())
ON CONFLICT (email, ip_hash)
DO UPDATE SET fail_count = 0, blocked_until = 'epoch', updated_at = now()`
	_, err := l.q.Exec(ctx, q, k.Email, k.IPHash)
	return err
}

// Failure records a failed attempt and blocks the key once MaxFails is reached within Window.
func (l *PG) Failure(ctx context.Context, k Key) (Decision, error) {
	const q = `
INSERT INTO auth_limiter (email, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', now())
ON CONFLICT (email, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN now() - auth_limiter.updated_at > $3::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.q.QueryRow(ctx, q, k.Email, k.IPHash, l.policy.Window).Scan(&fails); err != nil {
		return Decision{}, err
	}
	if l.policy.MaxFails <= 0 || fails < l.policy.MaxFails {
		return Decision{}, nil
	}

	until := l.now().Add(l.policy.BlockFor)
	const upd = `UPDATE auth_limiter SET blocked_until = $3 WHERE email = $1 AND ip_hash = $2`
	if _, err := l.q.Exec(ctx, upd, k.Email, k.IPHash, until); err != nil {
		return Decision{}, err
	}
	return Decision{Blocked: true, RetryAfter: l.policy.BlockFor}, nil
}
