package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

const (
	selectBlocked = `SELECT blocked_until FROM auth_limiter WHERE email=\$1 AND ip_hash=\$2`
	upsertSuccess = `INSERT INTO auth_limiter .* DO UPDATE SET fail_count = 0`
	upsertFailure = `INSERT INTO auth_limiter .* RETURNING fail_count`
	updateBlocked = `UPDATE auth_limiter SET blocked_until = \$3 WHERE email = \$1 AND ip_hash = \$2`
)

var policy = Policy{Window: 15 * time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute}

func newPG(t *testing.T, now time.Time) (*PG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	l := NewPG(mock, policy)
	l.now = func() time.Time { return now }
	return l, mock
}

func TestNewKey(t *testing.T) {
	t.Parallel()

	a := NewKey(" Alice@Example.com ", "1.2.3.4")
	b := NewKey("alice@example.com", "1.2.3.4")
	c := NewKey("alice@example.com", "5.6.7.8")

	require.Equal(t, "alice@example.com", a.Email)
	require.Equal(t, a, b)
	require.NotEqual(t, a.IPHash, c.IPHash)
	require.Len(t, a.IPHash, 32)
	require.NotContains(t, string(a.IPHash), "1.2.3.4")
}

func TestPG_Allow(t *testing.T) {
	now := time.Now()
	l, mock := newPG(t, now)
	defer mock.Close()
	k := NewKey("u@x.io", "ip")
	ctx := context.Background()

	mock.ExpectQuery(selectBlocked).WithArgs(k.Email, k.IPHash).WillReturnError(pgx.ErrNoRows)
	d, err := l.Allow(ctx, k)
	require.NoError(t, err)
	require.False(t, d.Blocked)

	mock.ExpectQuery(selectBlocked).WithArgs(k.Email, k.IPHash).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(5 * time.Minute)))
	d, err = l.Allow(ctx, k)
	require.NoError(t, err)
	require.True(t, d.Blocked)
	require.Equal(t, 5*time.Minute, d.RetryAfter)

	mock.ExpectQuery(selectBlocked).WithArgs(k.Email, k.IPHash).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Minute)))
	d, err = l.Allow(ctx, k)
	require.NoError(t, err)
	require.False(t, d.Blocked)

	mock.ExpectQuery(selectBlocked).WithArgs(k.Email, k.IPHash).WillReturnError(errors.New("db boom"))
	_, err = l.Allow(ctx, k)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_Success(t *testing.T) {
	l, mock := newPG(t, time.Now())
	defer mock.Close()
	k := NewKey("u@x.io", "ip")

	mock.ExpectExec(upsertSuccess).WithArgs(k.Email, k.IPHash).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Success(context.Background(), k))

	mock.ExpectExec(upsertSuccess).WithArgs(k.Email, k.IPHash).WillReturnError(errors.New("exec fail"))
	require.Error(t, l.Success(context.Background(), k))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_Failure(t *testing.T) {
	now := time.Now()
	l, mock := newPG(t, now)
	defer mock.Close()
	k := NewKey("u@x.io", "ip")
	ctx := context.Background()

	// below threshold
	mock.ExpectQuery(upsertFailure).WithArgs(k.Email, k.IPHash, policy.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	d, err := l.Failure(ctx, k)
	require.NoError(t, err)
	require.False(t, d.Blocked)

	// threshold reached: block
	mock.ExpectQuery(upsertFailure).WithArgs(k.Email, k.IPHash, policy.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(updateBlocked).WithArgs(k.Email, k.IPHash, now.Add(policy.BlockFor)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	d, err = l.Failure(ctx, k)
	require.NoError(t, err)
	require.True(t, d.Blocked)
	require.Equal(t, policy.BlockFor, d.RetryAfter)

	mock.ExpectQuery(upsertFailure).WithArgs(k.Email, k.IPHash, policy.Window).
		WillReturnError(errors.New("query error"))
	_, err = l.Failure(ctx, k)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNop(t *testing.T) {
	t.Parallel()

	var l Limiter = Nop{}
	d, err := l.Allow(context.Background(), Key{})
	require.NoError(t, err)
	require.False(t, d.Blocked)
	d, err = l.Failure(context.Background(), Key{})
	require.NoError(t, err)
	require.False(t, d.Blocked)
	require.NoError(t, l.Success(context.Background(), Key{}))
}
