package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG keeps failure counters in the auth_limiter table so that every server
// instance sharing the database sees the same lockouts.
type PG struct {
	db     querier
	policy Policy
	now    func() time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter over a pool or a mock.
func NewPG(db querier, p Policy) *PG {
	return &PG{db: db, policy: p, now: time.Now}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE username=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.db.QueryRow(ctx, q, username, ipHash).Scan(&blockedUntil)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}
	if now := l.now(); blockedUntil.After(now) {
		return false, blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for (username, ip).
func (l *PG) Success(ctx context.Context, username string, ipHash []byte) error {
	const q = `DELETE FROM auth_limiter WHERE username=$1 AND ip_hash=$2`
	_, err := l.db.Exec(ctx, q, username, ipHash)
	return err
}

// Failure counts a failed attempt. Counting restarts when the previous
// failure is older than the window.
func (l *PG) Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO auth_limiter (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES (@username, @ip_hash, 1, 'epoch', now())
ON CONFLICT (username, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN now() - auth_limiter.updated_at > @window::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	const block = `UPDATE auth_limiter SET blocked_until=$3 WHERE username=$1 AND ip_hash=$2`

	var fails int
	err := l.db.QueryRow(ctx, q, pgx.NamedArgs{
		"username": username,
		"ip_hash":  ipHash,
		"window":   l.policy.Window,
	}).Scan(&fails)
	if err != nil {
		return false, 0, err
	}
	if fails < l.policy.MaxFailures {
		return false, 0, nil
	}
	until := l.now().Add(l.policy.BlockFor)
	if _, err := l.db.Exec(ctx, block, username, ipHash, until); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
