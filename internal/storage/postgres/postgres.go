// Package postgres backs the cycle archive. Writes are one short
// transaction per closed cycle from the trade loop; reads are range scans
// from the reporter, so a small pool is enough.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// connectTimeout bounds the initial dial and ping so a binary fails
	// fast when the archive is unreachable instead of hanging at startup.
	connectTimeout = 10 * time.Second

	// maxConns caps the pool. The coordinator archives cycles from a
	// single goroutine, so pgx's CPU-based default is far more than the
	// workload can use.
	maxConns = 4
)

// Pool wraps pgxpool.Pool so stores take a package type instead of the
// driver's.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a connection pool for the given DSN and verifies it with
// a ping. A pool_max_conns DSN parameter overrides the default cap.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	// ParseConfig consumes pool_* parameters, so the raw DSN is the only
	// place an explicit cap still shows.
	if !strings.Contains(dsn, "pool_max_conns") {
		cfg.MaxConns = maxConns
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// unique_violation, the only constraint error the archive expects: the
// coordinator may retry an archive after a partial failure.
const pgErrUniqueViolation = "23505"

// isDuplicateKeyError reports whether err is a unique constraint
// violation on cycle_id or a leg's (cycle_id, leg_index).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// isNotFoundError reports whether err means the query matched no rows.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
