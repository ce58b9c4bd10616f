// Package database opens the PostgreSQL pool the portal shares with the
// CMS. The pool is constructed explicitly from configuration and handed
// to the components that need it; nothing here is global.
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canaldelcongreso/portal/internal/config"
	"github.com/canaldelcongreso/portal/internal/errors"
)

// ConnectTimeout bounds the initial connect and ping.
const ConnectTimeout = 5 * time.Second

// Pool wraps a pgx connection pool.
type Pool struct {
	pool *pgxpool.Pool
}

// ParseConfig turns cfg into a pgxpool configuration.
func ParseConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.New("P140").
			WithDetail("database.url could not be parsed").
			Wrap(err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	return pc, nil
}

// Open creates the pool and pings it once. The caller owns the returned
// pool and must Close it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	pc, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errors.New("P140").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.New("P140").Wrap(err)
	}
	return &Pool{pool: pool}, nil
}

// Ping checks that a connection can be acquired.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Stats returns the current pool statistics.
func (p *Pool) Stats() *pgxpool.Stat {
	return p.pool.Stat()
}

// Close closes every connection in the pool.
func (p *Pool) Close() {
	p.pool.Close()
}
