package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"certhub/internal/platform/config"
)

const connMaxIdleTime = 5 * time.Minute

// Open establishes a pool for cfg and verifies it with a ping bounded by ctx.
func Open(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	d, err := LookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := d.DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", d.Name, err)
	}

	if d.Name == SQLite.Name {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.PoolSize)
		db.SetMaxIdleConns(cfg.PoolSize)
	}
	db.SetConnMaxIdleTime(connMaxIdleTime)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	return db, nil
}

// Opener returns an opener bound to cfg for use by the Manager.
func Opener(cfg config.Database) func(ctx context.Context) (*sqlx.DB, error) {
	return func(ctx context.Context) (*sqlx.DB, error) {
		return Open(ctx, cfg)
	}
}
