// Package repository opens the gateway database and creates its schema.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	gateway "github.com/goliatone/go-trade-gateway"
)

const defaultPingTimeout = 5 * time.Second

// Open connects to the configured database and verifies it answers a ping.
func Open(ctx context.Context, cfg gateway.DatabaseConfig) (*bun.DB, error) {
	var db *bun.DB

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case gateway.DatabaseDriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())

	case gateway.DatabaseDriverPostgres:
		connCfg, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		db = bun.NewDB(stdlib.OpenDB(*connCfg), pgdialect.New())

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the users and orders tables when they do not exist.
func Migrate(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		models := []any{
			(*gateway.User)(nil),
			(*gateway.Order)(nil),
		}
		for _, model := range models {
			if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("create table %T: %w", model, err)
			}
		}

		if _, err := tx.NewCreateIndex().
			Model((*gateway.Order)(nil)).
			Index("orders_trader_id_idx").
			Column("trader_id").
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create orders index: %w", err)
		}

		return nil
	})
}
