package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/invoice2order/internal/common"
)

// DB bundles the database handle with the ent SQL driver used to build
// dialect-specific queries. pool is set only for PostgreSQL.
type DB struct {
	drv  *entsql.Driver
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL through a pgx pool or to SQLite, depending on
// cfg.Driver, and verifies the connection.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("db.connect", "driver", cfg.Driver)

	var db *DB
	switch cfg.Driver {
	case "postgres":
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("db.connect.failed", "error", err)
			return nil, common.NewAppError("DB_ERROR", "parse dsn", err)
		}
		pc.MaxConns = cfg.MaxConns
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		pc.ConnConfig.RuntimeParams["application_name"] = "invoice2order"
		if cfg.StatementTimeout > 0 {
			pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
		}

		dctx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dctx, pc)
		if err != nil {
			logger.Error("db.connect.failed", "error", err)
			return nil, common.NewAppError("DB_ERROR", "connect", err)
		}
		// Wrap pool as *sql.DB for the ent driver
		db = &DB{drv: entsql.OpenDB(dialect.Postgres, stdlib.OpenDBFromPool(pool)), pool: pool}
	case "sqlite":
		sdb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			logger.Error("db.connect.failed", "error", err)
			return nil, common.NewAppError("DB_ERROR", "open sqlite", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		sdb.SetMaxOpenConns(1)
		db = &DB{drv: entsql.OpenDB(dialect.SQLite, sdb)}
	default:
		return nil, common.NewAppError("CONFIG_ERROR", "unknown DB_DRIVER "+cfg.Driver, common.ErrInvalidInput)
	}

	if err := db.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		db.Close(logger)
		logger.Error("db.connect.failed", "error", err)
		return nil, common.NewAppError("DB_ERROR", "ping", err)
	}
	logger.Info("db.connect.ok", "driver", cfg.Driver)
	return db, nil
}

// Dialect reports the ent dialect name, e.g. dialect.Postgres.
func (d *DB) Dialect() string { return d.drv.Dialect() }

// SQL exposes the underlying handle.
func (d *DB) SQL() *sql.DB { return d.drv.DB() }

// Close closes the database connections gracefully
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := d.drv.Close(); err != nil {
		logger.Error("db.close.failed", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	logger.Debug("db.closed")
}

// HealthCheck pings the database, bounded by timeout when positive.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.SQL().PingContext(ctx)
}

// Migrate creates the ledger tables when they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if d.Dialect() == dialect.Postgres {
		stmts = postgresSchema
	}
	for _, s := range stmts {
		if _, err := d.SQL().ExecContext(ctx, s); err != nil {
			return common.NewAppError("DB_ERROR", "migrate", err)
		}
	}
	return nil
}
