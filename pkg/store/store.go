package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

type Config struct {
	Logger *slog.Logger
	Driver string // "sqlite" or "postgres"
	DSN    string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Driver == "" {
		return errors.New("driver is required")
	}
	if cfg.DSN == "" {
		return errors.New("dsn is required")
	}
	return nil
}

// DB is the relational backend: a database/sql pool plus the dialect that
// shapes DDL, placeholders and the foreign-key capability.
type DB struct {
	log     *slog.Logger
	db      *sql.DB
	dialect Dialect
}

// Open connects to the backend and brings the meta tables up to date.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect, err := OpenDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect.Name(), err)
	}
	d := &DB{
		log:     cfg.Logger,
		db:      db,
		dialect: dialect,
	}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	cfg.Logger.Debug("store opened", "dialect", dialect.Name())
	return d, nil
}

func (d *DB) Dialect() Dialect { return d.dialect }

// SQL exposes the underlying pool for read paths that want their own
// concurrency (the verifier issues independent read-only queries).
func (d *DB) SQL() *sql.DB { return d.db }

func (d *DB) Close() error { return d.db.Close() }

// Reset drops every table, model and meta alike, and recreates the meta
// tables. A dataset ingest must never run against a backend carrying a
// previous dataset's schema.
func (d *DB) Reset(ctx context.Context) error {
	tables, err := d.dialect.ListTables(ctx, d.db)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	// Model tables carry foreign keys between each other; on backends that
	// check per statement, dropping in arbitrary order needs checks off.
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()
	if err := d.dialect.SetForeignKeyEnforcement(ctx, conn, false); err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := conn.ExecContext(ctx, d.dialect.DropTableSQL(table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	if err := d.dialect.SetForeignKeyEnforcement(ctx, conn, true); err != nil {
		return err
	}
	d.log.Debug("dropped all tables", "count", len(tables))
	return d.migrate(ctx)
}
