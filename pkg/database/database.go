package database

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldscan/fieldscan-backend/pkg/config"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// schema holds the audit trail DDL. Statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS extraction_audit (
	id              UUID PRIMARY KEY,
	job_id          TEXT NOT NULL DEFAULT '',
	label           TEXT NOT NULL,
	layout          TEXT NOT NULL DEFAULT '',
	fingerprint     TEXT NOT NULL,
	requested_keys  TEXT NOT NULL,
	coverage_before DOUBLE PRECISION NOT NULL DEFAULT 0,
	coverage        DOUBLE PRECISION NOT NULL,
	fallback_used   BOOLEAN NOT NULL DEFAULT FALSE,
	cache_hit       BOOLEAN NOT NULL DEFAULT FALSE,
	duration_ms     BIGINT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS extraction_audit_created_at_idx ON extraction_audit (created_at DESC);
CREATE INDEX IF NOT EXISTS extraction_audit_fingerprint_idx ON extraction_audit (fingerprint);
`

// DB wraps sqlx.DB with additional functionality
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New creates a new database connection
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return Wrap(db, log), nil
}

// Wrap adopts an existing handle, e.g. one backed by sqlmock.
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

// Migrate applies the audit schema
func (db *DB) Migrate(ctx context.Context) error {
	err := db.Transaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	db.logger.Info().Msg("database schema up to date")
	return nil
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}
	return map[string]string{"status": "up"}
}

// Transaction executes a function within a transaction
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
