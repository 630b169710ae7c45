//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements mirrors migrations/0001_init.sql so store suites can run
// against a fresh container without a migration tool. Keep the two in sync.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS cases (
		id                  UUID PRIMARY KEY,
		reported_by         UUID        NOT NULL,
		status              TEXT        NOT NULL,
		signature_family    BOOLEAN     NOT NULL DEFAULT FALSE,
		signature_authority BOOLEAN     NOT NULL DEFAULT FALSE,
		jurisdiction        TEXT        NOT NULL,
		resolved_at         TIMESTAMPTZ,
		retention_expiry    TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS biometric_records (
		id               UUID PRIMARY KEY,
		case_id          UUID        NOT NULL,
		embedding        vector(512),
		fingerprint      TEXT        NOT NULL UNIQUE,
		source           TEXT        NOT NULL,
		status           TEXT        NOT NULL,
		quality          DOUBLE PRECISION NOT NULL DEFAULT 0,
		processing_error TEXT,
		created_at       TIMESTAMPTZ NOT NULL,
		processed_at     TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS match_candidates (
		id                    UUID PRIMARY KEY,
		case_id               UUID        NOT NULL,
		record_id             UUID        NOT NULL,
		confidence            DOUBLE PRECISION NOT NULL,
		distance              DOUBLE PRECISION NOT NULL,
		source                TEXT        NOT NULL,
		status                TEXT        NOT NULL,
		requires_human_review BOOLEAN     NOT NULL DEFAULT FALSE,
		verified_by           UUID,
		verified_at           TIMESTAMPTZ,
		verification_notes    TEXT,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL,
		UNIQUE (case_id, record_id)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id                UUID PRIMARY KEY,
		case_id           UUID        NOT NULL,
		actor_fingerprint TEXT        NOT NULL,
		action            TEXT        NOT NULL,
		metadata          JSONB,
		jurisdiction      TEXT        NOT NULL,
		event_hash        TEXT        NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
}

// NewPool connects a pgx pool to the container and applies the schema.
func (p *PostgresContainer) NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, p.DSN)
	if err != nil {
		t.Fatalf("failed to connect pgx pool: %v", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			t.Fatalf("failed to apply schema: %v", err)
		}
	}
	t.Cleanup(pool.Close)
	return pool
}

// TruncateTables empties the given tables. Use between tests for isolation.
func TruncateTables(ctx context.Context, pool *pgxpool.Pool, tables ...string) error {
	for _, table := range tables {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}
