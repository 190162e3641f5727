package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS roles (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			permissions JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS user_companies (
			actor_id TEXT NOT NULL,
			company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			role_id INTEGER NOT NULL REFERENCES roles(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (actor_id, company_id)
		)`,

		`CREATE TABLE IF NOT EXISTS records (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			owner_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('expense', 'income')),
			amount DECIMAL(14, 2) NOT NULL CHECK (amount > 0),
			currency TEXT NOT NULL DEFAULT 'EUR',
			occurred_on DATE NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			counterparty TEXT NOT NULL DEFAULT '',
			payment_method TEXT NOT NULL DEFAULT '',
			payment_terms TEXT NOT NULL DEFAULT '',
			bank TEXT NOT NULL DEFAULT '',
			document_ref TEXT NOT NULL DEFAULT '',
			document_type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'confirmed',
			description TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'api',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_records_tenant_occurred ON records(tenant_id, occurred_on)`,
		`CREATE INDEX IF NOT EXISTS idx_records_owner ON records(tenant_id, owner_id)`,
		`DROP INDEX IF EXISTS idx_records_document_ref`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_records_document_ref_issued
			ON records(tenant_id, kind, document_ref)
			WHERE document_ref <> '' AND document_ref NOT LIKE 'AUTO-%'`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
