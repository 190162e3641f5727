package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, tx))

	for _, table := range []string{"companies", "roles", "user_companies", "records"} {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, table)
	}
}

func TestSeedRoles(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	roles, err := LoadRoles("")
	require.NoError(t, err)

	require.NoError(t, SeedRoles(ctx, tx, roles))
	require.NoError(t, SeedRoles(ctx, tx, roles))

	var count int
	err = tx.QueryRow(ctx, "SELECT COUNT(*) FROM roles").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 4, count, "should not duplicate roles on re-seed")

	var scope string
	err = tx.QueryRow(ctx, `SELECT permissions->'expenses'->>'scope' FROM roles WHERE name = 'dipendente'`).Scan(&scope)
	require.NoError(t, err)
	require.Equal(t, "own", scope)
}
