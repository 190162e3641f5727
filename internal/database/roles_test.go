package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

func TestLoadRoles_Defaults(t *testing.T) {
	t.Parallel()

	roles, err := LoadRoles("")
	require.NoError(t, err)

	byName := make(map[string]models.Role, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}
	require.Len(t, byName, 4)

	super := byName["super_admin"]
	require.Equal(t, models.ScopeGlobal, super.Permissions["companies"].Scope)
	require.True(t, super.Permissions["users"].Allows("assign_roles"))

	employee := byName["dipendente"]
	require.Equal(t, models.ScopeOwn, employee.Permissions["expenses"].Scope)
	require.True(t, employee.Permissions["expenses"].Allows("create"))
	require.False(t, employee.Permissions["expenses"].Allows("delete"))
	_, hasIncomes := employee.Permissions["incomes"]
	require.False(t, hasIncomes)
}

func TestParseRoles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:  "missing scope is allowed",
			input: "roles:\n  - name: viewer\n    permissions:\n      expenses: {read: true}\n",
		},
		{
			name:    "unknown scope",
			input:   "roles:\n  - name: x\n    permissions:\n      expenses: {read: true, scope: planet}\n",
			wantErr: "unknown scope",
		},
		{
			name:    "non-boolean action",
			input:   "roles:\n  - name: x\n    permissions:\n      expenses: {read: maybe}\n",
			wantErr: "read",
		},
		{
			name:    "duplicate role",
			input:   "roles:\n  - name: x\n  - name: x\n",
			wantErr: "duplicate role",
		},
		{
			name:    "unnamed role",
			input:   "roles:\n  - permissions: {}\n",
			wantErr: "without a name",
		},
		{
			name:    "unknown field",
			input:   "rolez: []\n",
			wantErr: "failed to parse roles YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			roles, err := ParseRoles([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, roles, 1)
			require.Equal(t, models.ScopeNone, roles[0].Permissions["expenses"].Scope)
		})
	}
}

func TestLoadRoles_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  - name: auditor\n    permissions:\n      incomes: {read: true, scope: company}\n"), 0o600))

	roles, err := LoadRoles(path)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, "auditor", roles[0].Name)

	_, err = LoadRoles(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
