package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestKind_Valid(t *testing.T) {
	t.Parallel()

	require.True(t, KindExpense.Valid())
	require.True(t, KindIncome.Valid())
	require.False(t, Kind("").Valid())
	require.False(t, Kind("spesa").Valid())
}

func TestRecord(t *testing.T) {
	t.Parallel()

	t.Run("formats occurred on as strict date", func(t *testing.T) {
		t.Parallel()
		rec := Record{
			Kind:       KindExpense,
			Amount:     decimal.NewFromFloat(37.43),
			OccurredOn: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		}
		require.Equal(t, "2024-06-12", rec.OccurredOnString())
	})

	t.Run("zero date formats as empty", func(t *testing.T) {
		t.Parallel()
		rec := Record{}
		require.Empty(t, rec.OccurredOnString())
	})
}

func TestScope_Rank(t *testing.T) {
	t.Parallel()

	require.Less(t, ScopeOwn.Rank(), ScopeCompany.Rank())
	require.Less(t, ScopeCompany.Rank(), ScopeGlobal.Rank())
	require.Zero(t, ScopeNone.Rank())
	require.Zero(t, Scope("planet").Rank())
}

func TestParseScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Scope
		wantErr bool
	}{
		{"", ScopeNone, false},
		{"own", ScopeOwn, false},
		{"company", ScopeCompany, false},
		{"global", ScopeGlobal, false},
		{"everything", ScopeNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseScope(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResourcePermission_JSON(t *testing.T) {
	t.Parallel()

	t.Run("decodes actions and scope", func(t *testing.T) {
		t.Parallel()
		var set RolePermissionSet
		err := json.Unmarshal([]byte(`{"expenses": {"create": true, "read": true, "delete": false, "scope": "own"}}`), &set)
		require.NoError(t, err)

		perm := set["expenses"]
		require.True(t, perm.Allows("create"))
		require.True(t, perm.Allows("read"))
		require.False(t, perm.Allows("delete"))
		require.False(t, perm.Allows("update"))
		require.Equal(t, ScopeOwn, perm.Scope)
	})

	t.Run("rejects unknown scope", func(t *testing.T) {
		t.Parallel()
		var perm ResourcePermission
		err := json.Unmarshal([]byte(`{"read": true, "scope": "universe"}`), &perm)
		require.Error(t, err)
	})

	t.Run("rejects non-boolean action", func(t *testing.T) {
		t.Parallel()
		var perm ResourcePermission
		err := json.Unmarshal([]byte(`{"read": "yes"}`), &perm)
		require.Error(t, err)
	})

	t.Run("encodes back to the stored shape", func(t *testing.T) {
		t.Parallel()
		perm := ResourcePermission{Actions: map[string]bool{"read": true}, Scope: ScopeCompany}
		data, err := json.Marshal(perm)
		require.NoError(t, err)
		require.JSONEq(t, `{"read": true, "scope": "company"}`, string(data))
	})
}
