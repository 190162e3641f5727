package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Initialize hash salt for all tests in this package.
	InitHashSaltForTesting("test-salt-for-unit-tests-minimum-32-chars")
	os.Exit(m.Run())
}

func TestHashID(t *testing.T) {
	t.Run("produces consistent hash for same id", func(t *testing.T) {
		require.Equal(t, HashID("user-12345"), HashID("user-12345"))
	})

	t.Run("produces different hashes for different ids", func(t *testing.T) {
		require.NotEqual(t, HashID("user-12345"), HashID("user-67890"))
	})

	t.Run("produces 8 character hash", func(t *testing.T) {
		require.Len(t, HashID("company-1"), 8)
	})

	t.Run("empty id", func(t *testing.T) {
		require.Equal(t, "<none>", HashID(""))
	})

	t.Run("changes hash when salt changes", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		hash1 := HashID("user-12345")
		hashSalt = "different-salt"
		hash2 := HashID("user-12345")

		require.NotEqual(t, hash1, hash2)
	})
}

func TestSanitizeDescription(t *testing.T) {
	require.Equal(t, "<empty>", SanitizeDescription(""))
	require.Equal(t, "<redacted: 4 words, 17 chars>", SanitizeDescription("pizza and a beer!"))
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "<empty>"},
		{name: "short", input: "ciao", want: "<4 chars>"},
		{name: "long", input: "ho pagato trentasette euro", want: "ho ...<26 chars>"},
		{name: "multibyte prefix", input: "però ho pagato venti euro", want: "per...<25 chars>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SanitizeText(tt.input))
		})
	}
}
