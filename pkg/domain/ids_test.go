package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseID_Invariants validates the parsing invariant: ids must be valid,
// non-empty, non-nil UUIDs at trust boundaries.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseApplicationID("")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidID))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAssessmentID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidID))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidID))
	})

	t.Run("accepts valid UUID and round-trips", func(t *testing.T) {
		raw := uuid.New()
		parsed, err := ParseApplicationID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, raw.String(), parsed.String())
		assert.False(t, parsed.IsNil())
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		raw := uuid.New()
		parsed, err := ParseUserID("  " + raw.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, raw.String(), parsed.String())
	})
}

func TestCRN_Valid(t *testing.T) {
	cases := map[string]bool{
		"X320741":  true,
		"A000001":  true,
		"x320741":  false, // lowercase prefix
		"X32074":   false, // short
		"X3207411": false, // long
		"XX20741":  false, // letter in digit run
		"":         false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, CRN(raw).Valid(), "crn %q", raw)
	}
}
