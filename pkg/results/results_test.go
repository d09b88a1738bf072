package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResultVariants validates the closed-outcome invariant: every variant
// carries exactly the data its consumers read, nothing leaks across kinds.
func TestResultVariants(t *testing.T) {
	t.Run("success carries the payload", func(t *testing.T) {
		r := Success("payload")
		require.True(t, r.IsSuccess())
		assert.Equal(t, KindSuccess, r.Kind())
		assert.Equal(t, "payload", r.Value())
	})

	t.Run("not found carries entity type and id", func(t *testing.T) {
		r := NotFound[string]("Application", "deadbeef")
		require.False(t, r.IsSuccess())
		assert.Equal(t, KindNotFound, r.Kind())
		assert.Equal(t, "Application", r.EntityType())
		assert.Equal(t, "deadbeef", r.EntityID())
	})

	t.Run("unauthorised carries nothing", func(t *testing.T) {
		r := Unauthorised[int]()
		assert.Equal(t, KindUnauthorised, r.Kind())
		assert.Zero(t, r.Value())
	})

	t.Run("general validation error carries the message", func(t *testing.T) {
		r := GeneralValidationError[int]("This application has already been submitted")
		assert.Equal(t, KindGeneralValidationError, r.Kind())
		assert.Equal(t, "This application has already been submitted", r.Message())
	})

	t.Run("field validation error copies the field map", func(t *testing.T) {
		fields := map[string]string{"arrivalDate": "empty"}
		r := FieldValidationError[int](fields)
		fields["arrivalDate"] = "mutated"
		assert.Equal(t, map[string]string{"arrivalDate": "empty"}, r.FieldErrors())
	})
}

func TestConvert(t *testing.T) {
	t.Run("re-tags non-success variants", func(t *testing.T) {
		r := Convert[string, int](NotFound[string]("Assessment", "abc"))
		assert.Equal(t, KindNotFound, r.Kind())
		assert.Equal(t, "Assessment", r.EntityType())
		assert.Equal(t, "abc", r.EntityID())

		v := Convert[string, int](GeneralValidationError[string]("Cannot update both dates"))
		assert.Equal(t, "Cannot update both dates", v.Message())
	})

	t.Run("panics on success", func(t *testing.T) {
		assert.Panics(t, func() {
			Convert[string, int](Success("x"))
		})
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "success", KindSuccess.String())
	assert.Equal(t, "unauthorised", KindUnauthorised.String())
	assert.Equal(t, "unknown(99)", Kind(99).String())
}
