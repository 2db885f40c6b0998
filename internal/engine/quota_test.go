package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/simerr"
)

// TestQuotaEnforcer_WithinLimit tests normal operation within quota.
func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)

	for i := 0; i < 10; i++ {
		err := q.Check("entity-1")
		assert.NoError(t, err, "step %d should be allowed", i+1)
	}

	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

// TestQuotaEnforcer_ExceedsLimit tests quota exceeded error.
func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(5)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check("entity-1"))
	}

	err := q.Check("entity-1")
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "entity-1", stepsErr.EntityID)
	assert.Equal(t, 6, stepsErr.Steps)
	assert.Equal(t, 5, stepsErr.Limit)
}

func TestStepsExceededError_Error(t *testing.T) {
	err := &StepsExceededError{
		EntityID: "entity-abc",
		Steps:    1001,
		Limit:    1000,
	}

	msg := err.Error()
	assert.Contains(t, msg, "entity-abc")
	assert.Contains(t, msg, "1001")
	assert.Contains(t, msg, "1000")
}

// TestStepsExceededError_IsRunawayLoop verifies the quota error carries the
// RUNAWAY_LOOP code through wrapping.
func TestStepsExceededError_IsRunawayLoop(t *testing.T) {
	err := fmt.Errorf("run: %w", &StepsExceededError{EntityID: "e", Steps: 11, Limit: 10})

	assert.True(t, IsStepsExceededError(err))
	assert.True(t, simerr.IsRunawayLoop(err))
	assert.Equal(t, simerr.CodeRunawayLoop, simerr.CodeOf(err))

	var se *simerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "step-quota", se.Details["guard"])
}

func TestIsStepsExceededError_Other(t *testing.T) {
	assert.False(t, IsStepsExceededError(nil))
	assert.False(t, IsStepsExceededError(simerr.RunawayLoop(2, 1)))
}
