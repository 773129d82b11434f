package agenterrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindEmptyName, "EMPTY_NAME"},
		{KindEmptyDescription, "EMPTY_DESCRIPTION"},
		{KindEmptyModelName, "EMPTY_MODEL_NAME"},
		{KindInvalidMaxAttempts, "INVALID_MAX_ATTEMPTS"},
		{KindMissingOutputSchema, "MISSING_OUTPUT_SCHEMA"},
		{KindExecutionCancelled, "EXECUTION_CANCELLED"},
		{KindMaxAttemptsExceeded, "MAX_ATTEMPTS_EXCEEDED"},
		{KindStateProjectionFailed, "STATE_PROJECTION_FAILED"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryValidation, CategoryOf(KindEmptyName))
	assert.Equal(t, CategoryValidation, CategoryOf(KindInvalidMaxAttempts))
	assert.Equal(t, CategoryExecution, CategoryOf(KindExecutionCancelled))
	assert.Equal(t, CategoryExecution, CategoryOf(KindMaxAttemptsExceeded))
	assert.Equal(t, CategoryExecution, CategoryOf(KindStateProjectionFailed))
}

func TestErrorKindMatching(t *testing.T) {
	base := New(KindMaxAttemptsExceeded, "no valid output after 3 attempts")
	wrapped := fmt.Errorf("execute: %w", base)

	assert.True(t, Is(wrapped, KindMaxAttemptsExceeded))
	assert.False(t, Is(wrapped, KindExecutionCancelled))
	assert.False(t, Is(errors.New("plain"), KindMaxAttemptsExceeded))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindMaxAttemptsExceeded, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestNewWithContext(t *testing.T) {
	err := NewWithContext(KindExecutionCancelled, "cancelled during completion",
		map[string]any{"phase": "completion", "attempt": 2})

	assert.Equal(t, "completion", err.Context["phase"])
	assert.Equal(t, 2, err.Context["attempt"])
	assert.Equal(t, CategoryExecution, err.Category)
	assert.Contains(t, err.Error(), "cancelled during completion")
}

func TestValidationErrors(t *testing.T) {
	ve := ValidationErrors{
		NewWithPath(KindEmptyName, "name", "agent name must be non-empty"),
		NewWithPath(KindInvalidMaxAttempts, "validation.maxAttempts", "maxAttempts must be >= 1, got 0"),
	}

	assert.True(t, ve.Has(KindEmptyName))
	assert.False(t, ve.Has(KindMissingOutputSchema))
	assert.Equal(t, []Kind{KindEmptyName, KindInvalidMaxAttempts}, ve.Kinds())
	assert.Contains(t, ve.Error(), "2 validation error(s)")
}
