package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrTaskNotFound, ErrNotFound},
		{ErrSessionNotFound, ErrNotFound},
		{ErrDiaryNotFound, ErrNotFound},
		{ErrUserNotFound, ErrNotFound},
		{ErrMaxRetriesExhausted, ErrInvalidState},
		{ErrTaskNotFailed, ErrInvalidState},
		{ErrAlreadyAnalyzed, ErrInvalidState},
		{ErrTurnInProgress, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("task 7: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
			assert.ErrorIs(t, wrapped, tt.err)
			assert.False(t, errors.Is(wrapped, ErrUnauthorized))
		})
	}
}

func TestRetryMessagesDiffer(t *testing.T) {
	assert.Contains(t, ErrMaxRetriesExhausted.Error(), "max retries")
	assert.Contains(t, ErrTaskNotFailed.Error(), "not FAILED")
}
