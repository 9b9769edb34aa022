package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/repositories"
	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      int
		retriable bool
	}{
		{"invalid column", fmt.Errorf("%w: %q", analysis.ErrInvalidColumn, "w"), http.StatusBadRequest, false},
		{"timeout", fmt.Errorf("%w: deadline", analysis.ErrTimeout), http.StatusGatewayTimeout, false},
		{"storage", fmt.Errorf("%w: locked", analysis.ErrStorageUnavailable), http.StatusServiceUnavailable, true},
		{"not found", fmt.Errorf("device 1: %w", repositories.ErrNotFound), http.StatusNotFound, false},
		{"duplicate", fmt.Errorf("device 1: %w", repositories.ErrDuplicate), http.StatusConflict, false},
		{"app error", New(http.StatusTeapot, "teapot"), http.StatusTeapot, false},
		{"other", stderrors.New("boom"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromError(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.retriable, appErr.Retriable)
			assert.Equal(t, tt.code, GetStatusCode(appErr))
		})
	}

	assert.Nil(t, FromError(nil))
	assert.True(t, stderrors.Is(FromError(analysis.ErrTimeout), analysis.ErrTimeout))
}

func TestWithDetails(t *testing.T) {
	err := WithDetails(ErrBadRequest, "missing id")
	assert.Equal(t, http.StatusBadRequest, err.Code)
	assert.Equal(t, "missing id", err.Details)
	assert.True(t, IsAppError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsAppError(stderrors.New("plain")))
}

func TestRetryExecutor(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
	exec := NewRetryExecutor(policy, nil)

	calls := 0
	err := exec.Execute(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("not yet")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	policy.Retryable = func(error) bool { return false }
	err = exec.Execute(context.Background(), "fatal", func(context.Context) error {
		calls++
		return stderrors.New("fatal")
	})
	assert.EqualError(t, err, "fatal")
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_GetDelayCapped(t *testing.T) {
	policy := &RetryPolicy{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 10}
	assert.Equal(t, time.Second, policy.GetDelay(1))
	assert.Equal(t, 3*time.Second, policy.GetDelay(4))
}
