package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("pad video_out missing")
	err := Wrap(cause, "pipeline", "applyLinks", "link source to sink")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.applyLinks")
	assert.True(t, stderrors.Is(err, cause))

	assert.NoError(t, Wrap(nil, "pipeline", "applyLinks", "noop"))
}

func TestClassifiedWrappers(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(stderrors.New("boom"), "compiler", "Expand", "clone elements")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, stderrors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "compiler", ce.Component)
			assert.Equal(t, tt.class, Classify(err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"endpoint busy", ErrEndpointBusy, true},
		{"connection lost", fmt.Errorf("publish: %w", ErrConnectionLost), true},
		{"context deadline", context.DeadlineExceeded, true},
		{"message pattern", stderrors.New("upstream temporarily unavailable"), true},
		{"invalid flow", WrapInvalid(ErrInvalidFlow, "compiler", "Expand", "lookup"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrUnknownBlock))
	assert.True(t, IsInvalid(fmt.Errorf("expand: %w", ErrUnsupportedTransform)))
	assert.False(t, IsInvalid(ErrConnectionLost))
	assert.False(t, IsInvalid(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrGraphDestroyed))
	assert.True(t, IsFatal(WrapFatal(stderrors.New("boom"), "pipeline", "Start", "construct")))
	assert.False(t, IsFatal(ErrEndpointBusy))
}

func TestRetryConfigShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.True(t, cfg.ShouldRetry(ErrConnectionTimeout, 0))
	assert.False(t, cfg.ShouldRetry(ErrConnectionTimeout, cfg.MaxRetries))
	assert.False(t, cfg.ShouldRetry(ErrUnknownBlock, 0))
	assert.False(t, cfg.ShouldRetry(nil, 0))
}

func TestRetryConfigConversion(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    4,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 1.5,
	}

	rc := cfg.ToRetryConfig()
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, rc.InitialDelay)
	assert.True(t, rc.AddJitter)
}
