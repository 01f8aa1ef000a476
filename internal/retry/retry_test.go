package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/faultline/internal/catalog"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/fault"
)

func newHelper(t *testing.T, maxAttempts int) *Helper {
	t.Helper()

	cat, err := catalog.New([]domain.ErrorDefinition{
		{ID: "DB-001", Severity: domain.SeverityCritical, RetryStrategy: domain.RetrySafe},
		{ID: "DB-002", Severity: domain.SeverityMajor, RetryStrategy: domain.RetryIdempotent},
		{ID: "AUTH-001", Severity: domain.SeverityMinor, RetryStrategy: domain.RetryNone},
	}, nil)
	require.NoError(t, err)

	return New(cat, Config{MaxAttempts: maxAttempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func countingOp(calls *int, err error) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		return err
	}
}

func TestNoneRunsOnce(t *testing.T) {
	h := newHelper(t, 5)
	calls := 0

	err := h.Run(context.Background(), "AUTH-001", countingOp(&calls, errors.New("denied")), Options{Idempotent: true})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "denied", err.Error())
}

func TestSafeRetriesRegardlessOfIdempotentFlag(t *testing.T) {
	for _, idempotent := range []bool{false, true} {
		h := newHelper(t, 4)
		calls := 0

		err := h.Run(context.Background(), "DB-001", countingOp(&calls, errors.New("timeout")), Options{Idempotent: idempotent})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
		assert.Contains(t, err.Error(), "failed after 4 attempts")
	}
}

func TestIdempotentRequiresAssertion(t *testing.T) {
	h := newHelper(t, 3)

	calls := 0
	require.Error(t, h.Run(context.Background(), "DB-002", countingOp(&calls, errors.New("x")), Options{}))
	assert.Equal(t, 1, calls)

	calls = 0
	require.Error(t, h.Run(context.Background(), "DB-002", countingOp(&calls, errors.New("x")), Options{Idempotent: true}))
	assert.Equal(t, 3, calls)
}

func TestStrategyComesFromRaisedFault(t *testing.T) {
	h := newHelper(t, 3)
	calls := 0

	// declared id is none, but the operation raised a safe fault
	err := h.Run(context.Background(), "AUTH-001", countingOp(&calls, fault.New("DB-001", "pool exhausted")), Options{})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "DB-001", fault.ID(err))
}

func TestUnknownIDRunsOnce(t *testing.T) {
	h := newHelper(t, 3)
	calls := 0

	require.Error(t, h.Run(context.Background(), "X-999", countingOp(&calls, errors.New("x")), Options{Idempotent: true}))
	assert.Equal(t, 1, calls)
}

func TestDoReturnsValueAfterRecovery(t *testing.T) {
	h := newHelper(t, 5)
	calls := 0

	v, err := Do(context.Background(), h, "DB-001", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestContextCancellationStopsRetries(t *testing.T) {
	cat, err := catalog.New([]domain.ErrorDefinition{
		{ID: "DB-001", Severity: domain.SeverityCritical, RetryStrategy: domain.RetrySafe},
	}, nil)
	require.NoError(t, err)
	h := New(cat, Config{MaxAttempts: 10, InitialDelay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err = h.Run(ctx, "DB-001", countingOp(&calls, errors.New("down")), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultConfig.InitialDelay, cfg.InitialDelay)
	assert.Equal(t, DefaultConfig.MaxDelay, cfg.MaxDelay)
}
