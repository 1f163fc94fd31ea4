package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "siteaudit/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int

	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsOnFatal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(errors.New("bad input"))
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnNonRetryableAppError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		return apperrors.NotFound("Site with id %s not found", "s1")
	}, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransportAppError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return apperrors.Transport(errors.New("dial"), "mongo down")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReportsCappedDelays(t *testing.T) {
	var delays []time.Duration
	_ = Do(context.Background(), fastPolicy(4), func() error {
		return errors.New("transient")
	}, func(_ int, _ error, next time.Duration) {
		delays = append(delays, next)
	})

	require.Len(t, delays, 3)
	for _, d := range delays {
		assert.LessOrEqual(t, d, 5*time.Millisecond+5*time.Millisecond/2)
	}
}

func TestDo_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 10, InitialInterval: time.Hour, MaxInterval: time.Hour, Multiplier: 2}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
