package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPolicy(maxRetries int, delay time.Duration) *Policy {
	return &Policy{MaxRetries: maxRetries, Delay: delay}
}

func TestRetryer_SuccessFirstAttempt(t *testing.T) {
	r := NewRetryer(testPolicy(2, 10*time.Millisecond), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_FailsThenSucceeds(t *testing.T) {
	r := NewRetryer(testPolicy(2, 10*time.Millisecond), zap.NewNop())

	calls := 0
	got, err := DoWithResult(context.Background(), r, func() (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("surface not interactive")
		}
		return "submitted", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "submitted", got)
	assert.Equal(t, 3, calls)
}

func TestRetryer_ExhaustsAttemptsAndKeepsLastError(t *testing.T) {
	delay := 20 * time.Millisecond
	var retried []int
	policy := testPolicy(2, delay)
	policy.OnRetry = func(attempt int, err error, d time.Duration) {
		retried = append(retried, attempt)
		assert.Equal(t, delay, d)
	}
	r := NewRetryer(policy, zap.NewNop())

	calls := 0
	last := errors.New("third failure")
	start := time.Now()
	err := r.Do(context.Background(), func() error {
		calls++
		if calls == 3 {
			return last
		}
		return errors.New("earlier failure")
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, last)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.GreaterOrEqual(t, elapsed, 2*delay, "delay must be observed between attempts")
}

func TestRetryer_RecordsFixedDelay(t *testing.T) {
	var slept []time.Duration
	r := &fixedRetryer{
		policy: DefaultPolicy(),
		logger: zap.NewNop(),
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	err := r.Do(context.Background(), func() error { return errors.New("nope") })

	require.Error(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, slept)
}

func TestRetryer_ContextCancelled(t *testing.T) {
	r := NewRetryer(testPolicy(5, time.Second), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		return errors.New("flaky")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, calls)
}

func TestRetryer_NonRetryableStopsImmediately(t *testing.T) {
	retryable := errors.New("retryable")
	policy := testPolicy(3, time.Millisecond)
	policy.RetryableErrors = []error{retryable}
	r := NewRetryer(policy, zap.NewNop())

	fatal := errors.New("fatal")
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return fatal
	})

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestNewRetryer_NormalisesPolicy(t *testing.T) {
	r := NewRetryer(&Policy{MaxRetries: -1, Delay: -time.Second}, nil).(*fixedRetryer)

	assert.Equal(t, 0, r.policy.MaxRetries)
	assert.Equal(t, time.Duration(0), r.policy.Delay)
	assert.Equal(t, 1, r.policy.Attempts())
}
