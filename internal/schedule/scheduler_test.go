package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"paylab/internal/config"
	"paylab/internal/experiment"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testProvider(name string, rate float64, burst, concurrent int) config.ProviderConfig {
	return config.ProviderConfig{
		Name:          name,
		Kind:          config.KindOpenAI,
		RatePerSecond: rate,
		Burst:         burst,
		MaxConcurrent: concurrent,
	}
}

func fastPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  8 * time.Millisecond,
	}
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	s := New(fastPolicy(), []config.ProviderConfig{testProvider("p", 100, 10, 4)})

	calls := 0
	err := s.Do(context.Background(), "p", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	m := s.Metrics()["p"]
	assert.Equal(t, int64(1), m.Calls)
	assert.Equal(t, int64(0), m.Retries)
	assert.Equal(t, 0, m.InFlight)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	s := New(fastPolicy(), []config.ProviderConfig{testProvider("p", 1000, 10, 4)})

	calls := 0
	err := s.Do(context.Background(), "p", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &experiment.TransientError{Provider: "p", Reason: "rate limited"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	m := s.Metrics()["p"]
	assert.Equal(t, int64(3), m.Calls)
	assert.Equal(t, int64(2), m.Retries)
}

func TestDoPermanentErrorNotRetried(t *testing.T) {
	s := New(fastPolicy(), []config.ProviderConfig{testProvider("p", 1000, 10, 4)})

	calls := 0
	perm := &experiment.PermanentError{Provider: "p", Reason: "bad api key"}
	err := s.Do(context.Background(), "p", func(ctx context.Context) error {
		calls++
		return perm
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var got *experiment.PermanentError
	require.True(t, errors.As(err, &got))
}

func TestDoExhaustsAttempts(t *testing.T) {
	s := New(fastPolicy(), []config.ProviderConfig{testProvider("p", 1000, 10, 4)})

	calls := 0
	err := s.Do(context.Background(), "p", func(ctx context.Context) error {
		calls++
		return &experiment.TransientError{Provider: "p", Reason: "overloaded"}
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)

	var re *experiment.RetriesExhaustedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 4, re.Attempts)
	assert.Equal(t, "p", re.Provider)
	assert.True(t, experiment.IsTransient(re.Last))
	assert.Equal(t, "retries_exhausted", experiment.FailureStatus(err))
}

func TestDoUnknownProvider(t *testing.T) {
	s := New(fastPolicy(), []config.ProviderConfig{testProvider("p", 1000, 10, 4)})
	err := s.Do(context.Background(), "nope", func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	policy := Policy{MaxAttempts: 4, BaseBackoff: time.Minute, MaxBackoff: time.Minute}
	s := New(policy, []config.ProviderConfig{testProvider("p", 1000, 10, 4)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Do(ctx, "p", func(ctx context.Context) error {
			return &experiment.TransientError{Provider: "p", Reason: "busy"}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestConcurrencyCapEnforced(t *testing.T) {
	const maxInFlight = 2
	s := New(fastPolicy(), []config.ProviderConfig{testProvider("p", 10000, 100, maxInFlight)})

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Do(context.Background(), "p", func(ctx context.Context) error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(maxInFlight))
}

func TestRateLimitSpacesAdmissions(t *testing.T) {
	// Burst of 1 and 50 rps: 5 sequential admissions need at least ~80ms.
	s := New(fastPolicy(), []config.ProviderConfig{testProvider("p", 50, 1, 4)})

	start := time.Now()
	for i := 0; i < 5; i++ {
		err := s.Do(context.Background(), "p", func(ctx context.Context) error { return nil })
		require.NoError(t, err)
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond, "admissions were not rate limited")
}

func TestBackoffCurve(t *testing.T) {
	m := newRetryMachine(Policy{
		MaxAttempts: 6,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  8 * time.Second,
	}, "p")

	assert.Equal(t, 500*time.Millisecond, m.backoffBase(1))
	assert.Equal(t, time.Second, m.backoffBase(2))
	assert.Equal(t, 2*time.Second, m.backoffBase(3))
	assert.Equal(t, 4*time.Second, m.backoffBase(4))
	assert.Equal(t, 8*time.Second, m.backoffBase(5))
	assert.Equal(t, 8*time.Second, m.backoffBase(6)) // capped

	// Jittered delay stays inside [base/2, base].
	for i := 0; i < 50; i++ {
		d := m.backoff(3)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestRetryMachineTransitions(t *testing.T) {
	m := newRetryMachine(Policy{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, "p")

	assert.Equal(t, stateIdle, m.state)
	assert.Equal(t, 1, m.begin())
	assert.Equal(t, stateAttempting, m.state)

	st := m.observe(&experiment.TransientError{Provider: "p", Reason: "retry me"})
	assert.Equal(t, stateRetryScheduled, st)

	assert.Equal(t, 2, m.begin())
	st = m.observe(&experiment.TransientError{Provider: "p", Reason: "still down"})
	assert.Equal(t, stateFailed, st)

	var re *experiment.RetriesExhaustedError
	require.True(t, errors.As(m.Err(), &re))
}

func TestTokenBucketBurst(t *testing.T) {
	b := newTokenBucket(1, 3)
	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "burst capacity should be spent")
}
