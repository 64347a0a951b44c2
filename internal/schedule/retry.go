package schedule

import (
	"math/rand"
	"sync"
	"time"

	"paylab/internal/experiment"
)

// Policy controls how failed calls are retried. Only transient failures
// are retried; permanent failures surface immediately.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultPolicy matches the stock retry configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  8 * time.Second,
	}
}

type retryState int

const (
	stateIdle retryState = iota
	stateAttempting
	stateRetryScheduled
	stateSucceeded
	stateFailed
)

func (s retryState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAttempting:
		return "attempting"
	case stateRetryScheduled:
		return "retry_scheduled"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// retryMachine tracks a single call through its attempts. Transitions:
// idle -> attempting -> {succeeded | failed | retry_scheduled -> attempting}.
type retryMachine struct {
	policy   Policy
	provider string
	state    retryState
	attempt  int
	delay    time.Duration
	final    error
}

var (
	retryRngMu sync.Mutex
	retryRng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func newRetryMachine(policy Policy, provider string) *retryMachine {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryMachine{policy: policy, provider: provider, state: stateIdle}
}

// begin transitions into the next attempt and returns its 1-based number.
func (m *retryMachine) begin() int {
	m.attempt++
	m.state = stateAttempting
	return m.attempt
}

// observe records the outcome of the current attempt and returns the new
// state. After retry_scheduled the caller sleeps for Delay() and calls
// begin again; after failed the caller surfaces Err().
func (m *retryMachine) observe(err error) retryState {
	if err == nil {
		m.state = stateSucceeded
		return m.state
	}
	if !experiment.IsTransient(err) {
		m.final = err
		m.state = stateFailed
		return m.state
	}
	if m.attempt >= m.policy.MaxAttempts {
		m.final = &experiment.RetriesExhaustedError{Provider: m.provider, Attempts: m.attempt, Last: err}
		m.state = stateFailed
		return m.state
	}
	m.delay = m.backoff(m.attempt)
	m.state = stateRetryScheduled
	return m.state
}

func (m *retryMachine) Delay() time.Duration { return m.delay }

func (m *retryMachine) Err() error { return m.final }

// backoff returns base*2^(attempt-1) capped at MaxBackoff, with the upper
// half jittered so synchronized workers spread out.
func (m *retryMachine) backoff(attempt int) time.Duration {
	d := m.policy.BaseBackoff << uint(attempt-1)
	if d > m.policy.MaxBackoff || d <= 0 {
		d = m.policy.MaxBackoff
	}
	half := d / 2
	retryRngMu.Lock()
	j := time.Duration(retryRng.Int63n(int64(half) + 1))
	retryRngMu.Unlock()
	return half + j
}

// backoffBase exposes the deterministic pre-jitter delay for tests.
func (m *retryMachine) backoffBase(attempt int) time.Duration {
	d := m.policy.BaseBackoff << uint(attempt-1)
	if d > m.policy.MaxBackoff || d <= 0 {
		d = m.policy.MaxBackoff
	}
	return d
}
