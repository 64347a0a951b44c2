package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paylab/internal/config"
	"paylab/internal/logging"
)

// Scheduler is the single admission point for outbound provider calls.
// Every call — first attempt or retry — passes through the provider's
// token bucket and concurrency slots before it is dispatched, so a
// burst of retries cannot bypass the rate limits.
type Scheduler struct {
	policy    Policy
	providers map[string]*providerGate

	mu      sync.Mutex
	metrics map[string]*ProviderMetrics
}

// providerGate holds one provider's admission state: the rate limiter and
// a channel-based semaphore bounding in-flight calls.
type providerGate struct {
	bucket *tokenBucket
	slots  chan struct{}
}

// ProviderMetrics is a point-in-time snapshot of one provider's traffic.
type ProviderMetrics struct {
	Calls     int64         `json:"calls"`
	Retries   int64         `json:"retries"`
	Failures  int64         `json:"failures"`
	InFlight  int           `json:"in_flight"`
	WaitTotal time.Duration `json:"wait_total"`
}

// PolicyFromConfig translates the retry section of the run config.
func PolicyFromConfig(r config.RetryConfig) Policy {
	return Policy{
		MaxAttempts: r.MaxAttempts,
		BaseBackoff: r.BaseBackoffDuration(),
		MaxBackoff:  r.MaxBackoffDuration(),
	}
}

// New builds a scheduler with one gate per configured provider.
func New(policy Policy, providers []config.ProviderConfig) *Scheduler {
	s := &Scheduler{
		policy:    policy,
		providers: make(map[string]*providerGate, len(providers)),
		metrics:   make(map[string]*ProviderMetrics, len(providers)),
	}
	for _, p := range providers {
		s.providers[p.Name] = &providerGate{
			bucket: newTokenBucket(p.RatePerSecond, p.Burst),
			slots:  make(chan struct{}, p.MaxConcurrent),
		}
		s.metrics[p.Name] = &ProviderMetrics{}
	}
	return s
}

// Do runs fn under the provider's admission control, retrying transient
// failures with exponential backoff. fn must make exactly one provider
// call per invocation; the scheduler owns all retrying. The returned
// error is nil, a permanent/parse/validation error from fn, a
// RetriesExhaustedError, or the context's error.
func (s *Scheduler) Do(ctx context.Context, provider string, fn func(context.Context) error) error {
	gate, ok := s.providers[provider]
	if !ok {
		return fmt.Errorf("scheduler: unknown provider %q", provider)
	}

	m := newRetryMachine(s.policy, provider)
	for {
		attempt := m.begin()

		waitStart := time.Now()
		if err := gate.bucket.Wait(ctx); err != nil {
			return err
		}
		select {
		case gate.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		waited := time.Since(waitStart)

		s.recordAdmission(provider, attempt, waited)

		callStart := time.Now()
		err := fn(ctx)
		<-gate.slots
		s.recordDone(provider, err)

		latency := time.Since(callStart)
		switch m.observe(err) {
		case stateSucceeded:
			logging.Scheduler("call ok: provider=%s attempt=%d latency=%v", provider, attempt, latency)
			return nil
		case stateFailed:
			logging.SchedulerWarn("call failed: provider=%s attempt=%d latency=%v err=%v", provider, attempt, latency, m.Err())
			return m.Err()
		case stateRetryScheduled:
			logging.SchedulerWarn("transient failure: provider=%s attempt=%d backoff=%v err=%v", provider, attempt, m.Delay(), err)
			timer := time.NewTimer(m.Delay())
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
}

func (s *Scheduler) recordAdmission(provider string, attempt int, waited time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm := s.metrics[provider]
	pm.Calls++
	if attempt > 1 {
		pm.Retries++
	}
	pm.InFlight++
	pm.WaitTotal += waited
	if waited > time.Second {
		logging.SchedulerDebug("slow admission: provider=%s waited=%v", provider, waited)
	}
}

func (s *Scheduler) recordDone(provider string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm := s.metrics[provider]
	pm.InFlight--
	if err != nil {
		pm.Failures++
	}
}

// Metrics returns a copy of the per-provider counters.
func (s *Scheduler) Metrics() map[string]ProviderMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ProviderMetrics, len(s.metrics))
	for name, pm := range s.metrics {
		out[name] = *pm
	}
	return out
}
