package config

import (
	"fmt"
	"os"
	"time"
)

// ProviderKind selects the wire protocol for a provider.
type ProviderKind string

const (
	KindOpenAI    ProviderKind = "openai"    // OpenAI-compatible chat completions
	KindAnthropic ProviderKind = "anthropic" // Anthropic messages API
	KindGemini    ProviderKind = "gemini"    // Google genai SDK
	KindXAI       ProviderKind = "xai"       // OpenAI-compatible, x.ai base URL
)

// ProviderConfig describes one external model provider, including the
// admission-control limits the scheduler enforces for it.
type ProviderConfig struct {
	Name      string       `yaml:"name"`
	Kind      ProviderKind `yaml:"kind"`
	BaseURL   string       `yaml:"base_url"`
	APIKeyEnv string       `yaml:"api_key_env"`
	Timeout   string       `yaml:"timeout"`

	// Rate limiting: sustained requests per second plus burst capacity.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`

	// Maximum simultaneous in-flight calls to this provider.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// ModelConfig names one model on a provider, with optional request overrides.
type ModelConfig struct {
	ID          string  `yaml:"id"`
	Provider    string  `yaml:"provider"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// RetryConfig bounds the scheduler's retry state machine.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseBackoff string `yaml:"base_backoff"`
	MaxBackoff  string `yaml:"max_backoff"`
}

func (p *ProviderConfig) applyDefaults() {
	if p.Kind == "" {
		p.Kind = KindOpenAI
	}
	if p.RatePerSecond <= 0 {
		p.RatePerSecond = 2
	}
	if p.Burst <= 0 {
		p.Burst = 4
	}
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = 4
	}
}

func (p *ProviderConfig) validate() error {
	switch p.Kind {
	case KindOpenAI, KindAnthropic, KindGemini, KindXAI:
	default:
		return fmt.Errorf("unknown kind %q", p.Kind)
	}
	return nil
}

// APIKey resolves the provider's API key from its configured environment
// variable. Empty means the key is missing; the gateway treats calls without
// a key as permanent failures.
func (p *ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// CallTimeout returns the per-call HTTP timeout for the provider.
func (p *ProviderConfig) CallTimeout() time.Duration {
	return parseDuration(p.Timeout, 2*time.Minute)
}

func (r *RetryConfig) applyDefaults() {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 4
	}
}

// BaseBackoffDuration returns the first retry delay.
func (r *RetryConfig) BaseBackoffDuration() time.Duration {
	return parseDuration(r.BaseBackoff, 500*time.Millisecond)
}

// MaxBackoffDuration caps the exponential backoff curve.
func (r *RetryConfig) MaxBackoffDuration() time.Duration {
	return parseDuration(r.MaxBackoff, 8*time.Second)
}
