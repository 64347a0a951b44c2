package config

import "time"

// SandboxConfig bounds interpreted execution of generated code. These are
// policy parameters, fixed here rather than inferred anywhere else.
type SandboxConfig struct {
	// BatchTimeout bounds the wall-clock time for executing one artifact
	// over the whole input batch.
	BatchTimeout string `yaml:"batch_timeout"`

	// RecordTimeout bounds a single record invocation.
	RecordTimeout string `yaml:"record_timeout"`

	// MaxConcurrent caps sandbox batches running at once across the run.
	MaxConcurrent int `yaml:"max_concurrent"`

	// ExtraImports widens the import allowlist beyond the built-in safe set.
	ExtraImports []string `yaml:"extra_imports"`
}

func (s *SandboxConfig) applyDefaults() {
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = 4
	}
}

// BatchTimeoutDuration returns the whole-batch wall-clock bound.
func (s *SandboxConfig) BatchTimeoutDuration() time.Duration {
	return parseDuration(s.BatchTimeout, 10*time.Second)
}

// RecordTimeoutDuration returns the per-record bound.
func (s *SandboxConfig) RecordTimeoutDuration() time.Duration {
	return parseDuration(s.RecordTimeout, 250*time.Millisecond)
}
