// Package config loads paylab.yaml and exposes per-concern configuration
// structs with defaults suitable for a small local run.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all paylab configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Providers and the models to exercise on each
	Providers []ProviderConfig `yaml:"providers"`
	Models    []ModelConfig    `yaml:"models"`

	// Prompt variants and methods to cross with every model
	Variants []string `yaml:"variants"`
	Methods  []string `yaml:"methods"`

	// Prompt template directory
	PromptDir string `yaml:"prompt_dir"`

	// Retry and backoff policy for provider calls
	Retry RetryConfig `yaml:"retry"`

	// Sandbox resource limits
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Reference dataset generation
	Dataset DatasetConfig `yaml:"dataset"`

	// Output layout
	Output OutputConfig `yaml:"output"`

	// Run-level concurrency
	Workers int `yaml:"workers"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// OutputConfig controls where artifacts and the run record log live.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig mirrors the categorized file logger settings. The logging
// package reads this section of paylab.yaml itself to avoid an import cycle;
// it is declared here so the whole file round-trips through one struct.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every policy value at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "paylab"
	}
	if len(c.Methods) == 0 {
		c.Methods = []string{"code_gen"}
	}
	if c.PromptDir == "" {
		c.PromptDir = "prompts"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if c.Output.DatabasePath == "" {
		c.Output.DatabasePath = ".paylab/run.db"
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	c.Retry.applyDefaults()
	c.Sandbox.applyDefaults()
	c.Dataset.applyDefaults()
	for i := range c.Providers {
		c.Providers[i].applyDefaults()
	}
}

// Validate rejects configurations that cannot produce a coherent plan.
func (c *Config) Validate() error {
	providers := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if providers[p.Name] {
			return fmt.Errorf("duplicate provider %q", p.Name)
		}
		providers[p.Name] = true
		if err := p.validate(); err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
	}
	for _, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("model with empty id")
		}
		if !providers[m.Provider] {
			return fmt.Errorf("model %q references unknown provider %q", m.ID, m.Provider)
		}
	}
	for _, method := range c.Methods {
		if method != "code_gen" && method != "direct_data" {
			return fmt.Errorf("unknown method %q (valid: code_gen, direct_data)", method)
		}
	}
	return nil
}

// parseDuration parses a yaml duration string, falling back to def when the
// field is empty. Invalid values also fall back; policy knobs should never
// take a run down.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
