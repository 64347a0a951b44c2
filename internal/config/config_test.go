package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paylab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validYAML = `
name: paylab
providers:
  - name: openai
    kind: openai
    api_key_env: OPENAI_API_KEY
  - name: gemini
    kind: gemini
    rate_per_second: 0.5
    burst: 2
models:
  - id: gpt-4.1
    provider: openai
  - id: gemini-2.5-flash
    provider: gemini
    temperature: 0.2
variants: [neutral, fair]
methods: [code_gen, direct_data]
retry:
  max_attempts: 3
  base_backoff: 250ms
sandbox:
  batch_timeout: 5s
dataset:
  size: 48
  seed: 7
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Len(t, cfg.Providers, 2)
	assert.Len(t, cfg.Models, 2)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseBackoffDuration())
	assert.Equal(t, 8*time.Second, cfg.Retry.MaxBackoffDuration(), "unset fields fall back to defaults")
	assert.Equal(t, 5*time.Second, cfg.Sandbox.BatchTimeoutDuration())
	assert.Equal(t, 48, cfg.Dataset.Size)
	assert.Equal(t, int64(7), cfg.Dataset.Seed)
}

func TestLoadAppliesProviderDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	openai := cfg.Providers[0]
	assert.Equal(t, 2.0, openai.RatePerSecond)
	assert.Equal(t, 4, openai.Burst)
	assert.Equal(t, 4, openai.MaxConcurrent)

	gemini := cfg.Providers[1]
	assert.Equal(t, 0.5, gemini.RatePerSecond)
	assert.Equal(t, 2, gemini.Burst)
}

func TestLoadRejectsDuplicateProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `
providers:
  - name: openai
  - name: openai
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate provider")
}

func TestLoadRejectsUnknownProviderRef(t *testing.T) {
	_, err := Load(writeConfig(t, `
providers:
  - name: openai
models:
  - id: gpt-4.1
    provider: mystery
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	_, err := Load(writeConfig(t, `
providers:
  - name: x
    kind: carrier-pigeon
`))
	require.Error(t, err)
}

func TestLoadRejectsUnknownMethod(t *testing.T) {
	_, err := Load(writeConfig(t, `
providers:
  - name: openai
methods: [mind_reading]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mind_reading")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "paylab", cfg.Name)
	assert.Equal(t, []string{"code_gen"}, cfg.Methods)
	assert.Equal(t, "prompts", cfg.PromptDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 96, cfg.Dataset.Size)
	assert.Equal(t, int64(42), cfg.Dataset.Seed)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Sandbox.BatchTimeoutDuration())
	assert.Equal(t, 250*time.Millisecond, cfg.Sandbox.RecordTimeoutDuration())
}

func TestAPIKeyResolution(t *testing.T) {
	p := ProviderConfig{Name: "openai", APIKeyEnv: "PAYLAB_TEST_KEY"}
	assert.Empty(t, p.APIKey())

	t.Setenv("PAYLAB_TEST_KEY", "sk-123")
	assert.Equal(t, "sk-123", p.APIKey())

	none := ProviderConfig{Name: "local"}
	assert.Empty(t, none.APIKey())
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, time.Second, parseDuration("not-a-duration", time.Second))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Second))
}
