package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylab/internal/person"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	tpl := &Template{
		Variant:      "neutral",
		Version:      "2",
		SystemPrompt: "You write Go.",
		UserPrompt:   "Type:\n{{person_code}}\n\nImplement:\n{{evaluator_code}}\n",
	}
	r, err := tpl.Render()
	require.NoError(t, err)
	assert.Equal(t, "You write Go.", r.System)
	assert.Contains(t, r.User, "type Person struct")
	assert.Contains(t, r.User, "func Compensation(p Person) float64")
	assert.NotContains(t, r.User, "{{")
	assert.Equal(t, "neutral", r.Variant)
	assert.Equal(t, "2", r.Version)
}

func TestRenderRejectsUnknownPlaceholder(t *testing.T) {
	tpl := &Template{
		Variant:    "broken",
		UserPrompt: "Use {{person_code}} and {{salary_table}}.",
	}
	_, err := tpl.Render()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "salary_table")
}

func TestLoaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := `variant: sample
description: test template
version: "3"
system_prompt: |
  System text.
user_prompt: |
  {{person_code}}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.prompt.yml"), []byte(content), 0644))

	tpl, err := NewLoader(dir).Load("sample")
	require.NoError(t, err)
	assert.Equal(t, "sample", tpl.Variant)
	assert.Equal(t, "3", tpl.Version)

	r, err := tpl.Render()
	require.NoError(t, err)
	assert.Contains(t, r.User, person.SourceLiteral)
}

func TestLoaderMissingVariant(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load("absent")
	require.Error(t, err)
}

func TestLoadAllShippedTemplates(t *testing.T) {
	templates, err := NewLoader(filepath.Join("..", "..", "prompts")).LoadAll()
	require.NoError(t, err)
	require.NotEmpty(t, templates)
	for variant, tpl := range templates {
		r, err := tpl.Render()
		require.NoError(t, err, "variant %s", variant)
		assert.NotEmpty(t, r.System, "variant %s", variant)
		assert.Contains(t, r.User, "type Person struct", "variant %s", variant)
	}
}
