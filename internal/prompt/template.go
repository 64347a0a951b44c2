// Package prompt loads *.prompt.yml templates and renders them into the
// system/user prompt pair a gateway call sends. Rendering substitutes the
// published Person type source and calculator contract for the
// {{person_code}} and {{evaluator_code}} placeholders.
package prompt

import (
	"fmt"
	"strings"

	"paylab/internal/person"
)

// Template is one prompt variant as authored in a *.prompt.yml file.
type Template struct {
	SystemPrompt string `yaml:"system_prompt"`
	UserPrompt   string `yaml:"user_prompt"`

	Variant     string `yaml:"variant"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// Rendered is a template after placeholder substitution, ready to send.
type Rendered struct {
	System  string
	User    string
	Variant string
	Version string
}

// Render substitutes the code placeholders and returns the final prompts.
// Unknown placeholders are an authoring error and are reported, not sent.
func (t *Template) Render() (*Rendered, error) {
	subs := map[string]string{
		"person_code":    person.SourceLiteral,
		"evaluator_code": person.EvaluatorContract,
	}

	system, err := substitute(t.SystemPrompt, subs)
	if err != nil {
		return nil, fmt.Errorf("system prompt of variant %q: %w", t.Variant, err)
	}
	user, err := substitute(t.UserPrompt, subs)
	if err != nil {
		return nil, fmt.Errorf("user prompt of variant %q: %w", t.Variant, err)
	}

	return &Rendered{
		System:  system,
		User:    user,
		Variant: t.Variant,
		Version: t.Version,
	}, nil
}

func substitute(text string, subs map[string]string) (string, error) {
	out := text
	for key, value := range subs {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	if i := strings.Index(out, "{{"); i >= 0 {
		if j := strings.Index(out[i:], "}}"); j >= 0 {
			return "", fmt.Errorf("unknown placeholder %s", out[i:i+j+2])
		}
	}
	return out, nil
}
