package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"paylab/internal/logging"
)

const templateSuffix = ".prompt.yml"

// Loader reads prompt templates from a directory of *.prompt.yml files.
type Loader struct {
	dir string
}

// NewLoader returns a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load reads and validates the template for one variant.
func (l *Loader) Load(variant string) (*Template, error) {
	path := filepath.Join(l.dir, variant+templateSuffix)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("prompt template not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read prompt template %s: %w", path, err)
	}

	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse prompt template %s: %w", path, err)
	}
	if t.SystemPrompt == "" || t.UserPrompt == "" {
		return nil, fmt.Errorf("prompt template %s must set system_prompt and user_prompt", path)
	}
	if t.Variant == "" {
		t.Variant = variant
	}

	logging.GatewayDebug("loaded prompt template %s (version=%s)", variant, t.Version)
	return &t, nil
}

// LoadAll reads every *.prompt.yml under the directory, keyed by variant.
func (l *Loader) LoadAll() (map[string]*Template, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt directory %s: %w", l.dir, err)
	}
	templates := make(map[string]*Template)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, templateSuffix) {
			continue
		}
		variant := strings.TrimSuffix(name, templateSuffix)
		t, err := l.Load(variant)
		if err != nil {
			return nil, err
		}
		templates[variant] = t
	}
	logging.Gateway("loaded %d prompt templates from %s", len(templates), l.dir)
	return templates, nil
}
