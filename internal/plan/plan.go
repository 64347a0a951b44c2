// Package plan expands a run configuration into the full, ordered set of
// work items the coordinator will execute.
package plan

import (
	"fmt"

	"paylab/internal/config"
	"paylab/internal/experiment"
	"paylab/internal/logging"
)

// Plan is the ordered work list for one run. Order is deterministic for a
// given configuration: models in config order, then variants, then methods,
// so resumed runs walk the same sequence.
type Plan struct {
	Items []experiment.WorkItem
}

// Build expands providers x models x variants x methods from the
// configuration. Duplicate item keys are a configuration mistake and fail
// the build rather than silently doing the same work twice.
func Build(cfg *config.Config) (*Plan, error) {
	seen := make(map[string]experiment.WorkItem)
	var items []experiment.WorkItem

	for _, model := range cfg.Models {
		for _, variant := range cfg.Variants {
			for _, method := range cfg.Methods {
				m := experiment.Method(method)
				if !m.Valid() {
					return nil, fmt.Errorf("plan: unknown method %q", method)
				}
				item := experiment.WorkItem{
					Provider: model.Provider,
					Model:    model.ID,
					Variant:  variant,
					Method:   m,
				}
				key := item.Key()
				if prev, dup := seen[key]; dup {
					return nil, fmt.Errorf("plan: items %s and %s share key %s", prev, item, key)
				}
				seen[key] = item
				items = append(items, item)
			}
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("plan: configuration yields no work items")
	}
	logging.Plan("built plan: %d items (%d models x %d variants x %d methods)",
		len(items), len(cfg.Models), len(cfg.Variants), len(cfg.Methods))
	return &Plan{Items: items}, nil
}

// ByProvider groups the plan's items by provider name, preserving order
// within each group.
func (p *Plan) ByProvider() map[string][]experiment.WorkItem {
	out := make(map[string][]experiment.WorkItem)
	for _, item := range p.Items {
		out[item.Provider] = append(out[item.Provider], item)
	}
	return out
}
