package config

// DatasetConfig controls reference dataset generation. The same generated
// sequence is reused, read-only and order-preserving, across every
// code-execution work item in a run.
type DatasetConfig struct {
	Size       int      `yaml:"size"`
	Seed       int64    `yaml:"seed"`
	StratifyBy []string `yaml:"stratify_by"`
	Realism    bool     `yaml:"realism"`
}

func (d *DatasetConfig) applyDefaults() {
	if d.Size <= 0 {
		d.Size = 96
	}
	if d.Seed == 0 {
		d.Seed = 42
	}
}
