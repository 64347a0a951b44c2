// Package experiment defines the data model shared by the plan builder,
// gateway, scheduler, sandbox and run coordinator: work items, generated
// artifacts, execution results and the per-item failure taxonomy.
package experiment

import (
	"fmt"
	"strings"
	"time"
)

// Method selects how a work item obtains compensation figures from a model.
type Method string

const (
	// MethodCodeGen asks the model for a calculator function which is then
	// executed in the sandbox against the reference dataset.
	MethodCodeGen Method = "code_gen"
	// MethodDirectData asks the model to emit the dataset directly.
	MethodDirectData Method = "direct_data"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == MethodCodeGen || m == MethodDirectData
}

// WorkItem is one unit of experimental work: a single
// (provider, model, prompt variant, method) combination.
// Items are immutable once built by the plan builder.
type WorkItem struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Variant  string `json:"variant"`
	Method   Method `json:"method"`
}

// Key returns the deterministic identity string for the item. It is used as
// the artifact namespace on disk and as the lookup key in the run record log,
// so repeated runs overwrite-or-skip rather than collide.
// Model IDs like "openai/gpt-4.1" are sanitized the same way for both uses.
func (w WorkItem) Key() string {
	return fmt.Sprintf("%s_%s_%s_%s", sanitize(w.Provider), sanitize(w.Model), sanitize(w.Variant), w.Method)
}

func (w WorkItem) String() string {
	return fmt.Sprintf("%s/%s variant=%s method=%s", w.Provider, w.Model, w.Variant, w.Method)
}

func sanitize(s string) string {
	r := strings.NewReplacer("/", "_", ".", "_", " ", "_", ":", "_")
	return r.Replace(s)
}

// GenerationMeta captures provider-side details of one completed generation,
// persisted alongside the artifact for reproducibility.
type GenerationMeta struct {
	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	Variant       string        `json:"variant"`
	PromptVersion string        `json:"prompt_version,omitempty"`
	TokensUsed    int           `json:"tokens_used,omitempty"`
	FinishReason  string        `json:"finish_reason,omitempty"`
	Latency       time.Duration `json:"latency_ns"`
	Timestamp     time.Time     `json:"timestamp"`
}

// CodeArtifact holds one extracted calculator function definition.
type CodeArtifact struct {
	// Source is the full generated program text after fence stripping.
	Source string `json:"source"`
	// FuncName is the name of the single conforming function found by
	// extraction. Always CalculatorFuncName today; kept explicit so stored
	// artifacts remain self-describing.
	FuncName string `json:"func_name"`
	// DeclaresPerson records whether the source carries its own Person type
	// declaration. When false the sandbox prepends the published one.
	DeclaresPerson bool           `json:"declares_person"`
	Meta           GenerationMeta `json:"meta"`
}

// DatasetArtifact holds a dataset the model produced directly.
type DatasetArtifact struct {
	Header []string       `json:"header"`
	Rows   [][]string     `json:"rows"`
	Meta   GenerationMeta `json:"meta"`
}

// Artifact is the tagged result of a gateway call. Exactly one of the two
// fields is non-nil, matching the work item's method.
type Artifact struct {
	Code    *CodeArtifact    `json:"code,omitempty"`
	Dataset *DatasetArtifact `json:"dataset,omitempty"`
}

// CalculatorFuncName is the published name of the compensation calculator
// models are asked to define: func Compensation(p Person) float64.
const CalculatorFuncName = "Compensation"

// Status classifies the outcome of executing a code artifact against the
// reference dataset.
type Status string

const (
	StatusOK              Status = "ok"
	StatusRuntimeError    Status = "runtime_error"
	StatusTimeout         Status = "timeout"
	StatusValidationError Status = "validation_error"
)

// RowError records a single record-level failure during batch execution.
type RowError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ResourceUsage reports what a sandbox batch consumed.
type ResourceUsage struct {
	WallTime         time.Duration `json:"wall_time_ns"`
	RecordsAttempted int           `json:"records_attempted"`
}

// ExecutionResult is the outcome of running one code artifact over the whole
// input batch. Rows is populated only when Status is StatusOK, in which case
// it holds exactly one numeric value per input record, in input order.
type ExecutionResult struct {
	Status    Status        `json:"status"`
	Rows      []float64     `json:"rows,omitempty"`
	RowErrors []RowError    `json:"row_errors,omitempty"`
	Usage     ResourceUsage `json:"usage"`
	// Detail carries the validation or timeout reason when Status is not ok
	// and the failure is not row-level.
	Detail string `json:"detail,omitempty"`
}
