package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"golang.org/x/sync/semaphore"

	"paylab/internal/config"
	"paylab/internal/experiment"
	"paylab/internal/logging"
	"paylab/internal/person"
)

// Executor runs code artifacts over record batches. A weighted semaphore
// bounds how many interpreter batches run at once across all workers; each
// batch gets a fresh interpreter so no state leaks between artifacts.
type Executor struct {
	cfg config.SandboxConfig
	sem *semaphore.Weighted
}

// NewExecutor builds an executor from the sandbox configuration.
func NewExecutor(cfg config.SandboxConfig) *Executor {
	n := cfg.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	return &Executor{cfg: cfg, sem: semaphore.NewWeighted(int64(n))}
}

// Execute runs the artifact's calculator once per record and aggregates the
// outcomes. The returned result is always non-nil unless the caller's
// context ended before the batch could start.
//
// Outcome rules: any record-level panic, error or non-finite value becomes a
// RowError and the batch continues; one or more RowErrors makes the batch
// runtime_error with no rows. Hitting a deadline, whether the batch deadline
// or a single record's, discards partial rows and yields timeout: row errors
// are reserved for code that actually crashes or misbehaves, not code that
// never returns. Pre-check failures yield validation_error without
// evaluating anything.
func (e *Executor) Execute(ctx context.Context, art *experiment.CodeArtifact, people []person.Person) (*experiment.ExecutionResult, error) {
	source := composeProgram(art)

	if err := Precheck(source, e.cfg.ExtraImports); err != nil {
		logging.SandboxWarn("pre-check rejected artifact: %v", err)
		return &experiment.ExecutionResult{
			Status: experiment.StatusValidationError,
			Detail: err.Error(),
		}, nil
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	start := time.Now()
	bctx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeoutDuration())
	defer cancel()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("sandbox: loading stdlib symbols: %w", err)
	}

	if _, err := i.EvalWithContext(bctx, source); err != nil {
		if bctx.Err() != nil {
			return e.timeoutResult(start, 0), nil
		}
		logging.SandboxWarn("program evaluation failed: %v", err)
		return &experiment.ExecutionResult{
			Status: experiment.StatusRuntimeError,
			Detail: fmt.Sprintf("program evaluation failed: %v", err),
			Usage:  experiment.ResourceUsage{WallTime: time.Since(start)},
		}, nil
	}

	rows := make([]float64, 0, len(people))
	var rowErrors []experiment.RowError

	for idx, p := range people {
		if bctx.Err() != nil {
			return e.timeoutResult(start, idx), nil
		}

		v, err := e.evalRecord(bctx, i, p)
		if err != nil {
			if bctx.Err() != nil {
				return e.timeoutResult(start, idx), nil
			}
			if errors.Is(err, errRecordDeadline) {
				return e.recordTimeoutResult(start, idx), nil
			}
			rowErrors = append(rowErrors, experiment.RowError{Index: idx, Reason: err.Error()})
			continue
		}
		rows = append(rows, v)
	}

	usage := experiment.ResourceUsage{
		WallTime:         time.Since(start),
		RecordsAttempted: len(people),
	}

	if len(rowErrors) > 0 {
		logging.SandboxDebug("batch finished with %d/%d row errors in %v", len(rowErrors), len(people), usage.WallTime)
		return &experiment.ExecutionResult{
			Status:    experiment.StatusRuntimeError,
			RowErrors: rowErrors,
			Usage:     usage,
		}, nil
	}

	logging.Sandbox("batch ok: %d records in %v", len(people), usage.WallTime)
	return &experiment.ExecutionResult{
		Status: experiment.StatusOK,
		Rows:   rows,
		Usage:  usage,
	}, nil
}

// errRecordDeadline marks a record that hit its own deadline rather than
// crashing. It ends the whole batch as a timeout.
var errRecordDeadline = errors.New("record deadline exceeded")

// evalRecord invokes the calculator for one record under its own deadline.
// The call is rendered as a source expression rather than extracted as a
// function value: the interpreter checks the context at branch points, so
// even a generated busy loop stays interruptible.
func (e *Executor) evalRecord(bctx context.Context, i *interp.Interpreter, p person.Person) (float64, error) {
	rctx, cancel := context.WithTimeout(bctx, e.cfg.RecordTimeoutDuration())
	defer cancel()

	v, err := i.EvalWithContext(rctx, renderCall(p))
	if err != nil {
		if rctx.Err() != nil && bctx.Err() == nil {
			return 0, errRecordDeadline
		}
		return 0, err
	}
	if v.Kind() != reflect.Float64 {
		return 0, fmt.Errorf("calculator returned %s, want float64", v.Kind())
	}
	f := v.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("calculator returned non-finite value %v", f)
	}
	return f, nil
}

// recordTimeoutResult ends a batch whose calculator stalled on one record
// before the batch deadline could fire.
func (e *Executor) recordTimeoutResult(start time.Time, idx int) *experiment.ExecutionResult {
	logging.SandboxWarn("record deadline exceeded on record %d", idx)
	return &experiment.ExecutionResult{
		Status: experiment.StatusTimeout,
		Detail: fmt.Sprintf("record deadline %v exceeded on record %d", e.cfg.RecordTimeoutDuration(), idx),
		Usage: experiment.ResourceUsage{
			WallTime:         time.Since(start),
			RecordsAttempted: idx + 1,
		},
	}
}

func (e *Executor) timeoutResult(start time.Time, attempted int) *experiment.ExecutionResult {
	logging.SandboxWarn("batch deadline exceeded after %d records", attempted)
	return &experiment.ExecutionResult{
		Status: experiment.StatusTimeout,
		Detail: fmt.Sprintf("batch deadline %v exceeded after %d records", e.cfg.BatchTimeoutDuration(), attempted),
		Usage: experiment.ResourceUsage{
			WallTime:         time.Since(start),
			RecordsAttempted: attempted,
		},
	}
}

// composeProgram builds the full source the interpreter evaluates: the
// generated program, with the published Person type prepended when the
// program did not bring its own.
func composeProgram(art *experiment.CodeArtifact) string {
	if art.DeclaresPerson {
		return art.Source
	}
	// Insert after the package clause so the fragment stays in package main.
	lines := strings.SplitN(art.Source, "\n", 2)
	if len(lines) == 2 && strings.HasPrefix(strings.TrimSpace(lines[0]), "package ") {
		return lines[0] + "\n\n" + person.SourceLiteral + "\n" + lines[1]
	}
	return art.Source + "\n\n" + person.SourceLiteral + "\n"
}

// renderCall renders the calculator invocation for one record as a Go
// expression, e.g. main.Compensation(main.Person{Gender: "Female", ...}).
func renderCall(p person.Person) string {
	var b strings.Builder
	b.WriteString("main.")
	b.WriteString(experiment.CalculatorFuncName)
	b.WriteString("(main.Person{")
	for i, val := range p.Values() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %q", personFieldNames[i], val)
	}
	b.WriteString("})")
	return b.String()
}
