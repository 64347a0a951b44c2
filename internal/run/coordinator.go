package run

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"paylab/internal/config"
	"paylab/internal/experiment"
	"paylab/internal/gateway"
	"paylab/internal/logging"
	"paylab/internal/person"
	"paylab/internal/plan"
	"paylab/internal/prompt"
	"paylab/internal/sandbox"
	"paylab/internal/schedule"
)

// Generator abstracts the gateway for the coordinator; the concrete Gateway
// satisfies it, tests substitute counting fakes.
type Generator interface {
	Generate(ctx context.Context, item experiment.WorkItem, rendered *prompt.Rendered, datasetRows int) (*experiment.Artifact, error)
}

// Executor abstracts the sandbox the same way.
type Executor interface {
	Execute(ctx context.Context, art *experiment.CodeArtifact, people []person.Person) (*experiment.ExecutionResult, error)
}

var _ Generator = (*gateway.Gateway)(nil)
var _ Executor = (*sandbox.Executor)(nil)

// Coordinator moves every plan item through the full pipeline: prompt
// rendering, scheduled generation, sandbox execution, artifact persistence
// and the run log. Item failures are recorded and never abort the run.
type Coordinator struct {
	cfg       *config.Config
	gen       Generator
	sched     *schedule.Scheduler
	exec      Executor
	store     *Store
	writer    *ArtifactWriter
	templates map[string]*prompt.Template
	people    []person.Person
}

// Summary is the run-level outcome.
type Summary struct {
	RunID    string         `json:"run_id"`
	Total    int            `json:"total"`
	Skipped  int            `json:"skipped"`
	Done     int            `json:"done"`
	Failed   int            `json:"failed"`
	ByStatus map[string]int `json:"by_status"`
	Elapsed  time.Duration  `json:"elapsed_ns"`
}

// NewCoordinator wires the pipeline. templates is keyed by variant name and
// must cover every variant the plan references; people is the shared input
// batch all items run against.
func NewCoordinator(cfg *config.Config, gen Generator, sched *schedule.Scheduler, exec Executor,
	store *Store, writer *ArtifactWriter, templates map[string]*prompt.Template, people []person.Person) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		gen:       gen,
		sched:     sched,
		exec:      exec,
		store:     store,
		writer:    writer,
		templates: templates,
		people:    people,
	}
}

// Run executes the plan with the configured number of workers and returns
// the run summary. The returned error is non-nil only for run-level
// failures (context cancellation, run log unavailable); per-item failures
// land in the summary.
func (c *Coordinator) Run(ctx context.Context, p *plan.Plan) (*Summary, error) {
	runID := uuid.NewString()
	start := time.Now()
	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	logging.Boot("run %s: %d items, %d workers, %d records", runID, len(p.Items), workers, len(c.people))

	var (
		mu       sync.Mutex
		skipped  int
		done     int
		failed   int
		byStatus = make(map[string]int)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range p.Items {
		item := item
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			status, wasSkipped, err := c.runItem(gctx, runID, item)
			if err != nil {
				// Run-level failure: cancellation or a broken run log.
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case wasSkipped:
				skipped++
			case status == string(experiment.StatusOK):
				done++
				byStatus[status]++
			default:
				failed++
				byStatus[status]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Summary{
		RunID:    runID,
		Total:    len(p.Items),
		Skipped:  skipped,
		Done:     done,
		Failed:   failed,
		ByStatus: byStatus,
		Elapsed:  time.Since(start),
	}
	logging.Boot("run %s finished: %d ok, %d failed, %d skipped in %v", runID, done, failed, skipped, s.Elapsed)
	return s, nil
}

// runItem takes one item through the whole pipeline. It returns the
// terminal status recorded for the item, or skipped=true when a previous
// run already completed the same identity. A non-nil error aborts the run
// and is reserved for cancellation and run-log failures.
func (c *Coordinator) runItem(ctx context.Context, runID string, item experiment.WorkItem) (string, bool, error) {
	tpl, ok := c.templates[item.Variant]
	if !ok {
		return c.record(runID, item, "", string(experiment.StatusValidationError), 0, nil,
			fmt.Sprintf("no prompt template for variant %q", item.Variant))
	}
	rendered, err := tpl.Render()
	if err != nil {
		return c.record(runID, item, "", string(experiment.StatusValidationError), 0, nil, err.Error())
	}

	fp := c.fingerprint(rendered)
	alreadyDone, err := c.store.Completed(item.Key(), fp)
	if err != nil {
		return "", false, err
	}
	if alreadyDone {
		logging.Plan("skipping %s: already completed", item.Key())
		return "", true, nil
	}

	var (
		art      *experiment.Artifact
		attempts int
	)
	genErr := c.sched.Do(ctx, item.Provider, func(cctx context.Context) error {
		attempts++
		a, err := c.gen.Generate(cctx, item, rendered, len(c.people))
		if err == nil {
			art = a
		}
		return err
	})
	if genErr != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		var pe *experiment.ParseError
		if errors.As(genErr, &pe) {
			if werr := c.writer.WriteInvalid(item, pe.Raw); werr != nil {
				logging.StoreError("persisting invalid response for %s: %v", item.Key(), werr)
			}
		}
		return c.record(runID, item, fp, experiment.FailureStatus(genErr), attempts, nil, genErr.Error())
	}

	if err := c.writer.WriteArtifact(item, art); err != nil {
		logging.StoreError("persisting artifact for %s: %v", item.Key(), err)
		return c.record(runID, item, fp, "error", attempts, art, err.Error())
	}

	switch item.Method {
	case experiment.MethodCodeGen:
		res, err := c.exec.Execute(ctx, art.Code, c.people)
		if err != nil {
			// Only context failures surface here.
			return "", false, err
		}
		if err := c.writer.WriteResult(item, res, c.people); err != nil {
			logging.StoreError("persisting result for %s: %v", item.Key(), err)
			return c.record(runID, item, fp, "error", attempts, art, err.Error())
		}
		return c.record(runID, item, fp, string(res.Status), attempts, art, res.Detail)

	case experiment.MethodDirectData:
		// The dataset artifact is the final output; nothing to execute.
		return c.record(runID, item, fp, string(experiment.StatusOK), attempts, art, "")

	default:
		return c.record(runID, item, fp, string(experiment.StatusValidationError), attempts, art,
			"unknown method "+string(item.Method))
	}
}

// record appends the item's terminal run record and maps persistence
// failures of the log itself to run-level errors.
func (c *Coordinator) record(runID string, item experiment.WorkItem, fp, status string, attempts int,
	art *experiment.Artifact, detail string) (string, bool, error) {
	rec := &RunRecord{
		RunID:       runID,
		ItemKey:     item.Key(),
		Fingerprint: fp,
		Provider:    item.Provider,
		Model:       item.Model,
		Variant:     item.Variant,
		Method:      string(item.Method),
		Status:      status,
		Attempts:    attempts,
		Detail:      detail,
	}
	if art != nil {
		if meta := artifactMeta(art); meta != nil {
			rec.TokensUsed = meta.TokensUsed
			rec.LatencyMS = meta.Latency.Milliseconds()
		}
	}
	if err := c.store.Append(rec); err != nil {
		return "", false, err
	}
	return status, false, nil
}

func artifactMeta(art *experiment.Artifact) *experiment.GenerationMeta {
	switch {
	case art.Code != nil:
		return &art.Code.Meta
	case art.Dataset != nil:
		return &art.Dataset.Meta
	default:
		return nil
	}
}

// fingerprint identifies the experimental conditions an item ran under.
// Same key + same fingerprint means repeating the work would reproduce the
// same experiment, so completed items are skipped; changing the prompt,
// the dataset seed or the batch size changes the fingerprint and forces a
// fresh generation.
func (c *Coordinator) fingerprint(rendered *prompt.Rendered) string {
	h := sha256.New()
	fmt.Fprintf(h, "variant=%s\nversion=%s\n", rendered.Variant, rendered.Version)
	fmt.Fprintf(h, "seed=%d\nsize=%d\n", c.cfg.Dataset.Seed, len(c.people))
	fmt.Fprintf(h, "system=%s\nuser=%s\n", rendered.System, rendered.User)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
