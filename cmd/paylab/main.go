package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paylab/internal/config"
	"paylab/internal/gateway"
	"paylab/internal/logging"
	"paylab/internal/person"
	"paylab/internal/plan"
	"paylab/internal/prompt"
	"paylab/internal/run"
	"paylab/internal/sandbox"
	"paylab/internal/schedule"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "paylab",
	Short: "paylab - compensation-bias experiments against LLM providers",
	Long: `paylab runs controlled compensation experiments against LLM providers.

Each work item asks one model, under one prompt variant, either to write a
compensation calculator (executed here over a fixed synthetic population) or
to emit compensation figures directly. Every item's artifacts and outcome are
persisted, and interrupted runs resume where they stopped.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := logging.Initialize(".", configPath); err != nil {
			return fmt.Errorf("failed to initialize file logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// runCmd executes the full experiment plan
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the experiment plan from the configuration",
	Long: `Builds the work plan from the configuration, generates the reference
population, and drives every item through generation, execution and
persistence. Items completed by a previous run are skipped.`,
	RunE: runExperiment,
}

// planCmd prints the expanded work plan without calling any provider
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the expanded work plan",
	RunE:  showPlan,
}

// datasetCmd generates the reference population and writes it as CSV
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Generate the reference population as CSV on stdout",
	RunE:  emitDataset,
}

// statusCmd summarizes a recorded run
var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Summarize the outcome of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  showStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "paylab.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.AddCommand(runCmd, planCmd, datasetCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Info("configuration loaded",
		zap.String("path", configPath),
		zap.Int("providers", len(cfg.Providers)),
		zap.Int("models", len(cfg.Models)))
	return cfg, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := plan.Build(cfg)
	if err != nil {
		return err
	}

	gen := person.NewGenerator(cfg.Dataset.Seed)
	people, err := gen.Generate(cfg.Dataset.Size, cfg.Dataset.StratifyBy, cfg.Dataset.Realism)
	if err != nil {
		return fmt.Errorf("generating reference population: %w", err)
	}
	logger.Info("reference population ready", zap.Int("size", len(people)))

	loader := prompt.NewLoader(cfg.PromptDir)
	templates := make(map[string]*prompt.Template, len(cfg.Variants))
	for _, variant := range cfg.Variants {
		tpl, err := loader.Load(variant)
		if err != nil {
			return err
		}
		templates[variant] = tpl
	}

	clients := make(map[string]gateway.Client, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		client, err := gateway.NewClient(ctx, pc)
		if err != nil {
			return fmt.Errorf("building client for provider %q: %w", pc.Name, err)
		}
		clients[pc.Name] = client
	}
	gw := gateway.New(clients)
	for _, m := range cfg.Models {
		gw.SetModelParams(m.ID, m.MaxTokens, m.Temperature)
	}

	store, err := run.OpenStore(cfg.Output.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	writer, err := run.NewArtifactWriter(cfg.Output.Dir)
	if err != nil {
		return err
	}

	sched := schedule.New(schedule.PolicyFromConfig(cfg.Retry), cfg.Providers)
	exec := sandbox.NewExecutor(cfg.Sandbox)

	coord := run.NewCoordinator(cfg, gw, sched, exec, store, writer, templates, people)
	summary, err := coord.Run(ctx, p)
	if err != nil {
		return err
	}

	logger.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("done", summary.Done),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
	return printJSON(summary)
}

func showPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := plan.Build(cfg)
	if err != nil {
		return err
	}
	for _, item := range p.Items {
		fmt.Printf("%-60s %s\n", item.Key(), item)
	}
	fmt.Printf("\n%d items\n", len(p.Items))
	return nil
}

func emitDataset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gen := person.NewGenerator(cfg.Dataset.Seed)
	people, err := gen.Generate(cfg.Dataset.Size, cfg.Dataset.StratifyBy, cfg.Dataset.Realism)
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	if err := w.Write(person.AttributeNames); err != nil {
		return err
	}
	for _, p := range people {
		if err := w.Write(p.Values()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	dists, err := person.ComputeDistribution(people)
	if err != nil {
		return err
	}
	attrs := make([]string, 0, len(dists))
	for name := range dists {
		attrs = append(attrs, name)
	}
	sort.Strings(attrs)
	fmt.Fprintln(os.Stderr)
	for _, name := range attrs {
		d := dists[name]
		fmt.Fprintf(os.Stderr, "%-20s cv=%.4f balanced=%v\n", name, d.CV, d.Balanced)
	}
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := run.OpenStore(cfg.Output.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Summary(args[0])
	if err != nil {
		return err
	}
	if len(summary) == 0 {
		return fmt.Errorf("no records for run %s", args[0])
	}
	return printJSON(summary)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
