package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/metrics"
	"github.com/vfaabeso/tea-simulation/internal/scenario"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
	"github.com/vfaabeso/tea-simulation/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Ticks    int
	Every    int
	Atomic   bool
	Metrics  bool

	// IDGenerator allows overriding the run id generator (for testing).
	// If nil, the store's UUIDv7Generator is used.
	IDGenerator store.IDGenerator
}

// RunSummary is printed after a run.
type RunSummary struct {
	Scenario    string            `json:"scenario" yaml:"scenario"`
	Pass        bool              `json:"pass" yaml:"pass"`
	Ticks       int64             `json:"ticks" yaml:"ticks"`
	Snapshots   int               `json:"snapshots" yaml:"snapshots"`
	Fingerprint string            `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Failure     *scenario.Failure `json:"failure,omitempty" yaml:"failure,omitempty"`
	Errors      []string          `json:"errors,omitempty" yaml:"errors,omitempty"`
	RunID       string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Metrics     []metrics.Sample  `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario and print its snapshots",
		Long: `Run a YAML or CUE scenario tick by tick.

A snapshot of every entity is printed at tick 0, every snapshot_every
ticks and after the last tick. Expectations declared in the scenario are
checked against the final snapshot. With --db the run and its snapshots
are recorded in a SQLite file for the history command.

Exit codes:
  0 - The scenario passed
  1 - A tick failed unexpectedly or an expectation was not met
  2 - Command error (invalid path, database error, interrupted run)

Example:
  teasim run scenarios/container_cooling.yaml
  teasim run --db ./runs.db --ticks 500 --every 100 scenarios/tea_steeping.cue
  teasim run --format json --metrics scenarios/shallow_cup.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "override the scenario's tick count")
	cmd.Flags().IntVar(&opts.Every, "every", 0, "override the scenario's snapshot interval (0 = final only)")
	cmd.Flags().BoolVar(&opts.Atomic, "atomic", false, "roll back every entity when a tick fails")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print tick counters after the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	s, err := scenario.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []scenario.Option{scenario.WithLogger(logger)}
	if cmd.Flags().Changed("ticks") {
		runOpts = append(runOpts, scenario.WithTicks(opts.Ticks))
	}
	if cmd.Flags().Changed("every") {
		runOpts = append(runOpts, scenario.WithEvery(opts.Every))
	}
	if opts.Atomic {
		runOpts = append(runOpts, scenario.WithAtomic())
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		rec, err := metrics.NewRecorder(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		runOpts = append(runOpts, scenario.WithObserver(rec))
	}

	// SIGINT and SIGTERM stop the run between ticks.
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := openRecorder(ctx, opts, s, logger)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}
	defer rec.close()

	runOpts = append(runOpts, scenario.WithObserver(rec), scenario.WithSnapshotHook(func(snap scenario.Snapshot) error {
		if err := rec.snapshot(ctx, snap); err != nil {
			return err
		}
		return printSnapshot(formatter, snap)
	}))

	result, err := scenario.Run(ctx, s, runOpts...)
	if err != nil {
		rec.abort(errors.Is(err, context.Canceled))
		return WrapExitError(ExitCommandError, "run aborted", err)
	}

	if err := rec.finish(result); err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}

	summary := RunSummary{
		Scenario:    s.Name,
		Pass:        result.Pass,
		Ticks:       result.Ticks,
		Snapshots:   len(result.Snapshots),
		Fingerprint: result.Fingerprint,
		Failure:     result.Failure,
		Errors:      result.Errors,
		RunID:       rec.id(),
	}
	if reg != nil {
		summary.Metrics, err = metrics.Summarize(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
	}

	if err := printSummary(formatter, summary); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", s.Name))
	}
	return nil
}

func printSnapshot(f *OutputFormatter, snap scenario.Snapshot) error {
	if f.Format == "json" {
		return f.Success(snap)
	}
	fmt.Fprintf(f.Writer, "--- tick %d (elapsed %g)\n", snap.Tick, snap.Elapsed)
	return f.Success(snap.Status)
}

func printSummary(f *OutputFormatter, summary RunSummary) error {
	if f.Format == "json" {
		if summary.Pass {
			return f.Success(summary)
		}
		return f.Error("E_SCENARIO_FAILED", fmt.Sprintf("scenario %s failed", summary.Scenario), summary)
	}

	w := f.Writer
	mark := "✓"
	if !summary.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s: %d ticks, %d snapshots\n", mark, summary.Scenario, summary.Ticks, summary.Snapshots)
	if summary.Failure != nil {
		fmt.Fprintf(w, "  failed at tick %d [%s]: %s\n", summary.Failure.Tick, summary.Failure.Code, summary.Failure.Message)
	}
	for _, e := range summary.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if summary.Fingerprint != "" {
		fmt.Fprintf(w, "  fingerprint: %s\n", summary.Fingerprint)
	}
	if summary.RunID != "" {
		fmt.Fprintf(w, "  recorded as %s\n", summary.RunID)
	}
	for _, m := range summary.Metrics {
		fmt.Fprintf(w, "  %s %g\n", m.Name, m.Value)
	}
	return nil
}

// runRecorder writes a run to the report database. It observes the kernel
// to know how many ticks completed. The zero value records nothing.
type runRecorder struct {
	st        *store.Store
	run       store.Run
	completed int64
	logger    *slog.Logger
}

func openRecorder(ctx context.Context, opts *RunOptions, s *scenario.Scenario, logger *slog.Logger) (*runRecorder, error) {
	if opts.Database == "" {
		return &runRecorder{}, nil
	}

	var storeOpts []store.Option
	if opts.IDGenerator != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDGenerator))
	}
	st, err := store.Open(opts.Database, storeOpts...)
	if err != nil {
		return nil, err
	}

	run, err := st.WriteRun(ctx, s.Name, s.ResolvedEnvironment().Status())
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Debug("recording run", "db", opts.Database, "run_id", run.ID)
	return &runRecorder{st: st, run: run, logger: logger}, nil
}

func (r *runRecorder) id() string {
	return r.run.ID
}

func (r *runRecorder) snapshot(ctx context.Context, snap scenario.Snapshot) error {
	if r.st == nil {
		return nil
	}
	return r.st.WriteSnapshot(ctx, r.run.ID, snap.Tick, snap.Status)
}

func (r *runRecorder) finish(result *scenario.Result) error {
	if r.st == nil {
		return nil
	}
	o := store.Outcome{
		Ticks:       result.Ticks,
		Fingerprint: result.Fingerprint,
		Passed:      result.Pass,
	}
	if result.Failure != nil {
		o.FailureCode = string(result.Failure.Code)
	}
	return r.st.FinishRun(context.Background(), r.run.ID, o)
}

// abort marks the run failed after Run returned an error.
func (r *runRecorder) abort(cancelled bool) {
	if r.st == nil {
		return
	}
	code := "ABORTED"
	if cancelled {
		code = "CANCELLED"
	}
	err := r.st.FinishRun(context.Background(), r.run.ID, store.Outcome{Ticks: r.completed, FailureCode: code})
	if err != nil {
		r.logger.Error("failed to mark run aborted", "run_id", r.run.ID, "error", err)
	}
}

func (r *runRecorder) EntityUpdated(entity.Kind) {}

func (r *runRecorder) TickCompleted(tick int64, _ int, _ time.Duration) {
	r.completed = tick
}

func (r *runRecorder) TickFailed(int64, simerr.Code) {}

func (r *runRecorder) close() {
	if r.st == nil {
		return
	}
	if err := r.st.Close(); err != nil {
		r.logger.Error("error closing database", "error", err)
	}
}
