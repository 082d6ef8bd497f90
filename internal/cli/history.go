package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vfaabeso/tea-simulation/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Scenario string
}

// RunView is a recorded run as printed by history.
type RunView struct {
	Seq         int64          `json:"seq" yaml:"seq"`
	ID          string         `json:"id" yaml:"id"`
	Scenario    string         `json:"scenario" yaml:"scenario"`
	Status      string         `json:"status" yaml:"status"`
	Ticks       int64          `json:"ticks" yaml:"ticks"`
	Fingerprint string         `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	FailureCode string         `json:"failure_code,omitempty" yaml:"failure_code,omitempty"`
	Environment map[string]any `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// RunDetail is one run with its snapshots.
type RunDetail struct {
	Run       RunView          `json:"run" yaml:"run"`
	Snapshots []store.Snapshot `json:"snapshots" yaml:"snapshots"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs or show one run's snapshots",
		Long: `Read runs recorded with "teasim run --db".

Without a run id, every run is listed in the order it was recorded.
With a run id, the run and all of its snapshots are printed.

Example:
  teasim history --db ./runs.db
  teasim history --db ./runs.db --scenario container_cooling
  teasim history --db ./runs.db 0192f4c0-7a4e-7b1a-9d2e-3f6b8c1a2d4e`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listRuns(opts, cmd)
			}
			return showRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only list runs of this scenario")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openHistory opens an existing database. A missing file is a command
// error rather than a fresh empty store.
func openHistory(opts *HistoryOptions, formatter *OutputFormatter) (*store.Store, error) {
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func listRuns(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openHistory(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := commandContext(cmd)

	runs, err := st.ListRuns(ctx, opts.Scenario)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	views := make([]RunView, len(runs))
	for i, r := range runs {
		views[i] = runView(r, false)
	}

	if formatter.Format == "json" {
		return formatter.Success(views)
	}

	w := formatter.Writer
	if len(views) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "%-4s %-36s %-24s %-8s %8s  %s\n", "SEQ", "ID", "SCENARIO", "STATUS", "TICKS", "FAILURE")
	for _, v := range views {
		fmt.Fprintf(w, "%-4d %-36s %-24s %-8s %8d  %s\n", v.Seq, v.ID, v.Scenario, v.Status, v.Ticks, v.FailureCode)
	}
	return nil
}

func showRun(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openHistory(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := commandContext(cmd)

	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	snaps, err := st.ReadSnapshots(ctx, id)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read snapshots", err)
	}

	detail := RunDetail{Run: runView(run, true), Snapshots: snaps}
	if formatter.Format == "json" {
		return formatter.Success(detail)
	}

	if err := formatter.Success(detail.Run); err != nil {
		return err
	}
	for _, snap := range snaps {
		fmt.Fprintf(formatter.Writer, "--- tick %d\n", snap.Tick)
		if err := formatter.Success(snap.Status); err != nil {
			return err
		}
	}
	return nil
}

func runView(r store.Run, withEnv bool) RunView {
	v := RunView{
		Seq:         r.Seq,
		ID:          r.ID,
		Scenario:    r.Scenario,
		Status:      string(r.Status),
		Ticks:       r.Ticks,
		Fingerprint: r.Fingerprint,
		FailureCode: r.FailureCode,
	}
	if withEnv {
		v.Environment = r.Environment
	}
	return v
}
