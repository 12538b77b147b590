package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/sqlite"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/config"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit   int
	Details bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run journal",
		Long: `List recent runs, newest first. With --details every change file handled by
a run is listed beneath it. Passwords are never recorded.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Details, "details", false, "show per-file outcomes")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	setupLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitConfigError, "load configuration", err)
	}
	if cfg.JournalPath == "" {
		return WrapExitError(ExitConfigError, "history", errors.New("run journal is disabled"))
	}

	db, err := openJournal(ctx, cfg.JournalPath)
	if err != nil {
		return WrapExitError(ExitFailure, "open run journal", err)
	}
	defer db.Close()

	runs, err := sqlite.NewRunRepo(db).ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "list runs", err)
	}

	return printRuns(cmd.OutOrStdout(), runs, opts.Details)
}

func printRuns(w io.Writer, runs []model.RunSummary, details bool) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tDISCOVERED\tAPPLIED\tSTALE\tMALFORMED\tFAILED\tRESULT")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.Duration().Round(time.Millisecond),
			run.Discovered, run.Applied, run.Stale, run.Malformed, run.Failed,
			runResult(run),
		)
		if !details {
			continue
		}
		for _, o := range run.Outcomes {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", o.FileName, o.Username, o.Status, o.Detail)
		}
	}

	return tw.Flush()
}

func runResult(run model.RunSummary) string {
	switch {
	case run.Aborted != "":
		return "aborted: " + run.Aborted
	case run.Succeeded():
		return "ok"
	default:
		return "completed with errors"
	}
}
