package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/auditlog"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/metrics"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/midpoint"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/spool"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/sqlite"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/application"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/config"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run [endpoint]",
		Short: "Apply spooled password changes once",
		Long: `Scan the spool directory, reconcile the captured password changes and send
the newest change per user to midPoint. Every change file is deleted at the
end of the run, whether or not it was applied.

The optional endpoint argument overrides the configured model web service URL.

Example:
  midpoint-password-agent run --config agent.yaml
  midpoint-password-agent run https://idm.example.com/midpoint/model/model-1`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, args)
		},
	}
}

func runSync(cmd *cobra.Command, opts *RootOptions, args []string) error {
	logger := setupLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitConfigError, "load configuration", err)
	}
	if len(args) == 1 {
		cfg.Endpoint = args[0]
	}

	// From here on the spool directory is known, so startup failures are
	// also written to the audit log the operator reads.
	audit := auditlog.New(filepath.Join(cfg.SpoolDir, auditlog.FileName), auditlog.WithLogger(logger))
	startupFailure := func(message string, err error) error {
		audit.Append(fmt.Sprintf("Error starting password update run: %s: %v", message, err))
		return WrapExitError(ExitConfigError, message, err)
	}

	if err := cfg.RequireAdminCredentials(); err != nil {
		return startupFailure("load configuration", err)
	}

	cryptor := opts.cryptor(cfg, logger)

	username, password, err := application.DecryptAdminCredentials(ctx, cryptor, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return startupFailure("prepare identity store client", err)
	}

	store, err := newIdentityStore(cfg.Endpoint, opts.HTTPClient, midpoint.Credentials{Username: username, Password: password})
	if err != nil {
		return startupFailure("prepare identity store client", err)
	}

	sp := spool.NewDir(cfg.SpoolDir)
	logger.Debug("identity store configured",
		"endpoint", store.Endpoint(),
		"spool", sp.Path(),
		"audit_log", audit.Path(),
	)

	syncOpts := []application.SyncOption{application.WithLogger(logger)}

	if cfg.JournalPath != "" {
		db, err := openJournal(ctx, cfg.JournalPath)
		if err != nil {
			logger.Warn("run journal unavailable", "path", cfg.JournalPath, "error", err)
		} else {
			defer db.Close()
			syncOpts = append(syncOpts, application.WithJournal(sqlite.NewRunRepo(db)))
		}
	}
	if cfg.MetricsPath != "" {
		recorder := metrics.NewTextfileRecorder(cfg.MetricsPath)
		logger.Debug("run metrics enabled", "path", recorder.Path())
		syncOpts = append(syncOpts, application.WithRecorder(recorder))
	}

	svc := application.NewSyncService(sp, cryptor, store, audit, syncOpts...)

	summary, err := svc.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "run aborted", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d discovered, %d applied, %d stale, %d malformed, %d failed\n",
		summary.ID, summary.Discovered, summary.Applied, summary.Stale, summary.Malformed, summary.Failed)

	return nil
}

// newIdentityStore picks the default endpoint when none is configured.
func newIdentityStore(endpoint string, hc *http.Client, creds midpoint.Credentials) (*midpoint.Client, error) {
	if endpoint == "" && hc == nil {
		return midpoint.NewClient(creds), nil
	}
	if endpoint == "" {
		endpoint = midpoint.DefaultEndpoint
	}
	return midpoint.NewClientWithEndpoint(hc, endpoint, creds)
}

func openJournal(ctx context.Context, path string) (*sqlite.DB, error) {
	db, err := sqlite.NewDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := sqlite.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("run journal opened", "path", db.Path())
	return db, nil
}
