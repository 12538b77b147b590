// Package cli implements the midpoint-password-agent command line.
package cli

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/encryptor"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/config"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	// Cryptor replaces the helper bridge (for testing).
	Cryptor driven.Cryptor
	// HTTPClient replaces the identity store HTTP client (for testing).
	HTTPClient *http.Client
}

// NewRootCommand creates the root command. Without a subcommand it performs
// a run, so the scheduled task can invoke the binary with at most an
// endpoint argument.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}

	cmd := &cobra.Command{
		Use:   "midpoint-password-agent [endpoint]",
		Short: "Push Active Directory password changes to midPoint",
		Long: `Applies the password changes captured by the midPoint password filter to
the midPoint identity store and drains the spool directory.

With no subcommand it performs one run, identical to "run".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, args)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewEncryptCommand(opts))
	cmd.AddCommand(NewDecryptCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// setupLogger installs a text handler on w as the default logger.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func (o *RootOptions) cryptor(cfg *config.Config, logger *slog.Logger) driven.Cryptor {
	if o.Cryptor != nil {
		return o.Cryptor
	}
	path := cfg.EncryptorPath
	if path == "" {
		path = encryptor.DefaultPath
	}
	return encryptor.NewBridge(path,
		encryptor.WithTimeout(cfg.EncryptorTimeout),
		encryptor.WithLogger(logger),
	)
}
