package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/config"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// NewEncryptCommand creates the encrypt command, used to produce the
// admin_username and admin_password configuration values.
func NewEncryptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "encrypt <text>",
		Short:         "Encrypt a value with the password filter helper",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrypt(cmd, rootOpts, args[0], driven.Cryptor.Encrypt)
		},
	}
}

// NewDecryptCommand creates the decrypt command.
func NewDecryptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decrypt <text>",
		Short:         "Decrypt a value with the password filter helper",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrypt(cmd, rootOpts, args[0], driven.Cryptor.Decrypt)
		},
	}
}

type cryptFunc func(c driven.Cryptor, ctx context.Context, s string) string

func runCrypt(cmd *cobra.Command, opts *RootOptions, input string, fn cryptFunc) error {
	logger := setupLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitConfigError, "load configuration", err)
	}

	out := fn(opts.cryptor(cfg, logger), ctx, input)
	if out == "" {
		return WrapExitError(ExitFailure, cmd.Name(), errors.New("helper returned no result"))
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
