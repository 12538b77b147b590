package main

import (
	"fmt"
	"os"

	_ "golang.org/x/crypto/x509roots/fallback" // CA roots for HTTPS endpoints on hosts without a system store

	"github.com/Evolveum/midpoint-password-agent-ad/internal/cli"
)

// The run is not bound to SIGINT/SIGTERM: once started it drains the spool
// to completion.
func main() {
	if err := cli.NewRootCommand(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
