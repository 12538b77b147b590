// Command healthcheck verifies that the midPoint model web service answers
// before the scheduler starts a run. It exits 0 when the service WSDL is
// served and 1 otherwise.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // CA roots for HTTPS endpoints on hosts without a system store

	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/midpoint"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run resolves the endpoint from the first argument, then the configuration
// named by MIDPOINT_AGENT_CONFIG, then the built-in default.
func run(args []string) int {
	endpoint := ""
	if len(args) > 0 {
		endpoint = args[0]
	} else {
		cfg, err := config.Load(os.Getenv("MIDPOINT_AGENT_CONFIG"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "healthcheck:", err)
			return 1
		}
		endpoint = cfg.Endpoint
	}
	if endpoint == "" {
		endpoint = midpoint.DefaultEndpoint
	}

	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := check(ctx, client, endpoint); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		return 1
	}
	return 0
}

func check(ctx context.Context, client *http.Client, endpoint string) error {
	target, err := wsdlURL(endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("check %s: %w", target, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("check %s: status %d", target, resp.StatusCode)
	}

	return nil
}

// wsdlURL returns endpoint with the bare "wsdl" query the service answers.
func wsdlURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("endpoint %q must use http or https", endpoint)
	}
	u.RawQuery = "wsdl"
	return u.String(), nil
}
