// Package encryptor implements the Cryptor port by shelling out to the
// password filter's encryption helper.
package encryptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// DefaultTimeout bounds a single helper invocation.
const DefaultTimeout = 10 * time.Second

// DefaultPath is where the installer places the helper.
const DefaultPath = `C:\Program Files\Evolveum\MidPoint Password Filter\MidPointPasswordFilterEncryptor.exe`

// Mode selects the helper direction.
type Mode string

const (
	ModeEncrypt Mode = "e"
	ModeDecrypt Mode = "d"
)

// markers returns the stdout lines that bracket the helper's result.
func (m Mode) markers() (start, end string) {
	if m == ModeEncrypt {
		return "START ENCRYPTION", "END ENCRYPTION"
	}
	return "START DECRYPTION", "END DECRYPTION"
}

// CommandRunner launches the helper and returns its standard output.
// Implementations must honor ctx cancellation.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultWaitDelay bounds how long Run waits for the helper's output pipe to
// close after the helper has been killed.
const DefaultWaitDelay = time.Second

// ExecRunner runs the helper with os/exec.
type ExecRunner struct {
	// WaitDelay overrides DefaultWaitDelay when positive.
	WaitDelay time.Duration
}

// Run starts name with args, waits for it and returns whatever it wrote to
// stdout. A non-zero exit status is reported together with the output. A
// child process that inherited stdout cannot hold Run past ctx expiry plus
// the wait delay.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = DefaultWaitDelay
	if r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}
	return cmd.Output()
}

// Compile-time interface satisfaction check.
var _ driven.Cryptor = (*Bridge)(nil)

// Bridge implements driven.Cryptor on top of the helper executable.
type Bridge struct {
	path    string
	runner  CommandRunner
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRunner replaces the process launcher, typically with a test double.
func WithRunner(r CommandRunner) Option {
	return func(b *Bridge) { b.runner = r }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the logger used to report helper failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// NewBridge creates a Bridge for the helper at path.
func NewBridge(path string, opts ...Option) *Bridge {
	b := &Bridge{
		path:    path,
		runner:  ExecRunner{},
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Encrypt returns the helper ciphertext for plaintext, or "" on failure.
func (b *Bridge) Encrypt(ctx context.Context, plaintext string) string {
	return b.call(ctx, ModeEncrypt, plaintext)
}

// Decrypt returns the plaintext for ciphertext, or "" on failure.
func (b *Bridge) Decrypt(ctx context.Context, ciphertext string) string {
	return b.call(ctx, ModeDecrypt, ciphertext)
}

func (b *Bridge) call(ctx context.Context, mode Mode, payload string) string {
	out, err := b.invoke(ctx, mode, payload)
	if err != nil {
		b.logger.Warn("encryption helper failed", "mode", string(mode), "error", err)
		return ""
	}
	return out
}

func (b *Bridge) invoke(ctx context.Context, mode Mode, payload string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	// The helper receives one argument string, the mode token and the payload
	// separated by a space, which the OS splits at the first space.
	argLine := string(mode) + " " + payload
	args := strings.SplitN(argLine, " ", 2)

	stdout, err := b.runner.Run(ctx, b.path, args...)
	if ctx.Err() != nil {
		return "", fmt.Errorf("helper did not exit within %s: %w", b.timeout, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("run helper: %w", err)
		}
		// The helper's exit status is not part of the protocol; the markers are.
		b.logger.Debug("encryption helper exited with error", "mode", string(mode), "error", err)
	}

	start, end := mode.markers()
	result, ok := extractBetween(string(stdout), start, end)
	if !ok {
		return "", fmt.Errorf("helper output missing %q/%q markers", start, end)
	}
	return result, nil
}

// extractBetween concatenates the lines strictly between the start and end
// marker lines. ok is false unless both markers are present.
func extractBetween(output, startTag, endTag string) (string, bool) {
	var sb strings.Builder
	started := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r\n")
		if !started {
			started = line == startTag
			continue
		}
		if line == endTag {
			return sb.String(), true
		}
		sb.WriteString(line)
	}
	return "", false
}
