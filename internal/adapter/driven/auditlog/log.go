// Package auditlog implements the append-only operator log kept in the spool
// directory.
package auditlog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// FileName is the audit log's name inside the spool directory.
const FileName = "MidPointPasswordFilterProcessor.log"

const timestampLayout = "2006/01/02 15:04:05"

// Compile-time interface satisfaction check.
var _ driven.AuditLog = (*Log)(nil)

// Log appends "[timestamp]: message" lines to a file. The first write that
// creates the file also restricts its access rules.
type Log struct {
	path   string
	now    func() time.Time
	harden func(path string) error
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithHardener overrides the platform access hardening applied to a newly
// created log file.
func WithHardener(h func(path string) error) Option {
	return func(l *Log) { l.harden = h }
}

// WithLogger sets the logger used to report failures of the audit log itself.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates a Log writing to path.
func New(path string, opts ...Option) *Log {
	l := &Log{
		path:   path,
		now:    time.Now,
		harden: hardenFile,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes one entry. Failures are reported through slog only; the
// audit log never logs its own write failures to itself.
func (l *Log) Append(message string) {
	created, err := l.write(message)
	if err != nil {
		l.logger.Error("audit log write failed", "path", l.path, "message", message, "error", err)
		return
	}

	// Only a file this call created is hardened.
	if !created {
		return
	}
	if err := l.harden(l.path); err != nil {
		l.logger.Warn("audit log hardening failed", "path", l.path, "error", err)
		if _, werr := l.write("Error setting log file permissions: " + err.Error()); werr != nil {
			l.logger.Error("audit log write failed", "path", l.path, "error", werr)
		}
	}
}

// write appends one entry and reports whether the file was created by it.
func (l *Log) write(message string) (created bool, err error) {
	_, statErr := os.Stat(l.path)
	existed := statErr == nil
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return false, fmt.Errorf("stat audit log: %w", statErr)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return false, fmt.Errorf("open audit log: %w", err)
	}

	line := fmt.Sprintf("[%s]: %s%s", l.now().Format(timestampLayout), message, lineEnding)
	_, writeErr := f.WriteString(line)
	closeErr := f.Close()
	if writeErr != nil {
		return false, fmt.Errorf("write audit log: %w", writeErr)
	}
	if closeErr != nil {
		return false, fmt.Errorf("close audit log: %w", closeErr)
	}

	return !existed, nil
}
