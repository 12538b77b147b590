// Package sqlite implements the RunJournal port on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// DB holds the run journal's writer and reader connections. The writer is a
// single connection so inserts never contend with each other.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// journalPragmas apply to both connections. A run touches the journal once,
// after the spool is drained, so a short busy timeout is enough; a second
// process holding the lock longer means runs overlap.
var journalPragmas = []string{
	"busy_timeout(2000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// buildDSN appends the journal pragmas to base. Reader connections are
// opened query_only so history listing can never modify the journal.
func buildDSN(base string, readOnly bool, extra ...string) string {
	var b strings.Builder
	b.WriteString(base)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	pragmas := append(append([]string{}, extra...), journalPragmas...)
	if readOnly {
		pragmas = append(pragmas, "query_only(1)")
	}
	for _, p := range pragmas {
		b.WriteString(sep + "_pragma=" + p)
		sep = "&"
	}
	return b.String()
}

// NewDB opens the journal database at dbPath. The writer switches the file
// to WAL mode; the reader is query-only.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	writer, err := sql.Open("sqlite", buildDSN("file:"+dbPath, false, "journal_mode(WAL)"))
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", buildDSN("file:"+dbPath, true))
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(2)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{
		Writer: writer,
		Reader: reader,
		path:   dbPath,
	}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
