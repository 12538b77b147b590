package spool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// RecordExt is the extension of change files. The audit log shares the
// directory and must never carry it.
const RecordExt = ".txt"

// Compile-time interface satisfaction check.
var _ driven.Spool = (*Dir)(nil)

// Dir is the filesystem implementation of the Spool port.
type Dir struct {
	path string
}

// NewDir creates a Dir rooted at path.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the spool directory.
func (d *Dir) Path() string {
	return d.path
}

// List returns the change files directly inside the spool directory, sorted
// by name. Subdirectories are not searched.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("list spool %s: %w", d.path, err)
	}

	var files []string
	for _, e := range entries {
		if !d.isFileEntry(e) {
			continue
		}
		// Extension match is case-insensitive as on the Windows filesystem.
		if !strings.EqualFold(filepath.Ext(e.Name()), RecordExt) {
			continue
		}
		files = append(files, filepath.Join(d.path, e.Name()))
	}

	return files, nil
}

// Load reads and parses one change file. The file must exist and be a
// regular file.
func (d *Dir) Load(_ context.Context, path string) (*model.UpdateRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat change file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("change file %s is not a regular file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read change file: %w", err)
	}

	return ParseRecord(path, data)
}

// Remove deletes a change file. A file that is already gone is not an error.
func (d *Dir) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete change file: %w", err)
	}
	return nil
}

// isFileEntry accepts regular files and symlinks that do not resolve to
// something else. A dangling link is accepted so the run discards it.
// Removing a link deletes the link only.
func (d *Dir) isFileEntry(e fs.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(d.path, e.Name()))
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return info.Mode().IsRegular()
}
