//go:build !windows

package auditlog

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const lineEnding = "\n"

// hardenFile restricts the log to its owner, the closest equivalent of the
// SYSTEM/Administrators-only DACL used on Windows.
func hardenFile(path string) error {
	if err := unix.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
