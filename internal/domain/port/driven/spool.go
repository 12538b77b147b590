package driven

import (
	"context"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
)

// Spool defines the driven port for the directory of pending change files.
type Spool interface {
	// List returns the paths of all pending change files in enumeration order.
	List(ctx context.Context) ([]string, error)

	// Load reads and parses one change file into a pending record.
	Load(ctx context.Context, path string) (*model.UpdateRecord, error)

	// Remove deletes a change file.
	Remove(ctx context.Context, path string) error
}
