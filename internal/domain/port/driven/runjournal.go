package driven

import (
	"context"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
)

// RunJournal defines the driven port for run history persistence. The journal
// is write-mostly history; it is never consulted to retry records.
type RunJournal interface {
	RecordRun(ctx context.Context, summary model.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)
}

// RunRecorder exports a finished run to a monitoring system.
type RunRecorder interface {
	Record(summary model.RunSummary) error
}
