package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// ErrDecryptFailed marks a record whose encrypted password the helper could
// not decrypt.
var ErrDecryptFailed = errors.New("could not decrypt the new password")

// SyncService runs one batch pass over the spool: scan, parse, reconcile,
// apply and clean up.
type SyncService struct {
	spool    driven.Spool
	cryptor  driven.Cryptor
	store    driven.IdentityStore
	audit    driven.AuditLog
	journal  driven.RunJournal
	recorder driven.RunRecorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithJournal stores every finished run in j.
func WithJournal(j driven.RunJournal) SyncOption {
	return func(s *SyncService) { s.journal = j }
}

// WithRecorder exports every finished run through r.
func WithRecorder(r driven.RunRecorder) SyncOption {
	return func(s *SyncService) { s.recorder = r }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) SyncOption {
	return func(s *SyncService) { s.logger = l }
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

// NewSyncService creates a SyncService with all required dependencies.
func NewSyncService(
	spool driven.Spool,
	cryptor driven.Cryptor,
	store driven.IdentityStore,
	audit driven.AuditLog,
	opts ...SyncOption,
) *SyncService {
	s := &SyncService{
		spool:   spool,
		cryptor: cryptor,
		store:   store,
		audit:   audit,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   newRunID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one pass. Per-record failures are audited and counted in the
// summary; they never stop the pass. The returned error is non-nil only when
// the spool could not be listed, in which case nothing was touched.
func (s *SyncService) Run(ctx context.Context) (model.RunSummary, error) {
	summary := model.RunSummary{
		ID:        s.newID(),
		StartedAt: s.now(),
	}

	paths, err := s.spool.List(ctx)
	if err != nil {
		s.logger.Error("spool scan failed", "error", err)
		s.audit.Append(err.Error())
		summary.Aborted = err.Error()
		summary.FinishedAt = s.now()
		s.finish(ctx, summary)
		return summary, fmt.Errorf("scan spool: %w", err)
	}
	summary.Discovered = len(paths)

	records := make([]*model.UpdateRecord, 0, len(paths))
	for _, path := range paths {
		rec, err := s.spool.Load(ctx, path)
		if err != nil {
			s.logger.Warn("discarding unreadable change file", "file", filepath.Base(path), "error", err)
			s.deleteRecordFile(ctx, path, err)
			summary.Malformed++
			summary.Outcomes = append(summary.Outcomes, model.RecordOutcome{
				FileName: filepath.Base(path),
				Status:   model.RecordStatusMalformed,
				Detail:   err.Error(),
			})
			continue
		}
		records = append(records, rec)
	}

	pending := Reconcile(records)
	s.logger.Debug("reconciled change files",
		"records", len(records),
		"pending", len(pending),
	)

	details := make(map[*model.UpdateRecord]string, len(pending))
	for _, rec := range pending {
		detail, err := s.apply(ctx, rec)
		if err != nil {
			rec.Status = model.RecordStatusFailed
			details[rec] = err.Error()
			s.logger.Error("password update failed", "user", rec.Username, "error", err)
			s.audit.Append(fmt.Sprintf("Error processing file: %s. %v", rec.SourcePath, err))
			continue
		}
		rec.Status = model.RecordStatusApplied
		details[rec] = detail
		s.logger.Info("password updated", "user", rec.Username, "status", detail)
	}

	for _, rec := range records {
		s.deleteRecordFile(ctx, rec.SourcePath, nil)

		switch rec.Status {
		case model.RecordStatusStale:
			summary.Stale++
		case model.RecordStatusApplied:
			summary.Applied++
		case model.RecordStatusFailed:
			summary.Failed++
		}
		summary.Outcomes = append(summary.Outcomes, model.RecordOutcome{
			FileName:        filepath.Base(rec.SourcePath),
			Username:        rec.Username,
			Status:          rec.Status,
			Detail:          details[rec],
			RecordTimestamp: rec.Timestamp,
		})
	}

	summary.FinishedAt = s.now()
	s.logger.Info("run finished",
		"run_id", summary.ID,
		"discovered", summary.Discovered,
		"malformed", summary.Malformed,
		"stale", summary.Stale,
		"applied", summary.Applied,
		"failed", summary.Failed,
		"duration", summary.Duration(),
	)
	s.finish(ctx, summary)

	return summary, nil
}

// apply pushes one pending record to the identity store and returns the
// store's status. Each failure kind yields its own error text.
func (s *SyncService) apply(ctx context.Context, rec *model.UpdateRecord) (string, error) {
	plaintext := s.cryptor.Decrypt(ctx, rec.EncryptedPassword)
	if plaintext == "" {
		return "", fmt.Errorf("%w for user %q", ErrDecryptFailed, rec.Username)
	}

	identity, err := s.store.SearchUserByName(ctx, rec.Username)
	if err != nil {
		if errors.Is(err, driven.ErrUserNotFound) {
			return "", fmt.Errorf("no user with username %q: %w", rec.Username, err)
		}
		return "", fmt.Errorf("search user %q: %w", rec.Username, err)
	}

	status, err := s.store.ChangeUserPassword(ctx, *identity, plaintext)
	if err != nil {
		return "", fmt.Errorf("change password of %q (%s): %w", rec.Username, identity.OID, err)
	}

	return status, nil
}

// deleteRecordFile removes a change file. When cause is set the file is
// being discarded because of it, and both the cause and the deletion are
// audited. A failed delete is audited and otherwise ignored.
func (s *SyncService) deleteRecordFile(ctx context.Context, path string, cause error) {
	if cause != nil {
		s.audit.Append(fmt.Sprintf("Error processing file: %s. %v", path, cause))
	}

	if err := s.spool.Remove(ctx, path); err != nil {
		s.logger.Error("change file not deleted", "file", filepath.Base(path), "error", err)
		s.audit.Append(fmt.Sprintf("Error deleting file: %s. %v", path, err))
		return
	}

	if cause != nil {
		s.audit.Append(fmt.Sprintf("Deleted the file: %s", path))
	}
}

// finish hands the summary to the optional journal and recorder. Their
// failures are logged and never change the run's result.
func (s *SyncService) finish(ctx context.Context, summary model.RunSummary) {
	if s.journal != nil {
		if err := s.journal.RecordRun(ctx, summary); err != nil {
			s.logger.Warn("run not journaled", "run_id", summary.ID, "error", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Record(summary); err != nil {
			s.logger.Warn("run metrics not written", "run_id", summary.ID, "error", err)
		}
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
