package model

import "time"

// RecordOutcome is the per-file result of a run, kept for the run journal.
// It never carries credential material.
type RecordOutcome struct {
	FileName        string
	Username        string // Empty when the file could not be parsed.
	Status          RecordStatus
	Detail          string    // Failure reason or remote status.
	RecordTimestamp time.Time // Zero when the file could not be parsed.
}

// RunSummary aggregates one batch pass over the spool directory.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	Malformed  int
	Stale      int
	Applied    int
	Failed     int
	Aborted    string // Non-empty when the run stopped before scanning.
	Outcomes   []RecordOutcome
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Succeeded reports whether the run scanned the spool and applied every
// pending record without failure.
func (s RunSummary) Succeeded() bool {
	return s.Aborted == "" && s.Failed == 0 && s.Malformed == 0
}
