package model

import (
	"errors"
	"time"
)

// RecordStatus tracks an UpdateRecord through a single run.
type RecordStatus string

const (
	RecordStatusPending RecordStatus = "pending"
	RecordStatusStale   RecordStatus = "stale"
	RecordStatusApplied RecordStatus = "applied"
	RecordStatusFailed  RecordStatus = "failed"

	// RecordStatusMalformed is only used on run outcomes for spool files that
	// never produced a record.
	RecordStatusMalformed RecordStatus = "malformed"
)

// ErrBlankCredentials is returned by NewUpdateRecord when the username or the
// encrypted password is empty.
var ErrBlankCredentials = errors.New("update record has blank credentials")

// UpdateRecord is one password change captured by the password filter and
// spooled to disk. Records live for a single run only.
type UpdateRecord struct {
	SourcePath        string // Spool file backing this record.
	Username          string
	EncryptedPassword string    // Helper ciphertext, never decrypted outside the apply step.
	Timestamp         time.Time // Filter-local wall clock; no timezone semantics.
	Status            RecordStatus
}

// NewUpdateRecord builds a pending record. The caller is responsible for
// verifying that sourcePath exists.
func NewUpdateRecord(sourcePath, username, encryptedPassword string, ts time.Time) (*UpdateRecord, error) {
	if username == "" || encryptedPassword == "" {
		return nil, ErrBlankCredentials
	}
	return &UpdateRecord{
		SourcePath:        sourcePath,
		Username:          username,
		EncryptedPassword: encryptedPassword,
		Timestamp:         ts,
		Status:            RecordStatusPending,
	}, nil
}

// IsPending reports whether the record is still eligible to be applied.
func (r *UpdateRecord) IsPending() bool {
	return r.Status == RecordStatusPending
}
