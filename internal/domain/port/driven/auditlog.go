package driven

// AuditLog is the append-only operator log kept next to the spool. Append is
// best effort: write failures are swallowed by the adapter.
type AuditLog interface {
	Append(message string)
}
