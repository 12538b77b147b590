package model

// Identity is the identity store's view of a user as returned by a search.
type Identity struct {
	OID  string
	Name string
}

// PasswordChange describes the single replace delta sent to the identity
// store: set the attribute at Path on object OID to the cleartext Value.
type PasswordChange struct {
	OID   string
	Path  string
	Value string
}
