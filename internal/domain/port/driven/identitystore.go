package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
)

// ErrUserNotFound is returned by SearchUserByName when no identity matches.
var ErrUserNotFound = errors.New("user not found")

// AmbiguousUserError is returned by SearchUserByName when the store holds
// more than one identity with the requested name.
type AmbiguousUserError struct {
	Name    string
	Matches int
}

func (e *AmbiguousUserError) Error() string {
	return fmt.Sprintf("expected to find a single user with username %q but found %d users instead", e.Name, e.Matches)
}

// IdentityStore defines the driven port for the remote identity management
// store.
type IdentityStore interface {
	// SearchUserByName returns the single user whose name equals name.
	// Returns ErrUserNotFound or *AmbiguousUserError on zero or many matches.
	SearchUserByName(ctx context.Context, name string) (*model.Identity, error)

	// ChangeUserPassword replaces the password of identity with plaintext and
	// returns the store's status for the operation.
	ChangeUserPassword(ctx context.Context, identity model.Identity, plaintext string) (string, error)
}
