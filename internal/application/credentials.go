package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// ErrAdminCredentials is returned when the configured admin credentials cannot
// be decrypted by the helper.
var ErrAdminCredentials = errors.New("admin credentials could not be decrypted")

// DecryptAdminCredentials turns the encrypted admin username and password
// from the configuration into plaintext. It runs once per process, before any
// record is touched.
func DecryptAdminCredentials(ctx context.Context, c driven.Cryptor, encUsername, encPassword string) (username, password string, err error) {
	username = c.Decrypt(ctx, encUsername)
	if username == "" {
		return "", "", fmt.Errorf("%w: username", ErrAdminCredentials)
	}

	password = c.Decrypt(ctx, encPassword)
	if password == "" {
		return "", "", fmt.Errorf("%w: password", ErrAdminCredentials)
	}

	return username, password, nil
}
