package driven

import "context"

// Cryptor defines the driven port for the password encryption helper.
// Both methods return "" when the helper fails; callers must treat an empty
// result as a failure, never as an empty credential.
type Cryptor interface {
	Encrypt(ctx context.Context, plaintext string) string
	Decrypt(ctx context.Context, ciphertext string) string
}
