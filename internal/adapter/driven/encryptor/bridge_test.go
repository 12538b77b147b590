package encryptor

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runCall struct {
	Name string
	Args []string
}

type mockRunner struct {
	calls []runCall
	run   func(ctx context.Context, args []string) ([]byte, error)
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, runCall{Name: name, Args: args})
	return m.run(ctx, args)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// hexHelper mimics a correctly responding helper: "encryption" is upper-case
// hex, and output uses CRLF line endings with no trailing newline.
func hexHelper(_ context.Context, args []string) ([]byte, error) {
	switch args[0] {
	case "e":
		return []byte("START ENCRYPTION\r\n" + strings.ToUpper(hex.EncodeToString([]byte(args[1]))) + "\r\nEND ENCRYPTION"), nil
	case "d":
		raw, err := hex.DecodeString(args[1])
		if err != nil {
			return []byte("Error parsing password. Error code: 1\n"), nil
		}
		return []byte("START DECRYPTION\n" + string(raw) + "\nEND DECRYPTION"), nil
	}
	return []byte("Usage is [e|d] <message>\n"), nil
}

func TestBridge_PassesModeAndPayload(t *testing.T) {
	runner := &mockRunner{run: hexHelper}
	b := NewBridge(`C:\helper.exe`, WithRunner(runner), WithLogger(quietLogger()))

	got := b.Encrypt(context.Background(), "s3cret")

	assert.Equal(t, "733363726574", got)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, `C:\helper.exe`, runner.calls[0].Name)
	assert.Equal(t, []string{"e", "s3cret"}, runner.calls[0].Args)
}

func TestBridge_RoundTrip(t *testing.T) {
	b := NewBridge("helper", WithRunner(&mockRunner{run: hexHelper}), WithLogger(quietLogger()))
	ctx := context.Background()

	for _, plaintext := range []string{"a", "Passw0rd!", "with space", "ünïcödé"} {
		ciphertext := b.Encrypt(ctx, plaintext)
		require.NotEmpty(t, ciphertext)
		assert.Equal(t, plaintext, b.Decrypt(ctx, ciphertext))
	}
}

func TestBridge_ConcatenatesLinesBetweenMarkers(t *testing.T) {
	runner := &mockRunner{run: func(_ context.Context, _ []string) ([]byte, error) {
		return []byte("banner\nSTART DECRYPTION\r\npart1\r\npart2\r\nEND DECRYPTION\r\ntrailer\n"), nil
	}}
	b := NewBridge("helper", WithRunner(runner), WithLogger(quietLogger()))

	assert.Equal(t, "part1part2", b.Decrypt(context.Background(), "AB"))
}

func TestBridge_WrongDirectionMarkers(t *testing.T) {
	runner := &mockRunner{run: func(_ context.Context, _ []string) ([]byte, error) {
		return []byte("START ENCRYPTION\nvalue\nEND ENCRYPTION"), nil
	}}
	b := NewBridge("helper", WithRunner(runner), WithLogger(quietLogger()))

	assert.Empty(t, b.Decrypt(context.Background(), "AB"))
}

func TestBridge_MissingEndMarker(t *testing.T) {
	runner := &mockRunner{run: func(_ context.Context, _ []string) ([]byte, error) {
		return []byte("START DECRYPTION\nvalue\n"), nil
	}}
	b := NewBridge("helper", WithRunner(runner), WithLogger(quietLogger()))

	assert.Empty(t, b.Decrypt(context.Background(), "AB"))
}

func TestBridge_NoMarkers(t *testing.T) {
	runner := &mockRunner{run: func(_ context.Context, _ []string) ([]byte, error) {
		return []byte("Error parsing password. Error code: 22\n"), nil
	}}
	b := NewBridge("helper", WithRunner(runner), WithLogger(quietLogger()))

	assert.Empty(t, b.Encrypt(context.Background(), "x"))
}

func TestBridge_SpawnFailure(t *testing.T) {
	runner := &mockRunner{run: func(_ context.Context, _ []string) ([]byte, error) {
		return nil, errors.New("executable file not found")
	}}
	b := NewBridge("helper", WithRunner(runner), WithLogger(quietLogger()))

	assert.Empty(t, b.Decrypt(context.Background(), "AB"))
}

func TestBridge_Timeout(t *testing.T) {
	runner := &mockRunner{run: func(ctx context.Context, _ []string) ([]byte, error) {
		<-ctx.Done()
		return []byte("START DECRYPTION\nlate\nEND DECRYPTION"), ctx.Err()
	}}
	b := NewBridge("helper", WithRunner(runner), WithTimeout(20*time.Millisecond), WithLogger(quietLogger()))

	start := time.Now()
	assert.Empty(t, b.Decrypt(context.Background(), "AB"))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExtractBetween(t *testing.T) {
	got, ok := extractBetween("START X\nEND X", "START X", "END X")
	assert.True(t, ok)
	assert.Equal(t, "", got)

	_, ok = extractBetween("", "START X", "END X")
	assert.False(t, ok)
}
