package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"testing"

	"github.com/aretw0/hitch/pkg/adapters/memory"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/persistence/middleware"
	"github.com/aretw0/hitch/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secure := mw(underlying)
	ctx := context.Background()

	thread := domain.NewThread("essay")
	thread.Status = domain.StatusInterrupted
	thread.Input = json.RawMessage(`"my-secret-sauce"`)
	thread.Pending = &domain.Interrupt{Index: 1, Payload: json.RawMessage(`{"essay":"secret essay"}`)}
	require.NoError(t, secure.SaveThread(ctx, thread))
	require.NoError(t, secure.Append(ctx, "essay", domain.Checkpoint{Index: 0, Name: "write_essay", Value: json.RawMessage(`"secret essay"`)}))

	// The underlying store only sees envelopes.
	stored, err := underlying.LoadThread(ctx, "essay")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInterrupted, stored.Status, "status stays visible for monitoring")
	assert.Nil(t, stored.Pending)
	assert.NotContains(t, string(stored.Input), "my-secret-sauce")
	assert.Contains(t, string(stored.Input), "__encrypted__")

	storedCps, err := underlying.List(ctx, "essay")
	require.NoError(t, err)
	require.Len(t, storedCps, 1)
	assert.Equal(t, "write_essay", storedCps[0].Name)
	assert.NotContains(t, string(storedCps[0].Value), "secret essay")

	// Through the middleware everything is readable again.
	loaded, err := secure.LoadThread(ctx, "essay")
	require.NoError(t, err)
	assert.JSONEq(t, `"my-secret-sauce"`, string(loaded.Input))
	require.NotNil(t, loaded.Pending)
	assert.JSONEq(t, `{"essay":"secret essay"}`, string(loaded.Pending.Payload))

	cps, err := secure.List(ctx, "essay")
	require.NoError(t, err)
	assert.JSONEq(t, `"secret essay"`, string(cps[0].Value))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	old := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, old.Append(ctx, "t", domain.Checkpoint{Index: 0, Value: json.RawMessage(`"encrypted-with-old-key"`)}))

	rotated := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)
	cps, err := rotated.List(ctx, "t")
	require.NoError(t, err)
	assert.JSONEq(t, `"encrypted-with-old-key"`, string(cps[0].Value))

	// Without the old key the value cannot be read.
	strict := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: newKey})(underlying)
	_, err = strict.List(ctx, "t")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainRecords(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.SaveThread(context.Background(), domain.NewThread("plain")))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.LoadThread(context.Background(), "plain")
	assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	})
}
