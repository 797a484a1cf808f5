package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/ports"
)

const envelopeKey = "__encrypted__"

// ErrMissingEnvelope is returned when a stored record was not written by the encryption middleware.
var ErrMissingEnvelope = errors.New("record is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.Store
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts checkpoint values
// and thread records using AES-GCM (Envelope Encryption).
// Step indexes, names and thread status stay readable for listing and conflict detection.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Store) ports.Store {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Append(ctx context.Context, threadID string, cp domain.Checkpoint) error {
	sealed, err := m.seal(cp.Value)
	if err != nil {
		return fmt.Errorf("failed to encrypt checkpoint: %w", err)
	}
	cp.Value = sealed
	return m.next.Append(ctx, threadID, cp)
}

func (m *encryptionMiddleware) List(ctx context.Context, threadID string) ([]domain.Checkpoint, error) {
	cps, err := m.next.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	for i := range cps {
		plain, err := m.open(cps[i].Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt checkpoint %d: %w", cps[i].Index, err)
		}
		cps[i].Value = plain
	}
	return cps, nil
}

func (m *encryptionMiddleware) SaveThread(ctx context.Context, thread *domain.Thread) error {
	plainText, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	sealed, err := m.seal(plainText)
	if err != nil {
		return fmt.Errorf("failed to encrypt thread: %w", err)
	}

	// The envelope keeps only what listing and monitoring need.
	envelope := &domain.Thread{
		ID:        thread.ID,
		Status:    thread.Status,
		Run:       thread.Run,
		Input:     sealed,
		CreatedAt: thread.CreatedAt,
		UpdatedAt: thread.UpdatedAt,
	}
	return m.next.SaveThread(ctx, envelope)
}

func (m *encryptionMiddleware) LoadThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	envelope, err := m.next.LoadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	plainText, err := m.open(envelope.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt thread: %w", err)
	}

	var thread domain.Thread
	if err := json.Unmarshal(plainText, &thread); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted thread: %w", err)
	}
	return &thread, nil
}

func (m *encryptionMiddleware) DeleteThread(ctx context.Context, threadID string) error {
	return m.next.DeleteThread(ctx, threadID)
}

func (m *encryptionMiddleware) ListThreads(ctx context.Context) ([]string, error) {
	return m.next.ListThreads(ctx)
}

// seal encrypts raw and wraps the ciphertext in a JSON envelope.
func (m *encryptionMiddleware) seal(raw json.RawMessage) (json.RawMessage, error) {
	ciphertext, err := encrypt(raw, m.config.ActiveKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		envelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
	})
}

func (m *encryptionMiddleware) open(raw json.RawMessage) (json.RawMessage, error) {
	var envelope map[string]string
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, ErrMissingEnvelope
	}
	encoded, ok := envelope[envelopeKey]
	if !ok {
		return nil, ErrMissingEnvelope
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, err
	}
	if len(plain) == 0 {
		return nil, nil
	}
	return plain, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
