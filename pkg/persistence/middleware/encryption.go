package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/ports"
)

// ErrKeySize is returned for keys that are not 32 bytes long.
var ErrKeySize = errors.New("encryption key must be 32 bytes (AES-256)")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

func (c EncryptionConfig) validate() error {
	if len(c.ActiveKey) != 32 {
		return fmt.Errorf("active key: %w", ErrKeySize)
	}
	for i, k := range c.FallbackKeys {
		if len(k) != 32 {
			return fmt.Errorf("fallback key %d: %w", i, ErrKeySize)
		}
	}
	return nil
}

type encryptedStore[M any] struct {
	next   ports.SnapshotStore[[]byte]
	config EncryptionConfig
}

// NewEncryptedStore seals every snapshot with AES-GCM before handing it to next.
// The envelope stored in next keeps the ID, layer count and timestamps readable for
// monitoring; the model and outcomes only exist in the ciphertext.
func NewEncryptedStore[M any](next ports.SnapshotStore[[]byte], config EncryptionConfig) (ports.SnapshotStore[M], error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &encryptedStore[M]{next: next, config: config}, nil
}

func (s *encryptedStore[M]) Save(ctx context.Context, sessionID string, snapshot *domain.Snapshot[M]) error {
	plainText, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ciphertext, err := encrypt(plainText, s.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	envelope := &domain.Snapshot[[]byte]{
		ID:        snapshot.ID,
		Model:     ciphertext,
		Layers:    snapshot.Layers,
		CreatedAt: snapshot.CreatedAt,
		UpdatedAt: snapshot.UpdatedAt,
	}
	return s.next.Save(ctx, sessionID, envelope)
}

func (s *encryptedStore[M]) Load(ctx context.Context, sessionID string) (*domain.Snapshot[M], error) {
	envelope, err := s.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(envelope.Model) == 0 {
		return nil, errors.New("snapshot is missing encrypted data envelope")
	}

	plainText, err := decryptWithRotation(envelope.Model, s.config.ActiveKey, s.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}

	var snapshot domain.Snapshot[M]
	if err := json.Unmarshal(plainText, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *encryptedStore[M]) Delete(ctx context.Context, sessionID string) error {
	return s.next.Delete(ctx, sessionID)
}

func (s *encryptedStore[M]) List(ctx context.Context) ([]string, error) {
	return s.next.List(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
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
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
