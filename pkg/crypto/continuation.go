// Package crypto provides authenticated encryption for client-held continuation state.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// KeySize is the AES-256 key length. Secrets are zero-padded or truncated to it.
const KeySize = 32

var (
	// ErrInvalidKey is returned when the secret is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when decryption fails due to invalid ciphertext or wrong key.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// ContinuationCodec seals ContinuationState into opaque tokens with AES-256-GCM.
// A token only opens under the secret that produced it and only if unmodified.
type ContinuationCodec struct {
	gcm    cipher.AEAD
	logger *zap.Logger
}

// NewContinuationCodec derives the key from secret's UTF-8 bytes, padded with
// zeros or truncated to 32 bytes.
func NewContinuationCodec(secret string, logger *zap.Logger) (*ContinuationCodec, error) {
	if secret == "" {
		return nil, ErrInvalidKey
	}

	key := deriveKey(secret)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &ContinuationCodec{gcm: gcm, logger: logger.Named("continuation")}, nil
}

func deriveKey(secret string) []byte {
	key := make([]byte, KeySize)
	copy(key, secret)
	return key
}

// Encode serializes state to JSON and seals it.
func (c *ContinuationCodec) Encode(state *models.ContinuationState) (string, error) {
	if state == nil {
		return "", nil
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal continuation state: %w", err)
	}

	return c.seal(payload)
}

// Decode opens a token and returns the state it carries. Any failure
// (bad encoding, truncation, tampering, foreign key, malformed JSON) yields
// nil; callers treat that the same as no token.
func (c *ContinuationCodec) Decode(token string) *models.ContinuationState {
	if token == "" {
		return nil
	}

	payload, err := c.open(token)
	if err != nil {
		c.logger.Debug("Discarding continuation token", zap.Error(err))
		return nil
	}

	var state models.ContinuationState
	if err := json.Unmarshal(payload, &state); err != nil {
		c.logger.Debug("Discarding continuation token with malformed state", zap.Error(err))
		return nil
	}

	return &state
}

// seal returns base64(nonce || ciphertext || tag).
func (c *ContinuationCodec) seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *ContinuationCodec) open(token string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}

	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize+c.gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}

	return plaintext, nil
}
