package credential

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// EncryptionKeyEnv names the environment variable holding the passphrase
const EncryptionKeyEnv = "BOARDADMIN_ENCRYPTION_KEY"

const encryptedPrefix = "ENC:"

// sensitive key patterns; values of matching keys are stored encrypted
var sensitivePatterns = []string{
	"TOKEN", "COOKIE", "SECRET", "PASSWORD", "CREDENTIAL",
}

// EncryptionKeyFromEnv derives a 256-bit key from BOARDADMIN_ENCRYPTION_KEY
func EncryptionKeyFromEnv() []byte {
	passphrase := os.Getenv(EncryptionKeyEnv)
	if passphrase == "" {
		// Fallback for development/testing only
		log.Printf("[STORE] WARNING: using default encryption key, set %s for real deployments", EncryptionKeyEnv)
		passphrase = "boardadmin-credential-encryption-key"
	}
	return DeriveKey(passphrase)
}

// DeriveKey hashes a passphrase into an AES-256 key
func DeriveKey(passphrase string) []byte {
	hash := sha256.Sum256([]byte(passphrase))
	return hash[:]
}

// EncryptedStore wraps a Store, sealing values of sensitive keys with AES-GCM
type EncryptedStore struct {
	inner Store
	aead  cipher.AEAD
}

// NewEncryptedStore wraps inner using key (16, 24 or 32 bytes)
func NewEncryptedStore(inner Store, key []byte) (*EncryptedStore, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &EncryptedStore{inner: inner, aead: aead}, nil
}

// Get retrieves and decrypts a value
func (e *EncryptedStore) Get(ctx context.Context, key string) (string, error) {
	value, err := e.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	plain, err := e.decrypt(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

// Set encrypts sensitive values before storing them
func (e *EncryptedStore) Set(ctx context.Context, key, value string) error {
	if !isSensitive(key) {
		return e.inner.Set(ctx, key, value)
	}
	sealed, err := e.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return e.inner.Set(ctx, key, encryptedPrefix+sealed)
}

// Delete removes values from the wrapped store
func (e *EncryptedStore) Delete(ctx context.Context, keys ...string) error {
	return e.inner.Delete(ctx, keys...)
}

// Close closes the wrapped store
func (e *EncryptedStore) Close() error {
	return e.inner.Close()
}

func (e *EncryptedStore) encrypt(text string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(text), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *EncryptedStore) decrypt(cryptoText string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(cryptoText)
	if err != nil {
		return "", err
	}
	if len(data) < e.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:e.aead.NonceSize()], data[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func isSensitive(key string) bool {
	upper := strings.ToUpper(key)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
