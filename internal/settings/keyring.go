package settings

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName = "mail-autosort"
	apiKeyItem  = "gemini-api-key"
)

// SecretSource stores the classification API key outside the database
type SecretSource interface {
	APIKey() (string, error)
	SetAPIKey(key string) error
}

// KeyringSource keeps the API key in the system keyring
type KeyringSource struct {
	ring keyring.Keyring
}

// NewKeyringSource wraps an open keyring
func NewKeyringSource(ring keyring.Keyring) *KeyringSource {
	return &KeyringSource{ring: ring}
}

// OpenKeyring opens the system keyring, falling back to an encrypted file in dir
func OpenKeyring(dir string) (*KeyringSource, error) {
	if dir == "" {
		dir = "~/.config/mail-autosort/credentials"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringSource(ring), nil
}

// APIKey returns the stored key, or "" when none is stored
func (k *KeyringSource) APIKey() (string, error) {
	item, err := k.ring.Get(apiKeyItem)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", apiKeyItem, err)
	}
	return string(item.Data), nil
}

// SetAPIKey stores key
func (k *KeyringSource) SetAPIKey(key string) error {
	err := k.ring.Set(keyring.Item{
		Key:   apiKeyItem,
		Data:  []byte(key),
		Label: "Mail AutoSort Gemini API key",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", apiKeyItem, err)
	}
	return nil
}
