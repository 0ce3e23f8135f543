package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Token is an API credential for one remote source
type Token struct {
	Source       string    `json:"source"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore is the interface for storing and retrieving source tokens
type TokenStore interface {
	// Name identifies the backend in status output
	Name() string

	// Store saves the token for token.Source
	Store(token *Token) error

	// Retrieve gets the token for a source
	Retrieve(source string) (*Token, error)

	// Delete removes the token for a source
	Delete(source string) error

	// Exists checks if a token is stored for a source
	Exists(source string) bool
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []TokenStore
}

// NewManager creates a manager trying the system keychain, then an
// encrypted file under the config directory, then the environment
func NewManager() (*Manager, error) {
	var stores []TokenStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	passphrase, err := loadPassphrase(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "tokens.enc"), passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over an explicit store chain
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves a token in the first store that accepts it and
// returns that store's name
func (m *Manager) Store(source, value string) (string, error) {
	source = strings.TrimSpace(source)
	value = strings.TrimSpace(value)
	if source == "" {
		return "", errors.New("source is required")
	}
	if value == "" {
		return "", ErrInvalidToken
	}

	token := &Token{Source: source, Value: value, LastModified: time.Now()}

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(token)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store token: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Retrieve returns the token from the first store that has one, along
// with the name of that store
func (m *Manager) Retrieve(source string) (*Token, string, error) {
	for _, store := range m.stores {
		if token, err := store.Retrieve(source); err == nil && token != nil && token.Value != "" {
			return token, store.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("%w for source %s", ErrTokenNotFound, source)
}

// Token returns the bare token value for a source
func (m *Manager) Token(source string) (string, error) {
	token, _, err := m.Retrieve(source)
	if err != nil {
		return "", err
	}
	return token.Value, nil
}

// Delete removes the token from every store that holds it
func (m *Manager) Delete(source string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if !store.Exists(source) {
			continue
		}
		if err := store.Delete(source); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for source %s", ErrTokenNotFound, source)
	}
	return nil
}

// getConfigDir returns the per-user configuration directory
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "harvester")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "harvester")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "harvester")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "harvester")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Mask hides all but the first and last 4 characters of a token
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
