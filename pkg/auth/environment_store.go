package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore reads tokens from <SOURCE>_TOKEN variables, e.g. BGG_TOKEN.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// EnvVar returns the variable consulted for source
func EnvVar(source string) string {
	return strings.ToUpper(source) + "_TOKEN"
}

func (e *EnvironmentStore) Name() string { return "environment" }

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Token) error {
	return ErrStoreUnavailable
}

// Retrieve gets the token from the environment
func (e *EnvironmentStore) Retrieve(source string) (*Token, error) {
	if source == "" {
		return nil, ErrInvalidToken
	}
	value := strings.TrimSpace(os.Getenv(EnvVar(source)))
	if value == "" {
		return nil, ErrTokenNotFound
	}
	return &Token{Source: source, Value: value, LastModified: time.Now()}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if the variable is set
func (e *EnvironmentStore) Exists(source string) bool {
	return source != "" && strings.TrimSpace(os.Getenv(EnvVar(source))) != ""
}
