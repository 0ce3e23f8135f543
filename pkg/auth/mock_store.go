package auth

import (
	"sync"
)

// MockStore implements TokenStore in memory for tests
type MockStore struct {
	tokens map[string]Token
	mu     sync.RWMutex
	name   string

	// Error injection for testing
	StoreError    error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]Token), name: "mock"}
}

// NewNamedMockStore creates an empty store reporting name
func NewNamedMockStore(name string) *MockStore {
	s := NewMockStore()
	s.name = name
	return s
}

func (m *MockStore) Name() string { return m.name }

func (m *MockStore) Store(token *Token) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if token == nil || token.Source == "" || token.Value == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Source] = *token
	return nil
}

func (m *MockStore) Retrieve(source string) (*Token, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[source]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &token, nil
}

func (m *MockStore) Delete(source string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[source]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, source)
	return nil
}

func (m *MockStore) Exists(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tokens[source]
	return ok
}

// Count returns the number of stored tokens
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

// NewMockManager creates a Manager over a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
