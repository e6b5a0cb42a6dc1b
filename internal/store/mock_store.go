// ABOUTME: Mock AccountStore implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory AccountStore implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by normalized name
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Account),
	}
}

// AddAccount stores a new account.
func (m *MockStore) AddAccount(ctx context.Context, account *Account) error {
	name := normalizeName(account.Name)
	if name == "" {
		return ErrInvalidName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[name]; ok {
		return ErrDuplicateAccount
	}

	// Make a copy to avoid external modification
	a := *account
	a.Name = name
	if a.Source == "" {
		a.Source = "manual"
	}
	if a.AddedAt.IsZero() {
		a.AddedAt = time.Now()
	}
	a.AddedAt = a.AddedAt.UTC().Truncate(time.Second)
	m.accounts[name] = &a
	return nil
}

// GetAccount retrieves an account by name.
func (m *MockStore) GetAccount(ctx context.Context, name string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[normalizeName(name)]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

// RemoveAccount deletes an account.
func (m *MockStore) RemoveAccount(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeName(name)
	if _, ok := m.accounts[key]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, key)
	return nil
}

// ListAccounts returns all accounts ordered by name.
func (m *MockStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		copied := *a
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Exists reports whether name is stored.
func (m *MockStore) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.accounts[normalizeName(name)]
	return ok, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements AccountStore
var _ AccountStore = (*MockStore)(nil)
