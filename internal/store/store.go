// ABOUTME: Store interface and data types for the local account mirror
// ABOUTME: Defines Account and the AccountStore interface used as an offline identity registry

package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateAccount is returned when adding an account that is already mirrored
var ErrDuplicateAccount = errors.New("account already exists")

// ErrInvalidName is returned for an empty account name
var ErrInvalidName = errors.New("invalid account name")

// Account is a handle known to exist in the identity registry
type Account struct {
	Name    string
	Source  string // where the account was learned from, e.g. "manual" or "hive"
	AddedAt time.Time
}

// AccountStore persists the set of known accounts.
// Exists has the signature of mention.Registry so a store can back mention
// validation directly.
type AccountStore interface {
	AddAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, name string) (*Account, error)
	RemoveAccount(ctx context.Context, name string) error
	ListAccounts(ctx context.Context) ([]*Account, error)
	Exists(ctx context.Context, name string) (bool, error)
	Close() error
}

// normalizeName lowercases and trims a handle, dropping a leading @
func normalizeName(name string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "@")
}
