// Package store keeps a local mirror of registry accounts in SQLite.
//
// # Architecture
//
// AccountStore is the storage interface. SQLiteStore implements it on top of
// modernc.org/sqlite (pure Go, no cgo); MockStore is an in-memory version
// for tests.
//
// Both implementations expose Exists with the mention.Registry signature, so
// a store can stand in for the network registry when rendering offline or in
// development.
//
// # Names
//
// Account names are normalized before storage and lookup: surrounding
// whitespace and a leading @ are dropped and the name is lowercased.
//
// # Errors
//
//   - ErrNotFound: the account is not mirrored
//   - ErrDuplicateAccount: the account is already mirrored
//   - ErrInvalidName: the name is empty after normalization
package store
