// Package registry answers whether a handle names an existing account.
//
// Hive queries a Hive API node over JSON-RPC. Static holds a fixed set of
// handles, and Chain consults several registries in order, which lets a
// local store.SQLiteStore mirror answer before the network is asked.
//
// Every implementation satisfies mention.Registry. Failures from Hive wrap
// ErrRegistry; context cancellation is returned as the context's own error.
package registry
