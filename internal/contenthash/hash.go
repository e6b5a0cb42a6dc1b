// ABOUTME: Deterministic short cache keys for arbitrary-length document text.
// ABOUTME: FNV-1a 64-bit, hex encoded; not suitable for any security decision.

// Package contenthash derives fixed-width cache keys from document text so
// caches never hold full source documents as keys.
//
// The hash is FNV-1a and is NOT cryptographic. Two different inputs may
// collide; for cache addressing that trades a rare wrong hit for keys of
// bounded size.
package contenthash

import (
	"encoding/hex"
	"hash/fnv"
)

// Size is the length of every value returned by Sum.
const Size = 16

// Sum returns the 16-character hex FNV-1a 64 digest of text.
func Sum(text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
