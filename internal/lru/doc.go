// Package lru provides a generic, mutex-guarded cache bounded both by entry
// count and by entry age.
//
// Capacity is enforced on insert: adding a new key to a full cache evicts the
// least recently used entry. Age is enforced on lookup: a Get on an entry
// older than the TTL removes it and reports a miss. There is no background
// sweeper, so an expired entry keeps its slot until it is looked up or evicted.
package lru
