// Package cache provides named, persistent HTTP response caches.
//
// A Storage holds any number of named caches, each mapping a request key
// (see Keyer) to a stored Entry. Entries never expire; callers replace them
// by deleting whole caches. MemoryStorage keeps everything in process,
// BoltStorage persists to a bbolt file with one bucket per cache.
package cache
