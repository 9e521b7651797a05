// Package eviction implements the cache's eviction policies: LRU and LFU.
// Both are O(1) per operation and share the same Policy contract, so
// PageCache (and everything above it) is oblivious to which one backs a
// given cache instance.
package eviction

import "github.com/StewAway/Distributed-File-System/pkg/block"

// Page is the in-cache representation of a block: its id, full byte content,
// and whether the in-memory content differs from what is on disk.
type Page struct {
	BlockID block.ID
	Data    []byte
	Dirty   bool
}

// Callback is invoked exactly once per dirty page evicted or flushed, with
// the page's id and content. It is the only point where a policy reaches
// outside its own data structures; BlockStore registers a callback here
// that durably writes the page back to disk.
//
// A callback is assumed to either succeed or log and continue - its failure
// does not cancel the eviction. The page is removed from the cache either
// way; pinning pages to retry a failed writeback risks unbounded memory
// growth under sustained disk failures.
type Callback func(id block.ID, data []byte)

// Stats is a snapshot of a policy's hit/miss/eviction counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Policy is the common contract both LRU and LFU implement. All methods are
// safe for concurrent use; each takes the policy's single internal mutex for
// its duration.
type Policy interface {
	// Get returns a copy of the page's data if present, updating recency
	// ordering and the hit/miss counters. It never changes Dirty.
	Get(id block.ID) (data []byte, hit bool)

	// Put inserts or updates the page for id. If the cache is at capacity
	// and id is not already present, one page is evicted first.
	Put(id block.ID, data []byte, dirty bool)

	// Remove erases the page for id without invoking the eviction callback.
	// It reports whether a page was present.
	Remove(id block.ID) bool

	// Contains reports whether a page is currently resident for id.
	Contains(id block.ID) bool

	// Clear drops every page without invoking the eviction callback. It is
	// intended for use only after FlushAll has drained all dirty state.
	Clear()

	// FlushAll invokes the eviction callback for every currently dirty page,
	// then marks each such page clean. Pages remain resident.
	FlushAll()

	// FlushDirty behaves like FlushAll but returns the number of pages
	// flushed.
	FlushDirty() int

	// Stats returns the current hit/miss/eviction counters.
	Stats() Stats

	// ResetStats zeroes the hit/miss/eviction counters.
	ResetStats()

	// DirtyPageCount returns the number of currently dirty pages.
	DirtyPageCount() int

	// Size returns the current number of resident pages.
	Size() int

	// Capacity returns the maximum number of resident pages.
	Capacity() int

	// Name identifies the policy ("LRU" or "LFU") for logging and metrics.
	Name() string

	// SetEvictionCallback installs the callback invoked on dirty eviction
	// or flush. It may be called again to replace a previous callback.
	SetEvictionCallback(cb Callback)
}

var (
	_ Policy = (*LRU)(nil)
	_ Policy = (*LFU)(nil)
)
