// Package pagecache provides a thin façade over a pluggable eviction.Policy.
// It isolates BlockStore from policy identity: swapping LRU for LFU, or
// adding a future policy (ARC, 2Q, TinyLFU), only requires extending the
// selector here and implementing eviction.Policy.
package pagecache

import (
	"fmt"

	"github.com/StewAway/Distributed-File-System/pkg/block"
	"github.com/StewAway/Distributed-File-System/pkg/eviction"
)

// Policy names accepted by New.
const (
	LRU = "lru"
	LFU = "lfu"
)

// Cache forwards every operation to the underlying eviction policy.
type Cache struct {
	policy eviction.Policy
}

// New constructs a Cache backed by the named policy ("lru" or "lfu", case
// sensitive) with room for capacity pages.
func New(policyName string, capacity int) (*Cache, error) {
	var p eviction.Policy
	switch policyName {
	case LRU:
		p = eviction.NewLRU(capacity)
	case LFU:
		p = eviction.NewLFU(capacity)
	default:
		return nil, fmt.Errorf("pagecache: unknown policy %q", policyName)
	}
	return &Cache{policy: p}, nil
}

// SetEvictionCallback installs the callback invoked on dirty eviction or
// flush. BlockStore calls this once, at construction, with a callback that
// durably writes the page back to disk.
func (c *Cache) SetEvictionCallback(cb eviction.Callback) {
	c.policy.SetEvictionCallback(cb)
}

func (c *Cache) Get(id block.ID) ([]byte, bool)           { return c.policy.Get(id) }
func (c *Cache) Put(id block.ID, data []byte, dirty bool) { c.policy.Put(id, data, dirty) }
func (c *Cache) Remove(id block.ID) bool                  { return c.policy.Remove(id) }
func (c *Cache) Contains(id block.ID) bool                { return c.policy.Contains(id) }
func (c *Cache) Clear()                                   { c.policy.Clear() }
func (c *Cache) FlushAll()                                { c.policy.FlushAll() }
func (c *Cache) FlushDirty() int                          { return c.policy.FlushDirty() }
func (c *Cache) Stats() eviction.Stats                    { return c.policy.Stats() }
func (c *Cache) ResetStats()                              { c.policy.ResetStats() }
func (c *Cache) DirtyPageCount() int                      { return c.policy.DirtyPageCount() }
func (c *Cache) Size() int                                { return c.policy.Size() }
func (c *Cache) Capacity() int                            { return c.policy.Capacity() }
func (c *Cache) PolicyName() string                       { return c.policy.Name() }
