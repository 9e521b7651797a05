package eviction

import (
	"container/list"
	"sync"

	"github.com/StewAway/Distributed-File-System/internal/logger"
	"github.com/StewAway/Distributed-File-System/pkg/block"
)

// LRU is a fixed-capacity, least-recently-used eviction policy. It keeps a
// doubly-linked list ordered by recency (front is most recent) and a map
// from block id to list element, giving O(1) Get/Put/Remove.
type LRU struct {
	mu sync.Mutex

	capacity int
	ll       *list.List
	items    map[block.ID]*list.Element

	dirtyCount int
	stats      Stats
	cb         Callback
}

// NewLRU creates an LRU policy holding at most capacity pages.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[block.ID]*list.Element, capacity),
	}
}

func (c *LRU) Name() string { return "LRU" }

func (c *LRU) SetEvictionCallback(cb Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

func (c *LRU) Get(id block.ID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.ll.MoveToFront(elem)
	c.stats.Hits++

	page := elem.Value.(*Page)
	out := make([]byte, len(page.Data))
	copy(out, page.Data)
	return out, true
}

func (c *LRU) Put(id block.ID, data []byte, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	if elem, ok := c.items[id]; ok {
		page := elem.Value.(*Page)
		if page.Dirty != dirty {
			if dirty {
				c.dirtyCount++
			} else {
				c.dirtyCount--
			}
		}
		page.Data = stored
		page.Dirty = dirty
		c.ll.MoveToFront(elem)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evictOneLocked()
	}

	page := &Page{BlockID: id, Data: stored, Dirty: dirty}
	elem := c.ll.PushFront(page)
	c.items[id] = elem
	if dirty {
		c.dirtyCount++
	}
}

// evictOneLocked removes the least-recently-used page. Caller holds c.mu.
func (c *LRU) evictOneLocked() {
	elem := c.ll.Back()
	if elem == nil {
		return
	}
	page := elem.Value.(*Page)
	c.ll.Remove(elem)
	delete(c.items, page.BlockID)
	c.stats.Evictions++

	if page.Dirty {
		c.dirtyCount--
		c.writeback(page)
	}
}

func (c *LRU) writeback(page *Page) {
	if c.cb == nil {
		logger.Error("lru: dirty page evicted with no eviction callback installed",
			logger.BlockID(page.BlockID))
		return
	}
	c.cb(page.BlockID, page.Data)
}

func (c *LRU) Remove(id block.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return false
	}
	page := elem.Value.(*Page)
	if page.Dirty {
		c.dirtyCount--
	}
	c.ll.Remove(elem)
	delete(c.items, id)
	return true
}

func (c *LRU) Contains(id block.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll = list.New()
	c.items = make(map[block.ID]*list.Element, c.capacity)
	c.dirtyCount = 0
}

func (c *LRU) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *LRU) FlushDirty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *LRU) flushLocked() int {
	n := 0
	for e := c.ll.Front(); e != nil; e = e.Next() {
		page := e.Value.(*Page)
		if !page.Dirty {
			continue
		}
		c.writeback(page)
		page.Dirty = false
		n++
	}
	c.dirtyCount = 0
	return n
}

func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *LRU) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
}

func (c *LRU) DirtyPageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyCount
}

func (c *LRU) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU) Capacity() int {
	return c.capacity
}
