package eviction

import (
	"container/list"
	"sync"

	"github.com/StewAway/Distributed-File-System/internal/logger"
	"github.com/StewAway/Distributed-File-System/pkg/block"
)

// lfuEntry is the value stored in a frequency bucket's list element.
type lfuEntry struct {
	page *Page
	freq int
}

// LFU is a fixed-capacity, least-frequently-used eviction policy with an
// LRU tie-break within a frequency. Pages are kept in per-frequency
// doubly-linked lists (most-recently-touched at the front of its bucket);
// minFreq tracks the lowest frequency currently populated so eviction is
// O(1). minFreq is only ever reset to 1 on insert - see evictOneLocked.
type LFU struct {
	mu sync.Mutex

	capacity int
	buckets  map[int]*list.List
	items    map[block.ID]*list.Element
	minFreq  int

	dirtyCount int
	stats      Stats
	cb         Callback
}

// NewLFU creates an LFU policy holding at most capacity pages.
func NewLFU(capacity int) *LFU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LFU{
		capacity: capacity,
		buckets:  make(map[int]*list.List),
		items:    make(map[block.ID]*list.Element, capacity),
	}
}

func (c *LFU) Name() string { return "LFU" }

func (c *LFU) SetEvictionCallback(cb Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

func (c *LFU) bucket(freq int) *list.List {
	l, ok := c.buckets[freq]
	if !ok {
		l = list.New()
		c.buckets[freq] = l
	}
	return l
}

// bumpLocked moves elem's entry to the next frequency's bucket, advancing
// minFreq if elem's old bucket is now empty and was the minimum. Caller
// holds c.mu. Returns the new element.
func (c *LFU) bumpLocked(elem *list.Element) *list.Element {
	entry := elem.Value.(*lfuEntry)
	oldFreq := entry.freq
	oldBucket := c.buckets[oldFreq]
	oldBucket.Remove(elem)
	if oldBucket.Len() == 0 && oldFreq == c.minFreq {
		c.minFreq++
	}

	entry.freq++
	newElem := c.bucket(entry.freq).PushFront(entry)
	c.items[entry.page.BlockID] = newElem
	return newElem
}

func (c *LFU) Get(id block.ID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	elem = c.bumpLocked(elem)
	c.stats.Hits++

	page := elem.Value.(*lfuEntry).page
	out := make([]byte, len(page.Data))
	copy(out, page.Data)
	return out, true
}

func (c *LFU) Put(id block.ID, data []byte, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	if elem, ok := c.items[id]; ok {
		page := elem.Value.(*lfuEntry).page
		if page.Dirty != dirty {
			if dirty {
				c.dirtyCount++
			} else {
				c.dirtyCount--
			}
		}
		page.Data = stored
		page.Dirty = dirty
		c.bumpLocked(elem)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOneLocked()
	}

	page := &Page{BlockID: id, Data: stored, Dirty: dirty}
	elem := c.bucket(1).PushFront(&lfuEntry{page: page, freq: 1})
	c.items[id] = elem
	c.minFreq = 1
	if dirty {
		c.dirtyCount++
	}
}

// evictOneLocked removes the page in the minFreq bucket least recently
// touched (its back). Caller holds c.mu.
func (c *LFU) evictOneLocked() {
	bucket, ok := c.buckets[c.minFreq]
	if !ok || bucket.Len() == 0 {
		return
	}
	elem := bucket.Back()
	entry := elem.Value.(*lfuEntry)
	bucket.Remove(elem)
	delete(c.items, entry.page.BlockID)
	c.stats.Evictions++

	if entry.page.Dirty {
		c.dirtyCount--
		c.writeback(entry.page)
	}
}

func (c *LFU) writeback(page *Page) {
	if c.cb == nil {
		logger.Error("lfu: dirty page evicted with no eviction callback installed",
			logger.BlockID(page.BlockID))
		return
	}
	c.cb(page.BlockID, page.Data)
}

func (c *LFU) Remove(id block.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return false
	}
	entry := elem.Value.(*lfuEntry)
	if entry.page.Dirty {
		c.dirtyCount--
	}
	bucket := c.buckets[entry.freq]
	bucket.Remove(elem)
	if bucket.Len() == 0 && entry.freq == c.minFreq {
		c.minFreq++
	}
	delete(c.items, id)
	return true
}

func (c *LFU) Contains(id block.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

func (c *LFU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets = make(map[int]*list.List)
	c.items = make(map[block.ID]*list.Element, c.capacity)
	c.dirtyCount = 0
	c.minFreq = 0
}

func (c *LFU) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *LFU) FlushDirty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *LFU) flushLocked() int {
	n := 0
	for _, bucket := range c.buckets {
		for e := bucket.Front(); e != nil; e = e.Next() {
			page := e.Value.(*lfuEntry).page
			if !page.Dirty {
				continue
			}
			c.writeback(page)
			page.Dirty = false
			n++
		}
	}
	c.dirtyCount = 0
	return n
}

func (c *LFU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *LFU) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
}

func (c *LFU) DirtyPageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyCount
}

func (c *LFU) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LFU) Capacity() int {
	return c.capacity
}
