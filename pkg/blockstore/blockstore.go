// Package blockstore implements the data node's storage coordinator: it
// owns the on-disk DiskStore and an optional write-back PageCache, and
// turns the master's offset/length writes and reads into read-modify-write
// operations over whole block-granular cache entries.
package blockstore

import (
	"fmt"

	"github.com/StewAway/Distributed-File-System/internal/logger"
	"github.com/StewAway/Distributed-File-System/pkg/block"
	"github.com/StewAway/Distributed-File-System/pkg/diskstore"
	"github.com/StewAway/Distributed-File-System/pkg/metrics/prometheus"
	"github.com/StewAway/Distributed-File-System/pkg/pagecache"
)

// Config controls whether and how the write-back cache is constructed.
type Config struct {
	BlocksDir     string
	CacheEnabled  bool
	CacheCapacity int
	CachePolicy   string // pagecache.LRU or pagecache.LFU
}

// Store coordinates DiskStore and, if enabled, PageCache.
type Store struct {
	disk    *diskstore.Store
	cache   *pagecache.Cache // nil when caching is disabled
	metrics *prometheus.DataNodeMetrics
}

// SetMetrics installs the Prometheus instrumentation. ReadBlock records its
// cache hit or miss and disk read, WriteBlock its disk write or the cache
// gauges, DeleteBlock its disk delete, and the eviction callback its
// writeback; the cache and disk lookups made inside WriteBlock and
// BlockSize are not recorded. A nil metrics disables instrumentation.
func (s *Store) SetMetrics(m *prometheus.DataNodeMetrics) {
	s.metrics = m
}

// New constructs a Store per cfg. When cfg.CacheEnabled, the cache's
// eviction callback is wired to durably write evicted dirty pages back to
// disk with sync=true.
func New(cfg Config) (*Store, error) {
	disk, err := diskstore.New(cfg.BlocksDir)
	if err != nil {
		return nil, fmt.Errorf("blockstore: %w", err)
	}

	s := &Store{disk: disk}
	if cfg.CacheEnabled {
		cache, err := pagecache.New(cfg.CachePolicy, cfg.CacheCapacity)
		if err != nil {
			return nil, fmt.Errorf("blockstore: %w", err)
		}
		cache.SetEvictionCallback(s.writebackEvicted)
		s.cache = cache
	}
	return s, nil
}

func (s *Store) writebackEvicted(id block.ID, data []byte) {
	s.metrics.RecordEviction()
	if err := s.disk.WriteBlock(id, data, true); err != nil {
		logger.Error("blockstore: eviction writeback failed, page discarded",
			logger.BlockID(id), logger.Err(err))
		return
	}
	s.metrics.RecordDiskWrite(len(data))
}

// WriteBlock overwrites the region [offset, offset+len(data)) of block id,
// assembling the surrounding block image via read-modify-write. It rejects
// writes that would make the block exceed block.Size.
func (s *Store) WriteBlock(id block.ID, offset uint32, data []byte, sync bool) error {
	end := uint64(offset) + uint64(len(data))
	if end > block.Size {
		return block.ErrExceedsSize
	}

	image, err := s.readImage(id)
	if err != nil {
		return err
	}

	if uint64(len(image)) < end {
		grown := make([]byte, end)
		copy(grown, image)
		image = grown
	}
	copy(image[offset:end], data)

	if s.cache == nil {
		if err := s.disk.WriteBlock(id, image, false); err != nil {
			return fmt.Errorf("blockstore: write block %d: %w", id, err)
		}
		s.metrics.RecordDiskWrite(len(image))
		return nil
	}

	s.cache.Put(id, image, true)
	s.metrics.SetDirtyPages(s.cache.DirtyPageCount())
	s.metrics.SetResidentPages(s.cache.Size())
	return nil
}

// readImage returns the current full image for id: a cached copy if
// present, the on-disk content if the block exists, or an empty image if
// neither. It does not populate the cache - only read_block's cache-miss
// path does, per the read-modify-write contract.
func (s *Store) readImage(id block.ID) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(id); ok {
			return data, nil
		}
	}

	data, err := s.disk.ReadBlock(id)
	if err != nil {
		if err == block.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("blockstore: read block %d: %w", id, err)
	}
	return data, nil
}

// ReadBlock returns up to length bytes of block id starting at offset. A
// length of 0 means "read to the end of the block". Reading past the end
// of the block returns an empty slice, not an error.
func (s *Store) ReadBlock(id block.ID, offset uint32, length uint32) ([]byte, error) {
	image, hit, err := s.acquireImage(id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !hit {
		s.cache.Put(id, image, false)
	}

	if uint64(offset) >= uint64(len(image)) {
		return []byte{}, nil
	}
	if length == 0 {
		return image[offset:], nil
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(image)) {
		end = uint64(len(image))
	}
	return image[offset:end], nil
}

// acquireImage returns the full image for id and whether it was served
// from the cache (as opposed to disk).
func (s *Store) acquireImage(id block.ID) (image []byte, cacheHit bool, err error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(id); ok {
			s.metrics.RecordCacheHit()
			return data, true, nil
		}
		s.metrics.RecordCacheMiss()
	}
	data, err := s.disk.ReadBlock(id)
	if err != nil {
		return nil, false, err
	}
	s.metrics.RecordDiskRead(len(data))
	return data, false, nil
}

// DeleteBlock removes block id from the cache (without writeback, since the
// block is going away) and from disk. A block held only as a cached page,
// never written back, is deleted successfully.
func (s *Store) DeleteBlock(id block.ID) error {
	inCache := false
	if s.cache != nil {
		inCache = s.cache.Remove(id)
	}
	if err := s.disk.DeleteBlock(id); err != nil {
		if err == block.ErrNotFound && inCache {
			return nil
		}
		return err
	}
	s.metrics.RecordDiskDelete()
	return nil
}

// BlockExists reports whether id has a file on disk.
func (s *Store) BlockExists(id block.ID) bool {
	return s.disk.BlockExists(id)
}

// ListBlockIDs returns the ids of every block currently present on disk,
// for use by BlockManager's startup scan.
func (s *Store) ListBlockIDs() ([]block.ID, error) {
	return s.disk.ListBlockIDs()
}

// BlockSize returns the logical size of block id in bytes, preferring a
// cached image's length when one is resident.
func (s *Store) BlockSize(id block.ID) int64 {
	if s.cache != nil {
		if data, ok := s.cache.Get(id); ok {
			return int64(len(data))
		}
	}
	return s.disk.BlockSize(id)
}

// DirtyPageCount returns the number of dirty pages held by the cache, or 0
// if caching is disabled.
func (s *Store) DirtyPageCount() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.DirtyPageCount()
}

// CacheCapacity returns the cache's page capacity, or 0 if caching is
// disabled.
func (s *Store) CacheCapacity() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Capacity()
}

// CacheEnabled reports whether a write-back cache backs this store.
func (s *Store) CacheEnabled() bool {
	return s.cache != nil
}

// FlushDirty cleans all dirty pages in the cache without evicting them,
// returning the number flushed. It is a no-op returning 0 if caching is
// disabled.
func (s *Store) FlushDirty() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.FlushDirty()
}

// Close flushes all dirty pages synchronously and releases the cache. After
// Close returns, no dirty pages remain and every committed write is on
// disk.
func (s *Store) Close() {
	if s.cache == nil {
		return
	}
	s.cache.FlushAll()
	s.cache.Clear()
}
