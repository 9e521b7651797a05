// Package blockmanager keeps the data node's in-memory block inventory:
// size, creation timestamp, content digest, and access counter. It
// delegates all byte I/O to blockstore and is the only layer with a notion
// of "does this block exist" beyond raw disk presence.
package blockmanager

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/StewAway/Distributed-File-System/internal/logger"
	"github.com/StewAway/Distributed-File-System/pkg/block"
	"github.com/StewAway/Distributed-File-System/pkg/blockstore"
)

// Metadata is the bookkeeping record BlockManager keeps per block.
type Metadata struct {
	BlockID       block.ID
	Size          int64
	CreatedAt     time.Time
	ContentDigest string // hex-encoded SHA-256
	AccessCount   uint64
}

// Manager wraps a blockstore.Store with a metadata inventory protected by a
// single mutex. The public API is therefore serializable per call.
type Manager struct {
	mu    sync.Mutex
	store *blockstore.Store
	meta  map[block.ID]Metadata
}

// New constructs a Manager over store with an empty inventory. Call
// LoadExistingBlocks to populate it from disk on startup.
func New(store *blockstore.Store) *Manager {
	return &Manager{
		store: store,
		meta:  make(map[block.ID]Metadata),
	}
}

// WriteBlock rejects writes whose data exceeds block.Size, delegates to the
// underlying store, and on success upserts the metadata record. The digest
// is computed over the written slice only, not the merged block image, and
// created_at is preserved across overwrites rather than re-stamped.
func (m *Manager) WriteBlock(id block.ID, offset uint32, data []byte, sync bool) error {
	if uint64(len(data)) > block.Size {
		return block.ErrExceedsSize
	}

	if err := m.store.WriteBlock(id, offset, data, sync); err != nil {
		return err
	}

	digest := sha256.Sum256(data)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.store.BlockSize(id)
	meta := Metadata{
		BlockID:       id,
		Size:          size,
		CreatedAt:     now,
		ContentDigest: hex.EncodeToString(digest[:]),
	}
	if existing, ok := m.meta[id]; ok {
		meta.AccessCount = existing.AccessCount
		meta.CreatedAt = existing.CreatedAt
	}
	m.meta[id] = meta
	return nil
}

// ReadBlock fails if id has no metadata record, otherwise bumps its access
// count and delegates to the store.
func (m *Manager) ReadBlock(id block.ID, offset uint32, length uint32) ([]byte, error) {
	m.mu.Lock()
	meta, ok := m.meta[id]
	if !ok {
		m.mu.Unlock()
		return nil, block.ErrNotFound
	}
	meta.AccessCount++
	m.meta[id] = meta
	m.mu.Unlock()

	return m.store.ReadBlock(id, offset, length)
}

// DeleteBlock fails if id has no metadata record, otherwise delegates to
// the store and erases the record.
func (m *Manager) DeleteBlock(id block.ID) error {
	m.mu.Lock()
	if _, ok := m.meta[id]; !ok {
		m.mu.Unlock()
		return block.ErrNotFound
	}
	m.mu.Unlock()

	if err := m.store.DeleteBlock(id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.meta, id)
	m.mu.Unlock()
	return nil
}

// BlockExists reports metadata presence, which may disagree with disk
// presence during recovery windows.
func (m *Manager) BlockExists(id block.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.meta[id]
	return ok
}

// GetBlockMetadata returns a copy of id's metadata record.
func (m *Manager) GetBlockMetadata(id block.ID) (Metadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.meta[id]
	return meta, ok
}

// ListBlocks returns every block id currently known to the inventory.
func (m *Manager) ListBlocks() []block.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]block.ID, 0, len(m.meta))
	for id := range m.meta {
		ids = append(ids, id)
	}
	return ids
}

// DirtyPageCount, CacheCapacity, and FlushDirty expose the underlying
// store's cache diagnostics to the background flusher.
func (m *Manager) DirtyPageCount() int { return m.store.DirtyPageCount() }
func (m *Manager) CacheCapacity() int  { return m.store.CacheCapacity() }
func (m *Manager) FlushDirty() int     { return m.store.FlushDirty() }

// TotalStorageUsed sums the recorded sizes of every known block.
func (m *Manager) TotalStorageUsed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, meta := range m.meta {
		total += meta.Size
	}
	return total
}

// LoadExistingBlocks scans the blocks directory for blk_*.img files and
// rebuilds the metadata inventory from their current contents. This
// metadata is ephemeral: timestamps are re-stamped to now, the digest is
// recomputed from current file contents, and access counts reset to zero.
// Failures on individual blocks are logged and skipped.
func (m *Manager) LoadExistingBlocks() error {
	ids, err := m.store.ListBlockIDs()
	if err != nil {
		return fmt.Errorf("blockmanager: startup scan: %w", err)
	}

	now := time.Now().UTC()

	for _, id := range ids {
		data, err := m.readBlockForRecovery(id)
		if err != nil {
			logger.Error("blockmanager: failed to load block during startup scan",
				logger.BlockID(id), logger.Err(err))
			continue
		}

		digest := sha256.Sum256(data)

		m.mu.Lock()
		m.meta[id] = Metadata{
			BlockID:       id,
			Size:          int64(len(data)),
			CreatedAt:     now,
			ContentDigest: hex.EncodeToString(digest[:]),
		}
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) readBlockForRecovery(id block.ID) ([]byte, error) {
	data, err := m.store.ReadBlock(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("read block %d: %w", id, err)
	}
	return data, nil
}
