// Package diskstore implements the lowest level of the data node's storage
// engine: one regular file per block, addressed only by block id. It is the
// only package in this module that touches the file system directly.
//
// DiskStore is not thread-safe on its own. A higher layer (BlockStore, via
// the page cache's mutex) is responsible for serializing concurrent access
// to the same block id.
package diskstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/StewAway/Distributed-File-System/internal/logger"
	"github.com/StewAway/Distributed-File-System/pkg/block"
)

// Stats is a snapshot of DiskStore's I/O counters.
type Stats struct {
	Reads        uint64
	Writes       uint64
	BytesRead    uint64
	BytesWritten uint64
}

// Store persists blocks as files named blk_<id>.img under Dir.
type Store struct {
	dir string

	reads        atomic.Uint64
	writes       atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

// New creates a Store rooted at dir, creating dir if it does not exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskstore: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory this store persists blocks under.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) pathFor(id block.ID) string {
	return filepath.Join(s.dir, fmt.Sprintf("blk_%d.img", id))
}

// WriteBlock truncates and rewrites the whole block file for id with data.
// When sync is true, the file is flushed to stable storage (fsync) before
// WriteBlock returns. Failures are returned to the caller and are not fatal
// to the process.
func (s *Store) WriteBlock(id block.ID, data []byte, sync bool) error {
	path := s.pathFor(id)
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		logger.Error("diskstore: open failed", logger.BlockID(id), logger.Path(tmpPath), logger.Err(err))
		return fmt.Errorf("diskstore: open %s: %w", tmpPath, err)
	}

	n, werr := f.Write(data)
	if werr == nil && sync {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmpPath)
		logger.Error("diskstore: write failed", logger.BlockID(id), logger.Path(path), logger.Err(werr))
		return fmt.Errorf("diskstore: write %s: %w", path, werr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		logger.Error("diskstore: rename failed", logger.BlockID(id), logger.Path(path), logger.Err(err))
		return fmt.Errorf("diskstore: rename %s: %w", path, err)
	}

	s.writes.Add(1)
	s.bytesWritten.Add(uint64(n))
	return nil
}

// ReadBlock reads the entire file for id. It returns block.ErrNotFound if no
// file exists for id.
func (s *Store) ReadBlock(id block.ID) ([]byte, error) {
	path := s.pathFor(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, block.ErrNotFound
		}
		logger.Error("diskstore: read failed", logger.BlockID(id), logger.Path(path), logger.Err(err))
		return nil, fmt.Errorf("diskstore: read %s: %w", path, err)
	}
	s.reads.Add(1)
	s.bytesRead.Add(uint64(len(data)))
	return data, nil
}

// DeleteBlock removes the file for id. It returns block.ErrNotFound if no
// file exists for id.
func (s *Store) DeleteBlock(id block.ID) error {
	path := s.pathFor(id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return block.ErrNotFound
		}
		logger.Error("diskstore: delete failed", logger.BlockID(id), logger.Path(path), logger.Err(err))
		return fmt.Errorf("diskstore: delete %s: %w", path, err)
	}
	return nil
}

// BlockExists reports whether a file exists for id.
func (s *Store) BlockExists(id block.ID) bool {
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

// BlockSize returns the file size for id in bytes, or 0 if the file does not
// exist.
func (s *Store) BlockSize(id block.ID) int64 {
	info, err := os.Stat(s.pathFor(id))
	if err != nil {
		return 0
	}
	return info.Size()
}

// AccessStats returns a snapshot of the I/O counters.
func (s *Store) AccessStats() Stats {
	return Stats{
		Reads:        s.reads.Load(),
		Writes:       s.writes.Load(),
		BytesRead:    s.bytesRead.Load(),
		BytesWritten: s.bytesWritten.Load(),
	}
}

// ResetAccessStats zeroes all I/O counters.
func (s *Store) ResetAccessStats() {
	s.reads.Store(0)
	s.writes.Store(0)
	s.bytesRead.Store(0)
	s.bytesWritten.Store(0)
}

// ListBlockIDs scans the store directory for blk_*.img files and returns the
// ids it can parse out of their names. Malformed or unreadable entries are
// skipped; callers that need per-file errors should stat the returned ids
// themselves.
func (s *Store) ListBlockIDs() ([]block.ID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("diskstore: list %s: %w", s.dir, err)
	}

	ids := make([]block.ID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseBlockFilename(e.Name())
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseBlockFilename(name string) (block.ID, bool) {
	const prefix, suffix = "blk_", ".img"
	if len(name) <= len(prefix)+len(suffix) {
		return 0, false
	}
	if name[:len(prefix)] != prefix || name[len(name)-len(suffix):] != suffix {
		return 0, false
	}
	digits := name[len(prefix) : len(name)-len(suffix)]

	var id block.ID
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
		id = id*10 + block.ID(c-'0')
	}
	if digits == "" {
		return 0, false
	}
	return id, true
}
