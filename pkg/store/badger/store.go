// Package badger provides a ChunkStore backed by BadgerDB.
//
// Each payload is one key/value pair. Keys sort by X, then Z, so Positions
// walks coordinates in the same order as the memory store.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
)

// Metrics receives BadgerDB internals after each Flush.
//
// This is optional - a nil Metrics skips collection.
type Metrics interface {
	// RecordCacheHitRatio records the hit ratio of the "block" or "index"
	// cache. ratio is between 0.0 and 1.0.
	RecordCacheHitRatio(cacheType string, ratio float64)

	// RecordSizes records the LSM tree and value log sizes in bytes.
	RecordSizes(lsm, vlog int64)
}

// Config configures a Store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory. Used by tests.
	InMemory bool

	// SyncWrites makes every write durable before it returns.
	SyncWrites bool

	Metrics Metrics
}

// Store is a BadgerDB implementation of store.ChunkStore.
type Store struct {
	db      *badgerdb.DB
	metrics Metrics
	closed  atomic.Bool
}

var _ store.ChunkStore = (*Store)(nil)

const (
	keyPrefix = 'c'
	keySize   = 9
)

// chunkKey encodes pos so that byte order matches signed coordinate order.
func chunkKey(pos region.ChunkPos) []byte {
	k := make([]byte, keySize)
	k[0] = keyPrefix
	binary.BigEndian.PutUint32(k[1:5], uint32(pos.X)^0x80000000)
	binary.BigEndian.PutUint32(k[5:9], uint32(pos.Z)^0x80000000)
	return k
}

func decodeChunkKey(k []byte) (region.ChunkPos, bool) {
	if len(k) != keySize || k[0] != keyPrefix {
		return region.ChunkPos{}, false
	}
	return region.ChunkPos{
		X: int32(binary.BigEndian.Uint32(k[1:5]) ^ 0x80000000),
		Z: int32(binary.BigEndian.Uint32(k[5:9]) ^ 0x80000000),
	}, true
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("badger store: path is required")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(badgerLogger{})
	if cfg.InMemory {
		opts.Dir, opts.ValueDir = "", ""
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug("Badger store opened", logger.KeyPath, cfg.Path, "in_memory", cfg.InMemory)
	return &Store{db: db, metrics: cfg.Metrics}, nil
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrStoreClosed
	}
	return ctx.Err()
}

// Read returns the payload at pos, or nil.
func (s *Store) Read(ctx context.Context, pos region.ChunkPos) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(chunkKey(pos))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		if err == nil && data == nil {
			data = []byte{}
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk %s: %w", pos, err)
	}
	return data, nil
}

// Write stores data at pos. nil deletes.
func (s *Store) Write(ctx context.Context, pos region.ChunkPos, data []byte) error {
	if data == nil {
		return s.Delete(ctx, pos)
	}
	if err := s.check(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(chunkKey(pos), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write chunk %s: %w", pos, err)
	}
	return nil
}

// Delete removes the payload at pos.
func (s *Store) Delete(ctx context.Context, pos region.ChunkPos) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(chunkKey(pos))
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunk %s: %w", pos, err)
	}
	return nil
}

// Scan hands the stored value to fn without copying it.
func (s *Store) Scan(ctx context.Context, pos region.ChunkPos, fn region.ScanFunc) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	found := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(chunkKey(pos))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return nil
			}
			if err := fn(val); err != nil && !errors.Is(err, region.SkipRest) {
				return err
			}
			return nil
		})
	})
	return found, err
}

// Positions walks the keys in order. Values are not fetched.
func (s *Store) Positions(ctx context.Context, fn func(pos region.ChunkPos) error) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte{keyPrefix}
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			pos, ok := decodeChunkKey(it.Item().Key())
			if !ok {
				continue
			}
			if err := fn(pos); err != nil {
				return err
			}
		}
		return nil
	})
}

// Flush syncs the value log and reports cache and size metrics.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("failed to sync badger database: %w", err)
	}
	s.recordMetrics()
	return nil
}

func (s *Store) recordMetrics() {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheHitRatio("block", s.db.BlockCacheMetrics().Ratio())
	s.metrics.RecordCacheHitRatio("index", s.db.IndexCacheMetrics().Ratio())
	lsm, vlog := s.db.Size()
	s.metrics.RecordSizes(lsm, vlog)
}

// Close closes the database. Later calls return nil.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}
	return nil
}

// badgerLogger routes BadgerDB's logging through the process logger. Info
// output is demoted to debug; badger is chatty at info.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyBackend, store.BackendBadger)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyBackend, store.BackendBadger)
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyBackend, store.BackendBadger)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyBackend, store.BackendBadger)
}
