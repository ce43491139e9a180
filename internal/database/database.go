// Package database composes the engine core: the SoA row store, the
// metadata inverted index, the active vector index, the write-ahead log,
// and the background compactor, all behind one reader-writer lock.
//
// Lock order: db.mu first, then the WAL handle mutex, then the stats
// mutex. The WAL append path takes only the handle mutex so log writes
// serialize independently of readers.
package database

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vektordb/vektor/internal/config"
	"github.com/vektordb/vektor/internal/diskann"
	"github.com/vektordb/vektor/internal/distance"
	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/hnsw"
	"github.com/vektordb/vektor/internal/index"
	"github.com/vektordb/vektor/internal/metaindex"
	"github.com/vektordb/vektor/internal/vecstore"
	"github.com/vektordb/vektor/internal/wal"
)

// SearchResult is one query hit. Vector and Metadata are copies owned by
// the caller.
type SearchResult struct {
	Ordinal  uint64
	Distance float32
	Vector   []float32
	Metadata []vecstore.Pair
}

// Database is the embeddable engine instance.
type Database struct {
	mu  sync.RWMutex
	cfg *config.Config

	store  *vecstore.Store
	meta   *metaindex.Index
	idx    index.Index
	metric distance.Metric
	dist   distance.Func

	// walMu guards handle swaps (SetWAL/DisableWAL); appends go through
	// the handle's own mutex.
	walMu sync.Mutex
	log   *wal.WAL

	walReplaying bool

	statsMu  sync.Mutex
	counters counters

	queryCache *lru.Cache[uint64, []SearchResult]

	fileLock  *flock.Flock
	compactor *compactor
	logger    *slog.Logger
	closed    bool
}

// Open creates a database from the configuration and starts the
// compactor. When a WAL path is configured it also acquires the process
// lock (a lock file beside the WAL) and replays any existing WAL.
func Open(cfg *config.Config) (*Database, error) {
	if cfg == nil {
		return nil, verrors.InvalidArgument("nil configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, verrors.Wrap(verrors.ErrCodeConfigInvalid, err)
	}

	metric, ok := distance.FromString(string(cfg.Database.Metric))
	if !ok {
		return nil, verrors.InvalidArgument(fmt.Sprintf("unknown metric %q", cfg.Database.Metric))
	}

	store, err := vecstore.New(cfg.Database.Dimension)
	if err != nil {
		return nil, err
	}

	db := &Database{
		cfg:    cfg,
		store:  store,
		meta:   metaindex.New(),
		metric: metric,
		dist:   distance.ForMetric(metric),
		logger: slog.Default(),
	}

	db.idx, err = db.newIndex(store)
	if err != nil {
		return nil, err
	}

	if cfg.Database.QueryCacheSize > 0 {
		db.queryCache, err = lru.New[uint64, []SearchResult](cfg.Database.QueryCacheSize)
		if err != nil {
			return nil, verrors.Internal("create query cache", err)
		}
	}

	if cfg.WAL.Path != "" {
		db.fileLock = flock.New(cfg.WAL.Path + ".lock")
		locked, err := db.fileLock.TryLock()
		if err != nil {
			return nil, verrors.IOError("acquire database lock", err)
		}
		if !locked {
			return nil, verrors.New(verrors.ErrCodeLockHeld, "database is locked by another process", nil)
		}

		db.log, err = wal.Open(cfg.WAL.Path)
		if err != nil {
			db.releaseLock()
			return nil, err
		}
		if err := db.replayWAL(); err != nil {
			_ = db.log.Close()
			db.releaseLock()
			return nil, err
		}
	}

	if cfg.Compaction.Enabled {
		db.compactor = newCompactor(db, cfg.Compaction)
		db.compactor.start()
	}

	db.logger.Info("database opened",
		slog.Int("dimension", cfg.Database.Dimension),
		slog.String("index", string(cfg.Database.IndexType)),
		slog.String("metric", string(cfg.Database.Metric)),
		slog.Uint64("rows", db.store.Count()))
	return db, nil
}

// newIndex constructs the configured index variant over a store.
func (db *Database) newIndex(store *vecstore.Store) (index.Index, error) {
	switch db.cfg.Database.IndexType {
	case config.IndexTypeHNSW:
		h := db.cfg.HNSW
		return hnsw.New(store, db.metric, hnsw.Config{
			M:              h.M,
			EfConstruction: h.EfConstruction,
			EfSearch:       h.EfSearch,
			MaxLevel:       h.MaxLevel,
			UseBinaryQuant: h.UseBinaryQuant,
			QuantRerank:    h.QuantRerank,
			UseACORN:       h.UseACORN,
			ACORNHops:      h.ACORNHops,
		}), nil
	case config.IndexTypeDiskANN:
		d := db.cfg.DiskANN
		return diskann.New(store, db.metric, diskann.Config{
			MaxDegree:       d.MaxDegree,
			Alpha:           d.Alpha,
			BuildBeamWidth:  d.BuildBeamWidth,
			SearchBeamWidth: d.SearchBeamWidth,
			PQDim:           d.PQDim,
			DataPath:        d.DataPath,
			CacheSizeMB:     d.CacheSizeMB,
			SectorSize:      d.SectorSize,
		})
	case config.IndexTypeExact:
		return index.NewExact(store, db.metric), nil
	}
	return nil, verrors.Newf(verrors.ErrCodeIndexIncompatible, "unknown index type %q", db.cfg.Database.IndexType)
}

func (db *Database) releaseLock() {
	if db.fileLock != nil {
		_ = db.fileLock.Unlock()
		db.fileLock = nil
	}
}

// replayWAL applies every logged mutation with re-logging suppressed.
func (db *Database) replayWAL() error {
	if db.log.Size() == 0 {
		return nil
	}

	db.log.SetReplaying(true)
	db.walReplaying = true
	defer func() {
		db.log.SetReplaying(false)
		db.walReplaying = false
	}()

	var replayed int
	err := db.log.Replay(func(rec wal.Record) error {
		replayed++
		switch rec.Type {
		case wal.RecordInsert:
			vector, pairs, err := wal.DecodeInsert(rec.Payload)
			if err != nil {
				return err
			}
			_, err = db.applyAdd(vector, pairs)
			return err
		case wal.RecordUpdate:
			vector, err := wal.DecodeUpdate(rec.Payload)
			if err != nil {
				return err
			}
			return db.applyUpdate(rec.Ordinal, vector)
		case wal.RecordDelete:
			return db.applyDelete(rec.Ordinal)
		case wal.RecordMetadataUpdate:
			pairs, err := wal.DecodeMetadata(rec.Payload)
			if err != nil {
				return err
			}
			return db.applyUpdateMetadata(rec.Ordinal, pairs)
		}
		return verrors.New(verrors.ErrCodeWALCorrupt, "unknown wal record type", nil)
	})
	if err != nil {
		return err
	}

	db.logger.Info("wal replayed",
		slog.Int("records", replayed),
		slog.Uint64("rows", db.store.Count()))
	return nil
}

// Add inserts a vector with optional metadata and returns its ordinal.
func (db *Database) Add(vector []float32, metadata []vecstore.Pair) (uint64, error) {
	if len(vector) == 0 {
		return 0, verrors.InvalidArgument("vector must not be empty")
	}
	if len(vector) != db.cfg.Database.Dimension {
		return 0, verrors.DimensionMismatch(db.cfg.Database.Dimension, len(vector))
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	if db.cfg.Database.CosineNormalized {
		distance.Normalize(stored)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0, verrors.InvalidArgument("database is closed")
	}

	if err := db.walAppend(wal.Record{
		Type:    wal.RecordInsert,
		Payload: wal.EncodeInsert(stored, metadata),
	}); err != nil {
		return 0, err
	}

	ord, err := db.applyAdd(stored, metadata)
	if err != nil {
		return 0, err
	}

	db.invalidateQueryCache()
	db.bumpCounter(func(c *counters) { c.Inserts++ })
	return ord, nil
}

// applyAdd performs the insert against store, metadata index, and the
// active index. Shared by the public path and WAL replay.
func (db *Database) applyAdd(vector []float32, metadata []vecstore.Pair) (uint64, error) {
	ord, err := db.store.Add(vector, metadata)
	if err != nil {
		return 0, err
	}
	db.meta.RegisterRow(ord, metadata)

	if err := db.idx.Insert(ord); err != nil {
		// Unwind so a failed insert leaves no observable row.
		db.meta.RemoveAll(ord)
		_ = db.store.MarkDeleted(ord)
		return 0, err
	}
	return ord, nil
}

// Get returns a copy of one live row.
func (db *Database) Get(ordinal uint64) (SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	view, err := db.store.GetView(ordinal)
	if err != nil {
		return SearchResult{}, err
	}
	return db.copyResult(ordinal, 0, view), nil
}

func (db *Database) copyResult(ordinal uint64, dist float32, view vecstore.View) SearchResult {
	vector := make([]float32, len(view.Vector))
	copy(vector, view.Vector)
	metadata := make([]vecstore.Pair, len(view.Metadata))
	copy(metadata, view.Metadata)
	return SearchResult{Ordinal: ordinal, Distance: dist, Vector: vector, Metadata: metadata}
}

// Update overwrites a row's vector in place.
func (db *Database) Update(ordinal uint64, vector []float32) error {
	if len(vector) != db.cfg.Database.Dimension {
		return verrors.DimensionMismatch(db.cfg.Database.Dimension, len(vector))
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	if db.cfg.Database.CosineNormalized {
		distance.Normalize(stored)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return verrors.InvalidArgument("database is closed")
	}

	// Surface NotFound/AlreadyDeleted before logging anything.
	if deleted, err := db.store.IsDeleted(ordinal); err != nil {
		return err
	} else if deleted {
		return verrors.AlreadyDeleted(ordinal)
	}

	if err := db.walAppend(wal.Record{
		Type: wal.RecordUpdate, HasOrdinal: true, Ordinal: ordinal,
		Payload: wal.EncodeUpdate(stored),
	}); err != nil {
		return err
	}

	if err := db.applyUpdate(ordinal, stored); err != nil {
		return err
	}
	db.invalidateQueryCache()
	db.bumpCounter(func(c *counters) { c.Updates++ })
	return nil
}

func (db *Database) applyUpdate(ordinal uint64, vector []float32) error {
	if err := db.store.UpdateData(ordinal, vector); err != nil {
		return err
	}
	return db.idx.Update(ordinal)
}

// UpdateMetadata replaces a row's metadata chain and keeps the inverted
// index consistent in the same critical section.
func (db *Database) UpdateMetadata(ordinal uint64, metadata []vecstore.Pair) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return verrors.InvalidArgument("database is closed")
	}

	if deleted, err := db.store.IsDeleted(ordinal); err != nil {
		return err
	} else if deleted {
		return verrors.AlreadyDeleted(ordinal)
	}

	if err := db.walAppend(wal.Record{
		Type: wal.RecordMetadataUpdate, HasOrdinal: true, Ordinal: ordinal,
		Payload: wal.EncodeMetadata(metadata),
	}); err != nil {
		return err
	}

	if err := db.applyUpdateMetadata(ordinal, metadata); err != nil {
		return err
	}
	db.invalidateQueryCache()
	return nil
}

func (db *Database) applyUpdateMetadata(ordinal uint64, metadata []vecstore.Pair) error {
	if err := db.store.SetMetadata(ordinal, metadata); err != nil {
		return err
	}
	db.meta.RemoveAll(ordinal)
	db.meta.RegisterRow(ordinal, metadata)
	return nil
}

// Delete tombstones a row.
func (db *Database) Delete(ordinal uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return verrors.InvalidArgument("database is closed")
	}

	if deleted, err := db.store.IsDeleted(ordinal); err != nil {
		return err
	} else if deleted {
		return verrors.AlreadyDeleted(ordinal)
	}

	if err := db.walAppend(wal.Record{
		Type: wal.RecordDelete, HasOrdinal: true, Ordinal: ordinal,
	}); err != nil {
		return err
	}

	if err := db.applyDelete(ordinal); err != nil {
		return err
	}
	db.invalidateQueryCache()
	db.bumpCounter(func(c *counters) { c.Deletes++ })
	return nil
}

func (db *Database) applyDelete(ordinal uint64) error {
	if err := db.store.MarkDeleted(ordinal); err != nil {
		return err
	}
	db.meta.RemoveAll(ordinal)
	return db.idx.Delete(ordinal)
}

// walAppend logs a record through the current handle. A nil handle
// (WAL disabled) is a successful no-op.
func (db *Database) walAppend(rec wal.Record) error {
	db.walMu.Lock()
	handle := db.log
	db.walMu.Unlock()

	if handle == nil {
		return nil
	}
	return handle.Append(rec)
}

// SetWAL swaps in a new log handle, closing the old one.
func (db *Database) SetWAL(path string) error {
	newLog, err := wal.Open(path)
	if err != nil {
		return err
	}

	db.walMu.Lock()
	old := db.log
	db.log = newLog
	db.walMu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// DisableWAL flushes and closes the current handle; subsequent
// mutations are unlogged.
func (db *Database) DisableWAL() error {
	db.walMu.Lock()
	old := db.log
	db.log = nil
	db.walMu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// WALSize returns the current log size in bytes, 0 when disabled.
func (db *Database) WALSize() int64 {
	db.walMu.Lock()
	defer db.walMu.Unlock()
	if db.log == nil {
		return 0
	}
	return db.log.Size()
}

// DumpWAL renders the log for diagnostics.
func (db *Database) DumpWAL(out io.Writer) error {
	db.walMu.Lock()
	handle := db.log
	db.walMu.Unlock()
	if handle == nil {
		return verrors.InvalidArgument("wal is disabled")
	}
	return handle.Dump(out)
}

// IsDeleted reports whether a row is tombstoned; unknown ordinals are a
// NotFound error, never "deleted".
func (db *Database) IsDeleted(ordinal uint64) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.IsDeleted(ordinal)
}

// Count returns total rows ever added (tombstones included).
func (db *Database) Count() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.Count()
}

// LiveCount returns the number of live rows.
func (db *Database) LiveCount() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.LiveCount()
}

// Dimension returns the fixed vector dimension.
func (db *Database) Dimension() int { return db.cfg.Database.Dimension }

// Close stops the compactor, closes the WAL, releases the process lock,
// and closes the index.
func (db *Database) Close() error {
	if db.compactor != nil {
		db.compactor.stopAndWait()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	var firstErr error
	db.walMu.Lock()
	if db.log != nil {
		if err := db.log.Close(); err != nil {
			firstErr = err
		}
		db.log = nil
	}
	db.walMu.Unlock()

	if err := db.idx.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	db.releaseLock()

	db.logger.Info("database closed", slog.Uint64("rows", db.store.Count()))
	return firstErr
}
