package database

import (
	"log/slog"
	"time"

	"github.com/vektordb/vektor/internal/config"
	"github.com/vektordb/vektor/internal/metaindex"
	"github.com/vektordb/vektor/internal/vecstore"
)

// compactor is the background worker that reclaims tombstoned space. It
// parks until its interval elapses or a kick arrives, evaluates the
// thresholds under the write lock, and rewrites the store when they are
// exceeded.
type compactor struct {
	db  *Database
	cfg config.CompactionConfig

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newCompactor(db *Database, cfg config.CompactionConfig) *compactor {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	return &compactor{
		db:   db,
		cfg:  cfg,
		kick: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (c *compactor) start() {
	go c.run()
}

func (c *compactor) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		case <-c.kick:
		}

		if c.shouldCompact() {
			if err := c.db.Compact(); err != nil {
				slog.Warn("background compaction failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Kick nudges the worker to evaluate thresholds now.
func (c *compactor) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *compactor) stopAndWait() {
	close(c.stop)
	<-c.done
}

// shouldCompact checks the deleted-ratio and WAL-size thresholds.
func (c *compactor) shouldCompact() bool {
	c.db.mu.RLock()
	count := c.db.store.Count()
	tombstones := c.db.store.Tombstones()
	c.db.mu.RUnlock()

	if count > 0 && c.cfg.DeletedRatioThreshold > 0 {
		if float64(tombstones)/float64(count) > c.cfg.DeletedRatioThreshold {
			return true
		}
	}
	if c.cfg.WALThresholdBytes > 0 && c.db.WALSize() > c.cfg.WALThresholdBytes {
		return tombstones > 0 || c.db.WALSize() > 0
	}
	return false
}

// Compact synchronously rewrites the store without tombstones, assigns
// fresh ordinals, rebuilds the active index, re-registers metadata, and
// truncates the WAL.
func (db *Database) Compact() error {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}

	oldCount := db.store.Count()
	tombstones := db.store.Tombstones()

	newStore, err := vecstore.New(db.cfg.Database.Dimension)
	if err != nil {
		return err
	}
	newMeta := metaindex.New()

	var copyErr error
	db.store.ForEachLive(func(_ uint64, vector []float32, metadata []vecstore.Pair) bool {
		ord, err := newStore.Add(vector, metadata)
		if err != nil {
			copyErr = err
			return false
		}
		newMeta.RegisterRow(ord, metadata)
		return true
	})
	if copyErr != nil {
		return copyErr
	}

	// The old index is closed before the new one builds so variants with
	// backing files can reopen them.
	if err := db.idx.Close(); err != nil {
		return err
	}
	newIdx, err := db.newIndex(newStore)
	if err == nil {
		err = newIdx.Build()
		if err != nil {
			_ = newIdx.Close()
		}
	}
	if err != nil {
		// Rebuild over the old store so the database stays queryable.
		if recovered, rerr := db.newIndex(db.store); rerr == nil {
			if rerr = recovered.Build(); rerr == nil {
				db.idx = recovered
			}
		}
		return err
	}

	db.store = newStore
	db.meta = newMeta
	db.idx = newIdx
	db.invalidateQueryCache()

	db.walMu.Lock()
	handle := db.log
	db.walMu.Unlock()
	if handle != nil {
		if err := handle.Truncate(); err != nil {
			return err
		}
	}

	db.bumpCounter(func(c *counters) { c.Compactions++ })
	db.logger.Info("compaction complete",
		slog.Uint64("rows_before", oldCount),
		slog.Uint64("tombstones_removed", tombstones),
		slog.Uint64("rows_after", db.store.Count()),
		slog.Duration("duration", time.Since(start)))
	return nil
}
