package database

// counters holds observability counts guarded by statsMu.
type counters struct {
	Searches    uint64
	Inserts     uint64
	Updates     uint64
	Deletes     uint64
	Compactions uint64
	CacheHits   uint64
}

// Stats is a point-in-time snapshot of the database.
type Stats struct {
	Dimension  int
	IndexType  string
	Count      uint64
	LiveCount  uint64
	Tombstones uint64
	WALBytes   int64

	Searches    uint64
	Inserts     uint64
	Updates     uint64
	Deletes     uint64
	Compactions uint64
	CacheHits   uint64
}

func (db *Database) bumpCounter(fn func(*counters)) {
	db.statsMu.Lock()
	fn(&db.counters)
	db.statsMu.Unlock()
}

// Stats returns current row counts, WAL size, and operation counters.
func (db *Database) Stats() Stats {
	db.mu.RLock()
	count := db.store.Count()
	live := db.store.LiveCount()
	db.mu.RUnlock()

	db.statsMu.Lock()
	c := db.counters
	db.statsMu.Unlock()

	return Stats{
		Dimension:  db.cfg.Database.Dimension,
		IndexType:  string(db.cfg.Database.IndexType),
		Count:      count,
		LiveCount:  live,
		Tombstones: count - live,
		WALBytes:   db.WALSize(),

		Searches:    c.Searches,
		Inserts:     c.Inserts,
		Updates:     c.Updates,
		Deletes:     c.Deletes,
		Compactions: c.Compactions,
		CacheHits:   c.CacheHits,
	}
}
