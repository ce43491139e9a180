package vektor

import (
	"io"

	"github.com/vektordb/vektor/internal/config"
	"github.com/vektordb/vektor/internal/database"
	"github.com/vektordb/vektor/internal/metaindex"
	"github.com/vektordb/vektor/internal/vecstore"
)

// Config is the engine configuration.
type Config = config.Config

// IndexType selects the active index implementation.
type IndexType = config.IndexType

const (
	IndexHNSW    = config.IndexTypeHNSW
	IndexDiskANN = config.IndexTypeDiskANN
	IndexExact   = config.IndexTypeExact
)

// Metric selects the distance metric.
type Metric = config.Metric

const (
	MetricL2        = config.MetricL2
	MetricCosine    = config.MetricCosine
	MetricDot       = config.MetricDot
	MetricManhattan = config.MetricManhattan
)

// Pair is one (key, value) metadata entry.
type Pair = vecstore.Pair

// Result is one search hit; Vector and Metadata are caller-owned copies.
type Result = database.SearchResult

// Stats is a point-in-time snapshot of engine counters.
type Stats = database.Stats

// Filter is a metadata predicate tree.
type Filter = metaindex.Filter

// Filter constructors.
var (
	Eq       = metaindex.Eq
	Ne       = metaindex.Ne
	Lt       = metaindex.Lt
	Le       = metaindex.Le
	Gt       = metaindex.Gt
	Ge       = metaindex.Ge
	Prefix   = metaindex.Prefix
	Contains = metaindex.Contains
	And      = metaindex.And
	Or       = metaindex.Or
	Not      = metaindex.Not
)

// DefaultConfig returns the default configuration for a dimension.
func DefaultConfig(dimension int) *Config {
	return config.Default(dimension)
}

// LoadConfig reads a YAML configuration file with environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DB is an open database instance. All methods are safe for concurrent
// use.
type DB struct {
	inner *database.Database
}

// Open creates or recovers a database from the configuration. If the
// configuration names a WAL, existing records replay before Open
// returns.
func Open(cfg *Config) (*DB, error) {
	inner, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner}, nil
}

// Add inserts a vector with optional metadata and returns its ordinal.
func (db *DB) Add(vector []float32, metadata []Pair) (uint64, error) {
	return db.inner.Add(vector, metadata)
}

// Get returns a copy of one live row.
func (db *DB) Get(ordinal uint64) (Result, error) {
	return db.inner.Get(ordinal)
}

// Update overwrites a row's vector in place.
func (db *DB) Update(ordinal uint64, vector []float32) error {
	return db.inner.Update(ordinal, vector)
}

// UpdateMetadata replaces a row's metadata chain.
func (db *DB) UpdateMetadata(ordinal uint64, metadata []Pair) error {
	return db.inner.UpdateMetadata(ordinal, metadata)
}

// Delete tombstones a row; storage is reclaimed by compaction.
func (db *DB) Delete(ordinal uint64) error {
	return db.inner.Delete(ordinal)
}

// IsDeleted reports whether a row is tombstoned.
func (db *DB) IsDeleted(ordinal uint64) (bool, error) {
	return db.inner.IsDeleted(ordinal)
}

// Search returns the k nearest live rows.
func (db *DB) Search(query []float32, k int) ([]Result, error) {
	return db.inner.Search(query, k)
}

// SearchFiltered returns the k nearest live rows matching the filter.
func (db *DB) SearchFiltered(query []float32, k int, filter *Filter) ([]Result, error) {
	return db.inner.SearchFiltered(query, k, filter)
}

// RangeSearch returns every live row within radius, closest first,
// capped at maxResults when maxResults > 0.
func (db *DB) RangeSearch(query []float32, radius float32, maxResults int, filter *Filter) ([]Result, error) {
	return db.inner.RangeSearch(query, radius, maxResults, filter)
}

// BatchSearch runs independent queries with bounded parallelism.
func (db *DB) BatchSearch(queries [][]float32, k int) ([][]Result, error) {
	return db.inner.BatchSearch(queries, k)
}

// Compact synchronously reclaims tombstoned space and truncates the WAL.
func (db *DB) Compact() error {
	return db.inner.Compact()
}

// Save writes a snapshot atomically.
func (db *DB) Save(path string) error {
	return db.inner.Save(path)
}

// LoadSnapshot replaces the database contents with a snapshot.
func (db *DB) LoadSnapshot(path string) error {
	return db.inner.LoadSnapshot(path)
}

// SetWAL swaps in a new write-ahead log handle.
func (db *DB) SetWAL(path string) error {
	return db.inner.SetWAL(path)
}

// DisableWAL flushes and closes the log; later mutations are unlogged.
func (db *DB) DisableWAL() error {
	return db.inner.DisableWAL()
}

// DumpWAL renders the log for operator diagnostics.
func (db *DB) DumpWAL(out io.Writer) error {
	return db.inner.DumpWAL(out)
}

// Count returns total rows ever added, tombstones included.
func (db *DB) Count() uint64 { return db.inner.Count() }

// LiveCount returns the number of live rows.
func (db *DB) LiveCount() uint64 { return db.inner.LiveCount() }

// Dimension returns the fixed vector dimension.
func (db *DB) Dimension() int { return db.inner.Dimension() }

// Stats returns current counters.
func (db *DB) Stats() Stats { return db.inner.Stats() }

// Close stops background work and releases every resource.
func (db *DB) Close() error { return db.inner.Close() }
