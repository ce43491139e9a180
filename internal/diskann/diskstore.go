package diskann

import (
	"encoding/binary"
	"math"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	verrors "github.com/vektordb/vektor/internal/errors"
)

// diskStore keeps full vectors in a single backing file of sector-aligned
// slots: slot i begins at byte i*slotSize, slotSize = ceil(dim*4/sector)
// * sector. Reads go through an LRU page cache so touching any vector
// pulls its whole page into memory.
type diskStore struct {
	path     string
	file     *os.File
	dim      int
	sector   int
	slotSize int64

	vectorsPerPage int64
	pageSize       int64
	cache          *lru.Cache[int64, []byte]
}

// targetPageBytes sizes cache pages; actual pages round to whole slots.
const targetPageBytes = 64 * 1024

func newDiskStore(path string, dim, sector, cacheSizeMB int) (*diskStore, error) {
	if sector <= 0 || sector%512 != 0 {
		return nil, verrors.InvalidArgument("sector size must be a positive multiple of 512")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, verrors.IOError("open diskann data file", err)
	}

	rowBytes := int64(dim) * 4
	slotSize := ((rowBytes + int64(sector) - 1) / int64(sector)) * int64(sector)

	vpp := targetPageBytes / slotSize
	if vpp < 1 {
		vpp = 1
	}
	pageSize := vpp * slotSize

	maxPages := int(int64(cacheSizeMB) * 1024 * 1024 / pageSize)
	if maxPages < 4 {
		maxPages = 4
	}
	cache, err := lru.New[int64, []byte](maxPages)
	if err != nil {
		_ = f.Close()
		return nil, verrors.Internal("create page cache", err)
	}

	return &diskStore{
		path:           path,
		file:           f,
		dim:            dim,
		sector:         sector,
		slotSize:       slotSize,
		vectorsPerPage: vpp,
		pageSize:       pageSize,
		cache:          cache,
	}, nil
}

// writeVector stores a vector at its slot and invalidates its page.
func (d *diskStore) writeVector(ordinal uint64, vector []float32) error {
	buf := make([]byte, d.slotSize)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	if _, err := d.file.WriteAt(buf, int64(ordinal)*d.slotSize); err != nil {
		return verrors.IOError("write vector slot", err)
	}
	d.cache.Remove(int64(ordinal) / d.vectorsPerPage)
	return nil
}

// readVector fetches a vector, filling its whole page on a cache miss.
func (d *diskStore) readVector(ordinal uint64) ([]float32, error) {
	page := int64(ordinal) / d.vectorsPerPage
	data, ok := d.cache.Get(page)
	if !ok {
		data = make([]byte, d.pageSize)
		n, err := d.file.ReadAt(data, page*d.pageSize)
		// A short read at the file tail is expected for the last page.
		if err != nil && n == 0 {
			return nil, verrors.IOError("read vector page", err)
		}
		data = data[:n]
		d.cache.Add(page, data)
	}

	off := (int64(ordinal) % d.vectorsPerPage) * d.slotSize
	if off+int64(d.dim)*4 > int64(len(data)) {
		return nil, verrors.NotFound("vector slot", ordinal)
	}

	vector := make([]float32, d.dim)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+int64(4*i):]))
	}
	return vector, nil
}

// sync flushes the backing file.
func (d *diskStore) sync() error {
	if err := d.file.Sync(); err != nil {
		return verrors.IOError("sync diskann data file", err)
	}
	return nil
}

// size returns the backing file length in bytes.
func (d *diskStore) size() (int64, error) {
	info, err := d.file.Stat()
	if err != nil {
		return 0, verrors.IOError("stat diskann data file", err)
	}
	return info.Size(), nil
}

// cacheLen reports resident pages, for stats and tests.
func (d *diskStore) cacheLen() int { return d.cache.Len() }

func (d *diskStore) close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	if err != nil {
		return verrors.IOError("close diskann data file", err)
	}
	return nil
}
