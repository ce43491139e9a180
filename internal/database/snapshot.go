package database

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"

	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/index"
	"github.com/vektordb/vektor/internal/vecstore"
)

// Snapshot file layout: magic, format version, dimension, index kind,
// the index block (which embeds every row with its metadata), and a
// trailing CRC32 over all preceding bytes.

var snapshotMagic = [4]byte{'V', 'K', 'D', 'B'}

// snapshotVersion 2 embeds per-row metadata inside the index block.
const snapshotVersion = 2

// Save writes a snapshot atomically (temp file + rename).
func (db *Database) Save(path string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return verrors.InvalidArgument("database is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return verrors.IOError("create snapshot directory", err)
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	if err := index.WriteU32(&buf, snapshotVersion); err != nil {
		return err
	}
	if err := index.WriteU32(&buf, uint32(db.cfg.Database.Dimension)); err != nil {
		return err
	}
	buf.WriteByte(byte(db.idx.Kind()))

	if err := db.idx.Save(&buf); err != nil {
		return err
	}

	crc := crc32.ChecksumIEEE(buf.Bytes())
	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], crc)
	buf.Write(tail[:])

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return verrors.IOError("write snapshot", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return verrors.IOError("rename snapshot", err)
	}

	db.logger.Info("snapshot saved",
		slog.String("path", path),
		slog.Uint64("rows", db.store.Count()),
		slog.Int("bytes", buf.Len()))
	return nil
}

// LoadSnapshot replaces the database contents with a snapshot. The
// snapshot's dimension and index kind must match the open configuration.
func (db *Database) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return verrors.IOError("read snapshot", err)
	}
	if len(data) < len(snapshotMagic)+4+4+1+4 {
		return verrors.New(verrors.ErrCodeCorruptSnapshot, "snapshot too short", nil)
	}

	body := data[:len(data)-4]
	wantCRC := binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != wantCRC {
		return verrors.New(verrors.ErrCodeCorruptSnapshot, "snapshot crc mismatch", nil)
	}

	r := bytes.NewReader(body)
	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil {
		return verrors.IOError("read snapshot magic", err)
	}
	if magic != snapshotMagic {
		return verrors.FormatError("unrecognized snapshot magic")
	}

	version, err := index.ReadU32(r)
	if err != nil {
		return err
	}
	if version != snapshotVersion {
		return verrors.Newf(verrors.ErrCodeFormat, "unsupported snapshot version %d", version)
	}

	dim, err := index.ReadU32(r)
	if err != nil {
		return err
	}
	if int(dim) != db.cfg.Database.Dimension {
		return verrors.Newf(verrors.ErrCodeFormat,
			"snapshot dimension %d does not match database dimension %d", dim, db.cfg.Database.Dimension)
	}

	kindByte, err := r.ReadByte()
	if err != nil {
		return verrors.IOError("read snapshot index kind", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return verrors.InvalidArgument("database is closed")
	}
	if index.Kind(kindByte) != db.idx.Kind() {
		return verrors.Newf(verrors.ErrCodeFormat,
			"snapshot index type %q does not match configured type %q",
			index.Kind(kindByte), db.idx.Kind())
	}

	if err := db.idx.Load(r); err != nil {
		return err
	}

	// The index block repopulated the store; rebuild the inverted index
	// from the restored rows.
	db.meta.Clear()
	db.store.ForEachLive(func(ord uint64, _ []float32, metadata []vecstore.Pair) bool {
		db.meta.RegisterRow(ord, metadata)
		return true
	})
	db.invalidateQueryCache()

	db.logger.Info("snapshot loaded",
		slog.String("path", path),
		slog.Uint64("rows", db.store.Count()))
	return nil
}
