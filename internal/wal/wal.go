// Package wal implements the append-only write-ahead log driving
// durability and crash recovery. Each record is length-prefixed and
// CRC-protected; replay tolerates a truncated tail record (the normal
// artifact of a crash mid-append) but rejects CRC corruption.
package wal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sync"

	verrors "github.com/vektordb/vektor/internal/errors"
)

// RecordType tags a WAL record.
type RecordType uint8

const (
	RecordInsert RecordType = iota + 1
	RecordUpdate
	RecordDelete
	RecordMetadataUpdate
)

// String renders the record type for diagnostics.
func (t RecordType) String() string {
	switch t {
	case RecordInsert:
		return "INSERT"
	case RecordUpdate:
		return "UPDATE"
	case RecordDelete:
		return "DELETE"
	case RecordMetadataUpdate:
		return "METADATA"
	}
	return "UNKNOWN"
}

// Record is one logged mutation.
type Record struct {
	Type       RecordType
	HasOrdinal bool
	Ordinal    uint64
	Payload    []byte
}

// WAL is an append-only log file. Appends serialize under their own
// mutex so log writes are independent of database read traffic.
type WAL struct {
	mu   sync.Mutex
	path string
	file *os.File
	size int64

	replaying bool
}

// Open opens or creates the WAL at path.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, verrors.IOError("open wal", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, verrors.IOError("stat wal", err)
	}

	return &WAL{path: path, file: f, size: info.Size()}, nil
}

// Path returns the WAL file path.
func (w *WAL) Path() string { return w.path }

// Size returns the current byte size of the log.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// SetReplaying toggles the replay guard. While replaying, Append is a
// no-op so replayed mutations are not re-logged.
func (w *WAL) SetReplaying(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.replaying = on
}

// Replaying reports whether a replay is in progress.
func (w *WAL) Replaying() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.replaying
}

// frame layout: u32 length | body | u32 crc
// body layout:  u8 type | u8 hasOrdinal | u64 ordinal | payload

func encodeFrame(rec Record) []byte {
	bodyLen := 1 + 1 + 8 + len(rec.Payload)
	buf := make([]byte, 4+bodyLen+4)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(bodyLen))
	buf[4] = byte(rec.Type)
	if rec.HasOrdinal {
		buf[5] = 1
	}
	binary.LittleEndian.PutUint64(buf[6:14], rec.Ordinal)
	copy(buf[14:], rec.Payload)

	crc := crc32.ChecksumIEEE(buf[4 : 4+bodyLen])
	binary.LittleEndian.PutUint32(buf[4+bodyLen:], crc)
	return buf
}

// Append frames the record, writes it, and fsyncs before returning. The
// caller's mutation must not proceed on error.
func (w *WAL) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.replaying || w.file == nil {
		return nil
	}

	buf := encodeFrame(rec)
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return verrors.IOError("seek wal", err)
	}
	n, err := w.file.Write(buf)
	if err != nil {
		// Roll back the partial frame so the log stays parseable.
		_ = w.file.Truncate(w.size)
		return verrors.IOError("append wal", err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Truncate(w.size)
		return verrors.IOError("sync wal", err)
	}

	w.size += int64(n)
	return nil
}

// Replay reads every record from the start of the log and hands it to fn
// in append order. A cleanly truncated tail ends the replay; a CRC or
// framing violation fails with WALCorrupt.
func (w *WAL) Replay(fn func(Record) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return verrors.IOError("seek wal", err)
	}

	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(w.file, lenBuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			// A partial length prefix is a crash tail.
			if err == io.ErrUnexpectedEOF {
				return nil
			}
			return verrors.IOError("read wal frame length", err)
		}

		bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
		if bodyLen < 10 {
			return verrors.New(verrors.ErrCodeWALCorrupt, "wal frame shorter than header", nil)
		}

		frame := make([]byte, bodyLen+4)
		if _, err := io.ReadFull(w.file, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				// Crash mid-append: the frame never committed.
				return nil
			}
			return verrors.IOError("read wal frame", err)
		}

		body := frame[:bodyLen]
		wantCRC := binary.LittleEndian.Uint32(frame[bodyLen:])
		if crc32.ChecksumIEEE(body) != wantCRC {
			return verrors.New(verrors.ErrCodeWALCorrupt, "wal record crc mismatch", nil)
		}

		rec := Record{
			Type:       RecordType(body[0]),
			HasOrdinal: body[1] == 1,
			Ordinal:    binary.LittleEndian.Uint64(body[2:10]),
		}
		if len(body) > 10 {
			rec.Payload = body[10:]
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Truncate discards every record. Compaction calls it after rewriting the
// in-memory store; the discarded records are not persisted anywhere else.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return verrors.IOError("truncate wal", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return verrors.IOError("seek wal", err)
	}
	if err := w.file.Sync(); err != nil {
		return verrors.IOError("sync wal", err)
	}
	w.size = 0
	return nil
}

// Close flushes and closes the log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		w.file = nil
		return verrors.IOError("sync wal", err)
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return verrors.IOError("close wal", err)
	}
	return nil
}
