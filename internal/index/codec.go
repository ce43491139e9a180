package index

import (
	"encoding/binary"
	"io"
	"math"

	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/vecstore"
)

// Binary helpers shared by the index block writers. Everything is
// little-endian; strings, byte blocks, and metadata chains are
// length-prefixed, vectors are not.

// WriteU32 writes one uint32.
func WriteU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadU32 reads one uint32.
func ReadU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteU64 writes one uint64.
func WriteU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadU64 reads one uint64.
func ReadU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteBool writes one byte-encoded bool.
func WriteBool(w io.Writer, v bool) error {
	b := [1]byte{}
	if v {
		b[0] = 1
	}
	_, err := w.Write(b[:])
	return err
}

// ReadBool reads one byte-encoded bool.
func ReadBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] == 1, nil
}

// WriteVector writes a float32 slice without a length prefix; the reader
// must know the dimension.
func WriteVector(w io.Writer, vector []float32) error {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// ReadVector reads dim float32 values.
func ReadVector(r io.Reader, dim int) ([]float32, error) {
	buf := make([]byte, 4*dim)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vector, nil
}

// WritePairs writes a metadata chain.
func WritePairs(w io.Writer, pairs []vecstore.Pair) error {
	if err := WriteU32(w, uint32(len(pairs))); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := WriteString(w, p.Key); err != nil {
			return err
		}
		if err := WriteString(w, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// ReadPairs reads a metadata chain.
func ReadPairs(r io.Reader) ([]vecstore.Pair, error) {
	n, err := ReadU32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > 1<<20 {
		return nil, verrors.FormatError("metadata chain implausibly large")
	}
	pairs := make([]vecstore.Pair, 0, n)
	for i := uint32(0); i < n; i++ {
		key, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		value, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, vecstore.Pair{Key: key, Value: value})
	}
	return pairs, nil
}

// WriteString writes a length-prefixed string.
func WriteString(w io.Writer, s string) error {
	if err := WriteU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a length-prefixed string.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadU32(r)
	if err != nil {
		return "", err
	}
	if n > 1<<24 {
		return "", verrors.FormatError("string implausibly large")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteBytes writes a length-prefixed byte slice.
func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteU32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadBytes reads a length-prefixed byte slice.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadU32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > 1<<30 {
		return nil, verrors.FormatError("byte block implausibly large")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
