package wal

import (
	"encoding/binary"
	"math"

	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/vecstore"
)

// Payload codecs. Insert carries a vector plus metadata pairs, Update a
// vector, MetadataUpdate pairs only, Delete nothing.

// EncodeInsert encodes an insert payload.
func EncodeInsert(vector []float32, metadata []vecstore.Pair) []byte {
	buf := make([]byte, 0, 4+4*len(vector)+2)
	buf = appendVector(buf, vector)
	buf = appendPairs(buf, metadata)
	return buf
}

// DecodeInsert decodes an insert payload.
func DecodeInsert(payload []byte) ([]float32, []vecstore.Pair, error) {
	vector, rest, err := readVector(payload)
	if err != nil {
		return nil, nil, err
	}
	pairs, _, err := readPairs(rest)
	if err != nil {
		return nil, nil, err
	}
	return vector, pairs, nil
}

// EncodeUpdate encodes a vector-overwrite payload.
func EncodeUpdate(vector []float32) []byte {
	return appendVector(nil, vector)
}

// DecodeUpdate decodes a vector-overwrite payload.
func DecodeUpdate(payload []byte) ([]float32, error) {
	vector, _, err := readVector(payload)
	return vector, err
}

// EncodeMetadata encodes a metadata-replacement payload.
func EncodeMetadata(metadata []vecstore.Pair) []byte {
	return appendPairs(nil, metadata)
}

// DecodeMetadata decodes a metadata-replacement payload.
func DecodeMetadata(payload []byte) ([]vecstore.Pair, error) {
	pairs, _, err := readPairs(payload)
	return pairs, err
}

func appendVector(buf []byte, vector []float32) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vector)))
	for _, v := range vector {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func readVector(buf []byte) ([]float32, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, corrupt("vector length")
	}
	n := int(binary.LittleEndian.Uint32(buf))
	buf = buf[4:]
	if len(buf) < 4*n {
		return nil, nil, corrupt("vector data")
	}
	vector := make([]float32, n)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vector, buf[4*n:], nil
}

func appendPairs(buf []byte, pairs []vecstore.Pair) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(pairs)))
	for _, p := range pairs {
		buf = appendString(buf, p.Key)
		buf = appendString(buf, p.Value)
	}
	return buf
}

func readPairs(buf []byte) ([]vecstore.Pair, []byte, error) {
	if len(buf) < 2 {
		return nil, nil, corrupt("pair count")
	}
	n := int(binary.LittleEndian.Uint16(buf))
	buf = buf[2:]
	if n == 0 {
		return nil, buf, nil
	}
	pairs := make([]vecstore.Pair, 0, n)
	for i := 0; i < n; i++ {
		var key, value string
		var err error
		key, buf, err = readString(buf)
		if err != nil {
			return nil, nil, err
		}
		value, buf, err = readString(buf)
		if err != nil {
			return nil, nil, err
		}
		pairs = append(pairs, vecstore.Pair{Key: key, Value: value})
	}
	return pairs, buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func readString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, corrupt("string length")
	}
	n := int(binary.LittleEndian.Uint16(buf))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, corrupt("string data")
	}
	return string(buf[:n]), buf[n:], nil
}

func corrupt(what string) error {
	return verrors.New(verrors.ErrCodeWALCorrupt, "wal payload truncated: "+what, nil)
}
