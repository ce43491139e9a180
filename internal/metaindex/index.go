// Package metaindex maintains the reverse mapping from (key, value)
// metadata pairs to row ordinals, and evaluates compound filters against
// it. Like the row store it is unlocked; the owning database serializes
// access.
package metaindex

import (
	"github.com/vektordb/vektor/internal/vecstore"
)

type pairKey struct {
	key   string
	value string
}

// Index is the metadata inverted index: (key, value) -> set of ordinals,
// plus the per-row reverse map consulted on delete.
type Index struct {
	forward map[pairKey]map[uint64]struct{}
	reverse map[uint64][]pairKey
}

// New creates an empty index.
func New() *Index {
	return &Index{
		forward: make(map[pairKey]map[uint64]struct{}),
		reverse: make(map[uint64][]pairKey),
	}
}

// Add maps (key, value) -> ordinal.
func (ix *Index) Add(key, value string, ordinal uint64) {
	pk := pairKey{key: key, value: value}
	set, ok := ix.forward[pk]
	if !ok {
		set = make(map[uint64]struct{})
		ix.forward[pk] = set
	}
	if _, dup := set[ordinal]; dup {
		return
	}
	set[ordinal] = struct{}{}
	ix.reverse[ordinal] = append(ix.reverse[ordinal], pk)
}

// Remove unmaps (key, value) -> ordinal.
func (ix *Index) Remove(key, value string, ordinal uint64) {
	pk := pairKey{key: key, value: value}
	if set, ok := ix.forward[pk]; ok {
		delete(set, ordinal)
		if len(set) == 0 {
			delete(ix.forward, pk)
		}
	}

	pairs := ix.reverse[ordinal]
	for i, p := range pairs {
		if p == pk {
			ix.reverse[ordinal] = append(pairs[:i], pairs[i+1:]...)
			break
		}
	}
	if len(ix.reverse[ordinal]) == 0 {
		delete(ix.reverse, ordinal)
	}
}

// RemoveAll unmaps every pair registered for an ordinal. Called on row
// delete and on metadata replacement.
func (ix *Index) RemoveAll(ordinal uint64) {
	for _, pk := range ix.reverse[ordinal] {
		if set, ok := ix.forward[pk]; ok {
			delete(set, ordinal)
			if len(set) == 0 {
				delete(ix.forward, pk)
			}
		}
	}
	delete(ix.reverse, ordinal)
}

// RegisterRow maps every pair of a row's metadata chain.
func (ix *Index) RegisterRow(ordinal uint64, metadata []vecstore.Pair) {
	for _, p := range metadata {
		ix.Add(p.Key, p.Value, ordinal)
	}
}

// Query calls fn for every ordinal mapped to (key, value). Returning
// false stops the iteration.
func (ix *Index) Query(key, value string, fn func(ordinal uint64) bool) {
	for ord := range ix.forward[pairKey{key: key, value: value}] {
		if !fn(ord) {
			return
		}
	}
}

// Count returns how many ordinals are mapped to (key, value).
func (ix *Index) Count(key, value string) int {
	return len(ix.forward[pairKey{key: key, value: value}])
}

// Clear drops everything. Used by snapshot load before re-registration.
func (ix *Index) Clear() {
	ix.forward = make(map[pairKey]map[uint64]struct{})
	ix.reverse = make(map[uint64][]pairKey)
}

// equalitySet returns a copy of the ordinal set for (key, value).
func (ix *Index) equalitySet(key, value string) map[uint64]struct{} {
	src := ix.forward[pairKey{key: key, value: value}]
	out := make(map[uint64]struct{}, len(src))
	for ord := range src {
		out[ord] = struct{}{}
	}
	return out
}

// prefixSet unions the ordinal sets of every value under key with the
// given prefix.
func (ix *Index) prefixSet(key, prefix string) map[uint64]struct{} {
	out := make(map[uint64]struct{})
	for pk, set := range ix.forward {
		if pk.key != key || len(pk.value) < len(prefix) || pk.value[:len(prefix)] != prefix {
			continue
		}
		for ord := range set {
			out[ord] = struct{}{}
		}
	}
	return out
}
