package hnsw

import (
	"io"

	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/index"
)

// Save writes the index block in two passes: per-row data (vector,
// metadata chain, node level, fingerprint), then per-level adjacency in
// the same enumeration order. The block carries every store row so load
// can rebuild the store with identical ordinals.
func (ix *Index) Save(w io.Writer) error {
	count := ix.store.Count()
	if err := index.WriteU64(w, count); err != nil {
		return err
	}
	if err := index.WriteBool(w, ix.entry >= 0); err != nil {
		return err
	}
	if err := index.WriteU64(w, uint64(max64(ix.entry, 0))); err != nil {
		return err
	}
	if err := index.WriteU32(w, uint32(ix.maxLevel)); err != nil {
		return err
	}

	// Pass 1: rows and node metadata.
	for ord := uint64(0); ord < count; ord++ {
		deleted, err := ix.store.IsDeleted(ord)
		if err != nil {
			return err
		}
		if err := index.WriteBool(w, deleted); err != nil {
			return err
		}
		if err := index.WriteVector(w, ix.store.Vector(ord)); err != nil {
			return err
		}
		if err := index.WritePairs(w, ix.store.Metadata(ord)); err != nil {
			return err
		}

		nd := ix.nodeAt(ord)
		if err := index.WriteBool(w, nd != nil); err != nil {
			return err
		}
		if nd == nil {
			continue
		}
		if err := index.WriteU32(w, uint32(nd.level)); err != nil {
			return err
		}
		if err := index.WriteBytes(w, nd.code); err != nil {
			return err
		}
	}

	// Pass 2: adjacency lists.
	for ord := uint64(0); ord < count; ord++ {
		nd := ix.nodeAt(ord)
		if nd == nil {
			continue
		}
		for lvl := 0; lvl <= nd.level; lvl++ {
			list := nd.neighbors[lvl]
			if err := index.WriteU32(w, uint32(len(list))); err != nil {
				return err
			}
			for _, nb := range list {
				if err := index.WriteU64(w, nb); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Load reconstructs the store rows and graph from a Save block, then
// wires adjacency by ordinal.
func (ix *Index) Load(r io.Reader) error {
	count, err := index.ReadU64(r)
	if err != nil {
		return err
	}
	hasEntry, err := index.ReadBool(r)
	if err != nil {
		return err
	}
	entry, err := index.ReadU64(r)
	if err != nil {
		return err
	}
	maxLevel, err := index.ReadU32(r)
	if err != nil {
		return err
	}

	ix.store.Reset()
	ix.nodes = make([]*node, count)
	ix.entry = -1
	ix.maxLevel = int(maxLevel)
	if hasEntry {
		ix.entry = int64(entry)
	}

	dim := ix.store.Dimension()
	for ord := uint64(0); ord < count; ord++ {
		deleted, err := index.ReadBool(r)
		if err != nil {
			return err
		}
		vector, err := index.ReadVector(r, dim)
		if err != nil {
			return err
		}
		pairs, err := index.ReadPairs(r)
		if err != nil {
			return err
		}
		got, err := ix.store.Add(vector, pairs)
		if err != nil {
			return err
		}
		if got != ord {
			return verrors.FormatError("hnsw block rows out of order")
		}
		if deleted {
			if err := ix.store.MarkDeleted(ord); err != nil {
				return err
			}
		}

		hasNode, err := index.ReadBool(r)
		if err != nil {
			return err
		}
		if !hasNode {
			continue
		}
		level, err := index.ReadU32(r)
		if err != nil {
			return err
		}
		code, err := index.ReadBytes(r)
		if err != nil {
			return err
		}
		ix.nodes[ord] = &node{
			level:     int(level),
			neighbors: make([][]uint64, level+1),
			deleted:   deleted,
			code:      code,
		}
	}

	for ord := uint64(0); ord < count; ord++ {
		nd := ix.nodes[ord]
		if nd == nil {
			continue
		}
		for lvl := 0; lvl <= nd.level; lvl++ {
			n, err := index.ReadU32(r)
			if err != nil {
				return err
			}
			list := make([]uint64, n)
			for i := range list {
				nb, err := index.ReadU64(r)
				if err != nil {
					return err
				}
				if nb >= count {
					return verrors.FormatError("hnsw adjacency references unknown ordinal")
				}
				list[i] = nb
			}
			nd.neighbors[lvl] = list
		}
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
