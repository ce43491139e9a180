package diskann

import (
	"io"
	"math"

	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/index"
)

// Save writes tuning, medoid, PQ codebooks, per-node rows and graph
// state, and the data-file path.
func (ix *Index) Save(w io.Writer) error {
	if err := index.WriteU32(w, uint32(ix.cfg.MaxDegree)); err != nil {
		return err
	}
	if err := index.WriteU64(w, math.Float64bits(ix.cfg.Alpha)); err != nil {
		return err
	}
	if err := index.WriteU32(w, uint32(ix.cfg.BuildBeamWidth)); err != nil {
		return err
	}
	if err := index.WriteU32(w, uint32(ix.cfg.SearchBeamWidth)); err != nil {
		return err
	}
	if err := index.WriteU32(w, uint32(ix.cfg.SectorSize)); err != nil {
		return err
	}
	if err := index.WriteBool(w, ix.medoid >= 0); err != nil {
		return err
	}
	medoid := ix.medoid
	if medoid < 0 {
		medoid = 0
	}
	if err := index.WriteU64(w, uint64(medoid)); err != nil {
		return err
	}

	if err := index.WriteBool(w, ix.pq != nil); err != nil {
		return err
	}
	if ix.pq != nil {
		if err := ix.pq.save(w); err != nil {
			return err
		}
	}

	count := ix.store.Count()
	if err := index.WriteU64(w, count); err != nil {
		return err
	}
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
		if err := index.WriteU32(w, uint32(len(nd.neighbors))); err != nil {
			return err
		}
		for _, nb := range nd.neighbors {
			if err := index.WriteU64(w, nb); err != nil {
				return err
			}
		}
		if err := index.WriteBytes(w, nd.code); err != nil {
			return err
		}
	}

	return index.WriteString(w, ix.cfg.DataPath)
}

// Load reconstructs the store, graph, and quantizer from a Save block,
// then restores the backing file when it is missing or short.
func (ix *Index) Load(r io.Reader) error {
	maxDegree, err := index.ReadU32(r)
	if err != nil {
		return err
	}
	alphaBits, err := index.ReadU64(r)
	if err != nil {
		return err
	}
	buildBeam, err := index.ReadU32(r)
	if err != nil {
		return err
	}
	searchBeam, err := index.ReadU32(r)
	if err != nil {
		return err
	}
	sector, err := index.ReadU32(r)
	if err != nil {
		return err
	}
	ix.cfg.MaxDegree = int(maxDegree)
	ix.cfg.Alpha = math.Float64frombits(alphaBits)
	ix.cfg.BuildBeamWidth = int(buildBeam)
	ix.cfg.SearchBeamWidth = int(searchBeam)
	if int(sector) != ix.cfg.SectorSize {
		return verrors.FormatError("diskann sector size differs from the open configuration")
	}

	hasMedoid, err := index.ReadBool(r)
	if err != nil {
		return err
	}
	medoid, err := index.ReadU64(r)
	if err != nil {
		return err
	}
	ix.medoid = -1
	if hasMedoid {
		ix.medoid = int64(medoid)
	}

	hasPQ, err := index.ReadBool(r)
	if err != nil {
		return err
	}
	ix.pq = nil
	if hasPQ {
		pq, err := loadPQ(r)
		if err != nil {
			return err
		}
		ix.pq = pq
	}

	count, err := index.ReadU64(r)
	if err != nil {
		return err
	}

	ix.store.Reset()
	ix.nodes = make([]*dnode, count)
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
			return verrors.FormatError("diskann block rows out of order")
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
		ncount, err := index.ReadU32(r)
		if err != nil {
			return err
		}
		neighbors := make([]uint64, ncount)
		for i := range neighbors {
			nb, err := index.ReadU64(r)
			if err != nil {
				return err
			}
			if nb >= count {
				return verrors.FormatError("diskann adjacency references unknown ordinal")
			}
			neighbors[i] = nb
		}
		code, err := index.ReadBytes(r)
		if err != nil {
			return err
		}
		ix.nodes[ord] = &dnode{neighbors: neighbors, code: code, deleted: deleted}
	}

	if _, err := index.ReadString(r); err != nil {
		// The saved path is advisory; the configured one wins.
		return err
	}

	return ix.restoreDataFile(count)
}

// restoreDataFile rewrites slots from the store when the backing file is
// shorter than the loaded row count requires.
func (ix *Index) restoreDataFile(count uint64) error {
	size, err := ix.disk.size()
	if err != nil {
		return err
	}
	if size >= int64(count)*ix.disk.slotSize {
		return nil
	}
	for ord := uint64(0); ord < count; ord++ {
		if ix.nodes[ord] == nil {
			continue
		}
		if err := ix.disk.writeVector(ord, ix.store.Vector(ord)); err != nil {
			return err
		}
	}
	return ix.disk.sync()
}
