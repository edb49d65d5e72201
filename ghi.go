// Copyright ©2012 Dan Kortschak <dan.kortschak@adelaide.edu.au>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package ghb

import (
	"fmt"
	"io"
	"sort"
)

// ghiMagic identifies a GHI index stream.
var ghiMagic = [4]byte{'G', 'H', 'I', 0x01}

// SummaryBinID is the reserved bin index that carries a Reference's
// ReferenceStats instead of a real chunk bucket. It is exempt from the
// chunk-order invariant enforced on the other bins.
const SummaryBinID = 37450

var (
	errBadMagic   = fmt.Errorf("ghb: bad GHI magic: %w", ErrCorruptFormat)
	errChunkOrder = fmt.Errorf("ghb: chunks not ordered by start offset: %w", ErrCorruptFormat)
)

// ReferenceStats carries per-reference mapped/unmapped record counts,
// stored packed into the summary bin's single chunk.
type ReferenceStats struct {
	Mapped   uint64
	Unmapped uint64
}

func encodeReferenceStats(s ReferenceStats) Chunk {
	return NewChunk(0, 0, VirtualOffset(s.Mapped), VirtualOffset(s.Unmapped))
}

func decodeReferenceStats(c Chunk) ReferenceStats {
	return ReferenceStats{Mapped: uint64(c.Start), Unmapped: uint64(c.End)}
}

// Stats returns r's reference-level statistics, if it carries any.
func (r *Reference) Stats() (ReferenceStats, bool) {
	if r.BinCount() <= SummaryBinID || len(r.Bins) <= SummaryBinID {
		return ReferenceStats{}, false
	}
	chunks := r.Bins[SummaryBinID].Chunks
	if len(chunks) == 0 {
		return ReferenceStats{}, false
	}
	return decodeReferenceStats(chunks[0]), true
}

// SetStats records ref-level statistics in r's reserved summary bin,
// growing r.Bins if needed.
func (r *Reference) SetStats(s ReferenceStats) {
	r.EnsureBins()
	if len(r.Bins) <= SummaryBinID {
		grown := make([]Bin, SummaryBinID+1)
		copy(grown, r.Bins)
		r.Bins = grown
	}
	r.Bins[SummaryBinID].Chunks = []Chunk{encodeReferenceStats(s)}
}

// Index is a GHI index: one Reference bin hierarchy per reference
// sequence named by a Header.
type Index struct {
	References []*Reference
}

// checkChunkOrder validates the "chunks ordered by start offset" invariant
// every bin except SummaryBinID must satisfy.
func (idx *Index) checkChunkOrder() error {
	for _, ref := range idx.References {
		for binID, b := range ref.Bins {
			if binID == SummaryBinID {
				continue
			}
			for i := 1; i < len(b.Chunks); i++ {
				if !b.Chunks[i-1].Less(b.Chunks[i]) {
					return errChunkOrder
				}
			}
		}
	}
	return nil
}

// WriteIndex serializes idx to w in GHI wire format.
func WriteIndex(w io.Writer, idx *Index) error {
	if err := idx.checkChunkOrder(); err != nil {
		return err
	}
	if _, err := w.Write(ghiMagic[:]); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(idx.References))); err != nil {
		return err
	}
	for _, ref := range idx.References {
		if err := writeUint64(w, ref.BinCountMask); err != nil {
			return err
		}
		var pitch [63]byte
		for i := range pitch {
			pitch[i] = ref.BinPitchIndices[i]
		}
		if _, err := w.Write(pitch[:]); err != nil {
			return err
		}

		nonEmpty := make([]uint32, 0, len(ref.Bins))
		for id, b := range ref.Bins {
			if len(b.Chunks) > 0 {
				nonEmpty = append(nonEmpty, uint32(id))
			}
		}
		sort.Slice(nonEmpty, func(i, j int) bool { return nonEmpty[i] < nonEmpty[j] })

		if err := writeInt32(w, int32(len(nonEmpty))); err != nil {
			return err
		}
		for _, id := range nonEmpty {
			chunks := ref.Bins[id].Chunks
			if err := writeUint32(w, id); err != nil {
				return err
			}
			if err := writeInt32(w, int32(len(chunks))); err != nil {
				return err
			}
			for _, c := range chunks {
				if err := writeUint32(w, c.SampleID); err != nil {
					return err
				}
				if err := writeUint32(w, c.FileID); err != nil {
					return err
				}
				if err := writeUint64(w, uint64(c.Start)); err != nil {
					return err
				}
				if err := writeUint64(w, uint64(c.End)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ReadIndex deserializes a GHI index from r.
func ReadIndex(r io.Reader) (*Index, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errTruncated
	}
	if magic != ghiMagic {
		return nil, errBadMagic
	}
	var nRef int32
	if err := readInt32(r, &nRef); err != nil {
		return nil, err
	}
	idx := &Index{References: make([]*Reference, nRef)}
	for i := range idx.References {
		var mask uint64
		if err := readUint64(r, &mask); err != nil {
			return nil, err
		}
		var pitch [63]byte
		if _, err := io.ReadFull(r, pitch[:]); err != nil {
			return nil, errTruncated
		}
		var pitchIndices [64]uint8
		for j := range pitch {
			pitchIndices[j] = pitch[j]
		}
		ref := NewReference(mask, pitchIndices)

		var nBins int32
		if err := readInt32(r, &nBins); err != nil {
			return nil, err
		}
		ref.EnsureBins()
		for b := int32(0); b < nBins; b++ {
			var binID uint32
			var nChunks int32
			if err := readUint32(r, &binID); err != nil {
				return nil, err
			}
			if err := readInt32(r, &nChunks); err != nil {
				return nil, err
			}
			chunks := make([]Chunk, nChunks)
			for c := range chunks {
				var sampleID, fileID uint32
				var start, end uint64
				if err := readUint32(r, &sampleID); err != nil {
					return nil, err
				}
				if err := readUint32(r, &fileID); err != nil {
					return nil, err
				}
				if err := readUint64(r, &start); err != nil {
					return nil, err
				}
				if err := readUint64(r, &end); err != nil {
					return nil, err
				}
				chunks[c] = NewChunk(sampleID, fileID, VirtualOffset(start), VirtualOffset(end))
			}
			if int(binID) >= len(ref.Bins) {
				grown := make([]Bin, binID+1)
				copy(grown, ref.Bins)
				ref.Bins = grown
			}
			ref.Bins[binID].Chunks = chunks
		}
		idx.References[i] = ref
	}
	return idx, nil
}

// FetchChunks returns the start-ordered chunks of every bin that region
// touches on the given reference's hierarchy. It does not coalesce
// adjacent or overlapping chunks; callers that want that may pass the
// result to MergeChunks.
func (idx *Index) FetchChunks(refID uint32, region Region) ([]Chunk, error) {
	if int(refID) >= len(idx.References) {
		return nil, fmt.Errorf("ghb: reference id %d out of range: %w", refID, ErrInvalidRegion)
	}
	ref := idx.References[refID]
	it := ref.RegionToBins(region)
	var all []Chunk
	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		for i, b := range s.Bins {
			if s.BinDispStart+i == SummaryBinID {
				continue
			}
			all = append(all, b.Chunks...)
		}
	}
	sort.Sort(chunksByStart(all))
	return all, nil
}

// MergeChunks coalesces adjacent or overlapping chunks of the same sample
// and file, as the package-level MergeChunks does, reordering chunks in
// place. It is for callers that want to reduce seek count after
// FetchChunks.
func (idx *Index) MergeChunks(chunks []Chunk) []Chunk {
	return MergeChunks(chunks)
}

func writeInt32(w io.Writer, v int32) error { return writeUint32(w, uint32(v)) }
func readInt32(r io.Reader, v *int32) error {
	var u uint32
	if err := readUint32(r, &u); err != nil {
		return err
	}
	*v = int32(u)
	return nil
}
