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
	"sort"

	"github.com/biogo/ghb/bgzf"
)

// VirtualOffset is a packed 64-bit position in a GHB container: the upper
// 48 bits are the byte offset of a block in the compressed stream, the
// lower 16 bits are the byte offset within that block's decompressed
// contents. VirtualOffsets are totally ordered by plain integer comparison.
type VirtualOffset uint64

const (
	// MinVirtualOffset is the smallest valid VirtualOffset.
	MinVirtualOffset VirtualOffset = 0
	// MaxVirtualOffset is the largest representable VirtualOffset.
	MaxVirtualOffset VirtualOffset = 1<<64 - 1
)

// NewVirtualOffset packs a bgzf.Offset into a VirtualOffset.
func NewVirtualOffset(o bgzf.Offset) VirtualOffset {
	return VirtualOffset(uint64(o.File)<<16 | uint64(o.Block))
}

// Offset unpacks v into a bgzf.Offset.
func (v VirtualOffset) Offset() bgzf.Offset {
	return bgzf.Offset{File: int64(v >> 16), Block: uint16(v & 0xffff)}
}

// File returns the compressed-stream byte offset of the block v names.
func (v VirtualOffset) File() int64 { return int64(v >> 16) }

// Block returns the decompressed byte offset within the block v names.
func (v VirtualOffset) Block() uint16 { return uint16(v & 0xffff) }

// Valid reports whether v is a plausible virtual offset: the block
// component must fit the 16-bit field, which is guaranteed by the type,
// so Valid only rejects the all-ones sentinel used to mark "unset".
func (v VirtualOffset) Valid() bool { return v != MaxVirtualOffset }

// Chunk is an addressable payload range inside a GHB container, scoped to
// one sample and source file. It is half-open: [Start, End).
type Chunk struct {
	SampleID uint32
	FileID   uint32
	Start    VirtualOffset
	End      VirtualOffset
}

// NewChunk returns a Chunk spanning [start, end) for the given sample and
// source file.
func NewChunk(sampleID, fileID uint32, start, end VirtualOffset) Chunk {
	return Chunk{SampleID: sampleID, FileID: fileID, Start: start, End: end}
}

// Less reports whether c sorts before d, ordering chunks lexicographically
// by start offset as the index's chunk-order invariant requires.
func (c Chunk) Less(d Chunk) bool {
	return c.Start < d.Start
}

// Overlaps reports whether c and d address overlapping byte ranges of the
// same sample and file.
func (c Chunk) Overlaps(d Chunk) bool {
	if c.SampleID != d.SampleID || c.FileID != d.FileID {
		return false
	}
	return c.Start < d.End && d.Start < c.End
}

// Adjacent reports whether d begins exactly where c ends, within the same
// sample and file, so the two chunks can be merged into one without
// reading any intervening bytes.
func (c Chunk) Adjacent(d Chunk) bool {
	return c.SampleID == d.SampleID && c.FileID == d.FileID && c.End == d.Start
}

// SortChunks sorts chunks in place by Start, the chunk-order invariant the
// GHI index format requires of every bin but the reserved summary bin.
func SortChunks(chunks []Chunk) {
	sort.Sort(chunksByStart(chunks))
}

// chunksByStart sorts a []Chunk lexicographically by Start, the ordering
// FetchChunks and the index serializer require.
type chunksByStart []Chunk

func (c chunksByStart) Len() int           { return len(c) }
func (c chunksByStart) Less(i, j int) bool { return c[i].Less(c[j]) }
func (c chunksByStart) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }

// MergeChunks sorts chunks in place by sample, then file, then Start, and
// coalesces adjacent or overlapping chunks of the same sample and file,
// matching the "callers may further merge adjacent chunks" contract
// FetchChunks documents. The result shares chunks' backing array.
func MergeChunks(chunks []Chunk) []Chunk {
	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.SampleID != b.SampleID {
			return a.SampleID < b.SampleID
		}
		if a.FileID != b.FileID {
			return a.FileID < b.FileID
		}
		return a.Start < b.Start
	})
	return mergeAdjacent(chunks)
}

// mergeAdjacent coalesces neighbouring chunks of the same sample and file
// that are adjacent or overlap. Each sample and file's chunks must be
// contiguous in chunks and sorted by Start, as MergeChunks arranges.
func mergeAdjacent(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	out := chunks[:1]
	for _, c := range chunks[1:] {
		last := &out[len(out)-1]
		if last.SampleID == c.SampleID && last.FileID == c.FileID && c.Start <= last.End {
			if c.End > last.End {
				last.End = c.End
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
