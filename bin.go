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

import "math/bits"

// DefaultBinCountMask and DefaultBinPitchIndices lay out the standard
// half-overlapping hierarchy for a reference of up to 512Mbp: depths of
// 1, 16, 128, 1024, 8192 and 65536 bins, with pitches of 2^29 down to
// 2^14.
const DefaultBinCountMask uint64 = 0b10010010010010001

// DefaultBinPitchIndices holds the per-depth log2 pitch for the default
// layout, indexed by depth (0 = shallowest). Pitch strictly decreases with
// depth so each level subdivides the one above it.
var DefaultBinPitchIndices = [64]uint8{
	0: 29,
	1: 26,
	2: 23,
	3: 20,
	4: 17,
	5: 14,
}

// Bin is one bucket of a Reference's bin hierarchy, holding every Chunk
// whose record falls in that bucket's span.
type Bin struct {
	Chunks []Chunk
}

// Reference is a variable-pitch, half-overlapping bin hierarchy covering
// one reference sequence plus the bins' chunk tables.
//
// BinCountMask's set bits encode, from LSB to MSB, the bin count at each
// depth (so popcount(BinCountMask) is the number of depths, at most 63).
// BinPitchIndices[d] is the log2 of the bin pitch at depth d; the bin
// span at that depth is twice the pitch, so consecutive bins at a depth
// overlap by half their span.
type Reference struct {
	BinCountMask     uint64
	BinPitchIndices  [64]uint8
	Bins             []Bin
}

// NewReference returns a Reference with the given layout and no bins.
func NewReference(binCountMask uint64, binPitchIndices [64]uint8) *Reference {
	return &Reference{BinCountMask: binCountMask, BinPitchIndices: binPitchIndices}
}

// NewDefaultReference returns a Reference using the standard half
// overlapping layout for references up to 512Mbp.
func NewDefaultReference() *Reference {
	return NewReference(DefaultBinCountMask, DefaultBinPitchIndices)
}

// NewBAIHalfOverlapping returns the same half-overlapping hierarchy as
// NewDefaultReference, under the name used for it elsewhere (BAI-style
// half overlap, reference length at most 512Mbp).
func NewBAIHalfOverlapping() *Reference {
	return NewDefaultReference()
}

// Slice is one depth's worth of bins touched by a region, yielded by
// BinsIter.
type Slice struct {
	// Bins is the subslice of Reference.Bins covered at this depth.
	Bins []Bin
	// BinSize is the bin span (twice the pitch) at this depth.
	BinSize int
	// BinDispStart is the index into Reference.Bins of the first bin in
	// this Slice.
	BinDispStart int
	// Span is the number of bin indices this Slice addresses at its
	// depth, before clamping to Reference.Bins' bounds. Span == 1 means
	// region fits inside a single bin at this depth.
	Span int
	// Range runs from the start of the first addressed bin to the start
	// of the last addressed bin plus one pitch. The last bin is twice the
	// pitch wide, so it extends one pitch beyond Range.End.
	Range Region
}

// BinsIter walks a Reference's depths shallowest-first, yielding the
// Slice of bins a Region touches at each depth.
type BinsIter struct {
	region   Region
	finished uint64
	ref      *Reference
}

// RegionToBins returns an iterator over the bin Slices region touches, one
// per depth, shallowest first.
func (r *Reference) RegionToBins(region Region) *BinsIter {
	return &BinsIter{region: region, ref: r}
}

// Next returns the next Slice, or ok == false when depths are exhausted.
func (it *BinsIter) Next() (Slice, bool) {
	finished := it.finished
	everything := it.ref.BinCountMask

	remaining := everything &^ finished
	if remaining == 0 {
		return Slice{}, false
	}

	binOfsBase := everything & finished
	depth := bits.OnesCount64(binOfsBase)

	// The lowest set bit of remaining is this depth's own bit in
	// BinCountMask, whose value is the bin count at this depth (mask bits
	// encode per-depth counts directly, not just presence).
	countAtDepth := remaining & -remaining

	pitchIndex := it.ref.BinPitchIndices[depth]
	pitch := uint64(1) << pitchIndex
	binSize := int(2 * pitch)

	dispStart := uint64(it.region.Start) >> pitchIndex
	if dispStart > 0 {
		dispStart--
	}

	dispEnd := uint64(it.region.End)>>pitchIndex + 1
	if dispEnd > countAtDepth {
		dispEnd = countAtDepth
	}

	rangeStart := dispStart << pitchIndex
	rangeEnd := dispEnd << pitchIndex
	binDispStart := int(binOfsBase) + int(dispStart)
	binDispEnd := int(binOfsBase) + int(dispEnd)
	span := binDispEnd - binDispStart

	it.finished = remaining ^ (remaining - 1)

	clampedEnd := binDispEnd
	if clampedEnd > len(it.ref.Bins) {
		clampedEnd = len(it.ref.Bins)
	}
	clampedStart := binDispStart
	if clampedStart > clampedEnd {
		clampedStart = clampedEnd
	}

	return Slice{
		Bins:         it.ref.Bins[clampedStart:clampedEnd],
		BinSize:      binSize,
		BinDispStart: binDispStart,
		Span:         span,
		Range:        NewRegion(it.region.RefID, uint32(rangeStart), uint32(rangeEnd)),
	}, true
}

// RegionToBin returns the index of a bin whose span fully contains region:
// it walks depths shallowest first and keeps descending while region
// addresses a single bin index (Span == 1) at the current depth, stopping
// at the first depth where Span is larger. Because Span includes a
// one-bin margin on each side, at any depth with more than one bin Span
// is 1 only while region.End is below that depth's pitch, so the result
// is always the first bin of its depth; it is not necessarily the deepest
// bin that contains region.
func (r *Reference) RegionToBin(region Region) int {
	it := r.RegionToBins(region)
	best := 0
	for {
		s, ok := it.Next()
		if !ok {
			return best
		}
		if s.Span > 1 {
			return best
		}
		best = s.BinDispStart
	}
}

// Depth returns the number of depths this Reference's layout defines.
func (r *Reference) Depth() int { return bits.OnesCount64(r.BinCountMask) }

// BinCount returns the total number of bins this Reference's layout
// defines, i.e. BinCountMask read as an integer.
func (r *Reference) BinCount() int { return int(r.BinCountMask) }

// EnsureBins grows r.Bins to BinCount() elements if it is not already
// that size, so bin indices produced by RegionToBin/RegionToBins are
// always valid insertion points.
func (r *Reference) EnsureBins() {
	if n := r.BinCount(); len(r.Bins) < n {
		grown := make([]Bin, n)
		copy(grown, r.Bins)
		r.Bins = grown
	}
}
