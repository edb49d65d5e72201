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
	"bytes"
	"errors"
	"testing"
)

func TestIndexWriteReadRoundTrip(t *testing.T) {
	ref := NewDefaultReference()
	ref.EnsureBins()
	bin := ref.RegionToBin(NewRegion(0, 1000, 1100))
	ref.Bins[bin].Chunks = []Chunk{
		NewChunk(0, 0, 0, 100),
		NewChunk(0, 0, 200, 300),
	}
	ref.SetStats(ReferenceStats{Mapped: 42, Unmapped: 3})

	idx := &Index{References: []*Reference{ref}}

	var buf bytes.Buffer
	if err := WriteIndex(&buf, idx); err != nil {
		t.Fatal(err)
	}

	got, err := ReadIndex(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.References) != 1 {
		t.Fatalf("got %d references, want 1", len(got.References))
	}
	gref := got.References[0]
	if gref.BinCountMask != ref.BinCountMask {
		t.Errorf("BinCountMask = %d, want %d", gref.BinCountMask, ref.BinCountMask)
	}
	if len(gref.Bins[bin].Chunks) != 2 {
		t.Fatalf("bin %d has %d chunks, want 2", bin, len(gref.Bins[bin].Chunks))
	}
	stats, ok := gref.Stats()
	if !ok {
		t.Fatal("expected stats to round-trip")
	}
	if stats.Mapped != 42 || stats.Unmapped != 3 {
		t.Errorf("stats = %+v, want {42 3}", stats)
	}
}

func TestFetchChunksDoesNotMerge(t *testing.T) {
	ref := NewDefaultReference()
	ref.EnsureBins()
	region := NewRegion(0, 1000, 1100)
	bin := ref.RegionToBin(region)
	ref.Bins[bin].Chunks = []Chunk{
		NewChunk(0, 0, 0, 100),
		NewChunk(0, 0, 100, 200),
	}
	idx := &Index{References: []*Reference{ref}}

	chunks, err := idx.FetchChunks(0, region)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("FetchChunks returned %d chunks, want 2 (unmerged)", len(chunks))
	}

	merged := idx.MergeChunks(chunks)
	if len(merged) != 1 {
		t.Fatalf("MergeChunks returned %d chunks, want 1", len(merged))
	}
}

func TestFetchChunksUnknownReference(t *testing.T) {
	idx := &Index{References: []*Reference{NewDefaultReference()}}
	if _, err := idx.FetchChunks(5, NewRegion(5, 0, 100)); err == nil {
		t.Error("expected error for out of range reference id")
	} else if !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("error = %v, want wrapping ErrInvalidRegion", err)
	}
}

func TestWriteIndexRejectsUnorderedChunks(t *testing.T) {
	ref := NewDefaultReference()
	ref.EnsureBins()
	ref.Bins[0].Chunks = []Chunk{
		NewChunk(0, 0, 100, 200),
		NewChunk(0, 0, 0, 50),
	}
	idx := &Index{References: []*Reference{ref}}
	var buf bytes.Buffer
	if err := WriteIndex(&buf, idx); err == nil {
		t.Error("expected chunk-order error")
	} else if !errors.Is(err, ErrCorruptFormat) {
		t.Errorf("error = %v, want wrapping ErrCorruptFormat", err)
	}
}

func TestSummaryBinExemptFromChunkOrder(t *testing.T) {
	ref := NewDefaultReference()
	ref.SetStats(ReferenceStats{Mapped: 1, Unmapped: 1})
	// SetStats always writes exactly one chunk to the summary bin, so
	// the order invariant (which only matters for >= 2 chunks) can never
	// be violated there; this just confirms writing succeeds.
	idx := &Index{References: []*Reference{ref}}
	var buf bytes.Buffer
	if err := WriteIndex(&buf, idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadIndexBadMagic(t *testing.T) {
	buf := bytes.NewReader([]byte("XXXX"))
	if _, err := ReadIndex(buf); err == nil {
		t.Error("expected bad magic error")
	} else if !errors.Is(err, ErrCorruptFormat) {
		t.Errorf("error = %v, want wrapping ErrCorruptFormat", err)
	}
}

func TestReadIndexTruncated(t *testing.T) {
	buf := bytes.NewReader(ghiMagic[:2])
	if _, err := ReadIndex(buf); err == nil {
		t.Error("expected truncated read error")
	}
}

func TestStatsAbsentByDefault(t *testing.T) {
	ref := NewDefaultReference()
	ref.EnsureBins()
	if _, ok := ref.Stats(); ok {
		t.Error("expected no stats on a fresh reference")
	}
}
