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

// Package set builds a GHB container and its GHI index from records
// ingested in arbitrary order: annotation rows bucketed into columnar
// Range payloads, and BAM alignments bucketed into AlignmentRef pointers
// into their source file, one payload per touched (reference, bin).
package set

import (
	"errors"

	"github.com/biogo/ghb"
)

var (
	errDegenerate = errors.New("set: degenerate interval")
	errRefRange   = errors.New("set: reference id out of range")
)

type binKey struct {
	refID int32
	binID int
}

// binAccumulator gathers the rows or chunks destined for a single
// (ref_id, bin_id) payload until the build is finished and the payload is
// written once.
type binAccumulator struct {
	kind ghb.PayloadKind

	starts []uint64
	ends   []uint64
	names  []string
	aux    []ghb.Column

	sourcePath string
	chunks     []ghb.Chunk
}

func (acc *binAccumulator) payload() ghb.Payload {
	if acc.kind == ghb.PayloadAlignmentRef {
		return &ghb.AlignmentRef{SourcePath: acc.sourcePath, Chunks: acc.chunks}
	}
	return &ghb.Range{Starts: acc.starts, Ends: acc.ends, Names: acc.names, Aux: acc.aux}
}

// Builder ingests annotation and alignment records for one sample,
// bucketing each into the bin hierarchy of its reference, and emits a
// completed GHB container plus GHI index on Finish.
type Builder struct {
	w        *ghb.Writer
	sampleID uint32
	fileID   uint32

	refs []*ghb.Reference
	bins map[binKey]*binAccumulator

	unmapped *binAccumulator
}

// NewBuilder returns a Builder that writes payloads through w, tagging
// every Chunk it produces with sampleID and fileID, and lays out a
// default half-overlapping bin hierarchy for each of nRefs references.
func NewBuilder(w *ghb.Writer, sampleID, fileID uint32, nRefs int) *Builder {
	refs := make([]*ghb.Reference, nRefs)
	for i := range refs {
		refs[i] = ghb.NewDefaultReference()
	}
	return &Builder{
		w:        w,
		sampleID: sampleID,
		fileID:   fileID,
		refs:     refs,
		bins:     make(map[binKey]*binAccumulator),
	}
}

func (b *Builder) binFor(refID int32, start, end uint32) (*binAccumulator, error) {
	if end <= start {
		return nil, errDegenerate
	}
	if refID < 0 {
		if b.unmapped == nil {
			b.unmapped = &binAccumulator{kind: ghb.PayloadRange}
		}
		return b.unmapped, nil
	}
	if int(refID) >= len(b.refs) {
		return nil, errRefRange
	}
	region := ghb.NewRegion(uint32(refID), start, end)
	binID := b.refs[refID].RegionToBin(region)
	key := binKey{refID, binID}
	acc, ok := b.bins[key]
	if !ok {
		acc = &binAccumulator{}
		b.bins[key] = acc
	}
	return acc, nil
}

// AddAnnotation buckets one annotation interval into the Range
// accumulator of the bin enclosing [start, end) on refID. aux supplies
// any additional typed columns beyond start/end/name; its column order
// must be consistent across every call for the same (refID, bin).
func (b *Builder) AddAnnotation(refID int32, start, end uint32, name string, aux []ghb.Column) error {
	acc, err := b.binFor(refID, start, end)
	if err != nil {
		return err
	}
	acc.kind = ghb.PayloadRange
	acc.starts = append(acc.starts, uint64(start))
	acc.ends = append(acc.ends, uint64(end))
	acc.names = append(acc.names, name)
	for i, c := range aux {
		if i >= len(acc.aux) {
			acc.aux = append(acc.aux, ghb.Column{Type: c.Type})
		}
		if c.Type == ghb.ColumnString {
			acc.aux[i].Str = append(acc.aux[i].Str, c.Str...)
		} else {
			acc.aux[i].U64 = append(acc.aux[i].U64, c.U64...)
		}
	}
	return nil
}

// AddAlignment buckets a pointer to one external-BAM alignment, addressed
// by chunk, into the AlignmentRef accumulator of the bin enclosing
// [start, end) on refID. Every alignment bucketed under the same bin must
// share sourcePath.
func (b *Builder) AddAlignment(sourcePath string, refID int32, start, end uint32, chunk ghb.Chunk) error {
	acc, err := b.binFor(refID, start, end)
	if err != nil {
		return err
	}
	acc.kind = ghb.PayloadAlignmentRef
	acc.sourcePath = sourcePath
	acc.chunks = append(acc.chunks, chunk)
	return nil
}

// Finish writes one payload per touched bin, buckets the resulting Chunk
// into the index, sorts every bin's chunks by start offset, and flushes
// the container. It returns the completed Index and, if any unmapped
// records were ingested, the Chunk their payload occupies.
func (b *Builder) Finish() (*ghb.Index, *ghb.Chunk, error) {
	for key, acc := range b.bins {
		rec := &ghb.Record{RefID: uint32(key.refID), Payload: acc.payload()}
		chunk, err := b.w.Write(rec, b.sampleID, b.fileID)
		if err != nil {
			return nil, nil, err
		}
		ref := b.refs[key.refID]
		ref.EnsureBins()
		ref.Bins[key.binID].Chunks = append(ref.Bins[key.binID].Chunks, chunk)
	}
	for _, ref := range b.refs {
		for i := range ref.Bins {
			ghb.SortChunks(ref.Bins[i].Chunks)
		}
	}

	var unmappedChunk *ghb.Chunk
	if b.unmapped != nil {
		rec := &ghb.Record{Payload: b.unmapped.payload()}
		chunk, err := b.w.Write(rec, b.sampleID, b.fileID)
		if err != nil {
			return nil, nil, err
		}
		unmappedChunk = &chunk
	}

	if err := b.w.Finish(); err != nil {
		return nil, nil, err
	}
	return &ghb.Index{References: b.refs}, unmappedChunk, nil
}
