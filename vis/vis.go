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

// Package vis packs alignments fetched from a ChromosomeBuffer into
// non-overlapping display rows, one packing per sample, with split-read
// linkage and row-count truncation. The planner produces a pure value; it
// does not render anything itself.
package vis

import (
	"sort"
	"strings"
)

// Hidden is the sentinel row index meaning "not displayed". Filters and
// max-coverage truncation rewrite a record's row to Hidden rather than
// dropping the record, so index_list keeps one entry per record, in sort
// order.
const Hidden = ^uint32(0)

// AlignRecord is one alignment fed to Plan, already resolved to reference
// coordinates.
type AlignRecord struct {
	SampleID uint32
	ReadName string
	Start    uint32
	End      uint32
	LeftClip uint32
	Tags     map[string]string
}

// Options controls sorting, packing, split-read linkage, and filtering.
type Options struct {
	SortByName  bool
	SortByCigar bool

	SplitAlignment bool

	// MaxCoverage caps the number of rows shown per sample; 0 means
	// unbounded. Rows beyond the cap are hidden, not dropped.
	MaxCoverage uint32

	OnlySplitAlignment    bool
	ExcludeSplitAlignment bool
	FilterByReadName      string
	// FilterByTag is "TAG:value"; records whose tag doesn't match are
	// hidden.
	FilterByTag string

	PrefetchMax uint32
}

// SampleRows is one sample's cumulative row count, the running total used
// to lay out per-sample vertical stripes.
type SampleRows struct {
	SampleID      uint32
	CumulativeRow uint32
}

// Supplementary links the rows of a split read's first and last placed
// segments, so a renderer can draw a connecting curve across stripes.
type Supplementary struct {
	ReadName   string
	RowStart   uint32
	RowEnd     uint32
	LeftEnd    uint32
	RightStart uint32
}

// Vis is a render plan: reproducible purely from its inputs, carrying no
// reference to the buffer or records that produced it.
type Vis struct {
	IndexList         []uint32
	CompressedList    []SampleRows
	SupplementaryList []Supplementary
	PrevIndex         uint32
	PrefetchMax       uint32
}

type nameKey struct {
	sample uint32
	name   string
}

// Plan sorts records, packs each sample's rows independently, links split
// reads, and applies filters and max-coverage truncation. index_list is in
// sort order, not input order.
func Plan(records []AlignRecord, opts Options) Vis {
	order := sortOrder(records, opts)

	packing := make(map[uint32][]uint32)
	nameRow := make(map[nameKey]int)
	groups := make(map[nameKey][]int)
	localRow := make([]uint32, len(order))

	for pos, idx := range order {
		rec := records[idx]
		key := nameKey{rec.SampleID, rec.ReadName}
		rows := packing[rec.SampleID]

		row := -1
		if opts.SplitAlignment {
			if r, ok := nameRow[key]; ok {
				row = r
			}
		}
		if row == -1 {
			// First fit: the lowest row whose tracked end lies before
			// this record's start.
			for i, end := range rows {
				if end < rec.Start {
					row = i
					break
				}
			}
		}
		if row == -1 {
			row = len(rows)
			rows = append(rows, rec.End)
		} else if rec.End > rows[row] {
			// A reused row's tracked end moves to the furthest end placed
			// in it (first fit or split-read name match).
			rows[row] = rec.End
		}
		packing[rec.SampleID] = rows
		if opts.SplitAlignment {
			nameRow[key] = row
		}

		localRow[pos] = uint32(row)
		groups[key] = append(groups[key], pos)
	}

	sampleIDs := make([]uint32, 0, len(packing))
	for sid := range packing {
		sampleIDs = append(sampleIDs, sid)
	}
	sort.Slice(sampleIDs, func(i, j int) bool { return sampleIDs[i] < sampleIDs[j] })

	offsets := make(map[uint32]uint32, len(sampleIDs))
	compressed := make([]SampleRows, 0, len(sampleIDs))
	var cumulative uint32
	for _, sid := range sampleIDs {
		offsets[sid] = cumulative
		cumulative += uint32(len(packing[sid]))
		compressed = append(compressed, SampleRows{SampleID: sid, CumulativeRow: cumulative})
	}

	indexList := make([]uint32, len(order))
	for pos, idx := range order {
		rec := records[idx]
		if opts.MaxCoverage > 0 && localRow[pos] >= opts.MaxCoverage {
			indexList[pos] = Hidden
			continue
		}
		indexList[pos] = offsets[rec.SampleID] + localRow[pos]
	}

	for pos, idx := range order {
		rec := records[idx]
		key := nameKey{rec.SampleID, rec.ReadName}
		isSplit := len(groups[key]) > 1
		hide := false
		switch {
		case opts.OnlySplitAlignment && !isSplit:
			hide = true
		case opts.ExcludeSplitAlignment && isSplit:
			hide = true
		}
		if opts.FilterByReadName != "" && rec.ReadName != opts.FilterByReadName {
			hide = true
		}
		if opts.FilterByTag != "" {
			tag, val, ok := strings.Cut(opts.FilterByTag, ":")
			if !ok || rec.Tags[tag] != val {
				hide = true
			}
		}
		if hide {
			indexList[pos] = Hidden
		}
	}

	var supplementary []Supplementary
	if opts.SplitAlignment {
		for pos, idx := range order {
			rec := records[idx]
			idxs := groups[nameKey{rec.SampleID, rec.ReadName}]
			if len(idxs) < 2 || idxs[0] != pos {
				continue
			}
			first, last := idxs[0], idxs[len(idxs)-1]
			supplementary = append(supplementary, Supplementary{
				ReadName:   rec.ReadName,
				RowStart:   indexList[first],
				RowEnd:     indexList[last],
				LeftEnd:    records[order[first]].End,
				RightStart: records[order[last]].Start,
			})
		}
	}

	return Vis{
		IndexList:         indexList,
		CompressedList:    compressed,
		SupplementaryList: supplementary,
		PrevIndex:         cumulative,
		PrefetchMax:       opts.PrefetchMax,
	}
}

// sortOrder returns indices into records in display order: by
// (sample, start) by default, by (sample, read name, start) when
// SortByName, or by (sample, read name, left clip) when SortByCigar.
func sortOrder(records []AlignRecord, opts Options) []int {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := records[order[i]], records[order[j]]
		if a.SampleID != b.SampleID {
			return a.SampleID < b.SampleID
		}
		switch {
		case opts.SortByCigar:
			if a.ReadName != b.ReadName {
				return a.ReadName < b.ReadName
			}
			return a.LeftClip < b.LeftClip
		case opts.SortByName:
			if a.ReadName != b.ReadName {
				return a.ReadName < b.ReadName
			}
			return a.Start < b.Start
		default:
			return a.Start < b.Start
		}
	})
	return order
}
