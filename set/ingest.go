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

package set

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/ghb"
	"github.com/biogo/ghb/bam"
	"github.com/biogo/ghb/bgzf"
	"github.com/biogo/ghb/csi"
	"github.com/biogo/ghb/tabix"
)

// IngestBAM streams every alignment from br through b, bucketing a
// pointer to its source chunk (captured from br's position after each
// read) rather than re-encoding the alignment bytes into the GHB stream.
// Unplaced records (no reference, or position -1) go to b's unmapped
// bucket. It returns the number of alignments ingested.
func IngestBAM(b *Builder, sourcePath string, br *bam.Reader) (int, error) {
	n := 0
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		c := br.LastChunk()
		chunk := ghb.NewChunk(b.sampleID, b.fileID, ghb.NewVirtualOffset(c.Begin), ghb.NewVirtualOffset(c.End))

		refID := int32(-1)
		if rec.Ref != nil && rec.Pos >= 0 {
			refID = int32(rec.Ref.ID())
		}
		start, end := rec.Start(), rec.End()
		if refID < 0 {
			// The unmapped bucket ignores coordinates; any non-empty
			// interval passes binFor's check.
			start, end = 0, 1
		} else if end <= start {
			end = start + 1
		}
		if err := b.AddAlignment(sourcePath, refID, uint32(start), uint32(end), chunk); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// IngestBAMRegion is IngestBAM restricted to the bgzf chunks idx reports
// for [start, end) on refID, the fast path a region query takes instead
// of a full linear scan of br. Records whose span doesn't actually
// overlap [start, end) are skipped, since csi.Index.Chunks can return
// chunks that run past the query window's edges.
func IngestBAMRegion(b *Builder, sourcePath string, br *bam.Reader, idx *csi.Index, refID int32, start, end int) (int, error) {
	n := 0
	for _, chunk := range idx.Chunks(int(refID), start, end) {
		chunk := chunk
		if err := br.SetChunk(&chunk); err != nil {
			return n, err
		}
		for {
			rec, err := br.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return n, err
			}
			recStart, recEnd := rec.Start(), rec.End()
			if recEnd <= start || recStart >= end {
				continue
			}
			if recEnd <= recStart {
				recEnd = recStart + 1
			}
			c := br.LastChunk()
			ghbChunk := ghb.NewChunk(b.sampleID, b.fileID, ghb.NewVirtualOffset(c.Begin), ghb.NewVirtualOffset(c.End))
			if err := b.AddAlignment(sourcePath, refID, uint32(recStart), uint32(recEnd), ghbChunk); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// bedAux is the aux column layout IngestBED always produces: score (u64)
// then strand (string), matching the 6-field canonical BED form §6 names.
func bedAux() []ghb.Column {
	return []ghb.Column{
		{Type: ghb.ColumnUint64},
		{Type: ghb.ColumnString},
	}
}

// IngestBED streams whitespace/tab-delimited BED rows (chrom, start, end,
// and optionally name, score, strand — the 6-field canonical form §6
// names) from r through b as annotation Range rows. refIndex maps a
// chromosome name to its reference id, matching the container header's
// ref dict. It returns the number of rows ingested.
func IngestBED(b *Builder, r io.Reader, refIndex map[string]int32) (int, error) {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		refID, ok := refIndex[fields[0]]
		if !ok {
			continue
		}
		start, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return n, err
		}
		end, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return n, err
		}
		name, score, strand := "", uint64(0), "."
		if len(fields) > 3 {
			name = fields[3]
		}
		if len(fields) > 4 {
			score, err = strconv.ParseUint(fields[4], 10, 64)
			if err != nil {
				return n, err
			}
		}
		if len(fields) > 5 {
			strand = fields[5]
		}
		aux := bedAux()
		aux[0].U64 = []uint64{score}
		aux[1].Str = []string{strand}
		if err := b.AddAnnotation(refID, uint32(start), uint32(end), name, aux); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, err
	}
	return n, nil
}

// IngestBEDRegion is IngestBED restricted to the bgzf chunks tbx reports
// for [start, end) on chrom, read directly from bg rather than scanning
// the whole file. Each chunk is read until bg's offset reaches the
// chunk's end, matching bgzf.Chunk's own half-open [Begin, End)
// convention; rows outside [start, end) are skipped for the same reason
// IngestBAMRegion skips them.
func IngestBEDRegion(b *Builder, bg *bgzf.Reader, tbx *tabix.Index, refIndex map[string]int32, chrom string, start, end int) (int, error) {
	refID, ok := refIndex[chrom]
	if !ok {
		return 0, nil
	}
	chunks, err := tbx.Chunks(chrom, start, end)
	if err != nil {
		return 0, nil
	}
	n := 0
	for _, chunk := range chunks {
		if err := bg.Seek(chunk.Begin); err != nil {
			return n, err
		}
		sc := bufio.NewScanner(bg)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" && !strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "track") {
				fields := strings.Fields(line)
				if len(fields) >= 3 && fields[0] == chrom {
					rowStart, serr := strconv.ParseUint(fields[1], 10, 32)
					rowEnd, eerr := strconv.ParseUint(fields[2], 10, 32)
					if serr == nil && eerr == nil && int(rowEnd) > start && int(rowStart) < end {
						name, score, strand := "", uint64(0), "."
						if len(fields) > 3 {
							name = fields[3]
						}
						if len(fields) > 4 {
							score, _ = strconv.ParseUint(fields[4], 10, 64)
						}
						if len(fields) > 5 {
							strand = fields[5]
						}
						aux := bedAux()
						aux[0].U64 = []uint64{score}
						aux[1].Str = []string{strand}
						if err := b.AddAnnotation(refID, uint32(rowStart), uint32(rowEnd), name, aux); err != nil {
							return n, err
						}
						n++
					}
				}
			}
			if bg.Offset().Compare(chunk.End) >= 0 {
				break
			}
		}
		if err := sc.Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// FormatBEDRow renders one Range row (as produced by IngestBED's column
// layout) back to canonical 6-field BED text, including the trailing
// newline, given the chromosome name that refID resolves to.
func FormatBEDRow(chrom string, r *ghb.Range, i int) string {
	var score uint64
	var strand string
	if len(r.Aux) > 0 {
		score = r.Aux[0].U64[i]
	}
	if len(r.Aux) > 1 {
		strand = r.Aux[1].Str[i]
	}
	return chrom + "\t" +
		strconv.FormatUint(r.Starts[i], 10) + "\t" +
		strconv.FormatUint(r.Ends[i], 10) + "\t" +
		r.Names[i] + "\t" +
		strconv.FormatUint(score, 10) + "\t" +
		strand + "\n"
}
