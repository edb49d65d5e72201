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
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/biogo/ghb"
	"github.com/biogo/ghb/bam"
	"github.com/biogo/ghb/bgzf"
	"github.com/biogo/ghb/csi"
	"github.com/biogo/ghb/sam"
	"github.com/biogo/ghb/tabix"
)

func TestIngestBEDSixFieldRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := ghb.NewWriter(&buf, testGlobalHeader(t), 6)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(w, 0, 0, 1)

	bed := "chr1\t16381\t16385\tbin4682\t20\t-\nchr1\t16387\t31768\tbin4683\t20\t-\n"
	n, err := IngestBED(b, strings.NewReader(bed), map[string]int32{"chr1": 0})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("ingested %d rows, want 2", n)
	}

	idx, _, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := idx.FetchChunks(0, ghb.NewRegion(0, 16381, 31768))
	if err != nil {
		t.Fatal(err)
	}
	r, err := ghb.NewReader(bytes.NewReader(buf.Bytes()), 1)
	if err != nil {
		t.Fatal(err)
	}
	it := r.IterateChunks(chunks)
	var got []string
	for it.Next() {
		rng := it.Record().Payload.(*ghb.Range)
		for i := range rng.Names {
			got = append(got, FormatBEDRow("chr1", rng, i))
		}
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"chr1\t16381\t16385\tbin4682\t20\t-\n",
		"chr1\t16387\t31768\tbin4683\t20\t-\n",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d: %v", len(got), len(want), got)
	}
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing expected row %q in %v", w, got)
		}
	}
}

func writeTestBAM(t *testing.T, positions []int) ([]byte, *sam.Reference) {
	t.Helper()
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	bw, err := bam.NewWriter(&buf, h, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i, pos := range positions {
		rec, err := sam.NewRecord("r", ref, nil, pos, -1, 0, 40,
			[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)}, []byte("ACGT"), []byte{0xff, 0xff, 0xff, 0xff}, nil)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if err := bw.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), ref
}

// buildCSIIndex reads every record out of bamBytes once, recording its
// chunk, to produce the companion csi.Index a region-restricted re-read
// through IngestBAMRegion relies on.
func buildCSIIndex(t *testing.T, bamBytes []byte) *csi.Index {
	t.Helper()
	br, err := bam.NewReader(bytes.NewReader(bamBytes), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer br.Close()
	idx := csi.New(0, 0)
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		c := br.LastChunk()
		if err := idx.Add(rec, c, true, true); err != nil {
			t.Fatal(err)
		}
	}
	return idx
}

func TestIngestBAMRegionUsesCSIFastPath(t *testing.T) {
	bamBytes, _ := writeTestBAM(t, []int{10, 500})
	idx := buildCSIIndex(t, bamBytes)

	br, err := bam.NewReader(bytes.NewReader(bamBytes), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer br.Close()

	var buf bytes.Buffer
	w, err := ghb.NewWriter(&buf, testGlobalHeader(t), 6)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(w, 0, 0, 1)

	n, err := IngestBAMRegion(b, "source.bam", br, idx, 0, 0, 50)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("ingested %d records, want 1 (only the one inside [0,50))", n)
	}

	gidx, _, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := gidx.FetchChunks(0, ghb.NewRegion(0, 0, 1000))
	if err != nil {
		t.Fatal(err)
	}
	r, err := ghb.NewReader(bytes.NewReader(buf.Bytes()), 1)
	if err != nil {
		t.Fatal(err)
	}
	it := r.IterateChunks(chunks)
	got := 0
	for it.Next() {
		ar := it.Record().Payload.(*ghb.AlignmentRef)
		if ar.SourcePath != "source.bam" {
			t.Errorf("SourcePath = %q, want %q", ar.SourcePath, "source.bam")
		}
		got++
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Fatalf("got %d ingested rows in the built container, want 1", got)
	}
}

// writeTestBEDBGZF bgzf-compresses rows as one stream and returns the
// compressed bytes.
func writeTestBEDBGZF(t *testing.T, rows []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	bw := bgzf.NewWriter(&buf, 1)
	for _, row := range rows {
		if _, err := bw.Write([]byte(row)); err != nil {
			t.Fatal(err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// buildTabixIndex registers the whole of bedBytes' content, under chrom,
// as a single bin spanning [0, span), so any query inside that range
// resolves to one chunk covering the whole compressed stream. Begin is
// the start of the stream; End is a virtual offset known to lie beyond
// every block bgzf wrote, since a block's own File offset is always
// less than the total compressed length.
func buildTabixIndex(t *testing.T, bedBytes []byte, chrom string, span int) *tabix.Index {
	t.Helper()
	idx := tabix.New()
	chunk := bgzf.Chunk{
		Begin: bgzf.Offset{File: 0, Block: 0},
		End:   bgzf.Offset{File: int64(len(bedBytes)), Block: 0},
	}
	shim := bedTabixRecord{chrom: chrom, start: 0, end: span}
	if err := idx.Add(shim, chunk, true, true); err != nil {
		t.Fatal(err)
	}
	return idx
}

type bedTabixRecord struct {
	chrom      string
	start, end int
}

func (r bedTabixRecord) RefName() string { return r.chrom }
func (r bedTabixRecord) Start() int      { return r.start }
func (r bedTabixRecord) End() int        { return r.end }

func TestIngestBEDRegionUsesTabixFastPath(t *testing.T) {
	rows := []string{
		"chr1\t10\t20\tfeatA\t5\t+\n",
		"chr1\t500\t510\tfeatB\t5\t+\n",
	}
	bedBytes := writeTestBEDBGZF(t, rows)
	idx := buildTabixIndex(t, bedBytes, "chr1", 1000)

	bg, err := bgzf.NewReader(bytes.NewReader(bedBytes), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer bg.Close()

	var buf bytes.Buffer
	w, err := ghb.NewWriter(&buf, testGlobalHeader(t), 6)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(w, 0, 0, 1)

	n, err := IngestBEDRegion(b, bg, idx, map[string]int32{"chr1": 0}, "chr1", 0, 50)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("ingested %d rows, want 1 (only featA overlaps [0,50))", n)
	}

	gidx, _, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := gidx.FetchChunks(0, ghb.NewRegion(0, 0, 1000))
	if err != nil {
		t.Fatal(err)
	}
	r, err := ghb.NewReader(bytes.NewReader(buf.Bytes()), 1)
	if err != nil {
		t.Fatal(err)
	}
	it := r.IterateChunks(chunks)
	got := 0
	for it.Next() {
		rng := it.Record().Payload.(*ghb.Range)
		for i := range rng.Names {
			if rng.Names[i] != "featA" {
				t.Errorf("ingested name = %q, want %q", rng.Names[i], "featA")
			}
			got++
		}
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Fatalf("got %d ingested rows in the built container, want 1", got)
	}
}

func TestIngestBEDMinimalThreeField(t *testing.T) {
	var buf bytes.Buffer
	w, err := ghb.NewWriter(&buf, testGlobalHeader(t), 6)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(w, 0, 0, 1)
	n, err := IngestBED(b, strings.NewReader("chr1\t10\t20\n"), map[string]int32{"chr1": 0})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("ingested %d rows, want 1", n)
	}
}

func TestIngestBEDSkipsCommentsAndUnknownChrom(t *testing.T) {
	var buf bytes.Buffer
	w, err := ghb.NewWriter(&buf, testGlobalHeader(t), 6)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(w, 0, 0, 1)
	bed := "# a comment\ntrack name=foo\nchrX\t10\t20\nchr1\t30\t40\n"
	n, err := IngestBED(b, strings.NewReader(bed), map[string]int32{"chr1": 0})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("ingested %d rows, want 1 (chrX unknown, others non-data)", n)
	}
}
