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

// Package buffer implements a per-reference runtime cache of loaded GHB
// bins and a streaming pileup over the alignments they hold.
package buffer

import (
	"os"

	"github.com/biogo/ghb"
	"github.com/biogo/ghb/bam"
	"github.com/biogo/ghb/bgzf"
	"github.com/biogo/ghb/fai"
	"github.com/biogo/ghb/sam"
)

// Soft eviction caps. When exceeded on the next Retrieve, the whole
// buffer is dropped and reloaded; there is no LRU.
const (
	GlobalBinCap = 5000
	LocalBinCap  = 2000
)

// PileupFlagMask selects alignments excluded from the pileup: unmapped,
// secondary, or failing QC/duplicate flags.
const PileupFlagMask = 0x704

// MinReadLen is the default minimum query length a pileup-contributing
// alignment must have.
const MinReadLen = 1

// Pileup is one (position, depth[, base]) entry produced by Add. Base is
// '*' for the aggregate total-depth entry, or a specific base letter when
// SNPFreqThreshold causes per-allele entries to be split out. RefBase is
// the reference sequence's own base at Pos, or 0 if no reference FASTA
// was attached with SetReferenceFASTA.
type Pileup struct {
	Pos     uint32
	Depth   int
	Base    byte
	RefBase byte
}

// ChromosomeBuffer caches the bins of one reference loaded from a GHB/GHI
// pair and accumulates a streaming per-sample pileup over their
// alignments.
type ChromosomeBuffer struct {
	RefID uint32

	reader *ghb.Reader
	index  *ghb.Index

	binsLoaded map[int]bool
	// freq is keyed by sample id, then reference position, then base.
	freq map[uint32]map[uint32]map[byte]int

	// sources caches an opened *bam.Reader per AlignmentRef.SourcePath so
	// repeated chunks into the same external BAM don't reopen the file.
	sources map[string]*bam.Reader

	// refFasta and refNames back Pileup's RefBase column; refNames maps
	// RefID to the sequence name refFasta's index is keyed by. Both are
	// nil until SetReferenceFASTA is called.
	refFasta *fai.File
	refNames []string

	MinReadLen       int
	SNPFreqThreshold float64
}

// New returns an empty ChromosomeBuffer reading bins from reader through
// index.
func New(reader *ghb.Reader, index *ghb.Index) *ChromosomeBuffer {
	return &ChromosomeBuffer{
		reader:     reader,
		index:      index,
		binsLoaded: make(map[int]bool),
		freq:       make(map[uint32]map[uint32]map[byte]int),
		sources:    make(map[string]*bam.Reader),
		MinReadLen: MinReadLen,
	}
}

// SetReferenceFASTA attaches an FAI-indexed reference sequence file so
// Pileup can fill in RefBase; refNames maps a RefID to the sequence name
// under which f's index holds that reference.
func (c *ChromosomeBuffer) SetReferenceFASTA(f *fai.File, refNames []string) {
	c.refFasta = f
	c.refNames = refNames
}

// refBaseAt returns the reference base at pos on the buffer's current
// RefID, or 0, false if no reference FASTA is attached or pos falls
// outside the named sequence.
func (c *ChromosomeBuffer) refBaseAt(pos uint32) (base byte, ok bool) {
	if c.refFasta == nil || int(c.RefID) >= len(c.refNames) {
		return 0, false
	}
	seq, err := c.refFasta.Seq(c.refNames[c.RefID])
	if err != nil {
		return 0, false
	}
	defer seq.Close()
	defer func() {
		if recover() != nil {
			base, ok = 0, false
		}
	}()
	return seq.At(int(pos)), true
}

// Included reports whether every bin region touches at every depth is
// already loaded, and region's reference matches the buffer's current
// one.
func (c *ChromosomeBuffer) Included(region ghb.Region) bool {
	if region.RefID != c.RefID || int(region.RefID) >= len(c.index.References) {
		return false
	}
	ref := c.index.References[region.RefID]
	it := ref.RegionToBins(region)
	for {
		s, ok := it.Next()
		if !ok {
			return true
		}
		for i := range s.Bins {
			if !c.binsLoaded[s.BinDispStart+i] {
				return false
			}
		}
	}
}

// Retrieve ensures region's bins are loaded, appending any newly fetched
// records to list and recording every bin touched (pre-existing or new)
// into localBins, which the caller owns across calls. If the global cap
// is exceeded, or region names a different reference, the buffer is
// dropped and reloaded first.
func (c *ChromosomeBuffer) Retrieve(region ghb.Region, list *[]*ghb.Record, localBins map[int]bool) error {
	if int(region.RefID) >= len(c.index.References) {
		return nil
	}
	if region.RefID != c.RefID || len(c.binsLoaded) > GlobalBinCap {
		c.Drop()
		c.RefID = region.RefID
	}
	if len(localBins) > LocalBinCap {
		c.Drop()
		c.RefID = region.RefID
		for k := range localBins {
			delete(localBins, k)
		}
	}

	ref := c.index.References[region.RefID]
	it := ref.RegionToBins(region)
	var missing []ghb.Chunk
	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		for i, bin := range s.Bins {
			id := s.BinDispStart + i
			localBins[id] = true
			if c.binsLoaded[id] {
				continue
			}
			missing = append(missing, bin.Chunks...)
			c.binsLoaded[id] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}
	missing = ghb.MergeChunks(missing)

	it2 := c.reader.IterateChunks(missing)
	for it2.Next() {
		*list = append(*list, it2.Record())
	}
	return it2.Err()
}

// Add loads any bins region touches that aren't already cached, folding
// their alignments into the running pileup (subject to the pileup
// filter), and reports whether the buffer was dropped and reloaded, the
// newly loaded records, and the newly loaded bin ids.
func (c *ChromosomeBuffer) Add(region ghb.Region) (reset bool, newRecords []*ghb.Record, newBins []int) {
	before := len(c.binsLoaded)
	sameRef := region.RefID == c.RefID
	reset = !sameRef || before > GlobalBinCap

	loaded := make(map[int]bool)
	if !reset {
		for id := range c.binsLoaded {
			loaded[id] = true
		}
	}
	local := make(map[int]bool)
	var list []*ghb.Record
	if err := c.Retrieve(region, &list, local); err != nil {
		return reset, nil, nil
	}
	for id := range local {
		if !loaded[id] {
			newBins = append(newBins, id)
		}
	}
	for _, rec := range list {
		c.pileupRecord(rec)
	}
	return reset, list, newBins
}

// pileupRecord walks every alignment an AlignmentRef payload points at in
// its external BAM file, adding each CIGAR-match-consumed reference base
// that passes passesPileupFilter to c.freq.
func (c *ChromosomeBuffer) pileupRecord(rec *ghb.Record) {
	ar, ok := rec.Payload.(*ghb.AlignmentRef)
	if !ok {
		return
	}
	br, err := c.sourceReader(ar.SourcePath)
	if err != nil {
		return
	}
	for _, chunk := range ar.Chunks {
		bgc := &bgzf.Chunk{
			Begin: chunk.Start.Offset(),
			End:   chunk.End.Offset(),
		}
		if err := br.SetChunk(bgc); err != nil {
			continue
		}
		for {
			alnRec, err := br.Read()
			if err != nil {
				break
			}
			c.pileupAlignment(rec.SampleID, alnRec)
		}
	}
}

// pileupAlignment folds one decoded alignment into sampleID's running base
// frequency table, walking its CIGAR to find which reference positions its
// query bases cover.
func (c *ChromosomeBuffer) pileupAlignment(sampleID uint32, rec *sam.Record) {
	if !c.passesPileupFilter(uint16(rec.Flags), rec.Seq.Length) {
		return
	}
	byPos := c.freq[sampleID]
	if byPos == nil {
		byPos = make(map[uint32]map[byte]int)
		c.freq[sampleID] = byPos
	}
	bases := rec.Seq.Expand()
	ref, qry := rec.Pos, 0
	for _, op := range rec.Cigar {
		con := op.Type().Consumes()
		n := op.Len()
		if con.Reference > 0 && con.Query > 0 {
			for i := 0; i < n; i++ {
				pos := uint32(ref + i)
				base := bases[qry+i]
				if byPos[pos] == nil {
					byPos[pos] = make(map[byte]int)
				}
				byPos[pos][base]++
			}
		}
		ref += n * con.Reference
		qry += n * con.Query
	}
}

// sourceReader returns a cached *bam.Reader open on path, opening it on
// first use.
func (c *ChromosomeBuffer) sourceReader(path string) (*bam.Reader, error) {
	if br, ok := c.sources[path]; ok {
		return br, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br, err := bam.NewReader(f, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.sources[path] = br
	return br, nil
}

// passesPileupFilter reports whether an alignment with the given SAM
// flags and query length contributes to the pileup: not unmapped, not
// secondary, not a duplicate, not failing QC, and long enough.
func (c *ChromosomeBuffer) passesPileupFilter(flags uint16, queryLen int) bool {
	return flags&PileupFlagMask == 0 && queryLen >= c.MinReadLen
}

// Pileup returns sampleID's accumulated (pos, depth[, base]) triples for
// every reference position in [start, end], splitting by major allele
// when SNPFreqThreshold is set and exceeded, otherwise emitting only the
// aggregate '*' entry.
func (c *ChromosomeBuffer) Pileup(sampleID uint32, start, end uint32) []Pileup {
	var out []Pileup
	byPos := c.freq[sampleID]
	for pos := start; pos <= end; pos++ {
		bases, ok := byPos[pos]
		if !ok {
			continue
		}
		total := 0
		for _, n := range bases {
			total += n
		}
		if total == 0 {
			continue
		}
		refBase, _ := c.refBaseAt(pos)
		if c.SNPFreqThreshold <= 0 {
			out = append(out, Pileup{Pos: pos, Depth: total, Base: '*', RefBase: refBase})
			continue
		}
		split := false
		for base, n := range bases {
			if float64(n)/float64(total) > c.SNPFreqThreshold {
				out = append(out, Pileup{Pos: pos, Depth: n, Base: base, RefBase: refBase})
				split = true
			}
		}
		if !split {
			out = append(out, Pileup{Pos: pos, Depth: total, Base: '*', RefBase: refBase})
		}
	}
	return out
}

// Drop resets the buffer to its empty state: reference id 0, no loaded
// bins, no pileup. Cached external BAM readers are left open since they
// are reference-independent.
func (c *ChromosomeBuffer) Drop() {
	c.RefID = 0
	c.binsLoaded = make(map[int]bool)
	c.freq = make(map[uint32]map[uint32]map[byte]int)
}

// Close releases every external BAM reader opened to serve pileup queries.
func (c *ChromosomeBuffer) Close() error {
	var first error
	for path, br := range c.sources {
		if err := br.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.sources, path)
	}
	return first
}
