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
	"io"

	"github.com/biogo/ghb/bgzf"
)

// Record is one entry in a GHB container: a reference-relative feature
// together with its payload. SampleID and FileID are not part of the
// stream encoding; they are stamped in by a chunk-addressed Iterator from
// the Chunk that located the record, and are zero when read via Full.
type Record struct {
	RefID    uint32
	Payload  Payload
	SampleID uint32
	FileID   uint32
}

// Writer appends Records to a bgzf-compressed GHB stream, reporting the
// virtual-offset Chunk each write occupied so callers can bucket it into
// a GHI index.
type Writer struct {
	bg *bgzf.Writer
	h  *GlobalHeader
}

// NewWriter returns a Writer that writes h followed by records to w, using
// bgzf compression level level.
func NewWriter(w io.Writer, h *GlobalHeader, level int) (*Writer, error) {
	bg, err := bgzf.NewWriterLevel(w, level, 1)
	if err != nil {
		return nil, err
	}
	bw := &Writer{bg: bg, h: h}
	if err := WriteGlobalHeader(bw.bg, h); err != nil {
		return nil, err
	}
	return bw, nil
}

// Write encodes rec and returns the Chunk of virtual offsets it occupied,
// tagged with sampleID and fileID for the caller's index bucket.
func (bw *Writer) Write(rec *Record, sampleID, fileID uint32) (Chunk, error) {
	start := NewVirtualOffset(bw.bg.Offset())
	if err := writeUint32(bw.bg, rec.RefID); err != nil {
		return Chunk{}, err
	}
	if err := WritePayload(bw.bg, rec.Payload); err != nil {
		return Chunk{}, err
	}
	end := NewVirtualOffset(bw.bg.Offset())
	return NewChunk(sampleID, fileID, start, end), nil
}

// Finish flushes any buffered data and writes the terminal bgzf block.
// The underlying stream must not be written to again afterwards.
func (bw *Writer) Finish() error {
	if err := bw.bg.Flush(); err != nil {
		return err
	}
	if err := bw.bg.Wait(); err != nil {
		return err
	}
	return bw.bg.Close()
}

// Reader decodes a GHB container stream.
type Reader struct {
	bg *bgzf.Reader
	h  *GlobalHeader
}

// NewReader returns a Reader positioned just after the global header of r.
func NewReader(r io.Reader, rd int) (*Reader, error) {
	bg, err := bgzf.NewReader(r, rd)
	if err != nil {
		return nil, err
	}
	h, err := ReadGlobalHeader(bg)
	if err != nil {
		return nil, err
	}
	return &Reader{bg: bg, h: h}, nil
}

// Header returns the container's global header.
func (br *Reader) Header() *GlobalHeader { return br.h }

// Read decodes the next Record from the stream, in whatever position the
// underlying bgzf.Reader is currently at.
func (br *Reader) Read() (*Record, error) {
	var refID uint32
	if err := readUint32(br.bg, &refID); err != nil {
		return nil, err
	}
	p, err := ReadPayload(br.bg)
	if err != nil {
		return nil, err
	}
	return &Record{RefID: refID, Payload: p}, nil
}

// Full returns an iterator that decodes every remaining Record in stream
// order, from the reader's current position to end of stream.
func (br *Reader) Full() *Iterator {
	return &Iterator{br: br, sequential: true}
}

// IterateChunks returns an iterator that decodes only the Records
// addressed by chunks, seeking to each chunk's start and stopping at its
// end.
func (br *Reader) IterateChunks(chunks []Chunk) *Iterator {
	return &Iterator{br: br, chunks: chunks, needSeek: true}
}

// Fetch looks up the chunks region touches in idx and returns an iterator
// over them.
func (br *Reader) Fetch(idx *Index, region Region) (*Iterator, error) {
	chunks, err := idx.FetchChunks(region.RefID, region)
	if err != nil {
		return nil, err
	}
	return br.IterateChunks(chunks), nil
}

// Iterator walks a Reader in one of three modes: full stream order,
// chunk-addressed, or (via Fetch) region-addressed.
type Iterator struct {
	br         *Reader
	sequential bool

	chunks   []Chunk
	idx      int
	needSeek bool

	// predicate, if set, is consulted for every decoded Record; records
	// it rejects are skipped without disturbing chunk/stream framing.
	predicate func(*Record) bool

	rec *Record
	err error
}

// SetPredicate installs f as the iterator's record filter: Next skips any
// decoded Record for which f returns false, without affecting chunk or
// stream framing. A nil f accepts every record.
func (it *Iterator) SetPredicate(f func(*Record) bool) { it.predicate = f }

// Next advances the iterator and reports whether a Record is available.
// Record retrieves it.
func (it *Iterator) Next() bool {
	for {
		if it.sequential {
			it.rec, it.err = it.br.Read()
			if it.err != nil {
				return false
			}
		} else {
			if it.idx >= len(it.chunks) {
				it.err = io.EOF
				return false
			}
			c := it.chunks[it.idx]
			if it.needSeek {
				if err := it.br.bg.Seek(c.Start.Offset()); err != nil {
					it.err = err
					return false
				}
				it.needSeek = false
			}
			if NewVirtualOffset(it.br.bg.Offset()) >= c.End {
				it.idx++
				it.needSeek = true
				continue
			}
			it.rec, it.err = it.br.Read()
			if it.err != nil {
				return false
			}
			it.rec.SampleID = c.SampleID
			it.rec.FileID = c.FileID
		}
		if it.predicate == nil || it.predicate(it.rec) {
			return true
		}
	}
}

// Record returns the Record produced by the most recent successful Next.
func (it *Iterator) Record() *Record { return it.rec }

// Err returns the error, if any, that stopped iteration. io.EOF is not
// reported as an error; it means iteration finished normally.
func (it *Iterator) Err() error {
	if it.err == io.EOF {
		return nil
	}
	return it.err
}
