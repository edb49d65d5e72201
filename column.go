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
	"errors"
	"io"
)

// PayloadKind identifies the wire representation of a GHB record payload.
type PayloadKind uint32

const (
	// PayloadDefault is the empty sentinel payload used where no concrete
	// kind has been negotiated yet.
	PayloadDefault PayloadKind = iota
	// PayloadRange is the columnar interval payload: starts, ends, names
	// plus any additional typed columns.
	PayloadRange
	// PayloadAlignmentRef is a pointer to alignment data living in an
	// external BAM file, addressed by chunk.
	PayloadAlignmentRef
)

var errUnknownPayloadKind = errors.New("ghb: unknown payload kind")

// Payload is a GHB record body: one of Default, *Range or *AlignmentRef.
type Payload interface {
	Kind() PayloadKind
	writeTo(w io.Writer) error
	readFrom(r io.Reader) error
}

// ReadPayload reads a tagged payload (u32 kind, then kind-specific body)
// from r.
func ReadPayload(r io.Reader) (Payload, error) {
	var kind uint32
	if err := readUint32(r, &kind); err != nil {
		return nil, err
	}
	var p Payload
	switch PayloadKind(kind) {
	case PayloadDefault:
		p = Default{}
	case PayloadRange:
		p = &Range{}
	case PayloadAlignmentRef:
		p = &AlignmentRef{}
	default:
		return nil, errUnknownPayloadKind
	}
	if err := p.readFrom(r); err != nil {
		return nil, err
	}
	return p, nil
}

// WritePayload writes p as a tagged payload (u32 kind, then body) to w.
func WritePayload(w io.Writer, p Payload) error {
	if err := writeUint32(w, uint32(p.Kind())); err != nil {
		return err
	}
	return p.writeTo(w)
}

// Default is the empty payload, used as a placeholder before a record's
// real payload kind is known.
type Default struct{}

func (Default) Kind() PayloadKind          { return PayloadDefault }
func (Default) writeTo(w io.Writer) error  { return nil }
func (Default) readFrom(r io.Reader) error { return nil }

// ColumnType is the wire type of one Range column.
type ColumnType uint16

const (
	ColumnString ColumnType = 0
	ColumnUint64 ColumnType = 1
)

// Column is one caller-supplied Range column beyond the mandatory
// start/end/name triple. Exactly one of U64 or Str is populated,
// according to Type.
type Column struct {
	Type ColumnType
	U64  []uint64
	Str  []string
}

func (c *Column) len() int {
	if c.Type == ColumnString {
		return len(c.Str)
	}
	return len(c.U64)
}

// Range is the columnar interval payload: one row per feature, with
// mandatory Starts/Ends/Names columns and any number of additional typed
// Aux columns walking the same rows.
type Range struct {
	Starts []uint64
	Ends   []uint64
	Names  []string
	Aux    []Column
}

func (r *Range) Kind() PayloadKind { return PayloadRange }

func (r *Range) writeTo(w io.Writer) error {
	nRows := uint64(len(r.Starts))
	nCols := uint64(3 + len(r.Aux))
	if err := writeUint64(w, nRows); err != nil {
		return err
	}
	if err := writeUint64(w, nCols); err != nil {
		return err
	}
	types := make([]ColumnType, 0, nCols)
	types = append(types, ColumnUint64, ColumnUint64, ColumnString)
	for _, c := range r.Aux {
		types = append(types, c.Type)
	}
	for _, t := range types {
		if err := writeUint16(w, uint16(t)); err != nil {
			return err
		}
	}
	if err := writeUint64Column(w, r.Starts); err != nil {
		return err
	}
	if err := writeUint64Column(w, r.Ends); err != nil {
		return err
	}
	if err := writeStringColumn(w, r.Names); err != nil {
		return err
	}
	for i := range r.Aux {
		c := &r.Aux[i]
		if uint64(c.len()) != nRows {
			return errors.New("ghb: range aux column row count mismatch")
		}
		if c.Type == ColumnString {
			if err := writeStringColumn(w, c.Str); err != nil {
				return err
			}
		} else {
			if err := writeUint64Column(w, c.U64); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Range) readFrom(rd io.Reader) error {
	var nRows, nCols uint64
	if err := readUint64(rd, &nRows); err != nil {
		return err
	}
	if err := readUint64(rd, &nCols); err != nil {
		return err
	}
	if nCols < 3 {
		return errors.New("ghb: range payload missing mandatory columns")
	}
	types := make([]ColumnType, nCols)
	for i := range types {
		var t uint16
		if err := readUint16(rd, &t); err != nil {
			return err
		}
		types[i] = ColumnType(t)
	}
	if types[0] != ColumnUint64 || types[1] != ColumnUint64 || types[2] != ColumnString {
		return errors.New("ghb: range payload has unexpected leading column types")
	}
	var err error
	if r.Starts, err = readUint64Column(rd, nRows); err != nil {
		return err
	}
	if r.Ends, err = readUint64Column(rd, nRows); err != nil {
		return err
	}
	if r.Names, err = readStringColumn(rd, nRows); err != nil {
		return err
	}
	r.Aux = make([]Column, nCols-3)
	for i := range r.Aux {
		r.Aux[i].Type = types[3+i]
		if r.Aux[i].Type == ColumnString {
			if r.Aux[i].Str, err = readStringColumn(rd, nRows); err != nil {
				return err
			}
		} else {
			if r.Aux[i].U64, err = readUint64Column(rd, nRows); err != nil {
				return err
			}
		}
	}
	return nil
}

// AlignmentRef is a payload that points at alignment records stored in an
// external BAM file rather than duplicating them into the GHB stream.
type AlignmentRef struct {
	SourcePath string
	Chunks     []Chunk
}

func (a *AlignmentRef) Kind() PayloadKind { return PayloadAlignmentRef }

func (a *AlignmentRef) writeTo(w io.Writer) error {
	if err := writeString(w, a.SourcePath); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(a.Chunks))); err != nil {
		return err
	}
	for _, c := range a.Chunks {
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
	return nil
}

func (a *AlignmentRef) readFrom(r io.Reader) error {
	var err error
	if a.SourcePath, err = readString(r); err != nil {
		return err
	}
	var n uint64
	if err := readUint64(r, &n); err != nil {
		return err
	}
	a.Chunks = make([]Chunk, n)
	for i := range a.Chunks {
		var sampleID, fileID uint32
		var start, end uint64
		if err := readUint32(r, &sampleID); err != nil {
			return err
		}
		if err := readUint32(r, &fileID); err != nil {
			return err
		}
		if err := readUint64(r, &start); err != nil {
			return err
		}
		if err := readUint64(r, &end); err != nil {
			return err
		}
		a.Chunks[i] = NewChunk(sampleID, fileID, VirtualOffset(start), VirtualOffset(end))
	}
	return nil
}
