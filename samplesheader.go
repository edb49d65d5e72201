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

import "io"

// LocalHeaderKind tags a per-sample header's wire representation.
type LocalHeaderKind uint32

const (
	// LocalHeaderNone marks a sample with no local header of its own.
	LocalHeaderNone LocalHeaderKind = iota
	// LocalHeaderBam marks a sample whose local header is a serialized
	// BAM-textual header, carried verbatim from its source file.
	LocalHeaderBam
)

// LocalHeader is one sample's entry in a GlobalHeader's per-sample list.
type LocalHeader struct {
	Kind LocalHeaderKind
	Bam  *Header // set only when Kind == LocalHeaderBam
}

// GlobalHeader is a GHB container's header: a BAM-textual global header
// naming every reference sequence, plus one LocalHeader per sample.
type GlobalHeader struct {
	Global  *Header
	Samples []LocalHeader
}

func newParsedHeader() *Header {
	return &Header{seenRefs: set{}, seenGroups: set{}, seenProgs: set{}}
}

// WriteGlobalHeader serializes h to w.
func WriteGlobalHeader(w io.Writer, h *GlobalHeader) error {
	if err := h.Global.writeTo(w); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(h.Samples))); err != nil {
		return err
	}
	for _, s := range h.Samples {
		if err := writeUint32(w, uint32(s.Kind)); err != nil {
			return err
		}
		if s.Kind == LocalHeaderBam {
			if err := s.Bam.writeTo(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadGlobalHeader deserializes a GlobalHeader written by
// WriteGlobalHeader from r.
func ReadGlobalHeader(r io.Reader) (*GlobalHeader, error) {
	global := newParsedHeader()
	if err := global.read(r); err != nil {
		return nil, err
	}
	var nSamples int32
	if err := readInt32(r, &nSamples); err != nil {
		return nil, err
	}
	samples := make([]LocalHeader, nSamples)
	for i := range samples {
		var tag uint32
		if err := readUint32(r, &tag); err != nil {
			return nil, err
		}
		samples[i].Kind = LocalHeaderKind(tag)
		if samples[i].Kind == LocalHeaderBam {
			sh := newParsedHeader()
			if err := sh.read(r); err != nil {
				return nil, err
			}
			samples[i].Bam = sh
		}
	}
	return &GlobalHeader{Global: global, Samples: samples}, nil
}
