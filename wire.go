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
	"encoding/binary"
	"fmt"
	"io"
)

var errTruncated = fmt.Errorf("ghb: truncated data: %w", ErrCorruptFormat)

func writeUint16(w io.Writer, v uint16) error { return binary.Write(w, Endian, v) }
func writeUint32(w io.Writer, v uint32) error { return binary.Write(w, Endian, v) }
func writeUint64(w io.Writer, v uint64) error { return binary.Write(w, Endian, v) }

func readUint16(r io.Reader, v *uint16) error { return binary.Read(r, Endian, v) }
func readUint32(r io.Reader, v *uint32) error { return binary.Read(r, Endian, v) }
func readUint64(r io.Reader, v *uint64) error { return binary.Read(r, Endian, v) }

// writeString writes s as a u64 byte length followed by its raw bytes.
func writeString(w io.Writer, s string) error {
	if err := writeUint64(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// readString reads a string written by writeString.
func readString(r io.Reader) (string, error) {
	var n uint64
	if err := readUint64(r, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errTruncated
	}
	return string(buf), nil
}

func writeUint64Column(w io.Writer, vals []uint64) error {
	for _, v := range vals {
		if err := writeUint64(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readUint64Column(r io.Reader, n uint64) ([]uint64, error) {
	vals := make([]uint64, n)
	for i := range vals {
		if err := readUint64(r, &vals[i]); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

func writeStringColumn(w io.Writer, vals []string) error {
	for _, v := range vals {
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readStringColumn(r io.Reader, n uint64) ([]string, error) {
	vals := make([]string, n)
	for i := range vals {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		vals[i] = s
	}
	return vals, nil
}
