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

// Package ghb implements the GHB/GHI genomic container format: a
// block-compressed, randomly accessible payload stream (GHB) paired with
// a half-overlapping variable-pitch bin index (GHI) over one or more
// reference sequences.
package ghb

import "encoding/binary"

// Endian is the byte order used by every binary-encoded GHB/GHI structure.
var Endian = binary.LittleEndian

// validLen reports whether length is a legal reference sequence length,
// matching the range a BAM-textual @SQ LN field can carry.
func validLen(length int) bool {
	return 0 <= length && length < 1<<31
}

// validInt32 reports whether i can be stored in an int32 without loss.
func validInt32(i int) bool { return int(int32(i)) == i }
