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
	"fmt"
	"strconv"
	"strings"
)

// Region is a half-open interval [Start, End) on one reference sequence.
type Region struct {
	RefID uint32
	Start uint32
	End   uint32
}

// NewRegion returns the Region {refID, start, end}.
func NewRegion(refID, start, end uint32) Region {
	return Region{RefID: refID, Start: start, End: end}
}

// Valid reports whether r is a well formed, non-degenerate region.
func (r Region) Valid() bool { return r.Start <= r.End }

func (r Region) String() string {
	return fmt.Sprintf("%d:%d-%d", r.RefID, r.Start, r.End)
}

var (
	errBadRegionSyntax = errors.New("ghb: region must be chrom:start-end")
	errUnknownRef      = fmt.Errorf("ghb: unknown reference name: %w", ErrInvalidRegion)
	errDegenerateRegion = fmt.Errorf("ghb: region end must not precede start: %w", ErrInvalidRegion)
)

// ParseRegion parses the external string syntax "chrom:start-end" (1-based,
// inclusive, as BED/SAM-adjacent tools present it to users) against h's
// reference dictionary, returning the normalized 0-based half-open Region.
func ParseRegion(s string, h *Header) (Region, error) {
	chrom, coords, ok := strings.Cut(s, ":")
	if !ok {
		return Region{}, errBadRegionSyntax
	}
	var refID int32 = -1
	for _, r := range h.Refs() {
		if r.Name() == chrom {
			refID = int32(r.ID())
			break
		}
	}
	if refID < 0 {
		return Region{}, errUnknownRef
	}
	startStr, endStr, ok := strings.Cut(coords, "-")
	if !ok {
		return Region{}, errBadRegionSyntax
	}
	start, err := strconv.ParseUint(strings.ReplaceAll(startStr, ",", ""), 10, 32)
	if err != nil {
		return Region{}, errBadRegionSyntax
	}
	end, err := strconv.ParseUint(strings.ReplaceAll(endStr, ",", ""), 10, 32)
	if err != nil {
		return Region{}, errBadRegionSyntax
	}
	if start == 0 {
		return Region{}, errBadRegionSyntax
	}
	region := NewRegion(uint32(refID), uint32(start-1), uint32(end))
	if !region.Valid() {
		return Region{}, errDegenerateRegion
	}
	return region, nil
}
