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

import "errors"

// Sentinel errors for the failure classes the reader/writer surface can
// report. Wrapped with fmt.Errorf("...: %w", ...) at the call site so
// errors.Is still matches these.
var (
	// ErrCorruptFormat covers a bad magic, unknown tag, or truncated
	// field anywhere in a GHB/GHI stream.
	ErrCorruptFormat = errors.New("ghb: corrupt format")
	// ErrInvalidRegion covers start > end or an unknown reference id.
	ErrInvalidRegion = errors.New("ghb: invalid region")
	// ErrOutOfRange means a region's end exceeds its reference's length.
	ErrOutOfRange = errors.New("ghb: region exceeds reference length")
	// ErrStaleIndex means the GHI file is older than the GHB data file
	// it indexes, under ModTimeErrorPolicy.
	ErrStaleIndex = errors.New("ghb: index is older than data file")
	// ErrUnsupported means a payload kind is not enabled in this build.
	ErrUnsupported = errors.New("ghb: payload kind not supported")
)
