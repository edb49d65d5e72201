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
	"fmt"
	"os"
)

// ModTimePolicy controls how IndexedReaderFromPath reacts to a GHI index
// file that is older than the GHB data file it indexes.
type ModTimePolicy int

const (
	// ModTimeErrorPolicy fails the open with ErrStaleIndex.
	ModTimeErrorPolicy ModTimePolicy = iota
	// ModTimeWarnPolicy opens successfully but invokes the caller's warn
	// callback exactly once.
	ModTimeWarnPolicy
	// ModTimeIgnorePolicy opens successfully and does not check at all.
	ModTimeIgnorePolicy
)

// IndexedReader pairs a GHB Reader with its GHI Index, opened together
// from a path and reusable across Fetch calls.
type IndexedReader struct {
	*Reader
	Index *Index
}

// IndexedReaderFromPath opens path (a .ghb file) and path+".ghi", checking
// the .ghi freshness against policy, and returns the paired reader. warn
// is invoked once if policy is ModTimeWarnPolicy and the index is stale;
// it may be nil.
func IndexedReaderFromPath(path string, decompressWorkers int, policy ModTimePolicy, warn func(error)) (*IndexedReader, error) {
	idxPath := path + ".ghi"

	if policy != ModTimeIgnorePolicy {
		dataInfo, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		idxInfo, err := os.Stat(idxPath)
		if err != nil {
			return nil, err
		}
		if dataInfo.ModTime().After(idxInfo.ModTime()) {
			switch policy {
			case ModTimeErrorPolicy:
				return nil, fmt.Errorf("ghb: %s: %w", idxPath, ErrStaleIndex)
			case ModTimeWarnPolicy:
				if warn != nil {
					warn(fmt.Errorf("ghb: %s: %w", idxPath, ErrStaleIndex))
				}
			}
		}
	}

	data, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(data, decompressWorkers)
	if err != nil {
		data.Close()
		return nil, err
	}

	idxFile, err := os.Open(idxPath)
	if err != nil {
		return nil, err
	}
	defer idxFile.Close()
	idx, err := ReadIndex(idxFile)
	if err != nil {
		return nil, err
	}

	return &IndexedReader{Reader: r, Index: idx}, nil
}

// Fetch returns an iterator over the records region touches, per the
// paired Index.
func (ir *IndexedReader) Fetch(region Region) (*Iterator, error) {
	return ir.Reader.Fetch(ir.Index, region)
}
