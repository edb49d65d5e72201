// Copyright ©2012 The bíogo.bam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"compress/gzip"
	"io"
	"io/ioutil"
)

// Reader reads a bgzf block stream. When Blocked is true, Read will not
// cross a block boundary, returning io.EOF at the end of the current
// block so callers can inspect LastChunk before resuming.
type Reader struct {
	Header

	r  io.Reader
	rs io.ReadSeeker
	gz *gzip.Reader

	Blocked bool

	offset Offset
	chunk  Chunk

	err error
}

// NewReader returns a Reader reading bgzf blocks from r. rd names the
// number of concurrent decompression workers a caller would like to use;
// this implementation performs decompression synchronously and ignores it,
// matching the interface the rest of the package stack was written
// against without committing to worker-pool machinery the GHB reader
// doesn't need.
func NewReader(r io.Reader, rd int) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	gz.Multistream(false)
	bg := &Reader{
		Header: Header(gz.Header),
		r:      r,
		gz:     gz,
	}
	bg.rs, _ = r.(io.ReadSeeker)
	return bg, nil
}

// Cache is a Block caching type used to avoid repeat decompression of
// blocks that are read more than once.
type Cache interface {
	Get(base int64) Block
	Put(b Block) (evicted Block, retained bool)
}

// Block is a cached decompressed bgzf block. The simple Reader in this
// package does not itself produce Blocks; Cache exists so callers such as
// bam.Reader can carry a cache option through without this package
// committing to the block-granular concurrent reader the option was
// originally designed for.
type Block interface {
	Base() int64
	io.Reader
}

// SetCache sets the cache used by the Reader. The synchronous Reader in
// this package does not consult a cache; this is a deliberate no-op kept
// so callers that configure a cache against the Reader interface continue
// to compile and run, just without the speedup a block cache would give a
// concurrent decompressor.
func (bg *Reader) SetCache(c Cache) {}

// Offset returns the virtual offset of the next byte to be read.
func (bg *Reader) Offset() Offset { return bg.offset }

// LastChunk returns the chunk spanning the most recently completed Read.
func (bg *Reader) LastChunk() Chunk { return bg.chunk }

// BlockLen returns the number of decompressed bytes remaining in the
// current block.
func (bg *Reader) BlockLen() int {
	return bg.Header.BlockSize() - int(bg.offset.Block)
}

// Seek moves the reader to the virtual offset off.
func (bg *Reader) Seek(off Offset) error {
	if bg.rs == nil {
		return ErrNotASeeker
	}
	if _, err := bg.rs.Seek(off.File, io.SeekStart); err != nil {
		bg.err = err
		return err
	}
	gz, err := gzip.NewReader(bg.rs)
	if err != nil {
		bg.err = err
		return err
	}
	gz.Multistream(false)
	bg.gz = gz
	bg.Header = Header(gz.Header)
	bg.offset = Offset{File: off.File}
	bg.err = nil
	if off.Block > 0 {
		if _, err := io.CopyN(ioutil.Discard, bg.gz, int64(off.Block)); err != nil {
			bg.err = err
			return err
		}
		bg.offset.Block = off.Block
	}
	return nil
}

func (bg *Reader) Close() error {
	return bg.gz.Close()
}

func (bg *Reader) Read(p []byte) (int, error) {
	if bg.err != nil {
		return 0, bg.err
	}
	start := bg.offset

	if bg.Blocked {
		if bs := bg.Header.BlockSize(); bs >= 0 {
			if remain := bs - int(bg.offset.Block); remain < len(p) {
				p = p[:remain]
			}
		}
	}

	var n int
	for n < len(p) && bg.err == nil {
		var rn int
		rn, bg.err = bg.gz.Read(p[n:])
		n += rn
		bg.offset.Block += uint16(rn)
		if bg.err == io.EOF {
			if n == len(p) {
				bg.err = nil
				break
			}
			if bg.Blocked {
				break
			}
			if bg.rs == nil {
				bg.err = ErrNotASeeker
				break
			}
			bg.offset.File, bg.err = bg.rs.Seek(0, io.SeekCurrent)
			if bg.err != nil {
				break
			}
			bg.offset.Block = 0
			if bg.err = bg.gz.Reset(bg.rs); bg.err != nil {
				break
			}
			bg.gz.Multistream(false)
			bg.Header = Header(bg.gz.Header)
		}
	}

	bg.chunk = Chunk{Begin: start, End: bg.offset}
	if n > 0 && bg.err == io.EOF {
		bg.err = nil
	}
	return n, bg.err
}
