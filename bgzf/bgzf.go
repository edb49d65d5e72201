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

// Package bgzf implements the blocked gzip format used to store and
// randomly access GHB container streams: each block is an independent
// gzip member, so a position within the stream can be named by a file
// offset to the start of a block plus a byte offset within that block's
// decompressed contents.
package bgzf

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
)

const (
	BlockSize    = 0x0ff00 // Size of input data block.
	MaxBlockSize = 0x10000 // Maximum size of output block.
)

var bgzfExtraPrefix = []byte("BC\x02\x00")

func compressBound(srcLen int) int {
	return srcLen + srcLen>>12 + srcLen>>14 + srcLen>>25 + 13
}

func init() {
	if compressBound(BlockSize) > MaxBlockSize {
		panic("bgzf: BlockSize too large")
	}
}

var (
	ErrClosed           = errors.New("bgzf: write to closed writer")
	ErrBlockOverflow     = errors.New("bgzf: block overflow")
	ErrNoBlockSize       = errors.New("bgzf: no block size in header")
	ErrBlockSizeMismatch = errors.New("bgzf: block size mismatch")
	ErrNotASeeker        = errors.New("bgzf: not a seeker")
)

// Header wraps gzip.Header to expose the BSIZE extra subfield bgzf blocks
// carry.
type Header gzip.Header

// BlockSize returns the total compressed size of the bgzf block described
// by h (its BSIZE subfield plus one), or -1 if h carries no BSIZE extra
// subfield.
func (h Header) BlockSize() int {
	i := bytes.Index(h.Extra, bgzfExtraPrefix)
	if i < 0 || i+5 >= len(h.Extra) {
		return -1
	}
	return (int(h.Extra[i+4]) | int(h.Extra[i+5])<<8) + 1
}

// Offset is a virtual file offset: File is the byte offset of the start
// of a block in the underlying compressed stream, and Block is the byte
// offset within that block's decompressed contents.
type Offset struct {
	File  int64
	Block uint16
}

// Compare returns -1, 0 or 1 according to whether o sorts before, at, or
// after p.
func (o Offset) Compare(p Offset) int {
	switch {
	case o.File < p.File || (o.File == p.File && o.Block < p.Block):
		return -1
	case o.File == p.File && o.Block == p.Block:
		return 0
	default:
		return 1
	}
}

// Chunk is a byte range in a bgzf stream, expressed as virtual offsets.
// It is half-open: [Begin, End).
type Chunk struct {
	Begin Offset
	End   Offset
}

// Writer writes a bgzf block stream, buffering input into BlockSize
// chunks and flushing each as an independent gzip member carrying a BSIZE
// extra subfield, so a reader can later seek directly to the start of any
// block.
type Writer struct {
	gzip.Header
	level   int
	w       io.Writer
	next    uint
	written int64
	err     error
	closed  bool
	block   [BlockSize]byte
	buf     bytes.Buffer
}

// NewWriter returns a Writer using the default compression level. wc names
// the number of concurrent compression workers a caller would like to use;
// this implementation compresses synchronously and ignores it.
func NewWriter(w io.Writer, wc int) *Writer {
	bw, _ := NewWriterLevel(w, gzip.DefaultCompression, wc)
	return bw
}

// NewWriterLevel returns a Writer using the given compression level. wc is
// accepted for interface compatibility with a concurrent writer and
// ignored, as with NewWriter.
func NewWriterLevel(w io.Writer, level, wc int) (*Writer, error) {
	return &Writer{
		Header: gzip.Header{OS: 0xff},
		w:      w,
		level:  level,
	}, nil
}

// Wait blocks until any outstanding asynchronous compression work
// completes. This Writer compresses synchronously, so Wait always
// returns immediately.
func (bg *Writer) Wait() error { return bg.err }

// Offset returns the virtual offset of the next byte to be written.
func (bg *Writer) Offset() Offset {
	return Offset{File: bg.written, Block: uint16(bg.next)}
}

func (bg *Writer) Write(p []byte) (int, error) {
	if bg.err != nil {
		return 0, bg.err
	}
	if bg.closed {
		return 0, ErrClosed
	}

	var n int
	for len(p) > 0 {
		if bg.next+uint(len(p)) > BlockSize {
			if bg.err = bg.flush(); bg.err != nil {
				return n, bg.err
			}
		}
		c := copy(bg.block[bg.next:], p)
		n += c
		p = p[c:]
		bg.next += uint(c)
		if bg.next == BlockSize {
			if bg.err = bg.flush(); bg.err != nil {
				return n, bg.err
			}
		}
	}
	return n, bg.err
}

// Flush writes any buffered data as a single bgzf block, even if it is
// smaller than BlockSize. An empty flush is a no-op.
func (bg *Writer) Flush() error {
	if bg.err != nil {
		return bg.err
	}
	if bg.closed || bg.next == 0 {
		return nil
	}
	return bg.flush()
}

func (bg *Writer) flush() error {
	bg.buf.Reset()
	gz, err := gzip.NewWriterLevel(&bg.buf, bg.level)
	if err != nil {
		return err
	}
	gz.Comment = bg.Comment
	gz.Extra = append(append([]byte{}, bgzfExtraPrefix...), append([]byte{0, 0}, bg.Extra...)...)
	gz.ModTime = bg.ModTime
	gz.Name = bg.Name
	gz.OS = bg.OS

	if _, err := gz.Write(bg.block[:bg.next]); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	bg.next = 0

	b := bg.buf.Bytes()
	i := bytes.Index(b, bgzfExtraPrefix)
	if i < 0 {
		return gzip.ErrHeader
	}
	size := len(b) - 1
	if size >= MaxBlockSize {
		return ErrBlockOverflow
	}
	b[i+4], b[i+5] = byte(size), byte(size>>8)

	n, err := bg.w.Write(b)
	bg.written += int64(n)
	return err
}

// Close flushes any remaining data and writes a terminal empty block,
// matching the EOF marker convention used by bgzf readers.
func (bg *Writer) Close() error {
	if bg.err != nil {
		return bg.err
	}
	if bg.closed {
		return nil
	}
	bg.closed = true
	if err := bg.Flush(); err != nil {
		bg.err = err
		return err
	}
	_, err := bg.w.Write(eofBlock)
	if err == nil {
		bg.written += int64(len(eofBlock))
	}
	return err
}

// eofBlock is the canonical empty bgzf block used to mark end of stream.
var eofBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}
