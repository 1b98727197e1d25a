// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"

	"github.com/biogo/htsmerge/internal/pool"
)

// Reader reads a BGZF stream as a single contiguous decompressed byte
// stream, while tracking the virtual Offset of the next byte to be read
// so that LastChunk and Seek can support random access.
type Reader struct {
	r    io.Reader
	cr   *countReader
	cache Cache

	cur   Block
	chunk Chunk

	err error
}

type countReader struct {
	r *bufio.Reader
	n int64
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ReadByte makes countReader an io.ByteReader, so gzip reads each member
// exactly to its end instead of buffering ahead into the next one.
func (c *countReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// NewReader returns a Reader that decompresses r. rd is accepted for
// API parity with concurrent decompressors elsewhere in the hts
// ecosystem; this Reader decompresses synchronously regardless of its
// value.
func NewReader(r io.Reader, rd int) (*Reader, error) {
	bg := &Reader{r: r}
	if err := bg.readBlock(); err != nil {
		return nil, err
	}
	return bg, nil
}

// SetCache installs a block Cache used to avoid redundant decompression
// of blocks visited more than once. A nil Cache disables caching.
func (bg *Reader) SetCache(c Cache) { bg.cache = c }

// readBlock decompresses the next gzip member from bg.r into bg.cur,
// consulting and populating the cache by base offset.
func (bg *Reader) readBlock() error {
	base := bg.chunk.End.File
	// Begin moves to the new block only when nothing has been read since
	// it was set; a transaction spanning blocks keeps its start.
	fresh := bg.cur == nil || bg.chunk.Begin == (Offset{File: bg.cur.Base(), Block: bg.chunk.End.Block})
	if bg.cache != nil {
		if b := bg.cache.Get(base); b != nil {
			bg.cur = b
			if fresh {
				bg.chunk.Begin = Offset{File: base}
			}
			bg.chunk.End = Offset{File: base}
			return nil
		}
	}

	if bg.cr == nil {
		bg.cr = &countReader{r: bufio.NewReader(bg.r)}
	}
	bg.cr.n = base
	start := bg.cr.n
	gz, err := gzip.NewReader(bg.cr)
	if err != nil {
		return err
	}
	gz.Multistream(false)
	size := blockSize(gz.Header.Extra)
	if size < 0 {
		return ErrNoBlockSize
	}

	buf := pool.GetBuffer(MaxBlockSize)
	if buf == nil {
		buf = make([]byte, 0, MaxBlockSize)
	}
	data := bytes.NewBuffer(buf[:0])
	if _, err := io.Copy(data, gz); err != nil {
		return err
	}
	if data.Len() > MaxBlockSize {
		return ErrBlockOverflow
	}

	b := &block{
		base: start,
		next: start + int64(size),
		buf:  bytes.NewReader(data.Bytes()),
		raw:  data.Bytes(),
	}
	if bg.cache != nil {
		if w, ok := bg.cache.(Wrapper); ok {
			bg.cur = w.Wrap(b)
		} else {
			bg.cur = b
		}
		if evicted, retained := bg.cache.Put(bg.cur); evicted != nil && !retained {
			pool.PutBuffer(evicted.(*block).raw)
		}
	} else {
		bg.cur = b
	}
	if fresh {
		bg.chunk.Begin = Offset{File: start}
	}
	bg.chunk.End = Offset{File: start}
	return nil
}

// Read implements io.Reader, transparently advancing across gzip
// member boundaries and updating the current virtual offset.
func (bg *Reader) Read(p []byte) (int, error) {
	if bg.err != nil {
		return 0, bg.err
	}
	var n int
	for n < len(p) {
		if bg.cur == nil || bg.cur.Len() == 0 {
			if bg.cur != nil {
				bg.chunk.End.File = bg.cur.(*block).next
			}
			if err := bg.readBlock(); err != nil {
				bg.err = err
				break
			}
		}
		_n, err := bg.cur.Read(p[n:])
		n += _n
		bg.chunk.End.Block += uint16(_n)
		if err != nil && err != io.EOF {
			bg.err = err
			break
		}
		if bg.cur.Len() == 0 && _n == 0 {
			bg.chunk.End.File = bg.cur.(*block).next
			if err := bg.readBlock(); err != nil {
				bg.err = err
				break
			}
			bg.chunk.End.Block = 0
		}
	}
	if n > 0 {
		return n, nil
	}
	return n, bg.err
}

// Begin marks the start of a read transaction, after which LastChunk
// reports the span of virtual offsets covered by the reads since Begin.
func (bg *Reader) Begin() { bg.chunk.Begin = bg.chunk.End }

// LastChunk returns the Chunk of virtual offsets read since the most
// recent call to Begin.
func (bg *Reader) LastChunk() Chunk { return bg.chunk }

// Seek repositions the Reader at the given virtual Offset. The
// underlying reader must implement io.Seeker.
func (bg *Reader) Seek(off Offset) error {
	rs, ok := bg.r.(io.ReadSeeker)
	if !ok {
		return ErrNotASeeker
	}
	if _, err := rs.Seek(off.File, io.SeekStart); err != nil {
		return err
	}
	bg.cr = nil
	bg.cur = nil
	bg.chunk = Chunk{Begin: Offset{File: off.File}, End: Offset{File: off.File}}
	bg.err = nil
	if err := bg.readBlock(); err != nil {
		return err
	}
	if off.Block > 0 {
		if _, err := io.CopyN(io.Discard, bg.cur, int64(off.Block)); err != nil {
			return err
		}
		bg.chunk.End.Block = off.Block
	}
	return nil
}

// Close releases the Reader's resources. The underlying io.Reader, if
// also an io.Closer, is not closed.
func (bg *Reader) Close() error {
	bg.cur = nil
	return nil
}
