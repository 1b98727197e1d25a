// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bytes"
	"compress/gzip"
	"io"
)

// Writer writes a BGZF stream: an arbitrary byte stream split into
// gzip members no larger than MaxBlockSize, each carrying a BC extra
// subfield giving its total compressed size, terminated by the BGZF
// end-of-file marker block on Close.
type Writer struct {
	w     io.Writer
	level int

	buf bytes.Buffer

	err error
}

// NewWriter returns a Writer using gzip.DefaultCompression. wc is
// accepted for API parity with concurrent compressors elsewhere in the
// hts ecosystem and is otherwise unused.
func NewWriter(w io.Writer, wc int) *Writer {
	bw, _ := NewWriterLevel(w, gzip.DefaultCompression, wc)
	return bw
}

// NewWriterLevel returns a Writer that compresses at the given level,
// which must be gzip.DefaultCompression or in [gzip.NoCompression,
// gzip.BestCompression].
func NewWriterLevel(w io.Writer, level, wc int) (*Writer, error) {
	if level != gzip.DefaultCompression && (level < gzip.NoCompression || level > gzip.BestCompression) {
		return nil, gzip.ErrHeader
	}
	return &Writer{w: w, level: level}, nil
}

// Write implements io.Writer, buffering and flushing full blocks as
// necessary. A single Write never straddles more than one flushed block
// boundary at a time internally, but may itself trigger several block
// flushes.
func (bw *Writer) Write(p []byte) (int, error) {
	if bw.err != nil {
		return 0, bw.err
	}
	var n int
	for len(p) > 0 {
		room := MaxBlockSize - bw.buf.Len()
		if room <= 0 {
			if err := bw.flushBlock(); err != nil {
				bw.err = err
				return n, err
			}
			room = MaxBlockSize
		}
		chunk := p
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		nn, _ := bw.buf.Write(chunk)
		n += nn
		p = p[nn:]
	}
	return n, nil
}

// flushBlock compresses and emits the current pending buffer as one
// gzip member, patching in its BC extra subfield after the fact since
// the compressed size is not known until compression completes.
func (bw *Writer) flushBlock() error {
	if bw.buf.Len() == 0 {
		return nil
	}
	var out bytes.Buffer
	gz, err := gzip.NewWriterLevel(&out, bw.level)
	if err != nil {
		return err
	}
	gz.Header.Extra = append([]byte{}, bgzfExtraPrefix...)
	gz.Header.Extra = append(gz.Header.Extra, 0, 0) // placeholder BSIZE
	if _, err := gz.Write(bw.buf.Bytes()); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	size := out.Len() - 1
	raw := out.Bytes()
	i := bytes.Index(raw, bgzfExtraPrefix)
	if i < 0 || i+5 >= len(raw) {
		return ErrNoBlockSize
	}
	raw[i+4] = byte(size)
	raw[i+5] = byte(size >> 8)

	if _, err := bw.w.Write(raw); err != nil {
		return err
	}
	bw.buf.Reset()
	return nil
}

// Flush forces any pending buffered bytes to be compressed and emitted
// as a block, without writing the end-of-file marker.
func (bw *Writer) Flush() error {
	if bw.err != nil {
		return bw.err
	}
	return bw.flushBlock()
}

// Wait blocks until all blocks queued by prior Write/Flush calls have
// been emitted. This Writer compresses synchronously, so Wait always
// returns immediately.
func (bw *Writer) Wait() error {
	return bw.err
}

// Close flushes any pending data and writes the BGZF end-of-file marker
// block. It does not close the underlying io.Writer.
func (bw *Writer) Close() error {
	if bw.err != nil {
		return bw.err
	}
	if err := bw.flushBlock(); err != nil {
		return err
	}
	_, err := bw.w.Write(magicBlock)
	return err
}
