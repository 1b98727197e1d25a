// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bgzf implements the BGZF blocked gzip format used by BAM files:
// a stream of independently-decompressable gzip members, each tagged
// with an "BC" extra subfield giving its total compressed size minus
// one. This lets a reader compute virtual file offsets (compressed file
// offset, uncompressed offset within the current block) that support
// random access via Seek.
package bgzf

import (
	"bytes"
	"errors"
)

// MaxBlockSize is the maximum byte size of an uncompressed BGZF block.
// It is one more than the largest value an Offset's uint16 Block field
// can hold.
const MaxBlockSize = 0x10000

// bgzfExtraPrefix is the two-byte subfield identifier ("BC") followed by
// the two-byte little-endian subfield length (always 2) that BGZF
// blocks place in the gzip header's extra field.
var bgzfExtraPrefix = []byte{'B', 'C', 2, 0}

// magicBlock is the 28 byte BGZF end-of-file marker block: an empty
// gzip member whose BC subfield declares a block size of 28.
var magicBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

var (
	// ErrNotASeeker is returned by Seek when the underlying reader
	// does not implement io.Seeker.
	ErrNotASeeker = errors.New("bgzf: not a seeker")

	// ErrNoBlockSize is returned when a gzip member's extra field
	// does not carry a BGZF BC subfield.
	ErrNoBlockSize = errors.New("bgzf: could not determine block size")

	// ErrBlockOverflow is returned when a decompressed block would
	// exceed MaxBlockSize.
	ErrBlockOverflow = errors.New("bgzf: block overflow")
)

// Offset is a BGZF virtual file offset: the compressed byte offset of
// the start of a gzip member (File), and the uncompressed byte offset
// within that member's decompressed data (Block).
type Offset struct {
	File  int64
	Block uint16
}

// Chunk is a half-open span of virtual file offsets.
type Chunk struct {
	Begin Offset
	End   Offset
}

// Compare orders two Offsets, matching the total order used for BAI/CSI
// virtual offset comparisons: File dominates, Block breaks ties.
func (o Offset) Compare(p Offset) int {
	switch {
	case o.File < p.File:
		return -1
	case o.File > p.File:
		return 1
	case o.Block < p.Block:
		return -1
	case o.Block > p.Block:
		return 1
	default:
		return 0
	}
}

// blockSize returns the declared total compressed size of the gzip
// member whose extra field is extra, or -1 if it carries no BC
// subfield.
func blockSize(extra []byte) int {
	i := bytes.Index(extra, bgzfExtraPrefix)
	if i < 0 || i+5 >= len(extra) {
		return -1
	}
	return (int(extra[i+4]) | int(extra[i+5])<<8) + 1
}
