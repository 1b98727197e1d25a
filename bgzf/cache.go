// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bytes"
	"io"
)

// Cache is a Block caching type. Implementations are provided in the
// cache subpackage (LRU, FIFO, and random eviction policies).
//
// If a Cache is also a Wrapper, its Wrap method is called on newly
// decompressed blocks before they are inserted into the cache.
type Cache interface {
	// Get returns and removes the Block in the Cache with the given
	// base file offset, or nil if no such Block is cached.
	Get(base int64) Block

	// Put inserts a Block into the Cache, returning the Block it
	// evicted, if any, and whether the inserted Block was retained.
	Put(Block) (evicted Block, retained bool)
}

// Wrapper defines Cache types that need to modify a Block at its
// creation, for example to instrument reads.
type Wrapper interface {
	Wrap(Block) Block
}

// Block wraps interaction with one decompressed BGZF block.
type Block interface {
	io.Reader

	// Base returns the compressed file offset of the start of the
	// gzip member the Block was decompressed from.
	Base() int64

	// NextBase returns the compressed file offset of the gzip member
	// immediately following this Block's, or -1 if unknown.
	NextBase() int64

	// Used reports whether any bytes have been read from the Block
	// since it was created.
	Used() bool

	// Len returns the count of unread bytes remaining in the Block.
	Len() int
}

type block struct {
	base int64
	next int64
	used bool

	buf *bytes.Reader
	raw []byte
}

func (b *block) Base() int64     { return b.base }
func (b *block) NextBase() int64 { return b.next }
func (b *block) Used() bool      { return b.used }
func (b *block) Len() int        { return b.buf.Len() }

func (b *block) Read(p []byte) (int, error) {
	n, err := b.buf.Read(p)
	if n > 0 {
		b.used = true
	}
	return n, err
}
