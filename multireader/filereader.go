// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multireader

import "github.com/biogo/htsmerge/sam"

// IndexCacheMode selects the block-cache eviction policy a FileReader
// should use for its underlying compressed-block cache, if any.
type IndexCacheMode int

const (
	// CacheNone disables block caching.
	CacheNone IndexCacheMode = iota
	// CacheLRU evicts the least recently used block.
	CacheLRU
	// CacheFIFO evicts the oldest inserted block.
	CacheFIFO
	// CacheRandom evicts a pseudo-randomly chosen block.
	CacheRandom
)

// FileReader is the external collaborator a MultiReader drives: one
// sorted ALN source, already associated with a single open file. A
// FileReader implementation owns all decoding, decompression, and index
// lookup; the core never inspects a source's raw bytes directly.
//
// All methods except NextCore report failure solely through their error
// return; nil means success. NextCore additionally signals a clean end
// of stream by returning ok false with a nil error rather than io.EOF,
// matching the convention used by the bam adapter.
type FileReader interface {
	// Open associates the FileReader with the named file. It must be
	// called at most once per FileReader value.
	Open(path string) error

	// Close releases any resources held by the FileReader. Close on
	// an already-closed FileReader is a no-op.
	Close() error

	// IsOpen reports whether the FileReader currently holds an open
	// file.
	IsOpen() bool

	// Filename returns the path passed to Open.
	Filename() string

	// Header returns the source's header. It is valid only after a
	// successful Open.
	Header() *sam.Header

	// ReferenceID returns the reference table index for name, or -1
	// if name is not present in the source's reference table.
	ReferenceID(name string) int

	// ReferenceData returns the source's reference table.
	ReferenceData() []*sam.Reference

	// NextCore advances to the next record in the source's native
	// order and binds it into h. ok is false with a nil error at a
	// clean end of stream.
	NextCore(h *RecordHandle) (ok bool, err error)

	// Rewind repositions the source at its first record.
	Rewind() error

	// Jump best-effort repositions the source at the first record
	// with reference id and position no less than (refID, pos). It
	// returns ErrIndexMissing if the source has no usable index.
	Jump(refID, pos int) error

	// SetRegion best-effort repositions the source such that
	// subsequent NextCore calls yield only records inside r, followed
	// by end of stream. It returns ErrIndexMissing if the source has
	// no usable index.
	SetRegion(r sam.Region) error

	// HasIndex reports whether the source currently has a usable
	// index for Jump/SetRegion.
	HasIndex() bool

	// LocateIndex attempts to find and associate an index file of the
	// given kind (adapter-defined; the empty string requests the
	// adapter's default) next to the source file.
	LocateIndex(kind string) error

	// CreateIndex builds and associates a new index of the given kind
	// for the source, if the adapter supports doing so in-process.
	CreateIndex(kind string) error

	// OpenIndex associates the index file at path with the source.
	OpenIndex(path string) error

	// SetIndexCacheMode configures the cache policy used for the
	// source's compressed block cache, if any.
	SetIndexCacheMode(mode IndexCacheMode)
}
