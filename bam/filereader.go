// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/biogo/htsmerge/bgzf"
	"github.com/biogo/htsmerge/bgzf/cache"
	"github.com/biogo/htsmerge/multireader"
	"github.com/biogo/htsmerge/sam"
)

// entry is one record's position in the in-memory coordinate index built
// by FileReader.buildIndex.
type entry struct {
	refID int32
	pos   int32
	begin bgzf.Offset
}

// FileReader adapts a BAM Reader over a single BGZF file
// into a multireader.FileReader, so a MultiReader can merge BAM sources.
// Index support is a lightweight, in-process, non-persisted coordinate
// index built by scanning the file once; it is not a BAI or CSI byte
// format and is never written to disk.
type FileReader struct {
	path string
	f    *os.File
	r    *Reader

	dataStart bgzf.Offset
	streamEnd bgzf.Offset // set by buildIndex; virtual offset just before the EOF marker
	idx       []entry     // sorted by (refID treating -1 as max, pos)
	region    *sam.Region
}

var _ multireader.FileReader = (*FileReader)(nil)

// NewFileReader returns an unopened FileReader. Its result type is
// *FileReader, so it is passed to multireader.Open inside a function
// that returns it as a multireader.FileReader.
func NewFileReader() *FileReader { return &FileReader{} }

func (a *FileReader) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	r, err := NewReader(f, 0)
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "bam: %s", path)
	}
	a.path = path
	a.f = f
	a.r = r
	a.dataStart = r.LastChunk().End
	return nil
}

func (a *FileReader) Close() error {
	if a.f == nil {
		return nil
	}
	err := a.r.Close()
	if cerr := a.f.Close(); err == nil {
		err = cerr
	}
	a.f = nil
	a.r = nil
	return err
}

func (a *FileReader) IsOpen() bool        { return a.f != nil }
func (a *FileReader) Filename() string    { return a.path }
func (a *FileReader) Header() *sam.Header { return a.r.Header() }

func (a *FileReader) ReferenceID(name string) int {
	for _, ref := range a.r.Header().Refs() {
		if ref.Name() == name {
			return ref.ID()
		}
	}
	return -1
}

func (a *FileReader) ReferenceData() []*sam.Reference { return a.r.Header().Refs() }

// NextCore reads the next record and binds it into h. Since this
// adapter decodes records fully and eagerly (matching the underlying
// Reader's Read method), the decode closure installed into h is a
// trivial wrapper around the already-decoded record rather than a true
// lazy decode.
func (a *FileReader) NextCore(h *multireader.RecordHandle) (bool, error) {
	for {
		rec, err := a.r.Read()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		refID, pos := recordKey(rec)
		if a.region != nil && !a.region.Contains(int(refID), int(pos)) {
			if refID < 0 || int(refID) > a.region.RightRefID || (int(refID) == a.region.RightRefID && int(pos) >= a.region.RightPos) {
				return false, nil
			}
			continue
		}
		h.Bind(nil, refID, pos, rec.Name, a.path, func([]byte) (*sam.Record, error) { return rec, nil })
		return true, nil
	}
}

func recordKey(rec *sam.Record) (refID, pos int32) {
	if rec.Ref == nil {
		return -1, int32(rec.Pos)
	}
	return int32(rec.Ref.ID()), int32(rec.Pos)
}

func (a *FileReader) Rewind() error {
	a.region = nil
	return a.r.Seek(a.dataStart)
}

func (a *FileReader) Jump(refID, pos int) error {
	if a.idx == nil {
		return multireader.ErrIndexMissing
	}
	a.region = nil
	off := a.offsetFor(refID, pos)
	return a.r.Seek(off)
}

func (a *FileReader) SetRegion(r sam.Region) error {
	if a.idx == nil {
		return multireader.ErrIndexMissing
	}
	off := a.offsetFor(r.LeftRefID, r.LeftPos)
	if err := a.r.Seek(off); err != nil {
		return err
	}
	region := r
	a.region = &region
	return nil
}

// offsetFor returns the virtual offset of the first indexed record at
// or after (refID, pos), or the stream end if none exists.
func (a *FileReader) offsetFor(refID, pos int) bgzf.Offset {
	key := func(e entry) (int64, int32) {
		k := int64(e.refID)
		if e.refID < 0 {
			k = 1<<62 - 1
		}
		return k, e.pos
	}
	targetKey := int64(refID)
	if refID < 0 {
		targetKey = 1<<62 - 1
	}
	i := sort.Search(len(a.idx), func(i int) bool {
		k, p := key(a.idx[i])
		if k != targetKey {
			return k > targetKey
		}
		return p >= int32(pos)
	})
	if i == len(a.idx) {
		return a.streamEnd
	}
	return a.idx[i].begin
}

func (a *FileReader) HasIndex() bool { return a.idx != nil }

// LocateIndex and CreateIndex are equivalent for this adapter: both
// build the in-process coordinate index by scanning the file once, from
// its current position back to the start of record data on completion.
// kind is accepted for interface conformance and is otherwise ignored,
// since this adapter has exactly one non-persisted index
// representation.
func (a *FileReader) LocateIndex(kind string) error { return a.buildIndex() }
func (a *FileReader) CreateIndex(kind string) error { return a.buildIndex() }

// OpenIndex is unsupported: this adapter's index is never persisted to
// disk, so there is no file to open. It always builds the same
// in-process index LocateIndex/CreateIndex would.
func (a *FileReader) OpenIndex(path string) error { return a.buildIndex() }

func (a *FileReader) buildIndex() error {
	savedRegion := a.region
	if err := a.r.Seek(a.dataStart); err != nil {
		return err
	}
	a.region = nil
	a.streamEnd = a.dataStart
	var idx []entry
	for {
		rec, err := a.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		refID, pos := recordKey(rec)
		idx = append(idx, entry{refID: refID, pos: pos, begin: a.r.LastChunk().Begin})
		a.streamEnd = a.r.LastChunk().End
	}
	sort.Slice(idx, func(i, j int) bool {
		ki, kj := idx[i].refID, idx[j].refID
		if ki < 0 {
			ki = 1<<31 - 1
		}
		if kj < 0 {
			kj = 1<<31 - 1
		}
		if ki != kj {
			return ki < kj
		}
		return idx[i].pos < idx[j].pos
	})
	a.idx = idx
	a.region = savedRegion
	return a.r.Seek(a.dataStart)
}

func (a *FileReader) SetIndexCacheMode(mode multireader.IndexCacheMode) {
	switch mode {
	case multireader.CacheLRU:
		a.r.SetCache(cache.NewLRU(64))
	case multireader.CacheFIFO:
		a.r.SetCache(cache.NewFIFO(64))
	case multireader.CacheRandom:
		a.r.SetCache(cache.NewRandom(64))
	default:
		a.r.SetCache(nil)
	}
}
