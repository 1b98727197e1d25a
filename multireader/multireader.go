// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multireader

import (
	"github.com/pkg/errors"

	"github.com/biogo/htsmerge/sam"
)

// source tracks one opened FileReader and the merge frontier's
// persistent RecordHandle slot for it.
type source struct {
	id     int
	reader FileReader
	handle RecordHandle
	open   bool
	// exhausted is set once NextCore has returned a clean end of
	// stream for this source, so it is not retried on every refill.
	exhausted bool
}

// Options configures a MultiReader at Open time.
type Options struct {
	// Diag receives non-fatal diagnostics, such as a source that
	// cannot honor a best-effort reposition. A nil Diag installs the
	// default vlog-backed sink.
	Diag DiagFunc

	// IndexCacheMode is broadcast to every opened source's
	// SetIndexCacheMode.
	IndexCacheMode IndexCacheMode
}

// MultiReader merges the next-record streams of N open FileReaders into
// a single logically ordered stream, using the sort order declared by
// the first source's header. It performs no internal synchronization;
// callers sharing a MultiReader across goroutines must provide their
// own mutual exclusion.
type MultiReader struct {
	sources []*source
	header  *sam.Header
	order   Ordering
	cache   *MergeCache
	diag    DiagFunc
	cacheMode IndexCacheMode
}

// Open opens one FileReader per path (constructed by newReader, which
// must return a fresh, unopened FileReader on each call) and returns a
// MultiReader that merges their record streams. Open validates that all
// sources declare a compatible sort order and reference table,
// synthesizes a merged header (see Header), and primes the merge
// frontier with each source's first record.
func Open(paths []string, newReader func() FileReader, opts Options) (*MultiReader, error) {
	if len(paths) == 0 {
		return nil, ErrNoSources
	}
	diag := opts.Diag
	if diag == nil {
		diag = defaultDiag
	}

	m := &MultiReader{diag: diag, cacheMode: opts.IndexCacheMode}
	for i, p := range paths {
		r := newReader()
		if err := r.Open(p); err != nil {
			m.closeAll()
			return nil, errors.Wrapf(err, "multireader: open %s", p)
		}
		r.SetIndexCacheMode(opts.IndexCacheMode)
		m.sources = append(m.sources, &source{id: i, reader: r, open: true})
	}

	if err := m.validateReaders(); err != nil {
		m.closeAll()
		return nil, err
	}

	m.header = m.synthesizeHeader()
	m.order = SelectOrdering(m.header.SortOrder)
	m.cache = NewMergeCache(m.order)

	if err := m.fillAll(); err != nil {
		m.closeAll()
		return nil, err
	}
	return m, nil
}

// validateReaders implements the compatibility check run at Open: every
// source must declare the same sort order as the first, and every
// source's reference table must be element-wise equal to the first's:
// same length, and each entry agreeing on (name, length) at the same
// index. This is stricter than mere name agreement: two tables holding
// the same names in different orders would otherwise pass while their
// numeric ref ids addressed different sequences, silently corrupting
// coordinate-order comparisons downstream, which compare raw ref ids on
// the assumption that they share one index space.
func (m *MultiReader) validateReaders() error {
	first := m.sources[0].reader.Header()
	firstRefs := first.Refs()
	for _, s := range m.sources[1:] {
		h := s.reader.Header()
		if h.SortOrder != first.SortOrder {
			return errors.Wrapf(ErrIncompatible, "%s: sort order %s != %s", s.reader.Filename(), h.SortOrder, first.SortOrder)
		}
		refs := h.Refs()
		if len(refs) != len(firstRefs) {
			return errors.Wrapf(ErrIncompatible, "%s: reference table length %d != %d", s.reader.Filename(), len(refs), len(firstRefs))
		}
		for i, ref := range refs {
			want := firstRefs[i]
			if !ref.EqualDescriptor(want) {
				return errors.Wrapf(ErrIncompatible, "%s: reference %d (%s, %d) != (%s, %d)",
					s.reader.Filename(), i, ref.Name(), ref.Len(), want.Name(), want.Len())
			}
		}
	}
	return nil
}

// synthesizeHeader builds the MultiReader's merged header: every field
// except read groups is taken from the first source unchanged; read
// groups from later sources are appended only if their id is not
// already present (first-writer-wins on collision). This intentionally
// does not attempt to merge @PG or @CO lines across sources.
func (m *MultiReader) synthesizeHeader() *sam.Header {
	merged := m.sources[0].reader.Header().Clone()
	seen := make(map[string]bool, len(merged.RGs()))
	for _, rg := range merged.RGs() {
		seen[rg.Name()] = true
	}
	for _, s := range m.sources[1:] {
		for _, rg := range s.reader.Header().RGs() {
			if seen[rg.Name()] {
				continue
			}
			seen[rg.Name()] = true
			// AddReadGroup rejects a group that already belongs to
			// another header; Clone detaches it first.
			_ = merged.AddReadGroup(rg.Clone())
		}
	}
	return merged
}

// Header returns the synthesized merged header.
func (m *MultiReader) Header() *sam.Header { return m.header }

// fillAll primes the merge frontier with one pending item per open,
// non-exhausted source that does not already have one.
func (m *MultiReader) fillAll() error {
	for _, s := range m.sources {
		if err := m.fillSource(s); err != nil {
			return err
		}
	}
	return nil
}

// fillSource advances s's FileReader until it either produces a record
// (inserted into the cache) or reaches end of stream.
func (m *MultiReader) fillSource(s *source) error {
	if !s.open || s.exhausted || m.cache.Has(s.id) {
		return nil
	}
	ok, err := s.reader.NextCore(&s.handle)
	if err != nil {
		return errors.Wrapf(err, "multireader: %s: advance", s.reader.Filename())
	}
	if !ok {
		s.exhausted = true
		return nil
	}
	m.cache.Insert(&MergeItem{sourceID: s.id, reader: s.reader, handle: &s.handle})
	return nil
}

// NextCore pops the least-ordered pending record across all open
// sources into out, transferring ownership of its raw buffer to out,
// and refills the merge frontier from that record's source. out's text
// fields are not materialized; callers that need them must call
// out.BuildText themselves. ok is false with a nil error once every
// source is exhausted.
func (m *MultiReader) NextCore(out *RecordHandle) (ok bool, err error) {
	item := m.cache.PopMin()
	if item == nil {
		return false, nil
	}
	*out = *item.handle
	*item.handle = RecordHandle{}

	s := m.sources[item.sourceID]
	if err := m.fillSource(s); err != nil {
		return true, err
	}
	return true, nil
}

// Next is NextCore followed by an automatic out.BuildText, so callers
// that want the decoded *sam.Record get it without having to remember
// the extra call. A BuildText failure is returned alongside ok==true,
// since the handle was still validly advanced.
func (m *MultiReader) Next(out *RecordHandle) (ok bool, err error) {
	ok, err = m.NextCore(out)
	if !ok || err != nil {
		return ok, err
	}
	if err := out.BuildText(); err != nil {
		return true, err
	}
	return true, nil
}

// HasOpenReaders reports whether at least one source is still open.
func (m *MultiReader) HasOpenReaders() bool {
	for _, s := range m.sources {
		if s.open {
			return true
		}
	}
	return false
}

// closeSourceIndex closes the source at the given stable index and
// drops its pending item, if any, from the merge frontier. It is the
// internal primitive CloseFile and Close build on.
func (m *MultiReader) closeSourceIndex(sourceID int) error {
	if sourceID < 0 || sourceID >= len(m.sources) {
		return ErrSourceClosed
	}
	s := m.sources[sourceID]
	if !s.open {
		return nil
	}
	m.cache.Remove(s.id)
	s.handle.release()
	s.open = false
	return s.reader.Close()
}

// CloseFile closes the first open source whose filename matches
// exactly, if any; a filename that matches no open source is silently
// skipped.
func (m *MultiReader) CloseFile(filename string) error {
	for _, s := range m.sources {
		if s.open && s.reader.Filename() == filename {
			return m.closeSourceIndex(s.id)
		}
	}
	return nil
}

// CloseFiles closes each named source in turn, in the order given.
// Filenames matching no open source are silently skipped.
func (m *MultiReader) CloseFiles(filenames []string) error {
	var first error
	for _, name := range filenames {
		if err := m.CloseFile(name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every open source.
func (m *MultiReader) Close() error {
	var first error
	for _, s := range m.sources {
		if !s.open {
			continue
		}
		if err := m.closeSourceIndex(s.id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiReader) closeAll() {
	for _, s := range m.sources {
		if s.open {
			s.reader.Close()
			s.open = false
		}
	}
}

// Rewind repositions every open source at its first record and rebuilds
// the merge frontier. A source that fails to rewind is reported through
// the MultiReader's diagnostic sink and dropped from the frontier,
// consistent with the best-effort repositioning policy; Rewind itself
// only returns an error if every source fails.
func (m *MultiReader) Rewind() error {
	m.cache.Clear()
	failures := 0
	for _, s := range m.sources {
		if !s.open {
			continue
		}
		s.handle.release()
		s.exhausted = false
		if err := s.reader.Rewind(); err != nil {
			m.diag(s.reader.Filename(), err)
			failures++
			continue
		}
		if err := m.fillSource(s); err != nil {
			m.diag(s.reader.Filename(), err)
			failures++
		}
	}
	if failures > 0 && failures == len(m.openSources()) {
		return errors.Wrap(ErrCacheBuildFailed, "rewind")
	}
	return nil
}

// Jump best-effort repositions every open source at the first record
// with reference id and position no less than (refID, pos), and
// rebuilds the merge frontier. A source whose Jump fails (for example,
// one without a usable index) is reported through the diagnostic sink
// and contributes no records until the next Rewind, Jump or SetRegion.
func (m *MultiReader) Jump(refID, pos int) error {
	m.cache.Clear()
	for _, s := range m.sources {
		if !s.open {
			continue
		}
		s.handle.release()
		s.exhausted = false
		if err := s.reader.Jump(refID, pos); err != nil {
			m.diag(s.reader.Filename(), err)
			continue
		}
		if err := m.fillSource(s); err != nil {
			m.diag(s.reader.Filename(), err)
		}
	}
	return nil
}

// SetRegion best-effort restricts every open source to records inside
// r and rebuilds the merge frontier. A source whose SetRegion fails
// (for example, one without a usable index) is reported through the
// diagnostic sink and contributes no records until the next Rewind,
// Jump or SetRegion.
func (m *MultiReader) SetRegion(r sam.Region) error {
	m.cache.Clear()
	for _, s := range m.sources {
		if !s.open {
			continue
		}
		s.handle.release()
		s.exhausted = false
		if err := s.reader.SetRegion(r); err != nil {
			m.diag(s.reader.Filename(), err)
			continue
		}
		if err := m.fillSource(s); err != nil {
			m.diag(s.reader.Filename(), err)
		}
	}
	return nil
}

func (m *MultiReader) openSources() []*source {
	var out []*source
	for _, s := range m.sources {
		if s.open {
			out = append(out, s)
		}
	}
	return out
}

// HasIndexes reports whether every open source currently has a usable
// index.
func (m *MultiReader) HasIndexes() bool {
	for _, s := range m.sources {
		if s.open && !s.reader.HasIndex() {
			return false
		}
	}
	return true
}

// LocateIndexes asks every open source to locate an index of the given
// kind. It returns the first error encountered, after attempting every
// source.
func (m *MultiReader) LocateIndexes(kind string) error {
	var first error
	for _, s := range m.sources {
		if !s.open {
			continue
		}
		if err := s.reader.LocateIndex(kind); err != nil && first == nil {
			first = errors.Wrapf(err, "%s: locate index", s.reader.Filename())
		}
	}
	return first
}

// CreateIndexes asks every open source to build an index of the given
// kind. It returns the first error encountered, after attempting every
// source.
func (m *MultiReader) CreateIndexes(kind string) error {
	var first error
	for _, s := range m.sources {
		if !s.open {
			continue
		}
		if err := s.reader.CreateIndex(kind); err != nil && first == nil {
			first = errors.Wrapf(err, "%s: create index", s.reader.Filename())
		}
	}
	return first
}

// OpenIndexes associates the named index files with the open sources in
// source-id order; len(paths) must equal the number of sources passed
// to Open.
func (m *MultiReader) OpenIndexes(paths []string) error {
	if len(paths) != len(m.sources) {
		return errors.New("multireader: OpenIndexes: path count mismatch")
	}
	for i, s := range m.sources {
		if !s.open {
			continue
		}
		if err := s.reader.OpenIndex(paths[i]); err != nil {
			return errors.Wrapf(err, "%s: open index", s.reader.Filename())
		}
	}
	return nil
}

// SetIndexCacheMode broadcasts mode to every open source.
func (m *MultiReader) SetIndexCacheMode(mode IndexCacheMode) {
	m.cacheMode = mode
	for _, s := range m.sources {
		if s.open {
			s.reader.SetIndexCacheMode(mode)
		}
	}
}

// ReferenceID returns the merged header's reference table index for
// name, or -1 if absent.
func (m *MultiReader) ReferenceID(name string) int {
	for _, ref := range m.header.Refs() {
		if ref.Name() == name {
			return ref.ID()
		}
	}
	return -1
}

// ReferenceCount returns the number of entries in the merged header's
// reference table.
func (m *MultiReader) ReferenceCount() int { return len(m.header.Refs()) }

// ReferenceData returns the merged header's reference table.
func (m *MultiReader) ReferenceData() []*sam.Reference { return m.header.Refs() }

// HeaderText returns the merged header's SAM text serialization.
func (m *MultiReader) HeaderText() (string, error) {
	b, err := m.header.MarshalText()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OpenFile is Open for the single-file case: it opens one FileReader
// for path and returns a MultiReader over it alone.
func OpenFile(path string, newReader func() FileReader, opts Options) (*MultiReader, error) {
	return Open([]string{path}, newReader, opts)
}
