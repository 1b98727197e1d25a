// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multireader_test

import (
	"os"
	"testing"

	"github.com/biogo/htsmerge/multireader"
	"github.com/biogo/htsmerge/sam"
)

// fakeRecord is the minimal per-record state a fakeFileReader exposes,
// standing in for a decoded *sam.Record so these tests can exercise
// MultiReader's merge behavior without encoding real BAM bytes.
type fakeRecord struct {
	refID int32
	pos   int32
	name  string
}

// fakeFixture is a registered, reusable (header, records) pair that
// Open's newReader factory hands out fresh copies of, keyed by path.
type fakeFixture struct {
	header *sam.Header
	recs   []fakeRecord
}

var fakeRegistry map[string]*fakeFixture

func registerFake(path string, h *sam.Header, recs []fakeRecord) {
	if fakeRegistry == nil {
		fakeRegistry = make(map[string]*fakeFixture)
	}
	fakeRegistry[path] = &fakeFixture{header: h, recs: recs}
}

// fakeFileReader is an in-memory multireader.FileReader backed by a
// registered fakeFixture. Its coordinate index is always present and
// covers every record, so Jump/SetRegion are exact rather than merely
// best-effort in these tests.
type fakeFileReader struct {
	path   string
	header *sam.Header
	recs   []fakeRecord
	i      int
	region *sam.Region
}

func newFake() multireader.FileReader { return &fakeFileReader{} }

func (f *fakeFileReader) Open(path string) error {
	fx, ok := fakeRegistry[path]
	if !ok {
		return os.ErrNotExist
	}
	f.path = path
	f.header = fx.header
	f.recs = fx.recs
	return nil
}

func (f *fakeFileReader) Close() error    { f.header = nil; return nil }
func (f *fakeFileReader) IsOpen() bool    { return f.header != nil }
func (f *fakeFileReader) Filename() string { return f.path }
func (f *fakeFileReader) Header() *sam.Header { return f.header }

func (f *fakeFileReader) ReferenceID(name string) int {
	for _, ref := range f.header.Refs() {
		if ref.Name() == name {
			return ref.ID()
		}
	}
	return -1
}

func (f *fakeFileReader) ReferenceData() []*sam.Reference { return f.header.Refs() }

func (f *fakeFileReader) NextCore(h *multireader.RecordHandle) (bool, error) {
	for f.i < len(f.recs) {
		r := f.recs[f.i]
		f.i++
		if f.region != nil && !f.region.Contains(int(r.refID), int(r.pos)) {
			if int(r.refID) > f.region.RightRefID || (int(r.refID) == f.region.RightRefID && int(r.pos) >= f.region.RightPos) {
				return false, nil
			}
			continue
		}
		rec := r
		h.Bind(nil, r.refID, r.pos, r.name, f.path, func([]byte) (*sam.Record, error) {
			return &sam.Record{Name: rec.name, Pos: int(rec.pos)}, nil
		})
		return true, nil
	}
	return false, nil
}

func (f *fakeFileReader) Rewind() error { f.i = 0; f.region = nil; return nil }

func (f *fakeFileReader) Jump(refID, pos int) error {
	f.region = nil
	for i, r := range f.recs {
		if int(r.refID) > refID || (int(r.refID) == refID && int(r.pos) >= pos) {
			f.i = i
			return nil
		}
	}
	f.i = len(f.recs)
	return nil
}

func (f *fakeFileReader) SetRegion(r sam.Region) error {
	if err := f.Jump(r.LeftRefID, r.LeftPos); err != nil {
		return err
	}
	region := r
	f.region = &region
	return nil
}

func (f *fakeFileReader) HasIndex() bool                                { return true }
func (f *fakeFileReader) LocateIndex(kind string) error                 { return nil }
func (f *fakeFileReader) CreateIndex(kind string) error                 { return nil }
func (f *fakeFileReader) OpenIndex(path string) error                   { return nil }
func (f *fakeFileReader) SetIndexCacheMode(multireader.IndexCacheMode) {}

func coordinateHeader(t *testing.T) *sam.Header {
	t.Helper()
	h, err := sam.NewHeader(nil, []*sam.Reference{
		mustRef(t, "chr1", 1000),
		mustRef(t, "chr2", 2000),
	})
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	h.SortOrder = sam.Coordinate
	return h
}

func mustRef(t *testing.T, name string, l int) *sam.Reference {
	t.Helper()
	ref, err := sam.NewReference(name, "", "", l, nil, nil)
	if err != nil {
		t.Fatalf("NewReference: %v", err)
	}
	return ref
}

func drain(t *testing.T, m *multireader.MultiReader) []string {
	t.Helper()
	var got []string
	var h multireader.RecordHandle
	for {
		ok, err := m.Next(&h)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, h.QueryName())
	}
	return got
}

// TestCoordinateMergeStable checks that two coordinate-sorted sources
// interleave into one globally coordinate-ordered stream, and that
// records at equal coordinates come out in a stable, source-order
// tiebreak.
func TestCoordinateMergeStable(t *testing.T) {
	h := coordinateHeader(t)
	registerFake("a", h, []fakeRecord{{0, 10, "a1"}, {0, 30, "a2"}, {0, 30, "a3"}})
	registerFake("b", h, []fakeRecord{{0, 20, "b1"}, {0, 30, "b4"}})

	m, err := multireader.Open([]string{"a", "b"}, newFake, multireader.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	got := drain(t, m)
	want := []string{"a1", "b1", "a2", "a3", "b4"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestUnmappedSortsLast checks that an unmapped record (refID -1) is
// from one source is ordered after a mapped record from another source
// under coordinate order.
func TestUnmappedSortsLast(t *testing.T) {
	h := coordinateHeader(t)
	registerFake("u1", h, []fakeRecord{{-1, 0, "unmapped"}})
	registerFake("u2", h, []fakeRecord{{0, 5, "mapped"}})

	m, err := multireader.Open([]string{"u1", "u2"}, newFake, multireader.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	got := drain(t, m)
	want := []string{"mapped", "unmapped"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestNameSort checks that a queryname-sorted header drives the merge
// by name rather than by coordinate.
func TestNameSort(t *testing.T) {
	h := coordinateHeader(t)
	h.SortOrder = sam.QueryName
	registerFake("n1", h, []fakeRecord{{0, 90, "bravo"}, {0, 10, "delta"}})
	registerFake("n2", h, []fakeRecord{{0, 50, "alpha"}, {0, 1, "charlie"}})

	m, err := multireader.Open([]string{"n1", "n2"}, newFake, multireader.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	got := drain(t, m)
	want := []string{"alpha", "bravo", "charlie", "delta"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestValidationRejectsSortOrderMismatch checks that Open refuses to
// merge sources declaring different sort orders.
func TestValidationRejectsSortOrderMismatch(t *testing.T) {
	coord := coordinateHeader(t)
	name := coordinateHeader(t)
	name.SortOrder = sam.QueryName
	registerFake("mismatch-a", coord, []fakeRecord{{0, 1, "x"}})
	registerFake("mismatch-b", name, []fakeRecord{{0, 1, "y"}})

	_, err := multireader.Open([]string{"mismatch-a", "mismatch-b"}, newFake, multireader.Options{})
	if err == nil {
		t.Fatal("Open: want error for sort order mismatch, got nil")
	}
}

// TestJumpRepositionsAllSources checks that Jump restricts every open
// source to records at or after the requested coordinate.
func TestJumpRepositionsAllSources(t *testing.T) {
	h := coordinateHeader(t)
	registerFake("j1", h, []fakeRecord{{0, 10, "early"}, {0, 40, "late1"}})
	registerFake("j2", h, []fakeRecord{{0, 20, "mid"}, {0, 50, "late2"}})

	m, err := multireader.Open([]string{"j1", "j2"}, newFake, multireader.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.Jump(0, 30); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	got := drain(t, m)
	want := []string{"late1", "late2"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestCloseFileEvictsFromFrontier checks that closing one source drops
// its pending record from the merge frontier without disturbing the
// rest of the merge.
func TestCloseFileEvictsFromFrontier(t *testing.T) {
	h := coordinateHeader(t)
	registerFake("c1", h, []fakeRecord{{0, 10, "keep-early"}})
	registerFake("c2", h, []fakeRecord{{0, 5, "drop-me"}, {0, 100, "unreachable"}})

	m, err := multireader.Open([]string{"c1", "c2"}, newFake, multireader.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.CloseFile("c2"); err != nil {
		t.Fatalf("CloseFile: %v", err)
	}
	if m.HasOpenReaders() != true {
		t.Fatal("HasOpenReaders: want true with one source still open")
	}
	got := drain(t, m)
	want := []string{"keep-early"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
