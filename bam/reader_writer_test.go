// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"io"
	"testing"

	"github.com/biogo/htsmerge/sam"
)

func testHeader(t *testing.T) *sam.Header {
	t.Helper()
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	if err != nil {
		t.Fatalf("NewReference: %v", err)
	}
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	h.SortOrder = sam.Coordinate
	return h
}

// TestReadWriteRoundTrip checks that a handful of records survive a
// Writer/Reader round trip unchanged in the fields that matter for
// merge ordering and identity.
func TestReadWriteRoundTrip(t *testing.T) {
	h := testHeader(t)
	ref := h.Refs()[0]

	recs := []*sam.Record{}
	for i, name := range []string{"r1", "r2", "r3"} {
		rec, err := sam.NewRecord(name, ref, nil, i*10, -1, 0, 30, nil, []byte("ACGT"), []byte{40, 40, 40, 40}, nil)
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		recs = append(recs, rec)
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf, h, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()), 1)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if r.Header().Refs()[0].Name() != "chr1" {
		t.Fatalf("Header: got reference %q, want chr1", r.Header().Refs()[0].Name())
	}

	for _, want := range recs {
		got, err := r.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if got.Name != want.Name || got.Pos != want.Pos {
			t.Fatalf("Read: got (%s,%d), want (%s,%d)", got.Name, got.Pos, want.Name, want.Pos)
		}
	}
	if _, err := r.Read(); err != io.EOF {
		t.Fatalf("Read at end: got %v, want io.EOF", err)
	}
}
