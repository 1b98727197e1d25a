// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"

	"github.com/biogo/htsmerge/multireader"
	"github.com/biogo/htsmerge/sam"
)

func writeTempBAM(t *testing.T, h *sam.Header, recs []*sam.Record) string {
	t.Helper()
	f, err := ioutil.TempFile("", "htsmerge-*.bam")
	if err != nil {
		t.Fatalf("TempFile: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })

	w, err := NewWriter(f, h, 1)
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
	if err := f.Close(); err != nil {
		t.Fatalf("Close temp file: %v", err)
	}
	return f.Name()
}

// TestFileReaderNextCoreAndRewind checks that the FileReader adapter
// surfaces records in file order and that Rewind restarts the stream.
func TestFileReaderNextCoreAndRewind(t *testing.T) {
	h := testHeader(t)
	ref := h.Refs()[0]
	var recs []*sam.Record
	for i, name := range []string{"a", "b", "c"} {
		rec, err := sam.NewRecord(name, ref, nil, i*10, -1, 0, 30, nil, []byte("ACGT"), []byte{40, 40, 40, 40}, nil)
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		recs = append(recs, rec)
	}
	path := writeTempBAM(t, h, recs)

	a := NewFileReader()
	if err := a.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	var names []string
	var hdl multireader.RecordHandle
	for {
		ok, err := a.NextCore(&hdl)
		if err != nil {
			t.Fatalf("NextCore: %v", err)
		}
		if !ok {
			break
		}
		names = append(names, hdl.QueryName())
	}
	if !bytes.Equal([]byte(namesOf(names)), []byte("abc")) {
		t.Fatalf("got names %v, want [a b c]", names)
	}

	if err := a.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	ok, err := a.NextCore(&hdl)
	if err != nil || !ok {
		t.Fatalf("NextCore after Rewind: ok=%v err=%v", ok, err)
	}
	if hdl.QueryName() != "a" {
		t.Fatalf("after Rewind: got %q, want a", hdl.QueryName())
	}
}

// TestFileReaderJump checks that building the in-process coordinate
// index and calling Jump skips to the first record at or after the
// requested position.
func TestFileReaderJump(t *testing.T) {
	h := testHeader(t)
	ref := h.Refs()[0]
	var recs []*sam.Record
	for i, name := range []string{"a", "b", "c"} {
		rec, err := sam.NewRecord(name, ref, nil, i*100, -1, 0, 30, nil, []byte("ACGT"), []byte{40, 40, 40, 40}, nil)
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		recs = append(recs, rec)
	}
	path := writeTempBAM(t, h, recs)

	a := NewFileReader()
	if err := a.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	if a.HasIndex() {
		t.Fatal("HasIndex: want false before CreateIndex")
	}
	if err := a.CreateIndex(""); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if !a.HasIndex() {
		t.Fatal("HasIndex: want true after CreateIndex")
	}

	if err := a.Jump(0, 150); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	var hdl multireader.RecordHandle
	ok, err := a.NextCore(&hdl)
	if err != nil || !ok {
		t.Fatalf("NextCore after Jump: ok=%v err=%v", ok, err)
	}
	if hdl.QueryName() != "c" {
		t.Fatalf("after Jump(0,150): got %q, want c", hdl.QueryName())
	}
}

func namesOf(ss []string) string {
	var b []byte
	for _, s := range ss {
		b = append(b, s...)
	}
	return string(b)
}
