// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf_test

import (
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/biogo/htsmerge/bgzf"
)

// TestEmpty checks that a Writer with no data written still emits a
// valid BGZF stream: just the end-of-file marker block.
func TestEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := bgzf.NewWriter(&buf, 1).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r, err := bgzf.NewReader(&buf, 1)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d bytes, want 0", len(got))
	}
}

// TestRoundTrip writes several blocks' worth of data and checks that it
// reads back unchanged, spanning multiple gzip members.
func TestRoundTrip(t *testing.T) {
	want := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 5000)

	var buf bytes.Buffer
	w := bgzf.NewWriter(&buf, 1)
	if _, err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := bgzf.NewReader(bytes.NewReader(buf.Bytes()), 1)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

// TestSeek checks that Seek to a virtual Offset captured mid-stream
// resumes reading from exactly that point.
func TestSeek(t *testing.T) {
	want := bytes.Repeat([]byte("0123456789"), 20000)

	var buf bytes.Buffer
	w := bgzf.NewWriter(&buf, 1)
	if _, err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src := bytes.NewReader(buf.Bytes())
	r, err := bgzf.NewReader(src, 1)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	mid := make([]byte, len(want)/2)
	if _, err := r.Read(mid); err != nil {
		t.Fatalf("Read: %v", err)
	}
	off := r.LastChunk().End

	if err := r.Seek(off); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	rest, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(rest, want[len(mid):]) {
		t.Fatalf("post-seek mismatch: got %d bytes, want %d bytes", len(rest), len(want)-len(mid))
	}
}

// TestBlockSizeLimit checks that a single block is never allowed to
// exceed MaxBlockSize by writing well past that boundary in one call.
func TestBlockSizeLimit(t *testing.T) {
	want := make([]byte, bgzf.MaxBlockSize*3+17)
	for i := range want {
		want[i] = byte(i)
	}

	var buf bytes.Buffer
	w := bgzf.NewWriter(&buf, 1)
	if _, err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := bgzf.NewReader(bytes.NewReader(buf.Bytes()), 1)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("round trip mismatch across block boundaries")
	}
}
