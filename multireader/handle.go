// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multireader

import (
	"github.com/biogo/htsmerge/internal/pool"
	"github.com/biogo/htsmerge/sam"
)

// RecordHandle is a reusable handle over one record's raw encoded bytes,
// its eagerly-decoded positional fields, and its lazily-materialized text
// representation. A RecordHandle is owned by the MultiReader's merge
// frontier and is reset and rebound to a new record each time its source
// is advanced; callers that need a record to outlive the next advance
// must copy its *sam.Record out of Record() after calling BuildText.
type RecordHandle struct {
	raw []byte

	refID     int32
	pos       int32
	queryName string

	decode func(raw []byte) (*sam.Record, error)
	rec    *sam.Record
	built  bool

	sourceFilename string
}

// Bind installs raw record bytes and eager positional fields into h,
// discarding any previously bound record. raw is retained; ownership
// passes to h, which returns it to the pool on the next Bind or on
// release. decode is called at most once, by BuildText, to lazily
// materialize the record's text fields from raw; a FileReader that
// decodes eagerly may pass a decode func that simply returns an
// already-built *sam.Record.
//
// Bind is called by FileReader implementations to populate a
// RecordHandle inside NextCore.
func (h *RecordHandle) Bind(raw []byte, refID, pos int32, queryName, filename string, decode func([]byte) (*sam.Record, error)) {
	h.release()
	h.raw = raw
	h.refID = refID
	h.pos = pos
	h.queryName = queryName
	h.sourceFilename = filename
	h.decode = decode
	h.rec = nil
	h.built = false
}

// release returns the handle's raw buffer to the pool and clears its
// decoded state. It is safe to call release on a zero-value handle.
func (h *RecordHandle) release() {
	if h.raw != nil {
		pool.PutBuffer(h.raw)
	}
	h.raw = nil
	h.rec = nil
	h.built = false
	h.decode = nil
}

// BuildText lazily decodes the sequence, quality, and aux tag fields of
// the bound record from its raw bytes. It is idempotent: subsequent
// calls return the previously materialized record without re-decoding.
func (h *RecordHandle) BuildText() error {
	if h.built {
		return nil
	}
	if h.decode == nil {
		return nil
	}
	rec, err := h.decode(h.raw)
	if err != nil {
		return err
	}
	h.rec = rec
	h.built = true
	return nil
}

// RefID returns the eagerly-decoded reference id of the bound record, or
// -1 if the record is unmapped.
func (h *RecordHandle) RefID() int32 { return h.refID }

// Pos returns the eagerly-decoded 0-based leftmost mapping position of
// the bound record.
func (h *RecordHandle) Pos() int32 { return h.pos }

// QueryName returns the eagerly-decoded query name of the bound record.
func (h *RecordHandle) QueryName() string { return h.queryName }

// SourceFilename returns the filename of the source the bound record
// came from.
func (h *RecordHandle) SourceFilename() string { return h.sourceFilename }

// Record returns the materialized *sam.Record, or nil if BuildText has
// not yet been called.
func (h *RecordHandle) Record() *sam.Record { return h.rec }

// Raw returns the undecoded bytes of the bound record.
func (h *RecordHandle) Raw() []byte { return h.raw }
