// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multireader

import (
	"math"

	"github.com/biogo/htsmerge/sam"
)

// Ordering imposes a total order over MergeItems. Every Ordering
// implementation must break ties on sourceID so that no two distinct
// live items ever compare equal; the MergeCache relies on this to
// delete items by identity.
type Ordering interface {
	// Less reports whether a sorts before b.
	Less(a, b *MergeItem) bool
}

// unmappedKey returns a refID's sort key, with unmapped (-1) mapped to
// the largest possible key so unmapped records sort after every mapped
// reference, matching samtools coordinate-sort convention.
func unmappedKey(refID int32) int64 {
	if refID < 0 {
		return math.MaxInt64
	}
	return int64(refID)
}

// ByCoordinate orders items by (reference id, position), with unmapped
// records sorted last, and a source-id tiebreak.
type ByCoordinate struct{}

func (ByCoordinate) Less(a, b *MergeItem) bool {
	ka, kb := unmappedKey(a.handle.refID), unmappedKey(b.handle.refID)
	if ka != kb {
		return ka < kb
	}
	if a.handle.pos != b.handle.pos {
		return a.handle.pos < b.handle.pos
	}
	return a.sourceID < b.sourceID
}

// ByName orders items by byte-wise lexicographic query name, with a
// source-id tiebreak.
type ByName struct{}

func (ByName) Less(a, b *MergeItem) bool {
	if a.handle.queryName != b.handle.queryName {
		return a.handle.queryName < b.handle.queryName
	}
	return a.sourceID < b.sourceID
}

// Unsorted orders items solely by source-id, producing a stable
// source-append order when no meaningful record order is declared.
type Unsorted struct{}

func (Unsorted) Less(a, b *MergeItem) bool {
	return a.sourceID < b.sourceID
}

// SelectOrdering returns the Ordering implied by so, defaulting to
// Unsorted for unknown or unsorted sort orders.
func SelectOrdering(so sam.SortOrder) Ordering {
	switch so {
	case sam.Coordinate:
		return ByCoordinate{}
	case sam.QueryName:
		return ByName{}
	default:
		return Unsorted{}
	}
}
