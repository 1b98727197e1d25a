// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

// Region describes a half-open genomic interval used to request a
// coordinate-bounded scan from a FileReader. LeftRefID/RightRefID are
// indices into the owning Header's reference table; a RightRefID of -1
// means "to the end of the reference table".
type Region struct {
	LeftRefID  int
	LeftPos    int
	RightRefID int
	RightPos   int
}

// Unbounded reports whether r covers every reference and position.
func (r Region) Unbounded() bool {
	return r.LeftRefID <= 0 && r.LeftPos <= 0 && r.RightRefID < 0
}

// Contains reports whether the coordinate (refID, pos) falls inside r.
func (r Region) Contains(refID, pos int) bool {
	if refID < r.LeftRefID || (refID == r.LeftRefID && pos < r.LeftPos) {
		return false
	}
	if r.RightRefID < 0 {
		return true
	}
	if refID > r.RightRefID || (refID == r.RightRefID && pos >= r.RightPos) {
		return false
	}
	return true
}
