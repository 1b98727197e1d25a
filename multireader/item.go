// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multireader

// MergeItem pairs a source's identity and FileReader with the
// RecordHandle currently holding its next unconsumed record. A MergeItem
// lives in the MergeCache exactly while its source has a pending record
// available for comparison against the other open sources.
type MergeItem struct {
	sourceID int
	reader   FileReader
	handle   *RecordHandle
}

// SourceID returns the stable index of the source this item belongs to,
// assigned at open time in file-argument order.
func (m *MergeItem) SourceID() int { return m.sourceID }

// Reader returns the FileReader this item's pending record was read
// from.
func (m *MergeItem) Reader() FileReader { return m.reader }

// Handle returns the RecordHandle holding this item's pending record.
func (m *MergeItem) Handle() *RecordHandle { return m.handle }
