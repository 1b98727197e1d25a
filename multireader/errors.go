// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package multireader merges N sorted ALN sources into a single logically
// merged record stream, ordered by coordinate, query name, or source
// append order.
package multireader

import (
	"errors"

	"v.io/x/lib/vlog"
)

var (
	// ErrNoSources is returned by Open when called with no files.
	ErrNoSources = errors.New("multireader: no sources")

	// ErrSourceClosed is returned when a close is attempted with a
	// source index that names no source. Closing a source that is
	// already closed is a no-op and returns nil.
	ErrSourceClosed = errors.New("multireader: source closed")

	// ErrIncompatible is returned when a source's header sort order
	// or reference table cannot be reconciled with the sources
	// already open.
	ErrIncompatible = errors.New("multireader: incompatible source header")

	// ErrIndexMissing is returned by Jump/SetRegion when a source has
	// no usable index and cannot honor the request.
	ErrIndexMissing = errors.New("multireader: index missing")

	// ErrCacheBuildFailed is returned when the merge frontier cannot
	// be rebuilt after a reposition.
	ErrCacheBuildFailed = errors.New("multireader: cache rebuild failed")
)

// DiagFunc receives a diagnostic message describing a non-fatal failure,
// such as a source that could not honor a best-effort reposition. A nil
// DiagFunc passed to Open causes the default, vlog-backed sink to be used.
type DiagFunc func(sourceFilename string, err error)

// defaultDiag reports diagnostics through v.io/x/lib/vlog, matching the
// logging used throughout the bamprovider-style packages this core was
// drawn from.
func defaultDiag(sourceFilename string, err error) {
	vlog.Errorf("multireader: %s: %v", sourceFilename, err)
}
