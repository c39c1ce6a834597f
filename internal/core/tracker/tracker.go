// Package tracker holds the scan position of every monitored address.
//
// # Purpose
//
// Each monitored address carries a watermark, nextBlock: the lowest block
// that has not been scanned yet. The poller reads it to decide where the
// next explorer query starts and advances it once a whole batch has been
// processed.
//
// # Key Features
//
// Lifecycle - An address is either untracked or tracked:
//
//	UNTRACKED → TRACKED (Add) → UNTRACKED (Remove)
//
// Monotonic Watermark - Advance only accepts a strictly greater block.
// A smaller or equal value returns ErrNotAdvancing; it is never clamped.
//
// No Resurrection - Advancing an address removed mid-cycle returns
// ErrNotFound instead of re-adding it.
//
// Versioning - Every mutation bumps Version so the owner can persist
// only when something changed.
//
// # Quick Start
//
//	t := tracker.New()
//	t.Add("0xAA...", "alice", 100)
//	t.Advance("0xaa...", 102) // ✓ OK
//	t.Advance("0xaa...", 101) // ✗ ErrNotAdvancing
package tracker

import "errors"

var (
	// ErrNotFound is returned when the address is not tracked.
	ErrNotFound = errors.New("address not tracked")

	// ErrAlreadyTracked is returned when adding an address twice.
	ErrAlreadyTracked = errors.New("address already tracked")

	// ErrNotAdvancing is returned when a watermark update would not move forward.
	ErrNotAdvancing = errors.New("watermark must move forward")
)
