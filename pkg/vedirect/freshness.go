// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "time"

// Freshness tracks when the last verified text block was received.
type Freshness struct {
	last  time.Time
	clock func() time.Time
}

// NewFreshness creates a tracker using clock, or time.Now when nil.
func NewFreshness(clock func() time.Time) *Freshness {
	if clock == nil {
		clock = time.Now
	}
	return &Freshness{clock: clock}
}

// MarkUpdated records a verified block at the current clock time.
func (f *Freshness) MarkUpdated() {
	f.last = f.clock()
}

// LastUpdate returns the time of the last verified block (zero if none).
func (f *Freshness) LastUpdate() time.Time {
	return f.last
}

// IsFresh reports whether frame is populated and the last verified block is
// no older than maxAge.
func (f *Freshness) IsFresh(frame Identified, maxAge time.Duration) bool {
	if frame == nil || frame.ProductID() == 0 {
		return false
	}
	if f.last.IsZero() {
		return false
	}
	return f.clock().Sub(f.last) <= maxAge
}
