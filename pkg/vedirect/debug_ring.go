// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "encoding/hex"

// DebugRing keeps the most recent DebugRingSize raw bytes seen by a decoder.
// It is diagnostic only and never consulted while parsing.
type DebugRing struct {
	buf     [DebugRingSize]byte
	next    int
	wrapped bool
}

// WriteByte appends b, overwriting the oldest byte once the ring is full.
func (r *DebugRing) WriteByte(b byte) error {
	r.buf[r.next] = b
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.wrapped = true
	}
	return nil
}

// Len returns the number of bytes currently held.
func (r *DebugRing) Len() int {
	if r.wrapped {
		return len(r.buf)
	}
	return r.next
}

// Dump returns a copy of the ring contents, oldest byte first.
func (r *DebugRing) Dump() []byte {
	if !r.wrapped {
		out := make([]byte, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]byte, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// HexDump formats the ring contents like `hexdump -C`.
func (r *DebugRing) HexDump() string {
	return hex.Dump(r.Dump())
}

// Reset empties the ring.
func (r *DebugRing) Reset() {
	r.next = 0
	r.wrapped = false
}
