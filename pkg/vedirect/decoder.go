// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"bytes"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var checksumName = []byte(ChecksumFieldName)

// Decoder implements the VE.Direct framing state machine. It is fed one byte
// at a time and reports completed units to its Handler.
//
// Text fields are staged until the block checksum verifies, so a corrupted
// block produces no callbacks at all. Hex frames may interrupt a text block;
// the block resumes once the hex frame terminates.
type Decoder struct {
	handler Handler
	logger  *zap.Logger
	stats   *Statistics
	clock   func() time.Time
	fresh   *Freshness

	state     State
	prevState State // state suspended by a hex frame
	checksum  Checksum
	name      fieldBuffer
	value     fieldBuffer
	fields    fieldTable
	hex       hexBuffer
	ring      DebugRing
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for discarded frames.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock sets the time source used for freshness tracking.
func WithClock(clock func() time.Time) Option {
	return func(d *Decoder) {
		d.clock = clock
	}
}

// WithStatistics shares a statistics tracker with the caller.
func WithStatistics(stats *Statistics) Option {
	return func(d *Decoder) {
		if stats != nil {
			d.stats = stats
		}
	}
}

// NewDecoder creates a decoder delivering events to h.
func NewDecoder(h Handler, opts ...Option) *Decoder {
	if h == nil {
		h = HandlerFuncs{}
	}
	d := &Decoder{
		handler: h,
		logger:  zap.NewNop(),
		stats:   NewStatistics(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = time.Now
	}
	d.fresh = NewFreshness(d.clock)
	return d
}

// Reset abandons any partial frame and returns to idle.
func (d *Decoder) Reset() {
	d.state = StateIdle
	d.prevState = StateIdle
	d.checksum.Reset()
	d.name.reset()
	d.value.reset()
	d.fields.reset()
	d.hex.reset()
}

// State returns the current framing state.
func (d *Decoder) State() State {
	return d.state
}

// Statistics returns the decoder's counters.
func (d *Decoder) Statistics() *Statistics {
	return d.stats
}

// DebugRing returns the capture of recently received raw bytes.
func (d *Decoder) DebugRing() *DebugRing {
	return &d.ring
}

// LastUpdate returns the time of the last verified text block.
func (d *Decoder) LastUpdate() time.Time {
	return d.fresh.LastUpdate()
}

// IsDataValid reports whether frame is populated and not older than maxAge.
func (d *Decoder) IsDataValid(frame Identified, maxAge time.Duration) bool {
	return d.fresh.IsFresh(frame, maxAge)
}

// Write feeds p to the decoder byte by byte. It never fails; discarded
// units are visible through Statistics and the debug ring.
func (d *Decoder) Write(p []byte) (int, error) {
	for _, b := range p {
		_ = d.DecodeByte(b)
	}
	return len(p), nil
}

// DecodeByte processes a single byte through the state machine.
// A non-nil error describes a unit that was just discarded; the decoder has
// already recovered and the error never needs handling for correctness.
func (d *Decoder) DecodeByte(b byte) error {
	_ = d.ring.WriteByte(b)
	d.stats.Bytes++

	// The checksum byte may take any value, including ':'
	if b == HexStart && d.state != StateChecksum {
		if d.state != StateHex {
			d.prevState = d.state
		}
		d.state = StateHex
		d.hex.reset()
		d.stats.HexFrames++
	}

	if d.state != StateHex {
		d.checksum.Add(b)
	}

	switch d.state {
	case StateIdle:
		// Wait for the \n that starts a field
		if b == LF {
			d.name.reset()
			d.state = StateName
		}
		return nil

	case StateName:
		if b == FieldSeparator {
			if bytes.EqualFold(d.name.bytes(), checksumName) {
				d.state = StateChecksum
				return nil
			}
			d.value.reset()
			d.state = StateValue
			return nil
		}
		if !d.name.append(b) {
			return d.abort(fmt.Errorf("%w: field name exceeds %d bytes", ErrBufferOverflow, MaxNameLen-1), false)
		}
		return nil

	case StateValue:
		switch b {
		case LF:
			if !d.fields.add(&d.name, &d.value) {
				return d.abort(fmt.Errorf("%w: more than %d fields in block", ErrBufferOverflow, MaxFieldsPerBlock), false)
			}
			d.name.reset()
			d.state = StateName
		case CR:
			// Skip
		default:
			if !d.value.append(b) {
				return d.abort(fmt.Errorf("%w: value of %q exceeds %d bytes", ErrBufferOverflow, d.name.bytes(), MaxValueLen-1), false)
			}
		}
		return nil

	case StateChecksum:
		return d.endBlock()

	case StateHex:
		return d.hexByte(b)

	default:
		d.Reset()
		return fmt.Errorf("invalid state: %d", d.state)
	}
}

// endBlock evaluates the checksum after the checksum byte was accumulated.
func (d *Decoder) endBlock() error {
	sum := d.checksum.Sum()
	valid := d.checksum.Valid()
	d.checksum.Reset()
	d.state = StateIdle
	d.stats.TotalFrames++

	if !valid {
		d.fields.reset()
		err := fmt.Errorf("%w: text block sum 0x%02X != 0x%02X", ErrChecksumMismatch, sum, textChecksumTarget)
		d.stats.recordError(err, false)
		d.logDiscard("discarding text block", err)
		return err
	}

	d.stats.ValidFrames++
	for i := 0; i < d.fields.n; i++ {
		name := d.fields.names[i].bytes()
		d.stats.Fields++
		if !d.handler.OnField(name, d.fields.values[i].bytes()) {
			d.unhandledField(name)
		}
	}
	d.fields.reset()

	d.fresh.MarkUpdated()
	d.handler.OnFrameComplete()
	return nil
}

// hexByte collects a hex frame and decodes it on the terminator.
func (d *Decoder) hexByte(b byte) error {
	if b != HexEnd {
		if !d.hex.append(b) {
			return d.abort(fmt.Errorf("%w: hex frame exceeds %d chars", ErrBufferOverflow, MaxHexLen-1), true)
		}
		return nil
	}

	// Resume whatever the hex frame interrupted
	d.state = d.prevState
	d.prevState = StateIdle

	raw := d.hex.bytes()
	rec, err := DecodeHex(raw)
	if err != nil {
		d.stats.recordError(err, true)
		if ce := d.logger.Check(zap.DebugLevel, "discarding hex frame"); ce != nil {
			ce.Write(zap.Error(err), zap.ByteString("frame", raw))
		}
		d.hex.reset()
		return err
	}
	d.hex.reset()

	d.stats.HexRecords++
	d.handler.OnHexRecord(rec)
	return nil
}

// abort drops the current record after a buffer overflow.
func (d *Decoder) abort(err error, hex bool) error {
	d.Reset()
	d.stats.recordError(err, hex)
	d.logDiscard("aborting record", err)
	return err
}

func (d *Decoder) logDiscard(msg string, err error) {
	if ce := d.logger.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(zap.Error(err), zap.String("ring", d.ring.HexDump()))
	}
}

// unhandledField runs the generic field table for fields the consumer declined.
func (d *Decoder) unhandledField(name []byte) {
	if _, ok := LookupField(name); ok {
		d.stats.UnhandledFields++
		return
	}
	d.stats.UnknownFields++
	if ce := d.logger.Check(zap.DebugLevel, "unknown field"); ce != nil {
		ce.Write(zap.ByteString("name", name))
	}
}
