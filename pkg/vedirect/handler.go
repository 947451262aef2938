// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// Handler is implemented by device specific consumers.
//
// The name and value slices passed to OnField alias decoder buffers and are
// only valid for the duration of the call. Copy anything that must outlive it.
type Handler interface {
	// OnField receives one (name, value) pair of a verified text block and
	// reports whether the consumer recognized it.
	OnField(name, value []byte) bool

	// OnFrameComplete is called once after all fields of a verified text
	// block have been delivered.
	OnFrameComplete()

	// OnHexRecord receives every successfully decoded hex frame.
	OnHexRecord(rec HexRecord)
}

// HandlerFuncs adapts plain functions to Handler. Nil members are ignored.
type HandlerFuncs struct {
	Field         func(name, value []byte) bool
	FrameComplete func()
	HexRecord     func(rec HexRecord)
}

// OnField implements Handler.
func (h HandlerFuncs) OnField(name, value []byte) bool {
	if h.Field == nil {
		return false
	}
	return h.Field(name, value)
}

// OnFrameComplete implements Handler.
func (h HandlerFuncs) OnFrameComplete() {
	if h.FrameComplete != nil {
		h.FrameComplete()
	}
}

// OnHexRecord implements Handler.
func (h HandlerFuncs) OnHexRecord(rec HexRecord) {
	if h.HexRecord != nil {
		h.HexRecord(rec)
	}
}

// Identified is a device snapshot carrying the product identifier field.
// A zero identifier means the snapshot was never populated.
type Identified interface {
	ProductID() uint16
}
