// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package victron

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// MsgMPPTSnapshot is the message type of an encoded MPPT snapshot.
const MsgMPPTSnapshot uint8 = 0x30

// Snapshot is the wire form of an MPPT snapshot: [msg_type, payload_map]
// with integer map keys.
type Snapshot struct {
	Timestamp int64   `cbor:"0,keyasint"` // unix milliseconds
	PID       uint16  `cbor:"1,keyasint"`
	Serial    string  `cbor:"2,keyasint,omitempty"`
	Firmware  string  `cbor:"3,keyasint,omitempty"`
	V         float64 `cbor:"4,keyasint"`
	I         float64 `cbor:"5,keyasint"`
	P         int32   `cbor:"6,keyasint"`
	E         float64 `cbor:"7,keyasint"`
	VPV       float64 `cbor:"8,keyasint"`
	IPV       float64 `cbor:"9,keyasint"`
	PPV       int32   `cbor:"10,keyasint"`
	CS        uint8   `cbor:"11,keyasint"`
	MPPT      uint8   `cbor:"12,keyasint"`
	ERR       uint8   `cbor:"13,keyasint"`
	OR        uint32  `cbor:"14,keyasint"`
	LOAD      bool    `cbor:"15,keyasint"`
	YieldDay  float64 `cbor:"16,keyasint"`
	YieldAll  float64 `cbor:"17,keyasint"`
	MaxPower  int32   `cbor:"18,keyasint"`

	// Present once the matching hex register was received
	Temperature        *float64 `cbor:"20,keyasint,omitempty"`
	BatteryTemperature *float64 `cbor:"21,keyasint,omitempty"`
	TotalDCPower       *float64 `cbor:"22,keyasint,omitempty"`
}

// NewSnapshot flattens a frame and its extended values. ext may be nil.
func NewSnapshot(f *MPPTFrame, ext *Extended, ts time.Time) Snapshot {
	s := Snapshot{
		Timestamp: ts.UnixMilli(),
		PID:       f.PID,
		Serial:    f.SER,
		Firmware:  f.FW,
		V:         f.V,
		I:         f.I,
		P:         f.P,
		E:         f.E,
		VPV:       f.VPV,
		IPV:       f.IPV,
		PPV:       f.PPV,
		CS:        f.CS,
		MPPT:      f.MPPT,
		ERR:       f.ERR,
		OR:        f.OR,
		LOAD:      f.LOAD,
		YieldDay:  f.H20,
		YieldAll:  f.H19,
		MaxPower:  f.H21,
	}
	if ext != nil {
		if !ext.TUpdated.IsZero() {
			t := ext.T
			s.Temperature = &t
		}
		if !ext.TSBSUpdated.IsZero() {
			t := ext.TSBS
			s.BatteryTemperature = &t
		}
		if !ext.TDCPUpdated.IsZero() {
			p := ext.TDCP
			s.TotalDCPower = &p
		}
	}
	return s
}

// EncodeSnapshot encodes the frame as a CBOR message.
func EncodeSnapshot(f *MPPTFrame, ext *Extended, ts time.Time) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("nil frame")
	}
	msg := []interface{}{uint64(MsgMPPTSnapshot), NewSnapshot(f, ext, ts)}
	data, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a message produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if len(data) == 0 {
		return s, fmt.Errorf("empty CBOR payload")
	}

	var msg []cbor.RawMessage
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return s, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(msg) != 2 {
		return s, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	var msgType uint8
	if err := cbor.Unmarshal(msg[0], &msgType); err != nil {
		return s, fmt.Errorf("invalid message type: %w", err)
	}
	if msgType != MsgMPPTSnapshot {
		return s, fmt.Errorf("unexpected message type 0x%02X", msgType)
	}

	if err := cbor.Unmarshal(msg[1], &s); err != nil {
		return s, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}
