// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package victron

import (
	"strconv"
)

// Common holds the fields every VE.Direct product sends.
type Common struct {
	PID uint16  // product id
	SER string  // serial number
	FW  string  // firmware release, e.g. "159"
	V   float64 // battery voltage [V]
	I   float64 // battery current [A]
	E   float64 // efficiency [%] (calculated, moving average)
}

// ProductID returns the product identifier, or 0 for a nil frame.
func (c *Common) ProductID() uint16 {
	if c == nil {
		return 0
	}
	return c.PID
}

// PIDString returns the product name.
func (c *Common) PIDString() string {
	return lookup(pidNames, c.PID)
}

// FirmwareVersion returns the numeric firmware release (159 for "1.59"),
// or 0 when FW is missing or not numeric.
func (c *Common) FirmwareVersion() int {
	v, err := strconv.Atoi(c.FW)
	if err != nil {
		return 0
	}
	return v
}

// parseCommonField stores one of the shared fields. It reports whether
// name was one of them.
func parseCommonField(c *Common, name, value []byte) bool {
	switch string(name) {
	case "PID":
		pid, _ := strconv.ParseUint(string(value), 0, 16)
		c.PID = uint16(pid)
	case "SER#":
		c.SER = string(value)
	case "FW":
		c.FW = string(value)
	case "V":
		c.V = parseFloat(value) / 1000.0
	case "I":
		c.I = parseFloat(value) / 1000.0
	default:
		return false
	}
	return true
}

// parseFloat converts a numeric field, returning 0 for malformed values
func parseFloat(value []byte) float64 {
	v, err := strconv.ParseFloat(string(value), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseInt converts an integer field, returning 0 for malformed values.
// Base prefixes such as 0x are honoured.
func parseInt(value []byte) int64 {
	v, err := strconv.ParseInt(string(value), 0, 64)
	if err != nil {
		return 0
	}
	return v
}
