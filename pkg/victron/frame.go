// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package victron

import (
	"math"
	"time"
)

// MPPTFrame is one verified text block from a solar charge controller.
type MPPTFrame struct {
	Common
	MPPT uint8   // tracker operation mode
	PPV  int32   // panel power [W]
	P    int32   // battery output power [W] (calculated)
	VPV  float64 // panel voltage [V]
	IPV  float64 // panel current [A] (calculated)
	LOAD bool    // virtual load output state
	CS   uint8   // state of operation
	ERR  uint8   // error code
	OR   uint32  // off reason
	HSDS uint32  // day sequence number 0..364
	H19  float64 // yield total [kWh]
	H20  float64 // yield today [kWh]
	H21  int32   // maximum power today [W]
	H22  float64 // yield yesterday [kWh]
	H23  int32   // maximum power yesterday [W]
}

// ProductID returns the product identifier, or 0 for a nil frame.
func (f *MPPTFrame) ProductID() uint16 {
	if f == nil {
		return 0
	}
	return f.PID
}

// CSString returns the state of operation as text.
func (f *MPPTFrame) CSString() string {
	return lookup(csNames, f.CS)
}

// MPPTString returns the tracker mode as text.
func (f *MPPTFrame) MPPTString() string {
	return lookup(mpptNames, f.MPPT)
}

// ERRString returns the error state as text.
func (f *MPPTFrame) ERRString() string {
	return lookup(errNames, f.ERR)
}

// ORString returns the off reason as text.
func (f *MPPTFrame) ORString() string {
	return lookup(orNames, f.OR)
}

// parseField stores one MPPT text field.
func (f *MPPTFrame) parseField(name, value []byte) bool {
	if parseCommonField(&f.Common, name, value) {
		return true
	}

	switch string(name) {
	case "LOAD":
		f.LOAD = string(value) == "ON"
	case "CS":
		f.CS = uint8(parseInt(value))
	case "ERR":
		f.ERR = uint8(parseInt(value))
	case "OR":
		f.OR = uint32(parseInt(value))
	case "MPPT":
		f.MPPT = uint8(parseInt(value))
	case "HSDS":
		f.HSDS = uint32(parseInt(value))
	case "VPV":
		// mV, kept at 10 mV resolution
		f.VPV = math.Round(parseFloat(value)/10.0) / 100.0
	case "PPV":
		f.PPV = int32(parseInt(value))
	case "H19":
		f.H19 = parseFloat(value) / 100.0
	case "H20":
		f.H20 = parseFloat(value) / 100.0
	case "H21":
		f.H21 = int32(parseInt(value))
	case "H22":
		f.H22 = parseFloat(value) / 100.0
	case "H23":
		f.H23 = int32(parseInt(value))
	default:
		return false
	}
	return true
}

// Extended holds values only available through hex GET/ASYNC responses.
type Extended struct {
	T           float64   // internal temperature [°C]
	TUpdated    time.Time // zero until received
	TSBS        float64   // Smart Battery Sense temperature [°C]
	TSBSUpdated time.Time
	TDCP        float64 // total DC input power of the VE.Smart network [W]
	TDCPUpdated time.Time
	Master      bool // instance is the VE.Smart network master
}
