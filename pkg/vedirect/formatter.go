// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"time"
)

// String returns the human-readable name for a command
func (c Command) String() string {
	switch c {
	case CmdEnterBoot:
		return "ENTER_BOOT"
	case CmdPing:
		return "PING"
	case CmdAppVersion:
		return "APP_VERSION"
	case CmdProductID:
		return "PRODUCT_ID"
	case CmdRestart:
		return "RESTART"
	case CmdGet:
		return "GET"
	case CmdSet:
		return "SET"
	case CmdAsync:
		return "ASYNC"
	default:
		return "UNKNOWN"
	}
}

// String returns the human-readable name for a response
func (r Response) String() string {
	switch r {
	case RspDone:
		return "DONE"
	case RspUnknown:
		return "UNKNOWN"
	case RspError:
		return "ERROR"
	case RspPing:
		return "PING"
	case RspGet:
		return "GET"
	case RspSet:
		return "SET"
	case RspAsync:
		return "ASYNC"
	default:
		return "UNKNOWN"
	}
}

// String returns the decoder state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateName:
		return "NAME"
	case StateValue:
		return "VALUE"
	case StateChecksum:
		return "CHECKSUM"
	case StateHex:
		return "HEX"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// formatFlag returns the name of a response flag
func formatFlag(flag uint8) string {
	switch flag {
	case FlagOK:
		return "OK"
	case FlagUnknownID:
		return "UNKNOWN_ID"
	case FlagNotSupported:
		return "NOT_SUPPORTED"
	case FlagParameterError:
		return "PARAMETER_ERROR"
	default:
		return fmt.Sprintf("0x%02X", flag)
	}
}

// FormatHexRecord formats a decoded hex record into a human-readable string
func FormatHexRecord(rec HexRecord, ts time.Time) string {
	timestamp := ts.Format("15:04:05.000")

	switch rec.Response {
	case RspGet, RspSet, RspAsync:
		result := fmt.Sprintf("[%s] HEX %s (0x%X) reg=0x%04X flag=%s", timestamp,
			rec.Response, uint8(rec.Response), rec.Register, formatFlag(rec.Flag))
		if rec.Text != "" {
			return result + fmt.Sprintf(" data=%s\n", rec.Text)
		}
		return result + fmt.Sprintf(" value=%d (0x%X)\n", rec.Value, rec.Value)

	case RspPing:
		return fmt.Sprintf("[%s] HEX PING firmware=%s\n", timestamp, FormatVersion(rec.Value))

	default:
		if rec.Text == "" {
			return fmt.Sprintf("[%s] HEX %s (0x%X)\n", timestamp, rec.Response, uint8(rec.Response))
		}
		return fmt.Sprintf("[%s] HEX %s (0x%X) data=%s\n", timestamp, rec.Response, uint8(rec.Response), rec.Text)
	}
}

// FormatVersion renders a ping response version. The two top bits of the
// 16-bit word are the firmware type (0x4116 -> "1.16").
func FormatVersion(v uint32) string {
	return fmt.Sprintf("%X.%02X", (v>>8)&0x3F, v&0xFF)
}

// FormatField formats one text field, appending the protocol unit if known
func FormatField(name, value []byte) string {
	if f, ok := LookupField(name); ok && f.Unit != "" {
		return fmt.Sprintf("  %-9s %s %s\n", name, value, f.Unit)
	}
	return fmt.Sprintf("  %-9s %s\n", name, value)
}
