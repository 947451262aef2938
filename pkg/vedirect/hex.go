// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "fmt"

// HexRecord is a decoded hex response.
type HexRecord struct {
	Response Response
	Register uint16
	Flag     uint8
	Value    uint32
	Text     string // raw payload digits for responses without a fixed layout
}

const hexDigits = "0123456789ABCDEF"

// hexNibble converts one ASCII hex digit. Lower case is accepted.
func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// littleEndian assembles up to four bytes, least significant first.
func littleEndian(b []byte) uint32 {
	var v uint32
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return v
}

// DecodeHex parses a hex frame. raw starts with ':' and excludes the
// terminating newline.
func DecodeHex(raw []byte) (HexRecord, error) {
	var rec HexRecord

	if len(raw) < minResponseFrameLen {
		return rec, fmt.Errorf("%w: frame too short (%d chars)", ErrMalformedHex, len(raw))
	}
	if len(raw) >= MaxHexLen {
		return rec, fmt.Errorf("%w: frame too long (%d chars)", ErrMalformedHex, len(raw))
	}
	if raw[0] != HexStart {
		return rec, fmt.Errorf("%w: missing start marker", ErrMalformedHex)
	}

	rsp, ok := hexNibble(raw[1])
	if !ok {
		return rec, fmt.Errorf("%w: invalid response digit %q", ErrMalformedHex, raw[1])
	}

	digits := raw[2:]
	if len(digits)%2 != 0 {
		return rec, fmt.Errorf("%w: odd number of digits (%d)", ErrMalformedHex, len(digits))
	}

	var buf [MaxHexLen / 2]byte
	n := len(digits) / 2
	sum := rsp
	for i := 0; i < n; i++ {
		hi, okHi := hexNibble(digits[2*i])
		lo, okLo := hexNibble(digits[2*i+1])
		if !okHi || !okLo {
			return rec, fmt.Errorf("%w: invalid digit at offset %d", ErrMalformedHex, 2+2*i)
		}
		buf[i] = hi<<4 | lo
		sum += buf[i]
	}
	if sum != hexChecksumTarget {
		return rec, fmt.Errorf("%w: hex sum 0x%02X != 0x%02X", ErrChecksumMismatch, sum, hexChecksumTarget)
	}

	payload := buf[:n-1]
	payloadDigits := digits[:len(digits)-checksumNibbles]
	rec.Response = Response(rsp)

	switch rec.Response {
	case RspDone, RspUnknown, RspError, RspPing:
		rec.Text = string(payloadDigits)
		switch len(payload) {
		case 1, 2, 4:
			rec.Value = littleEndian(payload)
		}

	case RspGet, RspSet, RspAsync:
		if len(raw) < minRegisterFrameLen {
			return HexRecord{}, fmt.Errorf("%w: %s frame too short (%d chars, min %d)",
				ErrMalformedHex, rec.Response, len(raw), minRegisterFrameLen)
		}
		rec.Register = uint16(payload[0]) | uint16(payload[1])<<8
		rec.Flag = payload[2]
		data := payload[3:]
		switch len(data) {
		case 0, 1, 2, 4:
			rec.Value = littleEndian(data)
		default:
			rec.Text = string(payloadDigits[2*3:])
		}

	default:
		return HexRecord{}, fmt.Errorf("%w: unknown response 0x%X", ErrMalformedHex, rsp)
	}

	return rec, nil
}
