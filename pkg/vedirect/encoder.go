// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"strings"
)

// EncodeCommand builds a hex command frame ready for transmission,
// including the ':' start marker, checksum and newline terminator.
//
// Get and Async carry register and flag. Set additionally carries value in
// nibbles hex digits (2, 4 or 8). Ping, AppVersion, ProductID and Restart
// carry no payload and ignore the remaining arguments.
func EncodeCommand(cmd Command, register uint16, flag uint8, value uint32, nibbles int) ([]byte, error) {
	switch cmd {
	case CmdPing, CmdAppVersion, CmdProductID, CmdRestart:
		return encodeFrame(byte(cmd), nil)

	case CmdGet, CmdAsync:
		return encodeFrame(byte(cmd), registerPayload(register, flag, nil))

	case CmdSet:
		if nibbles == 0 {
			return nil, fmt.Errorf("%w: SET requires a value width", ErrInvalidArgument)
		}
		data, err := valueBytes(value, nibbles)
		if err != nil {
			return nil, err
		}
		return encodeFrame(byte(cmd), registerPayload(register, flag, data))

	default:
		return nil, fmt.Errorf("%w: unsupported command 0x%X", ErrInvalidArgument, uint8(cmd))
	}
}

// EncodeRecord builds the frame a device sends for rec. nibbles selects the
// value width (0 for no value).
func EncodeRecord(rec HexRecord, nibbles int) ([]byte, error) {
	data, err := valueBytes(rec.Value, nibbles)
	if err != nil {
		return nil, err
	}

	switch rec.Response {
	case RspDone, RspUnknown, RspError, RspPing:
		return encodeFrame(byte(rec.Response), data)

	case RspGet, RspSet, RspAsync:
		return encodeFrame(byte(rec.Response), registerPayload(rec.Register, rec.Flag, data))

	default:
		return nil, fmt.Errorf("%w: unsupported response 0x%X", ErrInvalidArgument, uint8(rec.Response))
	}
}

// registerPayload lays out register (little-endian), flag and value bytes.
func registerPayload(register uint16, flag uint8, data []byte) []byte {
	payload := make([]byte, 0, 3+len(data))
	payload = append(payload, byte(register), byte(register>>8), flag)
	return append(payload, data...)
}

// valueBytes returns value as little-endian bytes for the given nibble width.
func valueBytes(value uint32, nibbles int) ([]byte, error) {
	var size int
	switch nibbles {
	case 0:
		if value != 0 {
			return nil, fmt.Errorf("%w: value 0x%X without width", ErrInvalidArgument, value)
		}
		return nil, nil
	case 2:
		size = 1
	case 4:
		size = 2
	case 8:
		size = 4
	default:
		return nil, fmt.Errorf("%w: value width %d nibbles (want 2, 4 or 8)", ErrInvalidArgument, nibbles)
	}

	if size < 4 && value>>(8*size) != 0 {
		return nil, fmt.Errorf("%w: value 0x%X exceeds %d nibbles", ErrInvalidArgument, value, nibbles)
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(value >> (8 * i))
	}
	return data, nil
}

// encodeFrame renders ':' + command nibble + payload digits + checksum + '\n'.
func encodeFrame(cmd byte, payload []byte) ([]byte, error) {
	size := 1 + 1 + 2*len(payload) + checksumNibbles + 1
	if size > MaxHexLen {
		return nil, fmt.Errorf("%w: frame of %d chars exceeds %d", ErrInvalidArgument, size, MaxHexLen)
	}

	out := make([]byte, 0, size)
	out = append(out, HexStart, hexDigits[cmd&0x0F])
	for _, b := range payload {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	cs := hexChecksum(cmd&0x0F, payload)
	out = append(out, hexDigits[cs>>4], hexDigits[cs&0x0F], HexEnd)
	return out, nil
}

// Field is one name/value pair of a text block.
type Field struct {
	Name  string
	Value string
}

// EncodeTextBlock renders fields as a text block terminated by the Checksum
// field, the way a device transmits it.
func EncodeTextBlock(fields []Field) ([]byte, error) {
	if len(fields) == 0 || len(fields) > MaxFieldsPerBlock {
		return nil, fmt.Errorf("%w: %d fields (want 1..%d)", ErrInvalidArgument, len(fields), MaxFieldsPerBlock)
	}

	var out []byte
	for _, f := range fields {
		if len(f.Name) == 0 || len(f.Name) >= MaxNameLen || len(f.Value) >= MaxValueLen {
			return nil, fmt.Errorf("%w: field %q does not fit", ErrInvalidArgument, f.Name)
		}
		if strings.ContainsAny(f.Name+f.Value, "\t\r\n:") {
			return nil, fmt.Errorf("%w: field %q contains framing bytes", ErrInvalidArgument, f.Name)
		}
		out = append(out, CR, LF)
		out = append(out, f.Name...)
		out = append(out, FieldSeparator)
		out = append(out, f.Value...)
	}
	out = append(out, CR, LF)
	out = append(out, ChecksumFieldName...)
	out = append(out, FieldSeparator)
	return append(out, TextChecksum(out)), nil
}
