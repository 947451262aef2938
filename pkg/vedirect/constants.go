// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vedirect implements the Victron VE.Direct serial protocol engine.
//
// VE.Direct carries two interleaved framings on one line: human readable text
// blocks of tab separated name/value pairs closed by a checksum field, and
// compact hex frames used for register get/set commands. This package
// provides the byte driven frame state machine, checksum verification, the
// hex command encoder/decoder, data freshness tracking and a debug capture
// ring. Field interpretation lives with the consumer (see package victron).
//
// The engine is single threaded and never blocks. Callers must serialize
// access when driving it from more than one goroutine.
package vedirect

import "time"

// Text protocol framing bytes
const (
	CR             = '\r'
	LF             = '\n'
	FieldSeparator = '\t'
)

// Hex protocol framing bytes
const (
	HexStart = ':'
	HexEnd   = '\n'
)

// ChecksumFieldName is the reserved name of the field closing a text block.
const ChecksumFieldName = "Checksum"

// Buffer limits
const (
	MaxValueLen       = 33  // including terminator
	MaxNameLen        = 33  // including terminator
	MaxHexLen         = 100 // including terminator; max payload 34 bytes (68 chars) + margin
	MaxFieldsPerBlock = 22
	DebugRingSize     = 512
)

// Checksum residues
const (
	textChecksumTarget = 0x00
	hexChecksumTarget  = 0x55
)

// Timing defaults
const (
	DefaultInterByteTimeout = 500 * time.Millisecond
	DefaultMaxAge           = 10 * time.Second
	BaudRate                = 19200
)

// Command is a hex command nibble sent to a device.
type Command uint8

// Hex commands
const (
	CmdEnterBoot  Command = 0x00
	CmdPing       Command = 0x01
	CmdAppVersion Command = 0x03
	CmdProductID  Command = 0x04
	CmdRestart    Command = 0x06
	CmdGet        Command = 0x07
	CmdSet        Command = 0x08
	CmdAsync      Command = 0x0A
)

// Response is a hex response nibble received from a device.
type Response uint8

// Hex responses
const (
	RspDone    Response = 0x01
	RspUnknown Response = 0x03
	RspError   Response = 0x04
	RspPing    Response = 0x05
	RspGet     Response = 0x07
	RspSet     Response = 0x08
	RspAsync   Response = 0x0A
)

// Flag values carried by Get/Set/Async responses
const (
	FlagOK             = 0x00
	FlagUnknownID      = 0x01
	FlagNotSupported   = 0x02
	FlagParameterError = 0x04
)

// Hex field widths in nibbles
const (
	registerNibbles = 4
	flagNibbles     = 2
	checksumNibbles = 2

	// ":" rsp cs
	minResponseFrameLen = 1 + 1 + checksumNibbles
	// ":" rsp id flag cs
	minRegisterFrameLen = minResponseFrameLen + registerNibbles + flagNibbles
)

// State is the decoder's framing state.
type State int

// Decoder states
const (
	StateIdle State = iota
	StateName
	StateValue
	StateChecksum
	StateHex
)
