// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "errors"

// Errors reported by the engine. Decoding errors are informational: the
// decoder has already discarded the unit and returned to a defined state.
var (
	// ErrChecksumMismatch is returned when a text block or hex frame fails
	// its integrity check.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrMalformedHex is returned when a hex frame violates the charset or
	// field width rules.
	ErrMalformedHex = errors.New("malformed hex frame")

	// ErrBufferOverflow is returned when a name, value, hex frame or field
	// table exceeds its fixed capacity.
	ErrBufferOverflow = errors.New("buffer overflow")

	// ErrInvalidArgument is returned by the encoder before anything is
	// transmitted.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransportBusy is returned when the byte sink did not accept a whole
	// encoded command.
	ErrTransportBusy = errors.New("transport did not accept command")
)
