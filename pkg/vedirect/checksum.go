// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// Checksum is the running 8-bit sum over the bytes of a text block.
type Checksum uint8

// Add accumulates one byte.
func (c *Checksum) Add(b byte) {
	*c += Checksum(b)
}

// Reset clears the accumulator.
func (c *Checksum) Reset() {
	*c = 0
}

// Sum returns the current accumulated value.
func (c Checksum) Sum() uint8 {
	return uint8(c)
}

// Valid reports whether the accumulated block satisfies the text residue.
func (c Checksum) Valid() bool {
	return uint8(c) == textChecksumTarget
}

// TextChecksum returns the checksum byte that makes block sum to zero.
// block must contain every byte of the text block up to and including the
// tab that follows the Checksum field name.
func TextChecksum(block []byte) byte {
	var sum byte
	for _, b := range block {
		sum += b
	}
	return textChecksumTarget - sum
}

// hexChecksum returns the byte that brings cmd plus all payload bytes to the
// hex residue.
func hexChecksum(cmd byte, payload []byte) byte {
	sum := cmd
	for _, b := range payload {
		sum += b
	}
	return hexChecksumTarget - sum
}
