// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks decoder throughput and error counts
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Bytes            uint64
	TotalFrames      uint64
	ValidFrames      uint64
	ChecksumErrors   uint64
	HexFrames        uint64
	HexRecords       uint64
	MalformedHex     uint64
	HexChecksumError uint64
	Overflows        uint64
	Fields           uint64
	UnhandledFields  uint64
	UnknownFields    uint64
	Timeouts         uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// recordError classifies a decode error
func (s *Statistics) recordError(err error, hex bool) {
	switch {
	case errors.Is(err, ErrBufferOverflow):
		s.Overflows++
	case errors.Is(err, ErrChecksumMismatch) && hex:
		s.HexChecksumError++
	case errors.Is(err, ErrChecksumMismatch):
		s.ChecksumErrors++
	case errors.Is(err, ErrMalformedHex):
		s.MalformedHex++
	}
	s.LastUpdateTime = time.Now()
}

// Errors returns the total number of discarded units
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.MalformedHex + s.HexChecksumError + s.Overflows + s.Timeouts
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.ValidFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, checksumPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes:           %8d\n", s.Bytes)
	result += fmt.Sprintf("Text Frames:     %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	result += fmt.Sprintf("Hex Frames:      %8d (%d decoded)\n", s.HexFrames, s.HexRecords)
	if s.MalformedHex > 0 || s.HexChecksumError > 0 {
		result += fmt.Sprintf("  Malformed:        %5d\n", s.MalformedHex)
		result += fmt.Sprintf("  Bad Checksum:     %5d\n", s.HexChecksumError)
	}
	if s.Overflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", s.Overflows)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	result += fmt.Sprintf("Fields:          %8d\n", s.Fields)
	if s.UnhandledFields > 0 || s.UnknownFields > 0 {
		result += fmt.Sprintf("  Unhandled:        %5d\n", s.UnhandledFields)
		result += fmt.Sprintf("  Unknown:          %5d\n", s.UnknownFields)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
