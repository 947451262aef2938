// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Text Block Tests
// ============================================================

func TestDecoder_ValidBlock(t *testing.T) {
	rec := &recorder{accept: true}
	d := NewDecoder(rec)

	if err := feed(d, buildBlock("PID", "0xA042", "V", "12800", "I", "-350")); err != nil {
		t.Fatalf("feed() error = %v", err)
	}

	want := []string{"PID=0xA042", "V=12800", "I=-350"}
	if strings.Join(rec.fields, ",") != strings.Join(want, ",") {
		t.Errorf("fields = %v, want %v", rec.fields, want)
	}
	if rec.frames != 1 {
		t.Errorf("frames = %d, want 1", rec.frames)
	}
	if d.State() != StateIdle {
		t.Errorf("State() = %s, want IDLE", d.State())
	}

	stats := d.Statistics()
	if stats.TotalFrames != 1 || stats.ValidFrames != 1 || stats.Fields != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDecoder_SingleFieldBlock(t *testing.T) {
	block := []byte("\r\nPID\t0xA042\r\nChecksum\t")
	block = append(block, TextChecksum(block))

	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	if err := feed(d, block); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if len(rec.fields) != 1 || rec.fields[0] != "PID=0xA042" || rec.frames != 1 {
		t.Errorf("fields = %v frames = %d", rec.fields, rec.frames)
	}
}

func TestDecoder_CorruptedBlockDeliversNothing(t *testing.T) {
	block := buildBlock("PID", "0xA042", "V", "12800")

	label := len(block) - 1 - len(ChecksumFieldName+"\t")

	// Flip every byte that is not framing in turn
	for i := range block {
		if i >= label && i < len(block)-1 {
			continue
		}
		switch block[i] {
		case '\r', '\n', '\t', ':':
			continue
		}
		corrupted := append([]byte(nil), block...)
		corrupted[i] ^= 0x01
		if corrupted[i] == ':' || corrupted[i] == '\t' || corrupted[i] == '\n' {
			continue
		}

		rec := &recorder{accept: true}
		d := NewDecoder(rec)
		err := feed(d, corrupted)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("byte %d: error = %v, want ErrChecksumMismatch", i, err)
		}
		if len(rec.fields) != 0 || rec.frames != 0 {
			t.Errorf("byte %d: got %d fields and %d frames from corrupted block", i, len(rec.fields), rec.frames)
		}
		if d.Statistics().ChecksumErrors != 1 {
			t.Errorf("byte %d: ChecksumErrors = %d", i, d.Statistics().ChecksumErrors)
		}
	}
}

func TestDecoder_RepeatedBlocks(t *testing.T) {
	block := buildBlock("PID", "0xA042", "V", "12800")
	rec := &recorder{accept: true}
	d := NewDecoder(rec)

	for i := 0; i < 3; i++ {
		if err := feed(d, block); err != nil {
			t.Fatalf("block %d: error = %v", i, err)
		}
	}
	if rec.frames != 3 || len(rec.fields) != 6 {
		t.Errorf("frames = %d fields = %d, want 3 and 6", rec.frames, len(rec.fields))
	}
}

func TestDecoder_FailedBlockDoesNotPoisonNext(t *testing.T) {
	bad := buildBlock("V", "12800")
	bad[len(bad)-1]++
	good := buildBlock("V", "12900")

	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	feed(d, bad)
	if err := feed(d, good); err != nil {
		t.Fatalf("good block error = %v", err)
	}
	if rec.frames != 1 || rec.fields[0] != "V=12900" {
		t.Errorf("fields = %v frames = %d", rec.fields, rec.frames)
	}
}

func TestDecoder_ChecksumNameCaseInsensitive(t *testing.T) {
	block := []byte("\r\nV\t12800\r\nCHECKSUM\t")
	block = append(block, TextChecksum(block))

	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	if err := feed(d, block); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if rec.frames != 1 {
		t.Errorf("frames = %d, want 1", rec.frames)
	}
}

func TestDecoder_ColonAsChecksumByte(t *testing.T) {
	// Search for a value whose block checksum is ':'
	var block []byte
	for i := 0; i < 1000; i++ {
		candidate := buildBlock("V", fmt.Sprintf("%d", 12000+i))
		if candidate[len(candidate)-1] == HexStart {
			block = candidate
			break
		}
	}
	if block == nil {
		t.Fatal("no block with ':' checksum found")
	}

	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	if err := feed(d, block); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if rec.frames != 1 || d.State() != StateIdle {
		t.Errorf("frames = %d state = %s, want 1 and IDLE", rec.frames, d.State())
	}
}

func TestDecoder_UnhandledFieldsClassified(t *testing.T) {
	rec := &recorder{accept: false}
	d := NewDecoder(rec)
	feed(d, buildBlock("V", "12800", "FOO", "1"))

	stats := d.Statistics()
	if stats.UnhandledFields != 1 || stats.UnknownFields != 1 {
		t.Errorf("UnhandledFields = %d UnknownFields = %d, want 1 and 1", stats.UnhandledFields, stats.UnknownFields)
	}
	if rec.frames != 1 {
		t.Errorf("frames = %d, want 1", rec.frames)
	}
}

func TestDecoder_WaitsForLineStart(t *testing.T) {
	// Startup mid-block: bytes before the first \n are ignored, the first
	// checksum evaluation resynchronizes
	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	block := buildBlock("V", "12800")

	feed(d, []byte("800\r\nI\t-1"))
	feed(d, []byte("\r\nChecksum\tX"))
	if err := feed(d, block); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if rec.fields[len(rec.fields)-1] != "V=12800" {
		t.Errorf("fields = %v", rec.fields)
	}
}

// ============================================================
// Capacity Tests
// ============================================================

func TestDecoder_ValueCapacity(t *testing.T) {
	longest := strings.Repeat("A", MaxValueLen-1)

	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	if err := feed(d, buildBlock("SER#", longest)); err != nil {
		t.Fatalf("value at capacity error = %v", err)
	}
	if rec.frames != 1 {
		t.Fatalf("frames = %d, want 1", rec.frames)
	}

	rec = &recorder{accept: true}
	d = NewDecoder(rec)
	err := feed(d, []byte("\r\nSER#\t"+longest+"A"))
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("value over capacity error = %v, want ErrBufferOverflow", err)
	}
	if d.State() != StateIdle || d.Statistics().Overflows != 1 {
		t.Errorf("State() = %s Overflows = %d", d.State(), d.Statistics().Overflows)
	}

	// The next well-formed block decodes
	if err := feed(d, buildBlock("V", "12800")); err != nil {
		t.Fatalf("block after overflow error = %v", err)
	}
	if len(rec.fields) != 1 || rec.fields[0] != "V=12800" {
		t.Errorf("fields = %v, want [V=12800]", rec.fields)
	}
}

func TestDecoder_NameCapacity(t *testing.T) {
	longest := strings.Repeat("N", MaxNameLen-1)

	rec := &recorder{}
	d := NewDecoder(rec)
	if err := feed(d, buildBlock(longest, "1")); err != nil {
		t.Fatalf("name at capacity error = %v", err)
	}

	d = NewDecoder(rec)
	err := feed(d, []byte("\r\n"+longest+"N"))
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("name over capacity error = %v, want ErrBufferOverflow", err)
	}
	if d.State() != StateIdle {
		t.Errorf("State() = %s, want IDLE", d.State())
	}
}

func TestDecoder_FieldTableCapacity(t *testing.T) {
	pairs := func(n int) []string {
		var out []string
		for i := 0; i < n; i++ {
			out = append(out, fmt.Sprintf("F%d", i), "1")
		}
		return out
	}

	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	if err := feed(d, buildBlock(pairs(MaxFieldsPerBlock)...)); err != nil {
		t.Fatalf("full table error = %v", err)
	}
	if len(rec.fields) != MaxFieldsPerBlock {
		t.Errorf("fields = %d, want %d", len(rec.fields), MaxFieldsPerBlock)
	}

	rec = &recorder{accept: true}
	d = NewDecoder(rec)
	err := feed(d, buildBlock(pairs(MaxFieldsPerBlock+1)...))
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("overfull table error = %v, want ErrBufferOverflow", err)
	}
	if len(rec.fields) != 0 || rec.frames != 0 {
		t.Errorf("overfull block delivered %d fields", len(rec.fields))
	}
}

func TestDecoder_HexCapacity(t *testing.T) {
	d := NewDecoder(nil)

	// ':' plus MaxHexLen-2 characters fill the buffer
	if err := feed(d, []byte(":"+strings.Repeat("0", MaxHexLen-2))); err != nil {
		t.Fatalf("hex at capacity error = %v", err)
	}
	if d.State() != StateHex {
		t.Fatalf("State() = %s, want HEX", d.State())
	}

	err := d.DecodeByte('0')
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("hex over capacity error = %v, want ErrBufferOverflow", err)
	}
	if d.State() != StateIdle {
		t.Errorf("State() = %s, want IDLE", d.State())
	}
}

// ============================================================
// Hex Interleaving Tests
// ============================================================

func TestDecoder_HexInsideValue(t *testing.T) {
	hex, err := EncodeRecord(HexRecord{Response: RspAsync, Register: 0xEDDB, Value: 2500}, 4)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}

	// The checksum covers the text bytes only
	text := []byte("\r\nV\t12800\r\nChecksum\t")
	text = append(text, TextChecksum(text))
	split := len("\r\nV\t12")
	stream := append([]byte(nil), text[:split]...)
	stream = append(stream, hex...)
	stream = append(stream, text[split:]...)

	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	if err := feed(d, stream); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if len(rec.hex) != 1 || rec.hex[0].Register != 0xEDDB || rec.hex[0].Value != 2500 {
		t.Errorf("hex = %+v", rec.hex)
	}
	if len(rec.fields) != 1 || rec.fields[0] != "V=12800" || rec.frames != 1 {
		t.Errorf("fields = %v frames = %d", rec.fields, rec.frames)
	}
}

func TestDecoder_HexBetweenBlocks(t *testing.T) {
	hex, _ := EncodeCommand(CmdPing, 0, 0, 0, 0)
	stream := append(buildBlock("V", "1"), hex...)
	stream = append(stream, buildBlock("V", "2")...)

	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	if err := feed(d, stream); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if rec.frames != 2 || len(rec.hex) != 1 || rec.hex[0].Response != RspDone {
		t.Errorf("frames = %d hex = %+v", rec.frames, rec.hex)
	}
}

func TestDecoder_MalformedHexResync(t *testing.T) {
	good, _ := EncodeRecord(HexRecord{Response: RspGet, Register: 0x2027, Value: 12345}, 8)
	stream := append([]byte(":7ZZ\n"), good...)

	rec := &recorder{}
	d := NewDecoder(rec)
	var errs []error
	for _, b := range stream {
		if err := d.DecodeByte(b); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 1 || !errors.Is(errs[0], ErrMalformedHex) {
		t.Errorf("errors = %v, want one ErrMalformedHex", errs)
	}
	if len(rec.hex) != 1 || rec.hex[0].Value != 12345 {
		t.Errorf("hex = %+v", rec.hex)
	}
	if d.State() != StateIdle {
		t.Errorf("State() = %s, want IDLE", d.State())
	}
	stats := d.Statistics()
	if stats.HexFrames != 2 || stats.HexRecords != 1 || stats.MalformedHex != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDecoder_HexChecksumError(t *testing.T) {
	d := NewDecoder(nil)
	err := feed(d, []byte(":7DBED0087\n"))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("error = %v, want ErrChecksumMismatch", err)
	}
	if d.Statistics().HexChecksumError != 1 || d.Statistics().ChecksumErrors != 0 {
		t.Errorf("stats = %+v", d.Statistics())
	}
}

func TestDecoder_RestartedHexFrame(t *testing.T) {
	// A second ':' before the terminator starts over
	good, _ := EncodeRecord(HexRecord{Response: RspGet, Register: 0xEDDB, Value: 1}, 4)
	stream := append([]byte("\r\nV\t1:7DB"), good...)

	rec := &recorder{}
	d := NewDecoder(rec)
	if err := feed(d, stream); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if len(rec.hex) != 1 {
		t.Errorf("hex = %+v", rec.hex)
	}
	if d.State() != StateValue {
		t.Errorf("State() = %s, want VALUE", d.State())
	}
}

// ============================================================
// Freshness and Reset Tests
// ============================================================

type pid uint16

func (p pid) ProductID() uint16 { return uint16(p) }

func TestDecoder_Freshness(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	d := NewDecoder(nil, WithClock(clock))

	if d.IsDataValid(pid(0xA042), DefaultMaxAge) {
		t.Error("IsDataValid() should be false before any block")
	}
	feed(d, buildBlock("PID", "0xA042"))
	if !d.LastUpdate().Equal(now) {
		t.Errorf("LastUpdate() = %v, want %v", d.LastUpdate(), now)
	}
	if !d.IsDataValid(pid(0xA042), DefaultMaxAge) {
		t.Error("IsDataValid() should be true right after a block")
	}
	if d.IsDataValid(pid(0), DefaultMaxAge) {
		t.Error("IsDataValid() should be false for an empty frame")
	}

	now = now.Add(DefaultMaxAge + time.Millisecond)
	if d.IsDataValid(pid(0xA042), DefaultMaxAge) {
		t.Error("IsDataValid() should be false after maxAge")
	}
}

func TestDecoder_FailedBlockKeepsLastUpdate(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	d := NewDecoder(nil, WithClock(func() time.Time { return now }))
	feed(d, buildBlock("V", "1"))
	first := d.LastUpdate()

	now = now.Add(time.Second)
	bad := buildBlock("V", "2")
	bad[len(bad)-1]++
	feed(d, bad)
	if !d.LastUpdate().Equal(first) {
		t.Errorf("LastUpdate() moved on a failed block")
	}
}

func TestDecoder_Reset(t *testing.T) {
	rec := &recorder{accept: true}
	d := NewDecoder(rec)
	feed(d, []byte("\r\nV\t128"))
	if d.State() != StateValue {
		t.Fatalf("State() = %s, want VALUE", d.State())
	}

	d.Reset()
	if d.State() != StateIdle {
		t.Errorf("State() = %s after Reset, want IDLE", d.State())
	}
	if err := feed(d, buildBlock("V", "12800")); err != nil {
		t.Fatalf("block after Reset error = %v", err)
	}
	if len(rec.fields) != 1 {
		t.Errorf("fields = %v", rec.fields)
	}
}

func TestDecoder_WriteAndDebugRing(t *testing.T) {
	d := NewDecoder(nil)
	block := buildBlock("V", "12800")
	n, err := d.Write(block)
	if err != nil || n != len(block) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if string(d.DebugRing().Dump()) != string(block) {
		t.Errorf("DebugRing().Dump() = %q, want %q", d.DebugRing().Dump(), block)
	}
	if d.Statistics().Bytes != uint64(len(block)) {
		t.Errorf("Bytes = %d, want %d", d.Statistics().Bytes, len(block))
	}
}
