// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

// buildBlock renders a text block with a correct checksum byte
func buildBlock(pairs ...string) []byte {
	if len(pairs)%2 != 0 {
		panic("buildBlock needs name/value pairs")
	}
	var sb strings.Builder
	for i := 0; i < len(pairs); i += 2 {
		sb.WriteString("\r\n")
		sb.WriteString(pairs[i])
		sb.WriteByte('\t')
		sb.WriteString(pairs[i+1])
	}
	sb.WriteString("\r\nChecksum\t")
	block := []byte(sb.String())
	return append(block, TextChecksum(block))
}

// recorder captures handler callbacks
type recorder struct {
	accept bool
	fields []string // "name=value"
	frames int
	hex    []HexRecord
}

func (r *recorder) OnField(name, value []byte) bool {
	r.fields = append(r.fields, string(name)+"="+string(value))
	return r.accept
}

func (r *recorder) OnFrameComplete() {
	r.frames++
}

func (r *recorder) OnHexRecord(rec HexRecord) {
	r.hex = append(r.hex, rec)
}

// feed pushes data byte by byte and returns the last non-nil error
func feed(d *Decoder, data []byte) error {
	var last error
	for _, b := range data {
		if err := d.DecodeByte(b); err != nil {
			last = err
		}
	}
	return last
}

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_Accumulates(t *testing.T) {
	var c Checksum
	for _, b := range []byte{0x80, 0x80, 0x01} {
		c.Add(b)
	}
	if c.Sum() != 0x01 {
		t.Errorf("Sum() = 0x%02X, want 0x01", c.Sum())
	}
	if c.Valid() {
		t.Error("Valid() should be false for residue 0x01")
	}
	c.Add(0xFF)
	if !c.Valid() {
		t.Error("Valid() should be true after wrap to 0x00")
	}
	c.Add(0x10)
	c.Reset()
	if c.Sum() != 0 {
		t.Errorf("Reset() left 0x%02X", c.Sum())
	}
}

func TestTextChecksum_ZeroResidue(t *testing.T) {
	block := buildBlock("PID", "0xA042", "V", "12800")
	var c Checksum
	for _, b := range block {
		c.Add(b)
	}
	if !c.Valid() {
		t.Errorf("block sum = 0x%02X, want 0x00", c.Sum())
	}
}

func TestHexChecksum(t *testing.T) {
	// Ping: 0x01 + 0x54 = 0x55
	if cs := hexChecksum(0x01, nil); cs != 0x54 {
		t.Errorf("hexChecksum(ping) = 0x%02X, want 0x54", cs)
	}
	// GET 0xEDDB: 0x07 + 0xDB + 0xED + 0x00 + 0x86 = 0x255
	if cs := hexChecksum(0x07, []byte{0xDB, 0xED, 0x00}); cs != 0x86 {
		t.Errorf("hexChecksum(get) = 0x%02X, want 0x86", cs)
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeCommand_KnownFrames(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		register uint16
		value    uint32
		nibbles  int
		want     string
	}{
		{"ping", CmdPing, 0, 0, 0, ":154\n"},
		{"app version", CmdAppVersion, 0, 0, 0, ":352\n"},
		{"product id", CmdProductID, 0, 0, 0, ":451\n"},
		{"restart", CmdRestart, 0, 0, 0, ":64F\n"},
		{"get internal temperature", CmdGet, 0xEDDB, 0, 0, ":7DBED0086\n"},
		{"set battery current limit", CmdSet, 0x2015, 0x00C8, 4, ":8152000C80050\n"},
		{"set one byte", CmdSet, 0x200E, 0x01, 2, ":80E2000011E\n"},
		{"async read", CmdAsync, 0xEDDB, 0, 0, ":ADBED0083\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.cmd, tt.register, FlagOK, tt.value, tt.nibbles)
			if err != nil {
				t.Fatalf("EncodeCommand() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("EncodeCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeCommand_InvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		value   uint32
		nibbles int
	}{
		{"set without width", CmdSet, 1, 0},
		{"set odd width", CmdSet, 1, 3},
		{"set value too wide", CmdSet, 0x1FF, 2},
		{"set 16-bit overflow", CmdSet, 0x10000, 4},
		{"unsupported command", Command(0x02), 0, 0},
		{"enter boot", CmdEnterBoot, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeCommand(tt.cmd, 0x2015, FlagOK, tt.value, tt.nibbles)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("EncodeCommand() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestEncodeCommand_ResidueProperty(t *testing.T) {
	frame, err := EncodeCommand(CmdSet, 0x1234, FlagOK, 0xDEADBEEF, 8)
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}
	if frame[0] != HexStart || frame[len(frame)-1] != HexEnd {
		t.Fatalf("frame %q missing markers", frame)
	}

	nib, _ := hexNibble(frame[1])
	sum := nib
	digits := frame[2 : len(frame)-1]
	for i := 0; i < len(digits); i += 2 {
		hi, _ := hexNibble(digits[i])
		lo, _ := hexNibble(digits[i+1])
		sum += hi<<4 | lo
	}
	if sum != 0x55 {
		t.Errorf("frame residue = 0x%02X, want 0x55", sum)
	}
	if strings.ToUpper(string(frame)) != string(frame) {
		t.Errorf("frame %q should be upper case", frame)
	}
}

// ============================================================
// Hex Decoder Tests
// ============================================================

func TestDecodeHex_Get(t *testing.T) {
	// Internal temperature 25.00 C, 0x09C4 = 2500
	frame, err := EncodeRecord(HexRecord{Response: RspGet, Register: 0xEDDB, Value: 2500}, 4)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}

	rec, err := DecodeHex(frame[:len(frame)-1])
	if err != nil {
		t.Fatalf("DecodeHex() error = %v", err)
	}
	if rec.Response != RspGet || rec.Register != 0xEDDB || rec.Flag != FlagOK || rec.Value != 2500 {
		t.Errorf("DecodeHex() = %+v", rec)
	}
}

func TestDecodeHex_LowerCase(t *testing.T) {
	rec, err := DecodeHex([]byte(":7dbed00c409b9"))
	if err != nil {
		t.Fatalf("DecodeHex() error = %v", err)
	}
	if rec.Register != 0xEDDB || rec.Value != 0x09C4 {
		t.Errorf("DecodeHex() = %+v", rec)
	}
}

func TestDecodeHex_Ping(t *testing.T) {
	// Firmware 1.16 reported as 0x4116
	frame, err := EncodeRecord(HexRecord{Response: RspPing, Value: 0x4116}, 4)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}
	rec, err := DecodeHex(frame[:len(frame)-1])
	if err != nil {
		t.Fatalf("DecodeHex() error = %v", err)
	}
	if rec.Response != RspPing || rec.Value != 0x4116 {
		t.Errorf("DecodeHex() = %+v", rec)
	}
	if got := FormatVersion(rec.Value); got != "1.16" {
		t.Errorf("FormatVersion() = %q, want 1.16", got)
	}
}

func TestDecodeHex_LongPayloadKeepsText(t *testing.T) {
	// Three data bytes have no integer layout
	frame, err := encodeFrame(byte(RspGet), registerPayload(0x0100, FlagOK, []byte{0x01, 0x02, 0x03}))
	if err != nil {
		t.Fatalf("encodeFrame() error = %v", err)
	}
	rec, err := DecodeHex(frame[:len(frame)-1])
	if err != nil {
		t.Fatalf("DecodeHex() error = %v", err)
	}
	if rec.Text != "010203" || rec.Value != 0 {
		t.Errorf("DecodeHex() = %+v, want Text 010203", rec)
	}
}

func TestDecodeHex_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"too short", ":15", ErrMalformedHex},
		{"missing start", "7DBED0086", ErrMalformedHex},
		{"odd digits", ":7DBED008", ErrMalformedHex},
		{"bad response digit", ":GDBED0086", ErrMalformedHex},
		{"bad payload digit", ":7DBEG0086", ErrMalformedHex},
		{"bad checksum", ":7DBED0087", ErrChecksumMismatch},
		{"unknown response", ":253", ErrMalformedHex},
		{"register frame too short", ":7DB73", ErrMalformedHex},
		{"too long", ":" + strings.Repeat("0", MaxHexLen), ErrMalformedHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHex([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeHex(%q) error = %v, want %v", tt.raw, err, tt.want)
			}
		})
	}
}

func TestHexRoundTrip_AllResponses(t *testing.T) {
	tests := []struct {
		rec     HexRecord
		nibbles int
	}{
		{HexRecord{Response: RspDone}, 0},
		{HexRecord{Response: RspUnknown, Value: 0x07}, 2},
		{HexRecord{Response: RspError, Value: 0xAAAA}, 4},
		{HexRecord{Response: RspPing, Value: 0x4116}, 4},
		{HexRecord{Response: RspGet, Register: 0xEDDB, Value: 0x09C4}, 4},
		{HexRecord{Response: RspSet, Register: 0x2015, Flag: FlagParameterError, Value: 0xC8}, 4},
		{HexRecord{Response: RspAsync, Register: 0x2027, Value: 0x00012345}, 8},
		{HexRecord{Response: RspAsync, Register: 0x200F, Value: 0x02}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.rec.Response.String(), func(t *testing.T) {
			frame, err := EncodeRecord(tt.rec, tt.nibbles)
			if err != nil {
				t.Fatalf("EncodeRecord() error = %v", err)
			}
			got, err := DecodeHex(frame[:len(frame)-1])
			if err != nil {
				t.Fatalf("DecodeHex(%q) error = %v", frame, err)
			}
			want := tt.rec
			want.Text = got.Text // plain responses keep their digits
			if got != want {
				t.Errorf("round trip = %+v, want %+v", got, want)
			}
		})
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatHexRecord(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 30, 45, 0, time.UTC)
	got := FormatHexRecord(HexRecord{Response: RspGet, Register: 0xEDDB, Value: 2500}, ts)
	for _, want := range []string{"12:30:45.000", "GET", "reg=0xEDDB", "flag=OK", "value=2500"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatHexRecord() = %q, missing %q", got, want)
		}
	}
}

func TestFormatField_AppendsUnit(t *testing.T) {
	if got := FormatField([]byte("V"), []byte("12800")); !strings.Contains(got, "12800 mV") {
		t.Errorf("FormatField(V) = %q", got)
	}
	if got := FormatField([]byte("XYZ"), []byte("1")); strings.TrimSpace(got) != "XYZ       1" {
		t.Errorf("FormatField(XYZ) = %q", got)
	}
}

func TestLookupField(t *testing.T) {
	if f, ok := LookupField([]byte("PPV")); !ok || f.Unit != "W" {
		t.Errorf("LookupField(PPV) = %+v, %v", f, ok)
	}
	if _, ok := LookupField([]byte("NOPE")); ok {
		t.Error("LookupField(NOPE) should not be known")
	}
}

func TestEncodeTextBlock(t *testing.T) {
	got, err := EncodeTextBlock([]Field{{"PID", "0xA042"}, {"V", "12800"}})
	if err != nil {
		t.Fatalf("EncodeTextBlock() error = %v", err)
	}
	if want := buildBlock("PID", "0xA042", "V", "12800"); string(got) != string(want) {
		t.Errorf("EncodeTextBlock() = %q, want %q", got, want)
	}

	rec := &recorder{accept: true}
	if err := feed(NewDecoder(rec), got); err != nil || rec.frames != 1 {
		t.Errorf("decoding encoded block: err = %v frames = %d", err, rec.frames)
	}
}

func TestEncodeTextBlock_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
	}{
		{"empty", nil},
		{"empty name", []Field{{"", "1"}}},
		{"long value", []Field{{"SER#", strings.Repeat("A", MaxValueLen)}}},
		{"tab in value", []Field{{"V", "1\t2"}}},
		{"colon in value", []Field{{"V", "1:2"}}},
		{"too many fields", make([]Field, MaxFieldsPerBlock+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeTextBlock(tt.fields); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("EncodeTextBlock() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}
