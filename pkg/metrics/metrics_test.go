// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"github.com/Thermoquad/vestat/pkg/victron"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func buildBlock(pairs ...string) []byte {
	var sb strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		sb.WriteString("\r\n" + pairs[i] + "\t" + pairs[i+1])
	}
	sb.WriteString("\r\nChecksum\t")
	block := []byte(sb.String())
	return append(block, vedirect.TextChecksum(block))
}

func TestDecoderCollector(t *testing.T) {
	stats := vedirect.Statistics{
		Bytes:          1200,
		TotalFrames:    10,
		ValidFrames:    9,
		ChecksumErrors: 1,
		HexRecords:     4,
		MalformedHex:   1,
		Fields:         90,
		UnknownFields:  5,
	}
	c := NewDecoderCollector(func() vedirect.Statistics { return stats })

	expected := `
# HELP vedirect_bytes_total Bytes received from the device.
# TYPE vedirect_bytes_total counter
vedirect_bytes_total 1200
# HELP vedirect_text_frames_total Text blocks completed, by checksum result.
# TYPE vedirect_text_frames_total counter
vedirect_text_frames_total{result="invalid"} 1
vedirect_text_frames_total{result="valid"} 9
# HELP vedirect_hex_frames_total Hex frames received, by decode result.
# TYPE vedirect_hex_frames_total counter
vedirect_hex_frames_total{result="decoded"} 4
vedirect_hex_frames_total{result="rejected"} 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"vedirect_bytes_total", "vedirect_text_frames_total", "vedirect_hex_frames_total"); err != nil {
		t.Error(err)
	}

	// 1 bytes + 2 frames + 2 hex + 5 discard reasons + 3 field results
	if n := testutil.CollectAndCount(c); n != 13 {
		t.Errorf("CollectAndCount() = %d, want 13", n)
	}
}

func TestMPPTCollector(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m := victron.NewMPPT(victron.WithMPPTClock(func() time.Time { return now }))
	c := NewMPPTCollector(m)

	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("stale collector reported %d metrics", n)
	}

	d := vedirect.NewDecoder(m)
	d.Write(buildBlock("PID", "0xA053", "SER#", "HQ1", "FW", "159", "V", "13250", "PPV", "64"))

	expected := `
# HELP vedirect_mppt_battery_voltage_volts Battery voltage.
# TYPE vedirect_mppt_battery_voltage_volts gauge
vedirect_mppt_battery_voltage_volts 13.25
# HELP vedirect_mppt_info Device identification.
# TYPE vedirect_mppt_info gauge
vedirect_mppt_info{firmware="159",pid="0xA053",product="SmartSolar MPPT 75|15",serial="HQ1"} 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"vedirect_mppt_battery_voltage_volts", "vedirect_mppt_info"); err != nil {
		t.Error(err)
	}

	// Extended gauges appear once their register was received
	before := testutil.CollectAndCount(c)
	m.OnHexRecord(vedirect.HexRecord{Response: vedirect.RspGet, Register: victron.RegInternalTemperature, Value: 2500})
	if after := testutil.CollectAndCount(c); after != before+1 {
		t.Errorf("CollectAndCount() = %d, want %d", after, before+1)
	}
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NewDecoderCollector(func() vedirect.Statistics { return vedirect.Statistics{Bytes: 7} }))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "vedirect_bytes_total 7") || !strings.Contains(body, "go_goroutines") {
		t.Errorf("body missing metrics:\n%s", body)
	}
}
