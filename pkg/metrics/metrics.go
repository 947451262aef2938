// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes decoder statistics and device snapshots to
// Prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"github.com/Thermoquad/vestat/pkg/victron"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vedirect"

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// DecoderCollector reports decoder counters at scrape time.
type DecoderCollector struct {
	stats func() vedirect.Statistics

	bytes     *prometheus.Desc
	frames    *prometheus.Desc
	hexFrames *prometheus.Desc
	errors    *prometheus.Desc
	fields    *prometheus.Desc
}

// NewDecoderCollector creates a collector reading counters from stats,
// typically (*vedirect.Link).Statistics.
func NewDecoderCollector(stats func() vedirect.Statistics) *DecoderCollector {
	return &DecoderCollector{
		stats: stats,
		bytes: prometheus.NewDesc(namespace+"_bytes_total",
			"Bytes received from the device.", nil, nil),
		frames: prometheus.NewDesc(namespace+"_text_frames_total",
			"Text blocks completed, by checksum result.", []string{"result"}, nil),
		hexFrames: prometheus.NewDesc(namespace+"_hex_frames_total",
			"Hex frames received, by decode result.", []string{"result"}, nil),
		errors: prometheus.NewDesc(namespace+"_discarded_total",
			"Units discarded by the decoder, by reason.", []string{"reason"}, nil),
		fields: prometheus.NewDesc(namespace+"_fields_total",
			"Text fields delivered, by consumer result.", []string{"result"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *DecoderCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytes
	ch <- c.frames
	ch <- c.hexFrames
	ch <- c.errors
	ch <- c.fields
}

// Collect implements prometheus.Collector.
func (c *DecoderCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.bytes, s.Bytes)
	counter(c.frames, s.ValidFrames, "valid")
	counter(c.frames, s.TotalFrames-s.ValidFrames, "invalid")
	counter(c.hexFrames, s.HexRecords, "decoded")
	counter(c.hexFrames, s.MalformedHex+s.HexChecksumError, "rejected")
	counter(c.errors, s.ChecksumErrors, "checksum")
	counter(c.errors, s.HexChecksumError, "hex_checksum")
	counter(c.errors, s.MalformedHex, "malformed_hex")
	counter(c.errors, s.Overflows, "overflow")
	counter(c.errors, s.Timeouts, "timeout")
	counter(c.fields, s.Fields-s.UnhandledFields-s.UnknownFields, "handled")
	counter(c.fields, s.UnhandledFields, "unhandled")
	counter(c.fields, s.UnknownFields, "unknown")
}

// MPPTCollector reports the latest MPPT snapshot as gauges. Nothing is
// reported while the snapshot is stale.
type MPPTCollector struct {
	mppt *victron.MPPT

	info    *prometheus.Desc
	gauges  []mpptGauge
	ext     []extGauge
	updated *prometheus.Desc
}

type mpptGauge struct {
	desc  *prometheus.Desc
	value func(*victron.MPPTFrame) float64
}

type extGauge struct {
	desc  *prometheus.Desc
	value func(*victron.Extended) (float64, bool)
}

func gaugeDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(namespace+"_mppt_"+name, help, nil, nil)
}

// NewMPPTCollector creates a collector for m.
func NewMPPTCollector(m *victron.MPPT) *MPPTCollector {
	return &MPPTCollector{
		mppt: m,
		info: prometheus.NewDesc(namespace+"_mppt_info", "Device identification.",
			[]string{"pid", "product", "serial", "firmware"}, nil),
		updated: gaugeDesc("last_update_timestamp_seconds", "Time of the last verified text block."),
		gauges: []mpptGauge{
			{gaugeDesc("battery_voltage_volts", "Battery voltage."), func(f *victron.MPPTFrame) float64 { return f.V }},
			{gaugeDesc("battery_current_amperes", "Battery current."), func(f *victron.MPPTFrame) float64 { return f.I }},
			{gaugeDesc("battery_power_watts", "Battery output power."), func(f *victron.MPPTFrame) float64 { return float64(f.P) }},
			{gaugeDesc("panel_voltage_volts", "Panel voltage."), func(f *victron.MPPTFrame) float64 { return f.VPV }},
			{gaugeDesc("panel_current_amperes", "Panel current."), func(f *victron.MPPTFrame) float64 { return f.IPV }},
			{gaugeDesc("panel_power_watts", "Panel power."), func(f *victron.MPPTFrame) float64 { return float64(f.PPV) }},
			{gaugeDesc("efficiency_percent", "Conversion efficiency, moving average."), func(f *victron.MPPTFrame) float64 { return f.E }},
			{gaugeDesc("charge_state", "State of operation (CS)."), func(f *victron.MPPTFrame) float64 { return float64(f.CS) }},
			{gaugeDesc("tracker_mode", "Tracker operation mode (MPPT)."), func(f *victron.MPPTFrame) float64 { return float64(f.MPPT) }},
			{gaugeDesc("error_code", "Error code (ERR)."), func(f *victron.MPPTFrame) float64 { return float64(f.ERR) }},
			{gaugeDesc("off_reason", "Off reason bit mask (OR)."), func(f *victron.MPPTFrame) float64 { return float64(f.OR) }},
			{gaugeDesc("yield_total_kwh", "Total yield."), func(f *victron.MPPTFrame) float64 { return f.H19 }},
			{gaugeDesc("yield_today_kwh", "Yield today."), func(f *victron.MPPTFrame) float64 { return f.H20 }},
			{gaugeDesc("max_power_today_watts", "Maximum power today."), func(f *victron.MPPTFrame) float64 { return float64(f.H21) }},
		},
		ext: []extGauge{
			{gaugeDesc("internal_temperature_celsius", "Charger internal temperature."),
				func(e *victron.Extended) (float64, bool) { return e.T, !e.TUpdated.IsZero() }},
			{gaugeDesc("battery_temperature_celsius", "Smart Battery Sense temperature."),
				func(e *victron.Extended) (float64, bool) { return e.TSBS, !e.TSBSUpdated.IsZero() }},
			{gaugeDesc("network_dc_input_power_watts", "Total DC input power of the VE.Smart network."),
				func(e *victron.Extended) (float64, bool) { return e.TDCP, !e.TDCPUpdated.IsZero() }},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *MPPTCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.info
	ch <- c.updated
	for _, g := range c.gauges {
		ch <- g.desc
	}
	for _, g := range c.ext {
		ch <- g.desc
	}
}

// Collect implements prometheus.Collector.
func (c *MPPTCollector) Collect(ch chan<- prometheus.Metric) {
	if !c.mppt.IsDataValid() {
		return
	}

	f := c.mppt.Data()
	ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1,
		formatPID(f.PID), f.PIDString(), f.SER, f.FW)
	ch <- prometheus.MustNewConstMetric(c.updated, prometheus.GaugeValue,
		float64(c.mppt.LastUpdate().UnixMilli())/1000.0)
	for _, g := range c.gauges {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, g.value(f))
	}

	ext := c.mppt.ExtData()
	for _, g := range c.ext {
		if v, ok := g.value(ext); ok {
			ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, v)
		}
	}
}

func formatPID(pid uint16) string {
	return fmt.Sprintf("0x%04X", pid)
}
