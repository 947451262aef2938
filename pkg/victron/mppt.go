// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package victron

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"go.uber.org/zap"
)

// Registers read by the MPPT controller
const (
	RegInternalTemperature     uint16 = 0xEDDB // 0.01 °C, signed
	RegBatterySenseTemperature uint16 = 0xEDEC // 0.01 K
	RegTotalDCInputPower       uint16 = 0x2027 // 0.01 W
	RegNetworkMode             uint16 = 0x200F
)

const (
	// Firmware releases from 1.53 keep sending text frames while hex
	// traffic is present
	minPollFirmware = 153

	// DefaultPollInterval between hex register polls
	DefaultPollInterval = 5 * time.Second

	efficiencyWindow = 5

	kelvinOffset = 273.15
)

// Sender transmits hex commands. *vedirect.Link implements it.
type Sender interface {
	SendHexCommand(cmd vedirect.Command, register uint16, value uint32, nibbles int) error
}

// MPPT is the handler for a solar charge controller.
type MPPT struct {
	logger       *zap.Logger
	clock        func() time.Time
	maxAge       time.Duration
	pollInterval time.Duration
	onUpdate     func(*MPPTFrame)

	// Only touched from the decoder callbacks
	tmp        MPPTFrame
	efficiency *MovingAverage[float64]

	data atomic.Pointer[MPPTFrame]
	ext  atomic.Pointer[Extended]

	mu       sync.Mutex // guards fresh and lastPoll
	fresh    *vedirect.Freshness
	lastPoll time.Time
}

// MPPTOption configures an MPPT controller.
type MPPTOption func(*MPPT)

// WithMPPTLogger sets the logger.
func WithMPPTLogger(logger *zap.Logger) MPPTOption {
	return func(m *MPPT) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMPPTClock sets the time source.
func WithMPPTClock(clock func() time.Time) MPPTOption {
	return func(m *MPPT) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMaxAge sets how long a snapshot counts as valid.
func WithMaxAge(d time.Duration) MPPTOption {
	return func(m *MPPT) {
		m.maxAge = d
	}
}

// WithPollInterval sets the interval between hex register polls.
func WithPollInterval(d time.Duration) MPPTOption {
	return func(m *MPPT) {
		m.pollInterval = d
	}
}

// OnUpdate registers a callback receiving every published snapshot. It runs
// on the decoder goroutine.
func OnUpdate(fn func(*MPPTFrame)) MPPTOption {
	return func(m *MPPT) {
		m.onUpdate = fn
	}
}

// NewMPPT creates an MPPT controller.
func NewMPPT(opts ...MPPTOption) *MPPT {
	m := &MPPT{
		logger:       zap.NewNop(),
		clock:        time.Now,
		maxAge:       vedirect.DefaultMaxAge,
		pollInterval: DefaultPollInterval,
		efficiency:   NewMovingAverage[float64](efficiencyWindow),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.fresh = vedirect.NewFreshness(m.clock)
	m.data.Store(&MPPTFrame{})
	m.ext.Store(&Extended{})
	return m
}

// Data returns the most recent snapshot. It is never nil and must not be
// modified.
func (m *MPPT) Data() *MPPTFrame {
	return m.data.Load()
}

// ExtData returns the most recent hex register values.
func (m *MPPT) ExtData() *Extended {
	return m.ext.Load()
}

// LastUpdate returns when the current snapshot was published.
func (m *MPPT) LastUpdate() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fresh.LastUpdate()
}

// IsDataValid reports whether a populated snapshot younger than the maximum
// age is available.
func (m *MPPT) IsDataValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fresh.IsFresh(m.data.Load(), m.maxAge)
}

// OnField implements vedirect.Handler.
func (m *MPPT) OnField(name, value []byte) bool {
	return m.tmp.parseField(name, value)
}

// OnFrameComplete implements vedirect.Handler.
func (m *MPPT) OnFrameComplete() {
	f := m.tmp
	m.tmp = MPPTFrame{}

	f.P = int32(math.Round(f.V * f.I))

	f.IPV = 0
	if f.VPV > 0 {
		f.IPV = float64(f.PPV) / f.VPV
	}

	f.E = 0
	if f.PPV > 0 {
		m.efficiency.Add(float64(f.P) * 100.0 / float64(f.PPV))
		f.E = m.efficiency.Average()
	}

	m.data.Store(&f)
	m.mu.Lock()
	m.fresh.MarkUpdated()
	m.mu.Unlock()

	if m.onUpdate != nil {
		m.onUpdate(&f)
	}
}

// OnHexRecord implements vedirect.Handler.
func (m *MPPT) OnHexRecord(rec vedirect.HexRecord) {
	switch rec.Response {
	case vedirect.RspGet, vedirect.RspAsync:
	default:
		return
	}
	if rec.Flag != vedirect.FlagOK {
		m.logger.Debug("register not available",
			zap.Uint16("register", rec.Register),
			zap.Uint8("flag", rec.Flag))
		return
	}

	ext := *m.ext.Load()
	now := m.clock()

	switch rec.Register {
	case RegInternalTemperature:
		ext.T = float64(int16(uint16(rec.Value))) / 100.0
		ext.TUpdated = now
	case RegBatterySenseTemperature:
		ext.TSBS = float64(rec.Value)/100.0 - kelvinOffset
		ext.TSBSUpdated = now
	case RegTotalDCInputPower:
		ext.TDCP = float64(rec.Value) / 100.0
		ext.TDCPUpdated = now
	case RegNetworkMode:
		ext.Master = rec.Value&0x0F == 0x02
	default:
		return
	}

	m.ext.Store(&ext)
	m.logger.Debug("hex register update",
		zap.Uint16("register", rec.Register),
		zap.Uint32("value", rec.Value))
}

// Poll sends the periodic register reads once the poll interval elapsed.
// Firmware older than 1.53 is not polled. It is safe to call from any
// goroutine.
func (m *MPPT) Poll(now time.Time, s Sender) error {
	if m.Data().FirmwareVersion() < minPollFirmware {
		return nil
	}

	m.mu.Lock()
	if !m.lastPoll.IsZero() && now.Sub(m.lastPoll) < m.pollInterval {
		m.mu.Unlock()
		return nil
	}
	m.lastPoll = now
	m.mu.Unlock()

	var errs []error
	for _, reg := range []uint16{
		RegTotalDCInputPower,
		RegInternalTemperature,
		RegBatterySenseTemperature,
		RegNetworkMode,
	} {
		if err := s.SendHexCommand(vedirect.CmdGet, reg, 0, 0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
