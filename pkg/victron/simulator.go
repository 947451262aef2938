// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package victron

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/Thermoquad/vestat/pkg/vedirect"
)

// simRegister is a register exposed by the simulator
type simRegister struct {
	nibbles  int
	writable bool
}

var simRegisters = map[uint16]simRegister{
	RegInternalTemperature:     {nibbles: 4},
	RegBatterySenseTemperature: {nibbles: 4},
	RegTotalDCInputPower:       {nibbles: 8},
	RegNetworkMode:             {nibbles: 2, writable: true},
	RegBatteryMaxCurrent:       {nibbles: 4, writable: true},
}

// Simulator behaves like a solar charge controller: it produces periodic
// text blocks and answers hex commands.
type Simulator struct {
	PID      uint16
	Serial   string
	Firmware string // e.g. "159"

	mu     sync.Mutex
	rng    *rand.Rand
	values map[uint16]uint32 // writable registers
	ppv    float64
	v      float64
	i      float64
	tempC  float64
	yield  float64 // today [Wh]
	total  float64 // [Wh]
	maxPPV float64
	last   time.Time
}

// NewSimulator creates a SmartSolar MPPT 75|15 simulation.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		PID:      0xA053,
		Serial:   "HQ0000SIM01",
		Firmware: "159",
		rng:      rand.New(rand.NewSource(seed)),
		values: map[uint16]uint32{
			RegNetworkMode:       0x00,
			RegBatteryMaxCurrent: 150, // 15.0 A
		},
		v:     12.8,
		tempC: 25,
		total: 123450,
	}
}

// FirmwareWord returns the firmware release as reported by PING, e.g.
// 0x4159 for "159".
func (s *Simulator) FirmwareWord() uint32 {
	v, err := strconv.ParseUint(s.Firmware, 16, 16)
	if err != nil {
		return 0x4000
	}
	return 0x4000 | uint32(v)&0x3FFF
}

// step advances the simulated plant to now
func (s *Simulator) step(now time.Time) {
	dt := 1.0
	if !s.last.IsZero() {
		dt = now.Sub(s.last).Seconds()
	}
	s.last = now

	// Panel power follows a slow sine with some noise
	phase := float64(now.Unix()%600) / 600.0 * 2 * math.Pi
	s.ppv = math.Max(0, 120*math.Sin(phase)+s.rng.Float64()*5)

	limit := float64(s.values[RegBatteryMaxCurrent]) / 10.0
	s.i = math.Min(s.ppv*0.95/s.v, limit)
	s.v = math.Min(14.4, math.Max(12.0, s.v+(s.i-2)*0.001*dt))
	s.tempC = 25 + s.ppv/20

	s.yield += s.ppv * dt / 3600
	s.total += s.ppv * dt / 3600
	s.maxPPV = math.Max(s.maxPPV, s.ppv)
}

// TextBlock advances the simulation and renders the next text block.
func (s *Simulator) TextBlock(now time.Time) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step(now)

	cs, mppt := "0", "0"
	if s.ppv > 1 {
		cs, mppt = "3", "2"
	}
	vpv := 18000 + s.ppv*150

	return vedirect.EncodeTextBlock([]vedirect.Field{
		{Name: "PID", Value: fmt.Sprintf("0x%04X", s.PID)},
		{Name: "FW", Value: s.Firmware},
		{Name: "SER#", Value: s.Serial},
		{Name: "V", Value: strconv.Itoa(int(s.v * 1000))},
		{Name: "I", Value: strconv.Itoa(int(s.i * 1000))},
		{Name: "VPV", Value: strconv.Itoa(int(vpv))},
		{Name: "PPV", Value: strconv.Itoa(int(s.ppv))},
		{Name: "CS", Value: cs},
		{Name: "MPPT", Value: mppt},
		{Name: "OR", Value: "0x00000000"},
		{Name: "ERR", Value: "0"},
		{Name: "LOAD", Value: "ON"},
		{Name: "IL", Value: "0"},
		{Name: "H19", Value: strconv.Itoa(int(s.total / 10))},
		{Name: "H20", Value: strconv.Itoa(int(s.yield / 10))},
		{Name: "H21", Value: strconv.Itoa(int(s.maxPPV))},
		{Name: "H22", Value: "98"},
		{Name: "H23", Value: "210"},
		{Name: "HSDS", Value: "42"},
	})
}

// register returns the current value of a readable register
func (s *Simulator) register(reg uint16) uint32 {
	switch reg {
	case RegInternalTemperature:
		return uint32(uint16(int16(math.Round(s.tempC * 100))))
	case RegBatterySenseTemperature:
		return uint32(math.Round((25 + kelvinOffset) * 100))
	case RegTotalDCInputPower:
		return uint32(math.Round(s.ppv * 100))
	default:
		return s.values[reg]
	}
}

// Respond returns the frame answering a received command, or nil when the
// command has no reply. rec is a decoded hex frame whose response digit
// carries the command.
func (s *Simulator) Respond(rec vedirect.HexRecord) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch vedirect.Command(rec.Response) {
	case vedirect.CmdPing:
		return vedirect.EncodeRecord(vedirect.HexRecord{Response: vedirect.RspPing, Value: s.FirmwareWord()}, 4)

	case vedirect.CmdAppVersion:
		return vedirect.EncodeRecord(vedirect.HexRecord{Response: vedirect.RspDone, Value: s.FirmwareWord()}, 4)

	case vedirect.CmdProductID:
		return vedirect.EncodeRecord(vedirect.HexRecord{Response: vedirect.RspDone, Value: uint32(s.PID)}, 4)

	case vedirect.CmdRestart:
		return nil, nil

	case vedirect.CmdGet:
		r, ok := simRegisters[rec.Register]
		if !ok {
			return vedirect.EncodeRecord(vedirect.HexRecord{
				Response: vedirect.RspGet, Register: rec.Register, Flag: vedirect.FlagUnknownID,
			}, 0)
		}
		return vedirect.EncodeRecord(vedirect.HexRecord{
			Response: vedirect.RspGet, Register: rec.Register, Value: s.register(rec.Register),
		}, r.nibbles)

	case vedirect.CmdSet:
		r, ok := simRegisters[rec.Register]
		if !ok {
			return vedirect.EncodeRecord(vedirect.HexRecord{
				Response: vedirect.RspSet, Register: rec.Register, Flag: vedirect.FlagUnknownID,
			}, 0)
		}
		if !r.writable || (r.nibbles < 8 && rec.Value>>(4*r.nibbles) != 0) {
			return vedirect.EncodeRecord(vedirect.HexRecord{
				Response: vedirect.RspSet, Register: rec.Register, Flag: vedirect.FlagParameterError,
			}, 0)
		}
		s.values[rec.Register] = rec.Value
		return vedirect.EncodeRecord(vedirect.HexRecord{
			Response: vedirect.RspSet, Register: rec.Register, Value: rec.Value,
		}, r.nibbles)

	default:
		return vedirect.EncodeRecord(vedirect.HexRecord{Response: vedirect.RspUnknown, Value: uint32(rec.Response)}, 2)
	}
}
