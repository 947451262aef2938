// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package victron

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RegBatteryMaxCurrent is the charge current limit register, 0.1 A units.
const RegBatteryMaxCurrent uint16 = 0x2015

// DefaultLimitInterval is the minimum spacing of current limit writes. The
// register is stored in non-volatile memory on the device.
const DefaultLimitInterval = time.Minute

// ErrRateLimited is returned when a current limit write comes too soon
// after the previous one.
var ErrRateLimited = errors.New("battery current limit write rate limited")

// Charger controls the charge current of a charger or MPPT.
type Charger struct {
	sender  Sender
	limiter *rate.Limiter
	logger  *zap.Logger
}

// ChargerOption configures a Charger.
type ChargerOption func(*Charger)

// WithLimiter replaces the write rate limiter.
func WithLimiter(l *rate.Limiter) ChargerOption {
	return func(c *Charger) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithChargerLogger sets the logger.
func WithChargerLogger(logger *zap.Logger) ChargerOption {
	return func(c *Charger) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCharger creates a charger controller sending through s.
func NewCharger(s Sender, opts ...ChargerOption) *Charger {
	c := &Charger{
		sender:  s,
		limiter: rate.NewLimiter(rate.Every(DefaultLimitInterval), 1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetBatteryCurrentLimit writes the maximum battery charge current in amps.
// The value is not range checked against the device capabilities.
func (c *Charger) SetBatteryCurrentLimit(amps uint16) error {
	value := uint32(amps) * 10
	if value > math.MaxUint16 {
		return fmt.Errorf("%w: %d A exceeds register range", vedirect.ErrInvalidArgument, amps)
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}

	if err := c.sender.SendHexCommand(vedirect.CmdSet, RegBatteryMaxCurrent, value, 4); err != nil {
		return fmt.Errorf("set battery current limit: %w", err)
	}
	c.logger.Info("battery current limit set", zap.Uint16("amps", amps))
	return nil
}
