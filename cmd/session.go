// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"github.com/Thermoquad/vestat/pkg/victron"
)

// newLink wires a decoder for h onto conn using the configured timing
func newLink(conn Connection, h vedirect.Handler, opts ...vedirect.LinkOption) *vedirect.Link {
	d := vedirect.NewDecoder(h, vedirect.WithLogger(logger.Named("decoder")))

	base := []vedirect.LinkOption{
		vedirect.WithInterByteTimeout(cfg.Decoder.InterByteTimeout.Duration),
		vedirect.WithLinkLogger(logger.Named("link")),
	}
	return vedirect.NewLink(conn, d, append(base, opts...)...)
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runLink drives link until ctx is done or the connection fails. The
// connection is closed on cancellation to unblock the pending read.
func runLink(ctx context.Context, conn Connection, link *vedirect.Link) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err := link.Run(ctx)
	if ctx.Err() != nil || errors.Is(err, ErrConnectionClosed) {
		return nil
	}
	return err
}

// newCharger returns a charger controller honoring the configured minimum
// interval between current limit writes
func newCharger(s victron.Sender) *victron.Charger {
	opts := []victron.ChargerOption{victron.WithChargerLogger(logger.Named("charger"))}
	if d := cfg.Decoder.LimitInterval.Duration; d > 0 {
		opts = append(opts, victron.WithLimiter(rate.NewLimiter(rate.Every(d), 1)))
	}
	return victron.NewCharger(s, opts...)
}
