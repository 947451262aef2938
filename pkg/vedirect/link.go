// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Link connects a decoder to a byte transport. It owns the read loop, the
// inter-byte timeout and outbound hex commands.
type Link struct {
	rw      io.ReadWriter
	decoder *Decoder
	logger  *zap.Logger
	clock   func() time.Time
	timeout time.Duration
	onError func(error)

	mu       sync.Mutex // guards decoder and lastByte
	lastByte time.Time

	wmu sync.Mutex // serializes writes
}

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithInterByteTimeout sets how long a partial frame may stall before it is
// abandoned. Zero disables the timeout.
func WithInterByteTimeout(d time.Duration) LinkOption {
	return func(l *Link) {
		l.timeout = d
	}
}

// WithLinkClock sets the time source.
func WithLinkClock(clock func() time.Time) LinkOption {
	return func(l *Link) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithLinkLogger sets the logger.
func WithLinkLogger(logger *zap.Logger) LinkOption {
	return func(l *Link) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithErrorHandler receives every discarded unit reported by the decoder.
// It is called with the link lock held and must not call Feed or Tick.
func WithErrorHandler(fn func(error)) LinkOption {
	return func(l *Link) {
		l.onError = fn
	}
}

// NewLink creates a link feeding bytes from rw into d.
func NewLink(rw io.ReadWriter, d *Decoder, opts ...LinkOption) *Link {
	l := &Link{
		rw:      rw,
		decoder: d,
		logger:  zap.NewNop(),
		clock:   time.Now,
		timeout: DefaultInterByteTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Decoder returns the decoder driven by the link.
func (l *Link) Decoder() *Decoder {
	return l.decoder
}

// Statistics returns a copy of the decoder counters that is safe to read
// while the link is running.
func (l *Link) Statistics() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.decoder.Statistics()
}

// Run reads from the transport until ctx is cancelled or a read fails.
// A blocking read is only interrupted by closing the transport; the
// inter-byte timeout keeps running meanwhile. io.EOF ends Run without error.
func (l *Link) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if l.timeout > 0 {
		go l.tickLoop(ctx)
	}

	buf := make([]byte, 128)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := l.rw.Read(buf)
		if n > 0 {
			l.Feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (l *Link) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(l.timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Feed pushes received bytes through the decoder.
func (l *Link) Feed(p []byte) {
	if len(p) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range p {
		if err := l.decoder.DecodeByte(b); err != nil && l.onError != nil {
			l.onError(err)
		}
	}
	l.lastByte = l.clock()
}

// Tick abandons a partial frame when no byte arrived within the inter-byte
// timeout. It reports whether the decoder was reset.
func (l *Link) Tick() bool {
	if l.timeout <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.decoder.State() == StateIdle || l.lastByte.IsZero() {
		return false
	}
	idle := l.clock().Sub(l.lastByte)
	if idle <= l.timeout {
		return false
	}

	state := l.decoder.State()
	l.decoder.Reset()
	l.decoder.Statistics().Timeouts++
	l.logger.Debug("inter-byte timeout, frame abandoned",
		zap.Stringer("state", state),
		zap.Duration("idle", idle))
	return true
}

// SendHexCommand encodes and transmits a hex command with flag 0x00.
// Encoding errors are returned before anything is written. There is no
// response correlation and no retry.
func (l *Link) SendHexCommand(cmd Command, register uint16, value uint32, nibbles int) error {
	frame, err := EncodeCommand(cmd, register, FlagOK, value, nibbles)
	if err != nil {
		return err
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()

	n, err := l.rw.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportBusy, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrTransportBusy, n, len(frame))
	}

	l.logger.Debug("hex command sent",
		zap.Stringer("command", cmd),
		zap.Uint16("register", register),
		zap.ByteString("frame", frame[:len(frame)-1]))
	return nil
}
