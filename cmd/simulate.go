// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"github.com/Thermoquad/vestat/pkg/victron"
)

var (
	simInterval int
	simSeed     int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as a solar charge controller on the connection",
	Long: `Emulate a SmartSolar MPPT on the serial port or WebSocket.

A text block is sent every --interval milliseconds with a slowly varying
panel power. PING, application version, product id, GET and SET hex
commands are answered; the battery current limit (0x2015) and network mode
(0x200F) registers are writable.

Useful with a null-modem cable or socat pty pair for exercising the other
commands without hardware.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simInterval, "interval", 1000, "Text block interval in milliseconds")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", time.Now().UnixNano(), "Random seed for the simulated plant")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Vestat - Simulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	sim := victron.NewSimulator(simSeed)

	var wmu sync.Mutex
	send := func(frame []byte) {
		wmu.Lock()
		defer wmu.Unlock()
		if _, err := conn.Write(frame); err != nil {
			logger.Warn("simulator write failed", zap.Error(err))
		}
	}

	link := newLink(conn, vedirect.HandlerFuncs{
		HexRecord: func(rec vedirect.HexRecord) {
			reply, err := sim.Respond(rec)
			if err != nil {
				logger.Error("simulator reply", zap.Error(err))
				return
			}
			fmt.Printf("[%s] RX %s", time.Now().Format("15:04:05.000"), vedirect.FormatHexRecord(rec, time.Now()))
			if reply != nil {
				send(reply)
			}
		},
	})

	ctx, cancel := signalContext()
	defer cancel()

	linkErr := make(chan error, 1)
	go func() {
		linkErr <- runLink(ctx, conn, link)
		cancel()
	}()

	ticker := time.NewTicker(time.Duration(simInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return <-linkErr
		case now := <-ticker.C:
			block, err := sim.TextBlock(now)
			if err != nil {
				return fmt.Errorf("text block: %w", err)
			}
			send(block)
		}
	}
}
