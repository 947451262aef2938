// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vestat/pkg/victron"
)

var (
	frameCheckTimeout int
)

var frameCheckCmd = &cobra.Command{
	Use:   "frame_check",
	Short: "Test connection by waiting for a valid VE.Direct text block",
	Long: `Wait for a checksum-verified VE.Direct text block until timeout.

This command connects to a serial port or WebSocket and waits for one
complete text block whose checksum verifies. Partial blocks seen while the
decoder synchronizes are ignored.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing wiring, baud rate and WebSocket bridges.`,
	RunE: runFrameCheck,
}

func init() {
	rootCmd.AddCommand(frameCheckCmd)
	frameCheckCmd.Flags().IntVar(&frameCheckTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameCheck(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Vestat - Frame Check\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameCheckTimeout)
	fmt.Printf("Waiting for valid text block...\n\n")

	frameChan := make(chan *victron.MPPTFrame, 1)
	mppt := victron.NewMPPT(victron.WithMPPTLogger(logger), victron.OnUpdate(func(f *victron.MPPTFrame) {
		select {
		case frameChan <- f:
		default:
		}
	}))
	link := newLink(conn, mppt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- runLink(ctx, conn, link)
	}()

	// Wait for frame or timeout
	select {
	case f := <-frameChan:
		stats := link.Statistics()
		fmt.Printf("SUCCESS: Received valid text block\n")
		fmt.Printf("  Product: %s (0x%04X)\n", f.PIDString(), f.PID)
		fmt.Printf("  Serial: %s\n", f.SER)
		fmt.Printf("  Firmware: %s\n", f.FW)
		fmt.Printf("  Battery: %.3f V, %.3f A\n", f.V, f.I)
		if skipped := stats.TotalFrames - stats.ValidFrames; skipped > 0 {
			fmt.Printf("  (rejected %d partial blocks before sync)\n", skipped)
		}
		os.Exit(0)

	case err := <-errChan:
		if err == nil {
			err = fmt.Errorf("connection closed")
		}
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameCheckTimeout) * time.Second):
		stats := link.Statistics()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds (%d bytes seen)\n",
			frameCheckTimeout, stats.Bytes)
		os.Exit(1)
	}

	return nil
}
