// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vestat/pkg/vedirect"
)

var (
	rawLogDump bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded VE.Direct traffic in human-readable format",
	Long: `Continuously decode and display VE.Direct text blocks and hex frames.

Each verified text block is printed field by field with protocol units,
followed by a frame marker. Hex frames are printed as decoded records.
Rejected frames are reported with the reason; with --dump the last bytes
received are shown as a hex dump.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogDump, "dump", false, "Hex dump recent bytes when a frame is rejected")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Vestat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var link *vedirect.Link
	handler := vedirect.HandlerFuncs{
		Field: func(name, value []byte) bool {
			fmt.Print(vedirect.FormatField(name, value))
			return true
		},
		FrameComplete: func() {
			fmt.Printf("[%s] TEXT frame OK\n\n", time.Now().Format("15:04:05.000"))
		},
		HexRecord: func(rec vedirect.HexRecord) {
			fmt.Print(vedirect.FormatHexRecord(rec, time.Now()))
		},
	}

	link = newLink(conn, handler, vedirect.WithErrorHandler(func(err error) {
		fmt.Printf("[ERROR] %v\n", err)
		if rawLogDump && !errors.Is(err, vedirect.ErrMalformedHex) {
			fmt.Println(link.Decoder().DebugRing().HexDump())
		}
	}))

	ctx, cancel := signalContext()
	defer cancel()

	if err := runLink(ctx, conn, link); err != nil {
		return err
	}

	stats := link.Statistics()
	fmt.Fprintf(os.Stderr, "\n%s", stats.String())
	return nil
}
