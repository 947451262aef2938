// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"github.com/Thermoquad/vestat/pkg/victron"
)

var (
	hexTimeout  int
	hexCount    int
	hexNibbles  int
	errNoAnswer = errors.New("no response")
)

var hexCmd = &cobra.Command{
	Use:   "hex",
	Short: "Send hex protocol commands to the device",
	Long: `Send VE.Direct hex protocol commands and wait for the matching response.

Text blocks keep arriving while a command is pending; they are ignored.
Addresses and values accept decimal or 0x prefixed hex.

Exit codes:
  0 - All commands answered
  1 - A command failed, was rejected or timed out
  2 - Connection error`,
}

var hexPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send PING and report the firmware version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHex(func(s *hexSession) error {
			failures := 0
			for i := 1; i <= hexCount; i++ {
				fmt.Printf("Ping %d/%d: ", i, hexCount)
				start := time.Now()
				rec, err := s.request(vedirect.CmdPing, 0, 0, 0, matchResponse(vedirect.RspPing))
				if err != nil {
					fmt.Printf("%v\n", err)
					failures++
					continue
				}
				fmt.Printf("PONG firmware %s, rtt=%v\n", vedirect.FormatVersion(rec.Value), time.Since(start).Round(time.Millisecond))
				if i < hexCount {
					time.Sleep(100 * time.Millisecond)
				}
			}

			fmt.Printf("\n--- Ping statistics ---\n")
			fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
				hexCount, hexCount-failures, float64(failures)/float64(hexCount)*100)
			if failures > 0 {
				return errNoAnswer
			}
			return nil
		})
	},
}

var hexVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Read the application version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHex(func(s *hexSession) error {
			rec, err := s.request(vedirect.CmdAppVersion, 0, 0, 0, matchResponse(vedirect.RspDone))
			if err != nil {
				return err
			}
			fmt.Printf("Application version: %s\n", vedirect.FormatVersion(rec.Value))
			return nil
		})
	},
}

var hexProductCmd = &cobra.Command{
	Use:   "product",
	Short: "Read the product id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHex(func(s *hexSession) error {
			rec, err := s.request(vedirect.CmdProductID, 0, 0, 0, matchResponse(vedirect.RspDone))
			if err != nil {
				return err
			}
			c := victron.Common{PID: uint16(rec.Value)}
			fmt.Printf("Product: %s (0x%04X)\n", c.PIDString(), c.PID)
			return nil
		})
	},
}

var hexGetCmd = &cobra.Command{
	Use:   "get <register>",
	Short: "Read a register",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return fmt.Errorf("invalid register %q: %w", args[0], err)
		}
		return runHex(func(s *hexSession) error {
			rec, err := s.request(vedirect.CmdGet, uint16(reg), 0, 0, matchRegister(vedirect.RspGet, uint16(reg)))
			if err != nil {
				return err
			}
			fmt.Print(vedirect.FormatHexRecord(*rec, time.Now()))
			return flagError(rec)
		})
	},
}

var hexSetCmd = &cobra.Command{
	Use:   "set <register> <value>",
	Short: "Write a register",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return fmt.Errorf("invalid register %q: %w", args[0], err)
		}
		value, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[1], err)
		}
		return runHex(func(s *hexSession) error {
			rec, err := s.request(vedirect.CmdSet, uint16(reg), uint32(value), hexNibbles, matchRegister(vedirect.RspSet, uint16(reg)))
			if err != nil {
				return err
			}
			fmt.Print(vedirect.FormatHexRecord(*rec, time.Now()))
			return flagError(rec)
		})
	},
}

var hexCurrentLimitCmd = &cobra.Command{
	Use:   "current-limit <amps>",
	Short: "Set the battery charge current limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amps, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid current %q: %w", args[0], err)
		}
		return runHex(func(s *hexSession) error {
			want := matchRegister(vedirect.RspSet, victron.RegBatteryMaxCurrent)
			rec, err := s.await(want, func() error {
				return newCharger(s.link).SetBatteryCurrentLimit(uint16(amps))
			})
			if err != nil {
				return err
			}
			if err := flagError(rec); err != nil {
				return err
			}
			fmt.Printf("Battery current limit set to %.1f A\n", float64(rec.Value)/10)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(hexCmd)
	hexCmd.PersistentFlags().IntVar(&hexTimeout, "timeout", 2, "Timeout in seconds for each response")
	hexPingCmd.Flags().IntVar(&hexCount, "count", 3, "Number of pings to send")
	hexSetCmd.Flags().IntVar(&hexNibbles, "width", 4, "Value width in hex digits (2, 4 or 8)")
	hexCmd.AddCommand(hexPingCmd, hexVersionCmd, hexProductCmd, hexGetCmd, hexSetCmd, hexCurrentLimitCmd)
}

//////////////////////////////////////////////////////////////
// Session
//////////////////////////////////////////////////////////////

// hexSession correlates sent commands with received hex records
type hexSession struct {
	link    *vedirect.Link
	records chan vedirect.HexRecord
	timeout time.Duration
}

// await runs send and waits for the first record accepted by match. Error
// and unknown-command responses end the wait early.
func (s *hexSession) await(match func(vedirect.HexRecord) bool, send func() error) (*vedirect.HexRecord, error) {
	// Drop anything that arrived before the command
	for len(s.records) > 0 {
		<-s.records
	}

	if err := send(); err != nil {
		return nil, fmt.Errorf("SEND FAILED: %w", err)
	}

	deadline := time.After(s.timeout)
	for {
		select {
		case rec := <-s.records:
			if match(rec) {
				return &rec, nil
			}
			switch rec.Response {
			case vedirect.RspError, vedirect.RspUnknown:
				return nil, fmt.Errorf("device answered %s (data=%s)", rec.Response, rec.Text)
			}
		case <-deadline:
			return nil, fmt.Errorf("TIMEOUT (no response in %v): %w", s.timeout, errNoAnswer)
		}
	}
}

// request sends one hex command and waits for its response
func (s *hexSession) request(cmd vedirect.Command, register uint16, value uint32, nibbles int,
	match func(vedirect.HexRecord) bool) (*vedirect.HexRecord, error) {
	return s.await(match, func() error {
		return s.link.SendHexCommand(cmd, register, value, nibbles)
	})
}

func matchResponse(rsp vedirect.Response) func(vedirect.HexRecord) bool {
	return func(rec vedirect.HexRecord) bool { return rec.Response == rsp }
}

func matchRegister(rsp vedirect.Response, register uint16) func(vedirect.HexRecord) bool {
	return func(rec vedirect.HexRecord) bool { return rec.Response == rsp && rec.Register == register }
}

// flagError reports a non-OK response flag
func flagError(rec *vedirect.HexRecord) error {
	switch rec.Flag {
	case vedirect.FlagOK:
		return nil
	case vedirect.FlagUnknownID:
		return fmt.Errorf("register 0x%04X unknown", rec.Register)
	case vedirect.FlagNotSupported:
		return fmt.Errorf("register 0x%04X not supported", rec.Register)
	case vedirect.FlagParameterError:
		return fmt.Errorf("register 0x%04X rejected the value", rec.Register)
	default:
		return fmt.Errorf("register 0x%04X flag 0x%02X", rec.Register, rec.Flag)
	}
}

// runHex opens the connection, runs fn against a live link and exits with
// the documented status code
func runHex(fn func(s *hexSession) error) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Vestat - Hex Protocol\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	s := &hexSession{
		records: make(chan vedirect.HexRecord, 16),
		timeout: time.Duration(hexTimeout) * time.Second,
	}
	s.link = newLink(conn, vedirect.HandlerFuncs{
		HexRecord: func(rec vedirect.HexRecord) {
			select {
			case s.records <- rec:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := runLink(ctx, conn, s.link); err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)
		}
	}()

	if err := fn(s); err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}
	return nil
}
