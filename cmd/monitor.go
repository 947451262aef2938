// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"github.com/Thermoquad/vestat/pkg/victron"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	pollRegisters bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor charger state and detect framing errors",
	Long: `Track decoded charger state, rejected frames and protocol statistics.

This command decodes the VE.Direct stream and reports:
  - Checksum failures, malformed hex frames and buffer overflows
  - Frames abandoned by the inter-byte timeout
  - Charger error codes reported in the ERR field
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid
frames too. With --poll, temperature and DC input power registers are read
over the hex protocol (firmware 1.53 and later).

In the terminal UI, press 'l' to set the battery charge current limit.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().BoolVar(&pollRegisters, "poll", true, "Poll extended registers over the hex protocol")
}

// monitorEvent is what the link goroutine reports to the front end
type monitorEvent struct {
	frame     *victron.MPPTFrame
	hex       *vedirect.HexRecord
	decodeErr error
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	events := make(chan monitorEvent, 64)
	emit := func(ev monitorEvent) {
		select {
		case events <- ev:
		default:
			logger.Warn("monitor event dropped")
		}
	}

	mppt := victron.NewMPPT(
		victron.WithMPPTLogger(logger.Named("mppt")),
		victron.WithMaxAge(cfg.Decoder.MaxAge.Duration),
		victron.WithPollInterval(cfg.Decoder.PollInterval.Duration),
		victron.OnUpdate(func(f *victron.MPPTFrame) { emit(monitorEvent{frame: f}) }),
	)

	handler := vedirect.HandlerFuncs{
		Field:         mppt.OnField,
		FrameComplete: mppt.OnFrameComplete,
		HexRecord: func(rec vedirect.HexRecord) {
			mppt.OnHexRecord(rec)
			emit(monitorEvent{hex: &rec})
		},
	}

	link := newLink(conn, handler, vedirect.WithErrorHandler(func(err error) {
		emit(monitorEvent{decodeErr: err})
	}))
	charger := newCharger(link)

	ctx, cancel := signalContext()
	defer cancel()

	linkErr := make(chan error, 1)
	go func() {
		linkErr <- runLink(ctx, conn, link)
		cancel()
	}()

	if pollRegisters {
		go pollLoop(ctx, mppt, link)
	}

	if useTUI {
		return runMonitorTUI(ctx, cancel, connInfo, link, mppt, charger, events)
	}
	runMonitorText(ctx, connInfo, link, events)
	return <-linkErr
}

// pollLoop reads extended registers until ctx is done
func pollLoop(ctx context.Context, mppt *victron.MPPT, sender victron.Sender) {
	interval := cfg.Decoder.PollInterval.Duration
	if interval <= 0 {
		interval = victron.DefaultPollInterval
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := mppt.Poll(now, sender); err != nil {
				logger.Warn("register poll failed", zap.Error(err))
			}
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mFRAME REJECTED:\033[0m %v\n\n", timestamp, err)
}

// printChargerError prints a frame whose ERR field is set
func printChargerError(f *victron.MPPTFrame) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mCHARGER ERROR:\033[0m %s (%d)\n", timestamp, f.ERRString(), f.ERR)
	fmt.Printf("  State: %s, Tracker: %s\n\n", f.CSString(), f.MPPTString())
}

// formatFrameLine renders a one line summary of a charger snapshot
func formatFrameLine(f *victron.MPPTFrame) string {
	return fmt.Sprintf("[%s] %s  Bat %.2fV %.2fA %dW  PV %.2fV %dW  %s/%s  today %.2fkWh\n",
		time.Now().Format("15:04:05.000"), f.PIDString(),
		f.V, f.I, f.P, f.VPV, f.PPV, f.CSString(), f.MPPTString(), f.H20)
}

// runMonitorText runs the monitor in text mode
func runMonitorText(ctx context.Context, connInfo string, link *vedirect.Link, events <-chan monitorEvent) {
	fmt.Printf("Vestat - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Sync tracking - ignore decode errors until first valid frame
	synchronized := false
	errorsBeforeSync := 0

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			stats := link.Statistics()
			fmt.Printf("\n%s", stats.String())
			return

		case ev := <-events:
			switch {
			case ev.decodeErr != nil:
				if synchronized {
					printDecodeError(ev.decodeErr)
				} else {
					errorsBeforeSync++
				}

			case ev.frame != nil:
				if !synchronized {
					synchronized = true
					if errorsBeforeSync > 0 {
						fmt.Printf("[SYNC] Synchronized after discarding %d partial frames\n\n", errorsBeforeSync)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}
				if ev.frame.ERR != 0 {
					printChargerError(ev.frame)
				} else if showAll {
					fmt.Print(formatFrameLine(ev.frame))
				}

			case ev.hex != nil:
				if showAll || ev.hex.Flag != vedirect.FlagOK {
					fmt.Print(vedirect.FormatHexRecord(*ev.hex, time.Now()))
				}
			}

		case <-statsTicker.C:
			stats := link.Statistics()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// runMonitorTUI runs the monitor in TUI mode
func runMonitorTUI(ctx context.Context, cancel context.CancelFunc, connInfo string, link *vedirect.Link,
	mppt *victron.MPPT, charger *victron.Charger, events <-chan monitorEvent) error {
	m := initialMonitorModel(connInfo, statsInterval, showAll, mppt, charger)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	// Forward link events and statistics to the program
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				p.Send(monitorEventMsg(ev))
			case <-ticker.C:
				p.Send(statsMsg(link.Statistics()))
			}
		}
	}()

	_, err := p.Run()
	cancel()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
