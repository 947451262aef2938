// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/vestat/pkg/vedirect"
	"github.com/Thermoquad/vestat/pkg/victron"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connInfo      string
	statsInterval int
	showAll       bool
	started       time.Time

	// Device
	mppt    *victron.MPPT
	charger *victron.Charger
	frame   *victron.MPPTFrame

	// Monitoring
	stats         vedirect.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	discarded     uint64

	// Current limit entry
	limitInput textinput.Model
	editing    bool

	// UI state
	spinner  spinner.Model
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorEventMsg monitorEvent

type statsMsg vedirect.Statistics

type limitResultMsg struct {
	amps uint16
	err  error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	days := seconds / 86400
	hours := (seconds / 3600) % 24
	minutes := (seconds / 60) % 60
	seconds %= 60

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialMonitorModel(connInfo string, statsInterval int, showAll bool, mppt *victron.MPPT, charger *victron.Charger) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "15"
	ti.CharLimit = 4
	ti.Width = 6

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return monitorModel{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		started:       time.Now(),
		mppt:          mppt,
		charger:       charger,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		limitInput:    ti,
		spinner:       sp,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

// setLimitCmd writes the current limit without blocking the UI
func setLimitCmd(charger *victron.Charger, amps uint16) tea.Cmd {
	return func() tea.Msg {
		return limitResultMsg{amps: amps, err: charger.SetBatteryCurrentLimit(amps)}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statsMsg:
		m.stats = vedirect.Statistics(msg)
		m.stats.CalculateRates()

	case limitResultMsg:
		switch {
		case errors.Is(msg.err, victron.ErrRateLimited):
			m.addLogEntry("Current limit not sent: rate limited", true)
		case msg.err != nil:
			m.addLogEntry(fmt.Sprintf("Current limit failed: %v", msg.err), true)
		default:
			m.addLogEntry(fmt.Sprintf("Battery current limit set to %d A", msg.amps), false)
		}

	case monitorEventMsg:
		m.handleEvent(monitorEvent(msg))
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "esc":
			m.editing = false
			m.limitInput.Blur()
			return m, nil
		case "enter":
			m.editing = false
			m.limitInput.Blur()
			value := m.limitInput.Value()
			m.limitInput.SetValue("")
			amps, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				m.addLogEntry(fmt.Sprintf("Invalid current limit %q", value), true)
				return m, nil
			}
			return m, setLimitCmd(m.charger, uint16(amps))
		}
		var cmd tea.Cmd
		m.limitInput, cmd = m.limitInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "l":
		m.editing = true
		return m, m.limitInput.Focus()
	}
	return m, nil
}

func (m *monitorModel) handleEvent(ev monitorEvent) {
	switch {
	case ev.decodeErr != nil:
		if m.synchronized {
			m.addLogEntry(fmt.Sprintf("FRAME REJECTED: %v", ev.decodeErr), true)
		} else {
			m.discarded++
		}

	case ev.frame != nil:
		if !m.synchronized {
			m.synchronized = true
			if m.discarded > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after discarding %d partial frames", m.discarded), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}
		if ev.frame.ERR != 0 && (m.frame == nil || m.frame.ERR != ev.frame.ERR) {
			m.addLogEntry(fmt.Sprintf("CHARGER ERROR: %s", ev.frame.ERRString()), true)
		}
		if m.frame != nil && m.frame.CS != ev.frame.CS {
			m.addLogEntry(fmt.Sprintf("State changed: %s -> %s", m.frame.CSString(), ev.frame.CSString()), false)
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("Frame %s (valid)", ev.frame.PIDString()), false)
		}
		m.frame = ev.frame

	case ev.hex != nil:
		if ev.hex.Flag != vedirect.FlagOK {
			m.addLogEntry(fmt.Sprintf("Register 0x%04X not available (flag 0x%02X)", ev.hex.Register, ev.hex.Flag), true)
		} else if m.showAll {
			m.addLogEntry(strings.TrimSpace(vedirect.FormatHexRecord(*ev.hex, time.Now())), false)
		}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("VESTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Up %s | Press 'l' to set current limit, 'q' to quit",
		m.connInfo, formatUptime(time.Since(m.started)))))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(warningStyle.Render(m.spinner.View() + " Waiting for synchronization..."))
	} else if !m.mppt.IsDataValid() {
		s.WriteString(warningStyle.Render(m.spinner.View() + " Data stale"))
	} else {
		s.WriteString(valueStyle.Render("✓ Synchronized"))
	}
	s.WriteString("\n\n")

	// Statistics
	var validPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
	}
	errorTotal := m.stats.Errors()

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidFrames, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", errorTotal)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Hex:"), valueStyle.Render(fmt.Sprintf("%d/%d", m.stats.HexRecords, m.stats.HexFrames)),
		labelStyle.Render("Bytes:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Bytes)),
	))
	if errorTotal > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %d, %s %d, %s %d, %s %d, %s %d\n",
			headerStyle.Render("checksum"), m.stats.ChecksumErrors,
			headerStyle.Render("hex checksum"), m.stats.HexChecksumError,
			headerStyle.Render("malformed hex"), m.stats.MalformedHex,
			headerStyle.Render("overflow"), m.stats.Overflows,
			headerStyle.Render("timeout"), m.stats.Timeouts,
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.2f frames/s", m.stats.FrameRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.2f err/s", m.stats.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.2f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Charger section (only shown once a frame was received)
	if f := m.frame; f != nil {
		ext := m.mppt.ExtData()

		s.WriteString(labelStyle.Render(fmt.Sprintf("%s  %s  FW %d", f.PIDString(), f.SER, f.FirmwareVersion())))
		s.WriteString("\n")

		c := strings.Builder{}
		c.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("State:"), valueStyle.Render(f.CSString()),
			labelStyle.Render("Tracker:"), valueStyle.Render(f.MPPTString()),
			labelStyle.Render("Error:"), func() string {
				if f.ERR != 0 {
					return errorStyle.Render(f.ERRString())
				}
				return valueStyle.Render(f.ERRString())
			}(),
		))
		c.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Battery:"), valueStyle.Render(fmt.Sprintf("%.2f V  %.2f A  %d W", f.V, f.I, f.P)),
			labelStyle.Render("Panel:"), valueStyle.Render(fmt.Sprintf("%.2f V  %.2f A  %d W", f.VPV, f.IPV, f.PPV)),
		))
		c.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Efficiency:"), valueStyle.Render(fmt.Sprintf("%.1f%%", f.E)),
			labelStyle.Render("Today:"), valueStyle.Render(fmt.Sprintf("%.2f kWh (max %d W)", f.H20, f.H21)),
			labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%.2f kWh", f.H19)),
		))
		if !ext.TUpdated.IsZero() || !ext.TSBSUpdated.IsZero() {
			c.WriteString(fmt.Sprintf("%s %s   %s %s\n",
				labelStyle.Render("Charger Temp:"), valueStyle.Render(fmt.Sprintf("%.1f°C", ext.T)),
				labelStyle.Render("Battery Temp:"), valueStyle.Render(fmt.Sprintf("%.1f°C", ext.TSBS)),
			))
		}
		if m.editing {
			c.WriteString(fmt.Sprintf("%s %s A\n", labelStyle.Render("Current limit:"), m.limitInput.View()))
		}

		s.WriteString(boxStyle.Render(c.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 22 // Reserve space for header, stats and charger
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
