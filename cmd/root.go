// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vestat/pkg/config"
	"github.com/Thermoquad/vestat/pkg/logging"
)

var (
	// Configuration
	configPath string
	logLevel   string
	cfg        = config.Default()
	logger     = zap.NewNop()

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "vestat",
	Short: "Victron VE.Direct Protocol Analyzer",
	Long: `Vestat - A CLI tool for monitoring and analyzing Victron VE.Direct traffic.

Decodes the text protocol and hex register frames sent by Victron solar
charge controllers, verifies checksums, and exports the decoded state.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 19200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from the config file (see "vestat config init"); flags
override the file. For WebSocket authentication, the password is read from
the VESTAT_PASSWORD environment variable, or prompted interactively if not
set. The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.Default().Serial.Baudrate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig merges the config file with the command line. Flags that were
// set explicitly win over the file.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	flags := cmd.Flags()
	if !flags.Changed("port") {
		portName = cfg.Serial.Device
	}
	if !flags.Changed("baud") {
		baudRate = cfg.Serial.Baudrate
	}
	if !flags.Changed("url") {
		wsURL = cfg.WebSocket.URL
	}
	if !flags.Changed("username") {
		wsUsername = cfg.WebSocket.Username
	}
	if !flags.Changed("no-ssl-verify") {
		wsNoSSLVerify = cfg.WebSocket.NoSSLVerify
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err = logging.InitLogger(cfg.Logging)
	return err
}

// Execute runs the root command
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}
