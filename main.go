// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Vestat - Victron VE.Direct Protocol Analyzer
//
// A CLI tool for decoding, monitoring and exporting the state of Victron
// solar charge controllers over their VE.Direct serial port.

package main

import (
	"os"

	"github.com/Thermoquad/vestat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
