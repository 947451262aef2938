// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package victron interprets VE.Direct traffic from Victron charge
// controllers. Controllers implement vedirect.Handler and publish immutable
// snapshots that may be read from any goroutine.
package victron
