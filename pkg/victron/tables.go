// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package victron

// unknownText is returned for codes missing from a table
const unknownText = "???"

func lookup[K comparable](table map[K]string, key K) string {
	if s, ok := table[key]; ok {
		return s
	}
	return unknownText
}

// Product IDs (PID field)
var pidNames = map[uint16]string{
	0x0300: "BlueSolar MPPT 70|15",
	0xA040: "BlueSolar MPPT 75|50",
	0xA041: "BlueSolar MPPT 150|35",
	0xA042: "BlueSolar MPPT 75|15",
	0xA043: "BlueSolar MPPT 100|15",
	0xA044: "BlueSolar MPPT 100|30",
	0xA04A: "BlueSolar MPPT 100|30 rev2",
	0xA053: "SmartSolar MPPT 75|15",
	0xA054: "SmartSolar MPPT 75|10",
	0xA055: "SmartSolar MPPT 100|15",
	0xA056: "SmartSolar MPPT 100|30",
	0xA057: "SmartSolar MPPT 100|50",
	0xA058: "SmartSolar MPPT 150|35",
	0xA060: "SmartSolar MPPT 100|20 48V",
}

// State of operation (CS field)
var csNames = map[uint8]string{
	0:   "OFF",
	2:   "Fault",
	3:   "Bulk",
	4:   "Absorption",
	5:   "Float",
	7:   "Equalize (manual)",
	245: "Starting-up",
	247: "Auto equalize / Recondition",
	252: "External Control",
}

// Tracker operation mode (MPPT field)
var mpptNames = map[uint8]string{
	0: "OFF",
	1: "Voltage or current limited",
	2: "MPP Tracker active",
}

// Error codes (ERR field)
var errNames = map[uint8]string{
	0:   "No error",
	2:   "Battery voltage too high",
	17:  "Charger temperature too high",
	18:  "Charger over current",
	19:  "Charger current reversed",
	20:  "Bulk time limit exceeded",
	21:  "Current sensor issue (sensor bias/sensor broken)",
	26:  "Terminals overheated",
	28:  "Converter issue (dual converter models only)",
	33:  "Input voltage too high (solar panel)",
	34:  "Input current too high (solar panel)",
	38:  "Input shutdown (due to excessive battery voltage)",
	39:  "Input shutdown (due to current flow during off mode)",
	40:  "Input",
	65:  "Lost communication with one of devices",
	67:  "Synchronised charging device configuration issue",
	68:  "BMS connection lost",
	116: "Factory calibration data lost",
	117: "Invalid/incompatible firmware",
	118: "User settings invalid",
}

// Off reasons (OR field)
var orNames = map[uint32]string{
	0x00000000: "Not off",
	0x00000001: "No input power",
	0x00000002: "Switched off (power switch)",
	0x00000004: "Switched off (device mode register)",
	0x00000008: "Remote input",
	0x00000010: "Protection active",
	0x00000020: "Paygo",
	0x00000040: "BMS",
	0x00000080: "Engine shutdown detection",
	0x00000100: "Analysing input voltage",
}
