// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// KnownField describes a text protocol field label.
type KnownField struct {
	Name        string
	Unit        string
	Description string
}

// knownFields lists the labels defined by the VE.Direct text protocol.
var knownFields = map[string]KnownField{
	"V":        {"V", "mV", "Main or channel 1 battery voltage"},
	"V2":       {"V2", "mV", "Channel 2 battery voltage"},
	"V3":       {"V3", "mV", "Channel 3 battery voltage"},
	"VS":       {"VS", "mV", "Auxiliary starter voltage"},
	"VM":       {"VM", "mV", "Mid-point voltage of the battery bank"},
	"DM":       {"DM", "‰", "Mid-point deviation of the battery bank"},
	"VPV":      {"VPV", "mV", "Panel voltage"},
	"PPV":      {"PPV", "W", "Panel power"},
	"I":        {"I", "mA", "Main or channel 1 battery current"},
	"I2":       {"I2", "mA", "Channel 2 battery current"},
	"I3":       {"I3", "mA", "Channel 3 battery current"},
	"IL":       {"IL", "mA", "Load current"},
	"LOAD":     {"LOAD", "", "Load output state"},
	"T":        {"T", "°C", "Battery temperature"},
	"P":        {"P", "W", "Instantaneous power"},
	"CE":       {"CE", "mAh", "Consumed amp hours"},
	"SOC":      {"SOC", "‰", "State of charge"},
	"TTG":      {"TTG", "min", "Time to go"},
	"Alarm":    {"Alarm", "", "Alarm condition active"},
	"Relay":    {"Relay", "", "Relay state"},
	"AR":       {"AR", "", "Alarm reason"},
	"OR":       {"OR", "", "Off reason"},
	"H1":       {"H1", "mAh", "Depth of the deepest discharge"},
	"H2":       {"H2", "mAh", "Depth of the last discharge"},
	"H3":       {"H3", "mAh", "Depth of the average discharge"},
	"H4":       {"H4", "", "Number of charge cycles"},
	"H5":       {"H5", "", "Number of full discharges"},
	"H6":       {"H6", "mAh", "Cumulative amp hours drawn"},
	"H7":       {"H7", "mV", "Minimum main battery voltage"},
	"H8":       {"H8", "mV", "Maximum main battery voltage"},
	"H9":       {"H9", "s", "Seconds since last full charge"},
	"H10":      {"H10", "", "Number of automatic synchronizations"},
	"H11":      {"H11", "", "Number of low main voltage alarms"},
	"H12":      {"H12", "", "Number of high main voltage alarms"},
	"H13":      {"H13", "", "Number of low auxiliary voltage alarms"},
	"H14":      {"H14", "", "Number of high auxiliary voltage alarms"},
	"H15":      {"H15", "mV", "Minimum auxiliary battery voltage"},
	"H16":      {"H16", "mV", "Maximum auxiliary battery voltage"},
	"H17":      {"H17", "0.01kWh", "Amount of discharged energy"},
	"H18":      {"H18", "0.01kWh", "Amount of charged energy"},
	"H19":      {"H19", "0.01kWh", "Yield total"},
	"H20":      {"H20", "0.01kWh", "Yield today"},
	"H21":      {"H21", "W", "Maximum power today"},
	"H22":      {"H22", "0.01kWh", "Yield yesterday"},
	"H23":      {"H23", "W", "Maximum power yesterday"},
	"ERR":      {"ERR", "", "Error code"},
	"CS":       {"CS", "", "State of operation"},
	"BMV":      {"BMV", "", "Model description"},
	"FW":       {"FW", "", "Firmware version (16 bit)"},
	"FWE":      {"FWE", "", "Firmware version (24 bit)"},
	"PID":      {"PID", "", "Product ID"},
	"SER#":     {"SER#", "", "Serial number"},
	"HSDS":     {"HSDS", "", "Day sequence number"},
	"MODE":     {"MODE", "", "Device mode"},
	"AC_OUT_V": {"AC_OUT_V", "0.01V", "AC output voltage"},
	"AC_OUT_I": {"AC_OUT_I", "0.1A", "AC output current"},
	"AC_OUT_S": {"AC_OUT_S", "VA", "AC output apparent power"},
	"WARN":     {"WARN", "", "Warning reason"},
	"MPPT":     {"MPPT", "", "Tracker operation mode"},
	"MON":      {"MON", "", "DC monitor mode"},
}

// LookupField returns the protocol description of a field label.
func LookupField(name []byte) (KnownField, bool) {
	f, ok := knownFields[string(name)]
	return f, ok
}
