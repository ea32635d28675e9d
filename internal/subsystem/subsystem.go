// Package subsystem mirrors and mutates the state of one controlled
// subsystem (lighting or irrigation): on/off state, operating mode, schedule
// configuration and the device list. Both subsystems share the same store
// layout and the same repository.
package subsystem

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Mode is a subsystem's operating mode
type Mode string

const (
	// ModeSolar derives on/off timing from sunrise/sunset; the switching
	// itself runs on the firmware side.
	ModeSolar Mode = "SUNSET_SUNRISE"
	// ModeManual follows a fixed clock schedule
	ModeManual Mode = "MANUAL"
)

// SolarSubMode refines solar mode relative to sunrise/sunset
type SolarSubMode string

const (
	SunsetToSunrise SolarSubMode = "SUNSET_TO_SUNRISE"
	BeforeSunset    SolarSubMode = "BEFORE_SUNSET"
	AfterSunset     SolarSubMode = "AFTER_SUNSET"
	BeforeSunrise   SolarSubMode = "BEFORE_SUNRISE"
	AfterSunrise    SolarSubMode = "AFTER_SUNRISE"
)

// Device is one controlled output on the subsystem
type Device struct {
	ID       string `json:"-"`
	Name     string `json:"name"`
	Pin      int    `json:"pin"`
	IsActive bool   `json:"isActive"`
}

// ManualSchedule is the fixed on/off window used in manual mode
type ManualSchedule struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// SolarConfig is the sunrise/sunset-relative configuration used in solar
// mode. Delay is in minutes.
type SolarConfig struct {
	SubMode SolarSubMode `json:"subMode"`
	Delay   int          `json:"delay"`
}

// DecodeState normalizes the heterogeneously encoded on/off flag. The field
// is written as a native boolean by this client and as a string or number by
// the firmware side; every producer's encoding must decode to the same
// boolean. Equivalence classes: true, "on", "true", "1" (case-insensitive)
// and the number 1 are on; everything else, including a missing field, is
// off.
func DecodeState(raw json.RawMessage) bool {
	var v interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return false
	}
	switch value := v.(type) {
	case bool:
		return value
	case string:
		s := strings.ToLower(value)
		return s == "on" || s == "true" || s == "1"
	case float64:
		return value == 1
	}
	return false
}

// NormalizeMode maps a raw mode string to a Mode. The firmware writes
// lower-case "manual"; anything else passes through unchanged. Empty input
// yields empty output so callers can keep their current mode.
func NormalizeMode(raw string) Mode {
	if strings.EqualFold(raw, string(ModeManual)) {
		return ModeManual
	}
	return Mode(raw)
}

// decodeDelay tolerates the delay field arriving as a number or a numeric
// string
func decodeDelay(raw json.RawMessage) int {
	var v interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0
	}
	switch value := v.(type) {
	case float64:
		return int(value)
	case string:
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// deviceWire is a device record as stored remotely; fields may be absent
type deviceWire struct {
	Name     *string `json:"name"`
	Pin      *int    `json:"pin"`
	IsActive *bool   `json:"isActive"`
}

func (w deviceWire) toDevice(id string) Device {
	d := Device{ID: id, Name: "Device", IsActive: true}
	if w.Name != nil && *w.Name != "" {
		d.Name = *w.Name
	}
	if w.Pin != nil {
		d.Pin = *w.Pin
	}
	if w.IsActive != nil {
		d.IsActive = *w.IsActive
	}
	return d
}

// solarWire is the solar schedule record as stored remotely
type solarWire struct {
	SubMode string          `json:"subMode"`
	Delay   json.RawMessage `json:"delay"`
}

// subtree is the full subsystem snapshot layout
type subtree struct {
	State     json.RawMessage `json:"state"`
	Mode      string          `json:"mode"`
	Schedules struct {
		Manual *ManualSchedule `json:"manual"`
		Solar  *solarWire      `json:"sunset_to_sunrise"`
	} `json:"schedules"`
	Devices map[string]deviceWire `json:"devices"`
}
