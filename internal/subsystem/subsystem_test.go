package subsystem

import (
	"encoding/json"
	"testing"
)

// Every producer's encoding of the on/off flag must normalize to the same
// boolean
func TestDecodeState(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"on"`, true},
		{`"ON"`, true},
		{`"off"`, false},
		{`"true"`, true},
		{`"TRUE"`, true},
		{`"1"`, true},
		{`"0"`, false},
		{`1`, true},
		{`0`, false},
		{`2`, false},
		{`""`, false},
		{`null`, false},
		{``, false},
		{`{"nested":true}`, false},
	}

	for _, c := range cases {
		if got := DecodeState(json.RawMessage(c.raw)); got != c.want {
			t.Errorf("DecodeState(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestNormalizeMode(t *testing.T) {
	cases := []struct {
		raw  string
		want Mode
	}{
		{"MANUAL", ModeManual},
		{"manual", ModeManual},
		{"Manual", ModeManual},
		{"SUNSET_SUNRISE", ModeSolar},
		{"", Mode("")},
		{"OTHER", Mode("OTHER")},
	}

	for _, c := range cases {
		if got := NormalizeMode(c.raw); got != c.want {
			t.Errorf("NormalizeMode(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestDecodeDelay(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{`15`, 15},
		{`"30"`, 30},
		{`0`, 0},
		{`"abc"`, 0},
		{`null`, 0},
		{``, 0},
	}

	for _, c := range cases {
		if got := decodeDelay(json.RawMessage(c.raw)); got != c.want {
			t.Errorf("decodeDelay(%q) = %d, want %d", c.raw, got, c.want)
		}
	}
}

// Partial device records fill in defaults rather than zero values
func TestDeviceWireDefaults(t *testing.T) {
	var w deviceWire
	d := w.toDevice("device_1")
	if d.ID != "device_1" || d.Name != "Device" || d.Pin != 0 || !d.IsActive {
		t.Errorf("defaults = %+v", d)
	}

	name := "Pump"
	pin := 4
	active := false
	w = deviceWire{Name: &name, Pin: &pin, IsActive: &active}
	d = w.toDevice("device_2")
	if d.Name != "Pump" || d.Pin != 4 || d.IsActive {
		t.Errorf("populated = %+v", d)
	}

	empty := ""
	w = deviceWire{Name: &empty}
	if d := w.toDevice("device_3"); d.Name != "Device" {
		t.Errorf("empty name should default, got %q", d.Name)
	}
}
