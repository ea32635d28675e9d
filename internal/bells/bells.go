// Package bells maintains live mirrors of the bell collections and computes
// the next bell occurrence across them.
package bells

import (
	"fmt"
	"time"
)

// Bell types, matching the "type" field of the last-triggered marker
const (
	TypeNormal  = "normal"
	TypeSpecial = "special"
)

// dateLayout is the wire format of special bell dates
const dateLayout = "2006-01-02"

// dayTokens maps time.Weekday to the weekday tokens stored in a normal
// bell's days set
var dayTokens = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// NormalBell is a recurring weekly bell: time of day plus a set of weekdays.
// A bell with an empty days set is stored but never fires.
type NormalBell struct {
	ID      string   `json:"-"`
	Hour    int      `json:"hour"`
	Minute  int      `json:"minute"`
	Label   string   `json:"label"`
	Enabled bool     `json:"enabled"`
	Days    []string `json:"days"`
}

// SpecialBell rings every day within [StartDate, EndDate] at the given time
// of day. Dates are inclusive "YYYY-MM-DD" strings.
type SpecialBell struct {
	ID        string `json:"-"`
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
	Label     string `json:"label"`
	Enabled   bool   `json:"enabled"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// BellTrigger is the last-triggered marker written by the bell device. It is
// read-only from this client.
type BellTrigger struct {
	BellID      string `json:"bellId"`
	TriggeredAt string `json:"triggeredAt"`
	Type        string `json:"type"`
}

// NextBell is the computed nearest future bell. It is derived state, never
// written back to the store.
type NextBell struct {
	Label string
	Time  string // zero-padded "HH:MM", 24-hour
	Type  string
}

// Validate checks a normal bell's field ranges. The days set may be empty;
// such a bell simply never produces an occurrence.
func (b NormalBell) Validate() error {
	if err := validateClock(b.Hour, b.Minute); err != nil {
		return err
	}
	for _, day := range b.Days {
		if !validDayToken(day) {
			return fmt.Errorf("invalid weekday token %q", day)
		}
	}
	return nil
}

// Validate checks a special bell's field ranges and requires
// startDate <= endDate.
func (b SpecialBell) Validate() error {
	if err := validateClock(b.Hour, b.Minute); err != nil {
		return err
	}
	start, err := time.Parse(dateLayout, b.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", b.StartDate, err)
	}
	end, err := time.Parse(dateLayout, b.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", b.EndDate, err)
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s before start date %s", b.EndDate, b.StartDate)
	}
	return nil
}

func validateClock(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour out of range: %d", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute out of range: %d", minute)
	}
	return nil
}

func validDayToken(day string) bool {
	for _, token := range dayTokens {
		if day == token {
			return true
		}
	}
	return false
}
