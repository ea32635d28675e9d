package bells

import (
	"testing"
	"time"
)

// Wednesday 2026-01-07 10:00 local
func testNow() time.Time {
	return time.Date(2026, time.January, 7, 10, 0, 0, 0, time.UTC)
}

func TestNextOccurrenceSameDay(t *testing.T) {
	normal := []NormalBell{
		{ID: "a", Hour: 10, Minute: 30, Label: "recess", Enabled: true, Days: []string{"Wed"}},
	}

	next, ok := NextOccurrence(testNow(), normal, nil)
	if !ok {
		t.Fatal("expected a next bell")
	}
	if next.Label != "recess" || next.Time != "10:30" || next.Type != TypeNormal {
		t.Errorf("next = %+v", next)
	}
}

// A bell whose time has already passed today defers to its next scheduled
// day rather than re-firing today.
func TestNextOccurrencePassedTodayDefers(t *testing.T) {
	normal := []NormalBell{
		{ID: "a", Hour: 9, Minute: 0, Label: "morning", Enabled: true, Days: []string{"Wed", "Fri"}},
	}

	next, ok := NextOccurrence(testNow(), normal, nil)
	if !ok {
		t.Fatal("expected a next bell")
	}
	// Friday 09:00, not today
	if next.Time != "09:00" {
		t.Errorf("next.Time = %s", next.Time)
	}
}

// A bell at exactly the current minute counts as passed
func TestNextOccurrenceCurrentMinuteCountsAsPassed(t *testing.T) {
	normal := []NormalBell{
		{ID: "a", Hour: 10, Minute: 0, Label: "now", Enabled: true, Days: []string{"Wed"}},
	}

	next, ok := NextOccurrence(testNow(), normal, nil)
	if !ok {
		t.Fatal("expected a next bell")
	}
	// Deferred a full week, still 10:00
	if next.Time != "10:00" {
		t.Errorf("next.Time = %s", next.Time)
	}
}

func TestNextOccurrenceSkipsDisabledAndEmptyDays(t *testing.T) {
	normal := []NormalBell{
		{ID: "a", Hour: 11, Minute: 0, Label: "disabled", Enabled: false, Days: []string{"Wed"}},
		{ID: "b", Hour: 11, Minute: 0, Label: "no days", Enabled: true, Days: nil},
	}

	if _, ok := NextOccurrence(testNow(), normal, nil); ok {
		t.Error("expected no next bell")
	}
}

func TestNextOccurrenceSpecialFutureRange(t *testing.T) {
	special := []SpecialBell{
		{ID: "s", Hour: 8, Minute: 15, Label: "event", Enabled: true, StartDate: "2026-01-10", EndDate: "2026-01-12"},
	}

	next, ok := NextOccurrence(testNow(), nil, special)
	if !ok {
		t.Fatal("expected a next bell")
	}
	if next.Label != "event" || next.Time != "08:15" || next.Type != TypeSpecial {
		t.Errorf("next = %+v", next)
	}
}

// An active range whose time already passed today rolls to tomorrow
func TestNextOccurrenceSpecialActiveRange(t *testing.T) {
	special := []SpecialBell{
		{ID: "s", Hour: 9, Minute: 0, Label: "event", Enabled: true, StartDate: "2026-01-01", EndDate: "2026-01-31"},
	}

	next, ok := NextOccurrence(testNow(), nil, special)
	if !ok {
		t.Fatal("expected a next bell")
	}
	if next.Time != "09:00" {
		t.Errorf("next.Time = %s", next.Time)
	}
}

func TestNextOccurrenceSpecialExpiredRange(t *testing.T) {
	special := []SpecialBell{
		{ID: "s", Hour: 9, Minute: 0, Label: "over", Enabled: true, StartDate: "2026-01-01", EndDate: "2026-01-05"},
	}

	if _, ok := NextOccurrence(testNow(), nil, special); ok {
		t.Error("expected no next bell for an expired range")
	}
}

// The last day of the range still fires if its time is still ahead
func TestNextOccurrenceSpecialEndDateInclusive(t *testing.T) {
	special := []SpecialBell{
		{ID: "s", Hour: 15, Minute: 0, Label: "last day", Enabled: true, StartDate: "2026-01-01", EndDate: "2026-01-07"},
	}

	next, ok := NextOccurrence(testNow(), nil, special)
	if !ok {
		t.Fatal("expected a next bell on the end date")
	}
	if next.Time != "15:00" {
		t.Errorf("next.Time = %s", next.Time)
	}
}

func TestNextOccurrenceEarliestAcrossCollections(t *testing.T) {
	normal := []NormalBell{
		{ID: "a", Hour: 14, Minute: 0, Label: "afternoon", Enabled: true, Days: []string{"Wed"}},
	}
	special := []SpecialBell{
		{ID: "s", Hour: 11, Minute: 30, Label: "assembly", Enabled: true, StartDate: "2026-01-07", EndDate: "2026-01-07"},
	}

	next, ok := NextOccurrence(testNow(), normal, special)
	if !ok {
		t.Fatal("expected a next bell")
	}
	if next.Label != "assembly" || next.Time != "11:30" {
		t.Errorf("next = %+v", next)
	}
}

// Candidates sharing the exact instant resolve to the normal bell, which is
// considered first
func TestNextOccurrenceTieBreak(t *testing.T) {
	normal := []NormalBell{
		{ID: "a", Hour: 12, Minute: 0, Label: "normal noon", Enabled: true, Days: []string{"Wed"}},
	}
	special := []SpecialBell{
		{ID: "s", Hour: 12, Minute: 0, Label: "special noon", Enabled: true, StartDate: "2026-01-07", EndDate: "2026-01-07"},
	}

	next, ok := NextOccurrence(testNow(), normal, special)
	if !ok {
		t.Fatal("expected a next bell")
	}
	if next.Label != "normal noon" || next.Type != TypeNormal {
		t.Errorf("next = %+v", next)
	}
}

func TestNextOccurrenceNoBells(t *testing.T) {
	if _, ok := NextOccurrence(testNow(), nil, nil); ok {
		t.Error("expected no next bell with empty collections")
	}
}

func TestNextOccurrenceZeroPadding(t *testing.T) {
	normal := []NormalBell{
		{ID: "a", Hour: 7, Minute: 5, Label: "early", Enabled: true, Days: []string{"Thu"}},
	}

	next, ok := NextOccurrence(testNow(), normal, nil)
	if !ok {
		t.Fatal("expected a next bell")
	}
	if next.Time != "07:05" {
		t.Errorf("next.Time = %s, want 07:05", next.Time)
	}
}
