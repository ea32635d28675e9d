package solar

import (
	"testing"
	"time"
)

func TestFallbackWithoutLocation(t *testing.T) {
	sunrise, sunset := Times(time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC), 0, 0)
	if sunrise != (TimeHM{6, 0}) {
		t.Errorf("sunrise = %s, want 06:00", sunrise)
	}
	if sunset != (TimeHM{18, 0}) {
		t.Errorf("sunset = %s, want 18:00", sunset)
	}
}

func TestTimeHMString(t *testing.T) {
	if got := (TimeHM{6, 5}).String(); got != "06:05" {
		t.Errorf("String() = %s", got)
	}
	if got := (TimeHM{23, 59}).String(); got != "23:59" {
		t.Errorf("String() = %s", got)
	}
}

// Sanity range check for a mid-latitude summer day. The simplified formula is
// only accurate to a few minutes, so bounds are generous.
func TestTimesMidLatitudeSummer(t *testing.T) {
	date := time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC)
	sunrise, sunset := Times(date, 45.0, 5.0)

	if sunrise.Hour < 2 || sunrise.Hour > 8 {
		t.Errorf("sunrise = %s, expected early morning", sunrise)
	}
	if sunset.Hour < 16 || sunset.Hour > 22 {
		t.Errorf("sunset = %s, expected evening", sunset)
	}
	for _, v := range []TimeHM{sunrise, sunset} {
		if v.Minute < 0 || v.Minute > 59 {
			t.Errorf("minute out of range: %s", v)
		}
	}
}

// Winter days must be shorter than summer days at the same latitude
func TestSeasonalDayLength(t *testing.T) {
	summerRise, summerSet := Times(time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC), 45.0, 5.0)
	winterRise, winterSet := Times(time.Date(2026, time.December, 21, 0, 0, 0, 0, time.UTC), 45.0, 5.0)

	summerLen := (summerSet.Hour*60 + summerSet.Minute) - (summerRise.Hour*60 + summerRise.Minute)
	winterLen := (winterSet.Hour*60 + winterSet.Minute) - (winterRise.Hour*60 + winterRise.Minute)

	if summerLen <= winterLen {
		t.Errorf("summer day (%d min) not longer than winter day (%d min)", summerLen, winterLen)
	}
}

// Extreme latitudes where the sun never rises or sets fall back to fixed
// times instead of producing NaN
func TestPolarFallback(t *testing.T) {
	sunrise, sunset := Times(time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC), 85.0, 0.0)
	if sunrise != (TimeHM{6, 0}) || sunset != (TimeHM{18, 0}) {
		t.Errorf("polar day: sunrise %s sunset %s", sunrise, sunset)
	}
}
