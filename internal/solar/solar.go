// Package solar computes approximate sunrise and sunset times for a date and
// location, used to display the effective window when a subsystem runs in
// solar mode. The on/off switching itself happens on the firmware side.
package solar

import (
	"fmt"
	"math"
	"time"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi

	// zenith angle for official sunrise/sunset
	zenith = 90.833
)

// TimeHM is a local clock time
type TimeHM struct {
	Hour   int
	Minute int
}

// String formats the time as zero-padded "HH:MM"
func (t TimeHM) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Times returns the sunrise and sunset for the given date and coordinates
// using a simplified solar-position formula. With no configured location
// (both coordinates zero) it falls back to 06:00/18:00, matching the
// firmware.
func Times(date time.Time, latitude, longitude float64) (sunrise, sunset TimeHM) {
	if latitude == 0 && longitude == 0 {
		return TimeHM{6, 0}, TimeHM{18, 0}
	}

	year, month, day := date.Date()
	d := float64(367*year) - float64(7*(year+((int(month)+9)/12)))/4 + float64(275*int(month))/9 + float64(day) - 730530
	lngHour := longitude / 15.0

	sunrise = eventTime(d, lngHour, latitude, true)
	sunset = eventTime(d, lngHour, latitude, false)
	return sunrise, sunset
}

// eventTime computes one solar event. rising selects sunrise; otherwise
// sunset.
func eventTime(d, lngHour, latitude float64, rising bool) TimeHM {
	approx := 18.0
	if rising {
		approx = 6.0
	}

	t := d + ((approx - lngHour) / 24.0)
	m := (0.9856 * t) - 3.289
	l := m + (1.916 * math.Sin(m*degToRad)) + (0.020 * math.Sin(2*m*degToRad)) + 282.634
	l = math.Mod(l, 360.0)
	if l < 0 {
		l += 360.0
	}

	// Right ascension, shifted into the same quadrant as L and converted to
	// hours
	ra := math.Atan(0.91764*math.Tan(l*degToRad)) * radToDeg
	ra += math.Floor(l/90.0)*90.0 - math.Floor(ra/90.0)*90.0
	ra /= 15.0

	sinDec := 0.39782 * math.Sin(l*degToRad)
	cosDec := math.Cos(math.Asin(sinDec))

	cosH := (math.Cos(zenith*degToRad) - sinDec*math.Sin(latitude*degToRad)) /
		(cosDec * math.Cos(latitude*degToRad))
	if cosH > 1 || cosH < -1 {
		// Sun never rises or never sets at this latitude today
		if rising {
			return TimeHM{6, 0}
		}
		return TimeHM{18, 0}
	}

	var h float64
	if rising {
		h = 360 - math.Acos(cosH)*radToDeg
	} else {
		h = math.Acos(cosH) * radToDeg
	}

	clock := h/15.0 + ra - (0.06571 * t) - 6.622
	clock = math.Mod(clock, 24.0)
	if clock < 0 {
		clock += 24.0
	}

	hour := int(clock)
	minute := int((clock - float64(hour)) * 60)
	return TimeHM{Hour: hour % 24, Minute: minute}
}
