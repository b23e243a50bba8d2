// core/astro/time.go
package astro

import (
	"fmt"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const (
	// SpeedOfLight in m/s.
	SpeedOfLight = 299792458.0

	secPerDay = 86400.0
	// Julian date of the MJD epoch, 1858-11-17T00:00:00.
	jdMJDEpoch = 2400000.5
	// Unix seconds at the MJD epoch.
	unixMJDEpoch = -3506716800
)

// JDUTC converts a casacore time (UTC seconds since the MJD epoch) to a UTC
// Julian date. Casacore hands out UTC seconds without leap-second counting,
// so the mapping is a plain scale-and-offset.
func JDUTC(casaSec float64) float64 {
	return casaSec/secPerDay + jdMJDEpoch
}

// MJDUTC converts a casacore time to a modified Julian date.
func MJDUTC(casaSec float64) float64 {
	return casaSec / secPerDay
}

// Epoch converts a casacore time to a time.Time in UTC.
func Epoch(casaSec float64) time.Time {
	sec := int64(casaSec)
	ns := int64((casaSec - float64(sec)) * 1e9)
	return time.Unix(sec+unixMJDEpoch, ns).UTC()
}

// TruncatedDate formats the calendar date of jd with the time of day zeroed,
// the form the output header's date keywords take.
func TruncatedDate(jd float64) string {
	y, m, d := julian.JDToCalendar(jd)
	return fmt.Sprintf("%04d-%02d-%02dT00:00:00.0", y, m, int(d))
}
