// core/astro/sidereal.go
package astro

import (
	"math"

	"github.com/soniakeys/meeus/v3/sidereal"
)

// GMSTDeg returns Greenwich mean sidereal time at jd, in degrees [0,360).
func GMSTDeg(jd float64) float64 {
	gst := sidereal.Mean(jd).Sec()
	return math.Mod(gst/secPerDay*360+360, 360)
}

// LocalApparentSidereal returns the local apparent sidereal angle in radians
// [0,2π) at jd for an east-positive longitude. Precession and nutation come
// from the underlying astronomy library; nothing is re-derived here.
func LocalApparentSidereal(jd, lonRad float64) float64 {
	gast := sidereal.Apparent(jd).Sec()
	lst := math.Mod(gast/secPerDay*2*math.Pi+lonRad, 2*math.Pi)
	if lst < 0 {
		lst += 2 * math.Pi
	}
	return lst
}
