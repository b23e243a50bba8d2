// core/astro/uvw.go
package astro

import (
	"errors"
	"fmt"
	"math"
)

// ErrAstrometry reports a non-finite coordinate result, usually caused by an
// invalid time or antenna position.
var ErrAstrometry = errors.New("astrometry failure")

// BaselineUVW projects the baseline from antenna position p1 to p2 (both
// geocentric metres) onto the frame of the direction (ra, dec) at local
// apparent sidereal angle lst. The result is in metres. An autocorrelation
// (p1 == p2) is always exactly (0, 0, 0).
func BaselineUVW(p1, p2 [3]float64, lst, ra, dec float64) ([3]float64, error) {
	if p1 == p2 {
		return [3]float64{}, nil
	}
	dx := p2[0] - p1[0]
	dy := p2[1] - p1[1]
	dz := p2[2] - p1[2]

	ha := lst - ra
	sinH, cosH := math.Sin(ha), math.Cos(ha)
	sinD, cosD := math.Sin(dec), math.Cos(dec)

	uvw := [3]float64{
		sinH*dx + cosH*dy,
		-sinD*cosH*dx + sinD*sinH*dy + cosD*dz,
		cosD*cosH*dx - cosD*sinH*dy + sinD*dz,
	}
	for _, v := range uvw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return [3]float64{}, fmt.Errorf("%w: non-finite uvw for ha=%v dec=%v", ErrAstrometry, ha, dec)
		}
	}
	return uvw, nil
}

// GeometricDelay converts a projected baseline to the geometric delay in
// seconds along the w axis.
func GeometricDelay(u, v, w float64) float64 {
	return w / SpeedOfLight
}
