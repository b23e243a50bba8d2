// core/astro/geo.go
package astro

import "math"

// WGS84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
)

// GeodeticToXYZ converts geodetic latitude, east longitude (radians) and
// height above the ellipsoid (metres) to geocentric XYZ metres.
func GeodeticToXYZ(lat, lon, height float64) [3]float64 {
	e2 := wgs84F * (2 - wgs84F)
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := wgs84A / math.Sqrt(1-e2*sinLat*sinLat)
	return [3]float64{
		(n + height) * cosLat * math.Cos(lon),
		(n + height) * cosLat * math.Sin(lon),
		(n*(1-e2) + height) * sinLat,
	}
}

// XYZToGeodetic converts geocentric XYZ metres to geodetic latitude, east
// longitude (radians) and height above the WGS84 ellipsoid (metres).
func XYZToGeodetic(xyz [3]float64) (lat, lon, height float64) {
	e2 := wgs84F * (2 - wgs84F)
	lon = math.Atan2(xyz[1], xyz[0])
	p := math.Hypot(xyz[0], xyz[1])
	lat = math.Atan2(xyz[2], p*(1-e2))
	// A handful of fixed-point iterations converges to well below a
	// millimetre for terrestrial positions.
	for i := 0; i < 6; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-e2*sinLat*sinLat)
		height = p/math.Cos(lat) - n
		lat = math.Atan2(xyz[2], p*(1-e2*n/(n+height)))
	}
	return lat, lon, height
}
