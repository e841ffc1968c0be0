package geo

import "github.com/tidwall/geodesic"

// ellipsoidKm solves the inverse geodesic problem on the WGS-84 ellipsoid.
func ellipsoidKm(a, b Point) float64 {
	var m float64
	geodesic.WGS84.Inverse(a.Lat, a.Lng, b.Lat, b.Lng, &m, nil, nil)
	return m / 1000
}
