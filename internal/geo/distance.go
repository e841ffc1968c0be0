// Package geo computes distances between coordinates and derived travel estimates.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned for latitudes outside [-90,90] or longitudes outside [-180,180].
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const (
	// EarthRadiusKm is the mean Earth radius used by the Sphere model.
	EarthRadiusKm = 6371.0
	// KmPerMile is the international mile.
	KmPerMile = 1.609344
	// DefaultSpeedKmh is the assumed constant average travel speed.
	DefaultSpeedKmh = 50.0
)

// Point is a (latitude, longitude) pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Validate reports ErrInvalidCoordinate for out-of-range or non-finite values.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, p.Lat, p.Lng)
	}
	return nil
}

// Model selects the earth model distances are measured on.
type Model string

const (
	Sphere Model = "sphere"
	WGS84  Model = "wgs84"
)

// ParseModel maps a config value to a Model. Empty selects WGS84.
func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case "", WGS84:
		return WGS84, nil
	case Sphere:
		return Sphere, nil
	}
	return "", fmt.Errorf("unknown distance model %q", s)
}

// Estimator measures distances and converts them to travel time at a fixed speed.
type Estimator struct {
	Model    Model
	SpeedKmh float64
}

// Default measures on the WGS-84 ellipsoid at DefaultSpeedKmh.
var Default = Estimator{Model: WGS84, SpeedKmh: DefaultSpeedKmh}

// Route is the estimator route plans are built with: legs are great circles on the
// mean-radius sphere.
var Route = Estimator{Model: Sphere, SpeedKmh: DefaultSpeedKmh}

// Measure returns the distance between a and b in kilometers and miles.
func (e Estimator) Measure(a, b Point) (km, miles float64, err error) {
	if err := a.Validate(); err != nil {
		return 0, 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, 0, err
	}
	switch e.Model {
	case WGS84:
		km = ellipsoidKm(a, b)
	default:
		km = haversineKm(a, b)
	}
	return km, km / KmPerMile, nil
}

// TravelMinutes converts a distance to minutes at the estimator's speed.
func (e Estimator) TravelMinutes(km float64) float64 {
	speed := e.SpeedKmh
	if speed <= 0 {
		speed = DefaultSpeedKmh
	}
	return km / speed * 60
}

// Measure uses the Default estimator.
func Measure(a, b Point) (km, miles float64, err error) { return Default.Measure(a, b) }

// EstimatedTravelMinutes is km / 50 * 60.
func EstimatedTravelMinutes(km float64) float64 { return Default.TravelMinutes(km) }

// FormatMinutes renders whole minutes as "{h}h {m}m" from an hour up, else "{m}m".
func FormatMinutes(minutes int) string {
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Round rounds x half away from zero to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func haversineKm(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}
