package geospatial

import (
	"github.com/golang/geo/s2"
)

const (
	earthRadiusMeters = 6371000.0

	// MetersPerDegree is the fixed conversion between degrees of latitude
	// and linear distance used for feature radii.
	MetersPerDegree = 111000.0
)

// Distance returns the great-circle distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

// DegreesToMeters converts an angular distance in degrees of latitude to
// linear meters.
func DegreesToMeters(deg float64) float64 {
	return deg * MetersPerDegree
}
