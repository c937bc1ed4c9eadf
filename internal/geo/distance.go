package geo

import (
	"github.com/golang/geo/s2"

	"safemap/internal/model"
)

const EarthRadiusMeters = 6371000.0

// Distance is the great-circle distance between two points in meters.
func Distance(a, b model.GeoPoint) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// PathLength sums the great-circle length of consecutive segments.
func PathLength(points []model.GeoPoint) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}
