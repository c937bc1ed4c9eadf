package scoring

import (
	"safemap/internal/geo"
	"safemap/internal/model"
)

// Step bounds for SampleLine.
const (
	MinSteps = 5
	MaxSteps = 200
)

// OffsetTiles is how many tile widths the lateral candidates are shifted by.
const OffsetTiles = 3

// Candidate names produced by the sampler.
const (
	CandidateCenter = "center"
	CandidateNorth  = "north_offset"
	CandidateSouth  = "south_offset"
)

// ClampSteps forces steps into [MinSteps, MaxSteps].
func ClampSteps(steps int) int {
	if steps < MinSteps {
		return MinSteps
	}
	if steps > MaxSteps {
		return MaxSteps
	}
	return steps
}

// SampleLine interpolates linearly in lat/lng space and returns steps+1
// points including both endpoints.
func SampleLine(p1, p2 model.GeoPoint, steps int) []model.GeoPoint {
	steps = ClampSteps(steps)
	out := make([]model.GeoPoint, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		out[i] = model.GeoPoint{
			Lat: p1.Lat + (p2.Lat-p1.Lat)*t,
			Lng: p1.Lng + (p2.Lng-p1.Lng)*t,
		}
	}
	out[0], out[steps] = p1, p2
	return out
}

// Candidates returns the center line plus a copy shifted north and one
// shifted south by OffsetTiles tile widths.
func Candidates(p1, p2 model.GeoPoint, steps int, tileSizeMeters float64) []model.RouteGeometry {
	center := SampleLine(p1, p2, steps)
	off := geo.MetersToDegrees(OffsetTiles * tileSizeMeters)
	return []model.RouteGeometry{
		{Name: CandidateCenter, Points: center},
		{Name: CandidateNorth, Points: shiftLat(center, off)},
		{Name: CandidateSouth, Points: shiftLat(center, -off)},
	}
}

func shiftLat(points []model.GeoPoint, dLat float64) []model.GeoPoint {
	out := make([]model.GeoPoint, len(points))
	for i, p := range points {
		out[i] = model.GeoPoint{Lat: p.Lat + dLat, Lng: p.Lng}
	}
	return out
}
