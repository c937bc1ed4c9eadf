package directions

import (
	"context"

	"safemap/internal/model"
	"safemap/internal/scoring"
)

// Sampled is the last tier: straight-line candidates that need no network.
// It never fails.
type Sampled struct {
	Steps          int
	TileSizeMeters float64
}

func (s Sampled) Name() string { return model.SourceSampled }

func (s Sampled) Attempt(_ context.Context, origin, destination model.GeoPoint) ([]model.RouteGeometry, error) {
	return scoring.Candidates(origin, destination, s.Steps, s.TileSizeMeters), nil
}
