package scoring

import (
	"safemap/internal/geo"
	"safemap/internal/model"
	"safemap/internal/privacy"
)

// BuildHeatmap weights each tile's incident and positive counts against the
// maxima of the same box. Tiles below k are left out entirely rather than
// masked. Input order is kept.
func BuildHeatmap(aggs []model.TileAggregate, k int) []model.HeatmapTile {
	maxIncident, maxPositive := 1, 1
	for _, a := range aggs {
		if !privacy.Visible(a.Count, k) {
			continue
		}
		maxIncident = max(maxIncident, a.IncidentCount)
		maxPositive = max(maxPositive, a.PositiveCount)
	}
	out := make([]model.HeatmapTile, 0, len(aggs))
	for _, a := range aggs {
		if !privacy.Visible(a.Count, k) {
			continue
		}
		c, err := geo.Centroid(geo.TileID(a.TileID))
		if err != nil {
			continue
		}
		out = append(out, model.HeatmapTile{
			TileID:       a.TileID,
			Centroid:     c,
			Count:        a.Count,
			DangerWeight: privacy.Round4(clamp01(float64(a.IncidentCount) / float64(maxIncident))),
			SafeWeight:   privacy.Round4(clamp01(float64(a.PositiveCount) / float64(maxPositive))),
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
