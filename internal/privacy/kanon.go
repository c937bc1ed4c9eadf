// Package privacy enforces the k-anonymity boundary on tile aggregates.
package privacy

import (
	"math"

	"safemap/internal/geo"
	"safemap/internal/model"
)

// DefaultK is the default anonymity threshold.
const DefaultK = 3

// Visible reports whether a tile with count reports may be revealed.
// Every output path, including derived scores, goes through this check.
func Visible(count, k int) bool {
	if k < 1 {
		k = 1
	}
	return count >= k
}

// Enforce replaces every tile below k with a masked stub. Visible tiles
// keep their counts, get their origin corner as centroid and a weight
// relative to the largest visible count. Order is preserved.
func Enforce(tiles []model.TileAggregate, k int) []any {
	maxCount := 1
	for _, t := range tiles {
		if Visible(t.Count, k) && t.Count > maxCount {
			maxCount = t.Count
		}
	}
	out := make([]any, 0, len(tiles))
	for _, t := range tiles {
		if !Visible(t.Count, k) {
			out = append(out, model.MaskedTile{TileID: t.TileID, Masked: true})
			continue
		}
		c, err := geo.Centroid(geo.TileID(t.TileID))
		if err != nil {
			// an id we cannot place is never revealed
			out = append(out, model.MaskedTile{TileID: t.TileID, Masked: true})
			continue
		}
		out = append(out, model.PublicTile{
			TileID:        t.TileID,
			Centroid:      c,
			Count:         t.Count,
			IncidentCount: t.IncidentCount,
			PositiveCount: t.PositiveCount,
			Weight:        Round4(float64(t.Count) / float64(maxCount)),
		})
	}
	return out
}

// Round4 rounds to 4 decimal places.
func Round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
