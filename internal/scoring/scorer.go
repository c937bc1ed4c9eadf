package scoring

import (
	"slices"
	"sort"

	"safemap/internal/geo"
	"safemap/internal/model"
	"safemap/internal/privacy"
)

// MaxTileWeight caps any single tile's contribution to a route score.
const MaxTileWeight = 0.7

// Result is the outcome of scoring one geometry.
type Result struct {
	Score          float64
	TilesEvaluated int
}

// Score averages the normalized weight of every distinct tile the points
// touch. Tiles with no reports are neutral and tiles below k are skipped,
// so neither moves the average. Lower is safer.
func Score(ix geo.TileIndex, points []model.GeoPoint, counts map[geo.TileID]model.TileAggregate, k, maxObserved int) Result {
	if maxObserved < 1 {
		maxObserved = 1
	}
	var sum float64
	known := 0
	ids := ix.UniqueTiles(points)
	// fixed summation order keeps the result independent of point order
	slices.Sort(ids)
	for _, id := range ids {
		c := counts[id].Count
		if c == 0 || !privacy.Visible(c, k) {
			continue
		}
		sum += min(MaxTileWeight, float64(c)/float64(maxObserved)*MaxTileWeight)
		known++
	}
	if known == 0 {
		return Result{}
	}
	return Result{Score: privacy.Round4(sum / float64(known)), TilesEvaluated: known}
}

// MaxCount returns the largest count in the set, never less than 1.
func MaxCount(counts map[geo.TileID]model.TileAggregate) int {
	m := 1
	for _, a := range counts {
		if a.Count > m {
			m = a.Count
		}
	}
	return m
}

// Rank sorts candidates ascending by score, keeping the original order on
// ties, and returns a pointer to the first one or nil when empty.
func Rank(candidates []model.RouteCandidate) *model.RouteCandidate {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score < candidates[j].Score })
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	return &best
}
