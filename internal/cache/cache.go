// Package cache memoizes encoded heatmap payloads for a short TTL.
package cache

import (
	"context"
	"strconv"
)

// Cache stores encoded payloads. Implementations expire entries after
// their TTL and treat any backend failure as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// HeatmapKey builds the cache key from the exact serialized query parameters.
func HeatmapKey(bbox string, days int, tileSizeMeters float64) string {
	return "heatmap:" + bbox + ":" + strconv.Itoa(days) + ":" + strconv.FormatFloat(tileSizeMeters, 'f', -1, 64)
}
