package store

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"

	"safemap/internal/geo"
	"safemap/internal/model"
)

// AggregateStore is the read-only query surface over the report store.
// Every method is an idempotent projection: only submitted reports created
// inside the trailing window contribute, and nothing is written.
type AggregateStore interface {
	// CountTiles returns aggregates for the requested tiles in one round-trip.
	// Tiles without reports are absent from the map.
	CountTiles(ctx context.Context, ids []geo.TileID, q WindowQuery) (map[geo.TileID]model.TileAggregate, error)
	// AggregateBounds returns per-tile aggregates for reports inside b,
	// ordered by tile id.
	AggregateBounds(ctx context.Context, b orb.Bound, q WindowQuery) ([]model.TileAggregate, error)
	Ping(ctx context.Context) error
	Close() error
}

// WindowQuery describes the trailing time window and the grid to group by.
type WindowQuery struct {
	Days  int
	Index geo.TileIndex
	// Now anchors the window; zero means time.Now().
	Now time.Time
}

// Since returns the inclusive lower bound of the window.
func (q WindowQuery) Since() time.Time {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.Add(-time.Duration(q.Days) * 24 * time.Hour)
}

var ErrInvalidQuery = errors.New("invalid aggregate query")

func (q WindowQuery) validate() error {
	if q.Days < 1 {
		return errors.Join(ErrInvalidQuery, errors.New("window days must be >= 1"))
	}
	if q.Index.Delta() <= 0 {
		return errors.Join(ErrInvalidQuery, geo.ErrInvalidTileSize)
	}
	return nil
}
