package store

import (
	"sort"
	"time"

	"safemap/internal/geo"
	"safemap/internal/model"
)

// Tally groups individual reports into tile aggregates. The memory and
// SQLite stores aggregate in Go through it; Postgres groups in SQL.
type Tally struct {
	index geo.TileIndex
	since time.Time
	want  map[geo.TileID]struct{}
	tiles map[geo.TileID]*model.TileAggregate
}

// NewTally accepts reports created at or after since. A non-nil want
// restricts the tally to those tiles.
func NewTally(index geo.TileIndex, since time.Time, want []geo.TileID) *Tally {
	t := &Tally{index: index, since: since, tiles: map[geo.TileID]*model.TileAggregate{}}
	if want != nil {
		t.want = make(map[geo.TileID]struct{}, len(want))
		for _, id := range want {
			t.want[id] = struct{}{}
		}
	}
	return t
}

// Add counts r if it is submitted, inside the window and wanted.
func (t *Tally) Add(r model.Report) {
	if r.Status != model.StatusSubmitted || r.CreatedAt.Before(t.since) {
		return
	}
	id := t.index.ToTile(r.Lat, r.Lng)
	if t.want != nil {
		if _, ok := t.want[id]; !ok {
			return
		}
	}
	a := t.tiles[id]
	if a == nil {
		a = &model.TileAggregate{TileID: string(id)}
		t.tiles[id] = a
	}
	a.Count++
	if model.IsIncident(r.Category) {
		a.IncidentCount++
	}
	if model.IsPositive(r.Category) {
		a.PositiveCount++
	}
	if r.PoorLight {
		a.LightingIssues++
	}
	if a.Latest == nil || r.CreatedAt.After(*a.Latest) {
		ts := r.CreatedAt
		a.Latest = &ts
	}
}

func (t *Tally) Map() map[geo.TileID]model.TileAggregate {
	out := make(map[geo.TileID]model.TileAggregate, len(t.tiles))
	for id, a := range t.tiles {
		out[id] = *a
	}
	return out
}

// Sorted returns the aggregates ordered by tile id.
func (t *Tally) Sorted() []model.TileAggregate {
	out := make([]model.TileAggregate, 0, len(t.tiles))
	for _, a := range t.tiles {
		out = append(out, *a)
	}
	SortByTile(out)
	return out
}

func SortByTile(aggs []model.TileAggregate) {
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].TileID < aggs[j].TileID })
}
