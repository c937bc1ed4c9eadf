package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"safemap/internal/geo"
	"safemap/internal/model"
)

// Memory is a simple in-memory report store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.RWMutex
	reports []model.Report
}

func NewMemory() *Memory {
	return &Memory{}
}

// AddReport appends a report, filling id and creation time when empty.
func (m *Memory) AddReport(r model.Report) model.Report {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.reports = append(m.reports, r)
	m.mu.Unlock()
	return r
}

func (m *Memory) InsertReports(ctx context.Context, reports []model.Report) (int, error) {
	for _, r := range reports {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m.AddReport(r)
	}
	return len(reports), nil
}

func (m *Memory) CountTiles(ctx context.Context, ids []geo.TileID, q WindowQuery) (map[geo.TileID]model.TileAggregate, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[geo.TileID]model.TileAggregate{}, nil
	}
	t := NewTally(q.Index, q.Since(), ids)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reports {
		t.Add(r)
	}
	return t.Map(), ctx.Err()
}

func (m *Memory) AggregateBounds(ctx context.Context, b orb.Bound, q WindowQuery) ([]model.TileAggregate, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	t := NewTally(q.Index, q.Since(), nil)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reports {
		if geo.Contains(b, r.Lat, r.Lng) {
			t.Add(r)
		}
	}
	return t.Sorted(), ctx.Err()
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }
