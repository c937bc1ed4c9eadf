package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"safemap/internal/config"
	"safemap/internal/geo"
	"safemap/internal/metrics"
	"safemap/internal/model"
)

// ReportWriter is implemented by stores that can bulk-load reports.
type ReportWriter interface {
	InsertReports(ctx context.Context, reports []model.Report) (int, error)
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// Open selects the store from the DSN scheme: postgres:// or postgresql://
// for Postgres, sqlite:// for a SQLite file, empty for the in-memory store.
func Open(ctx context.Context, cfg config.StoreConfig) (AggregateStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	var s AggregateStore
	switch {
	case dsn == "":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pg, err := NewPostgres(dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s = pg
	case strings.HasPrefix(dsn, "sqlite://"):
		sl, err := NewSQLite(strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		s = sl
	default:
		return nil, fmt.Errorf("unsupported store dsn scheme: %q", dsn)
	}
	if m, ok := s.(migrator); ok && cfg.Migrate {
		if err := m.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Timed bounds every query with a timeout and records latency and outcome.
// It does not retry.
type Timed struct {
	AggregateStore
	Timeout time.Duration
}

func NewTimed(s AggregateStore, timeout time.Duration) *Timed {
	return &Timed{AggregateStore: s, Timeout: timeout}
}

func (t *Timed) CountTiles(ctx context.Context, ids []geo.TileID, q WindowQuery) (map[geo.TileID]model.TileAggregate, error) {
	ctx, done := t.begin(ctx, "count_tiles")
	out, err := t.AggregateStore.CountTiles(ctx, ids, q)
	done(err)
	return out, err
}

func (t *Timed) AggregateBounds(ctx context.Context, b orb.Bound, q WindowQuery) ([]model.TileAggregate, error) {
	ctx, done := t.begin(ctx, "aggregate_bounds")
	out, err := t.AggregateStore.AggregateBounds(ctx, b, q)
	done(err)
	return out, err
}

func (t *Timed) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	var cancel context.CancelFunc = func() {}
	if t.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
	}
	return ctx, func(err error) {
		cancel()
		metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		outcome := "ok"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case err != nil:
			outcome = "error"
		}
		metrics.StoreQueries.WithLabelValues(op, outcome).Inc()
	}
}

// StoreConfigFor is a convenience for callers that only have a DSN.
func StoreConfigFor(dsn string) config.StoreConfig {
	return config.StoreConfig{DSN: dsn, QueryTimeout: 5 * time.Second, Migrate: true}
}
