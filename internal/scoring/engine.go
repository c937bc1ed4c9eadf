// Package scoring turns tile aggregates into route scores, heatmaps and
// k-anonymized tile lists. The Engine owns the request flow: quantize,
// query the store once, filter, score, rank.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"safemap/internal/cache"
	"safemap/internal/config"
	"safemap/internal/geo"
	"safemap/internal/metrics"
	"safemap/internal/model"
	"safemap/internal/privacy"
	"safemap/internal/store"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("report store unavailable")
)

// RouteResolver produces route geometries from an external provider chain.
// It reports which tier answered.
type RouteResolver interface {
	Resolve(ctx context.Context, origin, destination model.GeoPoint) ([]model.RouteGeometry, string, error)
}

type Engine struct {
	Safety   config.SafetyConfig
	Index    geo.TileIndex
	Store    store.AggregateStore
	Cache    cache.Cache
	Resolver RouteResolver
	Log      *slog.Logger
	// Now anchors aggregation windows; nil means time.Now.
	Now func() time.Time
}

// NewEngine validates the grid parameters once. cache and resolver may be nil:
// heatmaps are then always recomputed and directions always use the sampler.
func NewEngine(cfg config.SafetyConfig, st store.AggregateStore, c cache.Cache, resolver RouteResolver, log *slog.Logger) (*Engine, error) {
	ix, err := geo.NewTileIndex(cfg.TileSizeMeters)
	if err != nil {
		return nil, err
	}
	if cfg.MaxTiles > 0 {
		ix.MaxTiles = cfg.MaxTiles
	}
	if st == nil {
		return nil, errors.New("scoring: nil store")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Safety: cfg, Index: ix, Store: st, Cache: c, Resolver: resolver, Log: log}, nil
}

func (e *Engine) window(days, fallback int) (store.WindowQuery, error) {
	if days == 0 {
		days = fallback
	}
	if days < 1 {
		return store.WindowQuery{}, fmt.Errorf("%w: days must be >= 1", ErrInvalidInput)
	}
	q := store.WindowQuery{Days: days, Index: e.Index}
	if e.Now != nil {
		q.Now = e.Now()
	}
	return q, nil
}

func validatePoints(points ...model.GeoPoint) error {
	for _, p := range points {
		if err := geo.ValidatePoint(p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

// SafestRoute samples three candidates between two points and ranks them.
func (e *Engine) SafestRoute(ctx context.Context, from, to model.GeoPoint, steps, days int) (model.RouteResult, error) {
	if err := validatePoints(from, to); err != nil {
		return model.RouteResult{}, err
	}
	if steps == 0 {
		steps = e.Safety.DefaultSteps
	}
	q, err := e.window(days, e.Safety.WindowDays)
	if err != nil {
		return model.RouteResult{}, err
	}
	return e.scoreGeometries(ctx, model.SourceSampled, Candidates(from, to, steps, e.Index.SizeMeters()), q)
}

// ScoreGeometry scores a caller supplied path of at least two points.
func (e *Engine) ScoreGeometry(ctx context.Context, points []model.GeoPoint, days int) (model.RouteResult, error) {
	if len(points) < 2 {
		return model.RouteResult{}, fmt.Errorf("%w: geometry needs at least 2 points", ErrInvalidInput)
	}
	if err := validatePoints(points...); err != nil {
		return model.RouteResult{}, err
	}
	q, err := e.window(days, e.Safety.WindowDays)
	if err != nil {
		return model.RouteResult{}, err
	}
	return e.scoreGeometries(ctx, model.SourceGeometry, []model.RouteGeometry{{Name: "geometry", Points: points}}, q)
}

// Directions asks the resolver for provider routes and scores them. When
// every provider fails the sampled candidates are scored instead; that
// path never goes back to the providers.
func (e *Engine) Directions(ctx context.Context, from, to model.GeoPoint, days int) (model.RouteResult, error) {
	if err := validatePoints(from, to); err != nil {
		return model.RouteResult{}, err
	}
	q, err := e.window(days, e.Safety.WindowDays)
	if err != nil {
		return model.RouteResult{}, err
	}
	if e.Resolver != nil {
		routes, source, err := e.Resolver.Resolve(ctx, from, to)
		if err == nil && len(routes) > 0 {
			return e.scoreGeometries(ctx, source, routes, q)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.RouteResult{}, ctxErr
		}
		e.Log.Warn("route providers unavailable, using sampled candidates", "err", err)
	}
	return e.scoreGeometries(ctx, model.SourceSampled, Candidates(from, to, e.Safety.DefaultSteps, e.Index.SizeMeters()), q)
}

// scoreGeometries issues one CountTiles over the union of tiles touched by
// all geometries, then scores and ranks them.
func (e *Engine) scoreGeometries(ctx context.Context, source string, routes []model.RouteGeometry, q store.WindowQuery) (model.RouteResult, error) {
	var all []model.GeoPoint
	for _, r := range routes {
		all = append(all, r.Points...)
	}
	ids := e.Index.UniqueTiles(all)
	counts, err := e.Store.CountTiles(ctx, ids, q)
	if err != nil {
		return model.RouteResult{}, e.storeErr("count tiles", err)
	}
	maxObserved := MaxCount(counts)
	candidates := make([]model.RouteCandidate, 0, len(routes))
	for _, r := range routes {
		res := Score(e.Index, r.Points, counts, e.Safety.KAnon, maxObserved)
		dist := r.DistanceMeters
		if dist <= 0 {
			dist = geo.PathLength(r.Points)
		}
		candidates = append(candidates, model.RouteCandidate{
			Name:           r.Name,
			Points:         r.Points,
			Score:          res.Score,
			TilesEvaluated: res.TilesEvaluated,
			DistanceMeters: privacy.Round4(dist),
			Summary:        r.Summary,
		})
	}
	best := Rank(candidates)
	metrics.RouteSource.WithLabelValues(source).Inc()
	return model.RouteResult{Source: source, Candidates: candidates, Best: best}, nil
}

// Heatmap returns the encoded heatmap for a bbox and whether it came from
// the cache. Cached payloads are returned byte for byte.
func (e *Engine) Heatmap(ctx context.Context, bbox string, days int) ([]byte, bool, error) {
	b, err := geo.ParseBBox(bbox)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	q, err := e.window(days, e.Safety.HeatmapWindowDays)
	if err != nil {
		return nil, false, err
	}
	key := cache.HeatmapKey(bbox, q.Days, e.Index.SizeMeters())
	if e.Cache != nil {
		if v, ok := e.Cache.Get(ctx, key); ok {
			return v, true, nil
		}
	}
	aggs, err := e.aggregate(ctx, b, q)
	if err != nil {
		return nil, false, err
	}
	payload, err := json.Marshal(model.HeatmapResult{
		BBox:       bbox,
		WindowDays: q.Days,
		TileSizeM:  e.Index.SizeMeters(),
		Tiles:      BuildHeatmap(aggs, e.Safety.KAnon),
	})
	if err != nil {
		return nil, false, err
	}
	if e.Cache != nil {
		e.Cache.Set(ctx, key, payload)
	}
	return payload, false, nil
}

// Tiles returns the k-anonymized aggregates inside bbox. Tiles below k are
// present as masked stubs.
func (e *Engine) Tiles(ctx context.Context, bbox string, days int) ([]any, error) {
	b, err := geo.ParseBBox(bbox)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	q, err := e.window(days, e.Safety.WindowDays)
	if err != nil {
		return nil, err
	}
	aggs, err := e.aggregate(ctx, b, q)
	if err != nil {
		return nil, err
	}
	return privacy.Enforce(aggs, e.Safety.KAnon), nil
}

func (e *Engine) aggregate(ctx context.Context, b orb.Bound, q store.WindowQuery) ([]model.TileAggregate, error) {
	if _, err := e.Index.CheckBounds(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	aggs, err := e.Store.AggregateBounds(ctx, b, q)
	if err != nil {
		return nil, e.storeErr("aggregate bounds", err)
	}
	return aggs, nil
}

func (e *Engine) storeErr(op string, err error) error {
	if errors.Is(err, store.ErrInvalidQuery) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	e.Log.Error("aggregate query failed", "op", op, "err", err)
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
