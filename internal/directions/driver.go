// Package directions resolves candidate route geometries between two points,
// falling back from an external routing provider to a legacy provider to
// internally sampled lines.
package directions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"safemap/internal/geo"
	"safemap/internal/metrics"
	"safemap/internal/model"
)

var (
	ErrProviderDisabled   = errors.New("provider disabled")
	ErrNoRoutes           = errors.New("provider returned no routes")
	ErrAllProvidersFailed = errors.New("all route strategies failed")
)

// Strategy is one tier of the fallback chain.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, origin, destination model.GeoPoint) ([]model.RouteGeometry, error)
}

// Driver tries strategies in order and returns the first success. Each
// attempt gets its own timeout so a hanging provider cannot hold up the
// next tier.
type Driver struct {
	Strategies     []Strategy
	AttemptTimeout time.Duration
	Log            *slog.Logger
}

func NewDriver(attemptTimeout time.Duration, log *slog.Logger, strategies ...Strategy) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{Strategies: strategies, AttemptTimeout: attemptTimeout, Log: log}
}

// Resolve returns the geometries of the first strategy that succeeds and
// that strategy's name.
func (d *Driver) Resolve(ctx context.Context, origin, destination model.GeoPoint) ([]model.RouteGeometry, string, error) {
	var errs []error
	for _, s := range d.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		routes, err := d.attempt(ctx, s, origin, destination)
		if err == nil {
			return routes, s.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if !errors.Is(err, ErrProviderDisabled) {
			d.Log.Warn("route strategy failed, falling back", "strategy", s.Name(), "err", err)
		}
	}
	return nil, "", errors.Join(append([]error{ErrAllProvidersFailed}, errs...)...)
}

func (d *Driver) attempt(ctx context.Context, s Strategy, origin, destination model.GeoPoint) ([]model.RouteGeometry, error) {
	if d.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.AttemptTimeout)
		defer cancel()
	}
	start := time.Now()
	routes, err := s.Attempt(ctx, origin, destination)
	if err == nil && len(routes) == 0 {
		err = ErrNoRoutes
	}
	outcome := "ok"
	switch {
	case errors.Is(err, ErrProviderDisabled):
		outcome = "disabled"
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.ProviderAttempts.WithLabelValues(s.Name(), outcome).Inc()
	if outcome != "disabled" {
		metrics.ProviderLatency.WithLabelValues(s.Name()).Observe(float64(time.Since(start).Milliseconds()))
	}
	return routes, err
}

// decodeRoute turns one provider route into a geometry. Routes with points
// outside WGS84 ranges are rejected along with the whole response.
func decodeRoute(i int, summary, encoded string, distanceMeters float64) (model.RouteGeometry, error) {
	pts, err := DecodePolyline(encoded)
	if err != nil {
		return model.RouteGeometry{}, fmt.Errorf("route %d: %w", i, err)
	}
	for _, p := range pts {
		if err := geo.ValidatePoint(p); err != nil {
			return model.RouteGeometry{}, fmt.Errorf("route %d: %w", i, err)
		}
	}
	return model.RouteGeometry{
		Name:           fmt.Sprintf("route_%d", i),
		Summary:        summary,
		Points:         pts,
		DistanceMeters: distanceMeters,
	}, nil
}
