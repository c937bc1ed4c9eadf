package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safemap/internal/config"
	"safemap/internal/metrics"
	"safemap/internal/scoring"
	"safemap/internal/store"
)

// Server exposes the safety engine over HTTP.
type Server struct {
	Engine *scoring.Engine
	Store  store.AggregateStore
	Log    *slog.Logger
	// StreamInterval is how often a websocket heatmap subscription is refreshed.
	StreamInterval time.Duration

	limiter *clientLimiter
}

func NewServer(engine *scoring.Engine, st store.AggregateStore, cfg config.ServerConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Engine:         engine,
		Store:          st,
		Log:            log,
		StreamInterval: 30 * time.Second,
		limiter:        newClientLimiter(cfg.RateRPS, cfg.RateBurst),
	}
}

// Routes registers every endpoint on a fresh mux and wraps it in the
// request id, logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	// Safety queries
	mux.HandleFunc("/v1/safety/route", s.RouteHandler)
	mux.HandleFunc("/v1/safety/score", s.ScoreHandler)
	mux.Handle("/v1/safety/heatmap", s.limit(http.HandlerFunc(s.HeatmapHandler)))
	mux.HandleFunc("/v1/safety/tiles", s.TilesHandler)
	mux.Handle("/v1/safety/directions", s.limit(http.HandlerFunc(s.DirectionsHandler)))
	mux.HandleFunc("/v1/safety/heatmap/ws", s.HeatmapWSHandler)

	// Health and ops
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/version", s.VersionHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.requestID(s.logMiddleware(mux))
}

// Janitor prunes idle rate limiter entries until ctx is done.
func (s *Server) Janitor(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.limiter.prune(10 * time.Minute)
		}
	}
}
