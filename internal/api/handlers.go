package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"safemap/internal/buildinfo"
	"safemap/internal/model"
)

const maxBodyBytes = 1 << 20

// RouteHandler handles GET /v1/safety/route?from=lat,lng&to=lat,lng&steps=N&days=D
func (s *Server) RouteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	from, err := parsePoint(q, "from")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	to, err := parsePoint(q, "to")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	steps, err := parseSteps(q)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	days, err := parseOptionalInt(q, "days")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	res, err := s.Engine.SafestRoute(r.Context(), from, to, steps, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type scoreRequest struct {
	Points []model.GeoPoint `json:"points"`
	Days   int              `json:"days,omitempty"`
}

// ScoreHandler handles POST /v1/safety/score
func (s *Server) ScoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req scoreRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.Days < 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "days must be >= 1", r.URL.Path)
		return
	}
	res, err := s.Engine.ScoreGeometry(r.Context(), req.Points, req.Days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HeatmapHandler handles GET /v1/safety/heatmap?bbox=minLng,minLat,maxLng,maxLat&days=D
func (s *Server) HeatmapHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	bbox, err := requireBBox(q)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	days, err := parseOptionalInt(q, "days")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	payload, cached, err := s.Engine.Heatmap(r.Context(), bbox, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// TilesHandler handles GET /v1/safety/tiles?bbox=...&days=D
func (s *Server) TilesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	bbox, err := requireBBox(q)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	days, err := parseOptionalInt(q, "days")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	tiles, err := s.Engine.Tiles(r.Context(), bbox, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bbox": bbox, "k": s.Engine.Safety.KAnon, "tiles": tiles})
}

// DirectionsHandler handles GET /v1/safety/directions?from=lat,lng&to=lat,lng&days=D
func (s *Server) DirectionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	from, err := parsePoint(q, "from")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	to, err := parsePoint(q, "to")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	days, err := parseOptionalInt(q, "days")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	res, err := s.Engine.Directions(r.Context(), from, to, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.Log.Warn("readiness check failed", "err", err)
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "report store unreachable", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"safety": map[string]any{
			"tileSizeMeters":    s.Engine.Safety.TileSizeMeters,
			"kAnon":             s.Engine.Safety.KAnon,
			"windowDays":        s.Engine.Safety.WindowDays,
			"heatmapWindowDays": s.Engine.Safety.HeatmapWindowDays,
		},
	})
}
