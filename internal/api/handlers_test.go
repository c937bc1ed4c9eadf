package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"

	"safemap/internal/cache"
	"safemap/internal/config"
	"safemap/internal/model"
	"safemap/internal/scoring"
	"safemap/internal/store"
)

var now = time.Now().UTC()

type failingStore struct {
	*store.Memory
}

func (failingStore) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func (failingStore) AggregateBounds(context.Context, orb.Bound, store.WindowQuery) ([]model.TileAggregate, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newTestServer(t *testing.T, st store.AggregateStore) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	e, err := scoring.NewEngine(cfg.Safety, st, cache.NewMemory(cfg.Cache.TTL, 0), nil, log)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return NewServer(e, st, cfg.Server, log)
}

func seeded() *store.Memory {
	m := store.NewMemory()
	for i := 0; i < 3; i++ {
		m.AddReport(model.Report{Lat: 40.705, Lng: -74.005, Category: model.CategoryIncident, Status: model.StatusSubmitted, CreatedAt: now.Add(-time.Hour)})
	}
	m.AddReport(model.Report{Lat: 40.708, Lng: -74.002, Category: model.CategoryHarassment, Status: model.StatusSubmitted, CreatedAt: now.Add(-time.Hour)})
	return m
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t, store.NewMemory())
	h := s.Routes()
	if rr := do(t, h, http.MethodGet, "/healthz", nil); rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/readyz", nil); rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/version", nil); rr.Code != 200 || !strings.Contains(rr.Body.String(), `"kAnon":3`) {
		t.Fatalf("version: %d %s", rr.Code, rr.Body.String())
	}
}

func TestReadyReportsStoreDown(t *testing.T) {
	s := newTestServer(t, failingStore{store.NewMemory()})
	rr := do(t, s.Routes(), http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready: got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("internal detail leaked: %s", rr.Body.String())
	}
}

func TestRouteHandler(t *testing.T) {
	h := newTestServer(t, seeded()).Routes()
	for _, tc := range []struct {
		steps  string
		points int
	}{
		{"&steps=10", 11},
		{"", 21},
		{"&steps=0", 6},
		{"&steps=-3", 6},
		{"&steps=500", 201},
	} {
		rr := do(t, h, http.MethodGet, "/v1/safety/route?from=40.70,-74.01&to=40.71,-74.00"+tc.steps, nil)
		if rr.Code != 200 {
			t.Fatalf("%q: %d %s", tc.steps, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-Id") == "" {
			t.Fatal("missing request id")
		}
		var res model.RouteResult
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Source != model.SourceSampled || len(res.Candidates) != 3 || res.Best == nil {
			t.Fatalf("%q: unexpected: %+v", tc.steps, res)
		}
		if got := len(res.Candidates[0].Points); got != tc.points {
			t.Fatalf("%q: want %d points, got %d", tc.steps, tc.points, got)
		}
	}
}

func TestRouteHandlerRejectsBadInput(t *testing.T) {
	h := newTestServer(t, store.NewMemory()).Routes()
	for _, target := range []string{
		"/v1/safety/route?to=1,2",
		"/v1/safety/route?from=1&to=1,2",
		"/v1/safety/route?from=a,b&to=1,2",
		"/v1/safety/route?from=95,2&to=1,2",
		"/v1/safety/route?from=1,2&to=1,3&steps=x",
		"/v1/safety/route?from=1,2&to=1,3&days=0",
	} {
		rr := do(t, h, http.MethodGet, target, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: got %d", target, rr.Code)
		}
		var p Problem
		if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil || p.Status != 400 || p.Detail == "" {
			t.Fatalf("%s: problem %+v err=%v", target, p, err)
		}
	}
}

func TestScoreHandler(t *testing.T) {
	h := newTestServer(t, seeded()).Routes()
	body := []byte(`{"points":[{"lat":40.705,"lng":-74.005},{"lat":40.705,"lng":-74.004}]}`)
	rr := do(t, h, http.MethodPost, "/v1/safety/score", body)
	if rr.Code != 200 {
		t.Fatalf("score: %d %s", rr.Code, rr.Body.String())
	}
	var res model.RouteResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Best == nil || res.Best.Score != 0.7 || res.Best.TilesEvaluated != 1 {
		t.Fatalf("unexpected: %+v", res.Best)
	}

	if rr := do(t, h, http.MethodPost, "/v1/safety/score", []byte(`{"points":[{"lat":1,"lng":2}]}`)); rr.Code != 400 {
		t.Fatalf("single point: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/safety/score", []byte(`{`)); rr.Code != 400 {
		t.Fatalf("bad json: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/v1/safety/score", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method: %d", rr.Code)
	}
}

func TestHeatmapHandlerCaches(t *testing.T) {
	h := newTestServer(t, seeded()).Routes()
	target := "/v1/safety/heatmap?bbox=-74.01,40.70,-74.00,40.71"
	first := do(t, h, http.MethodGet, target, nil)
	if first.Code != 200 || first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first: %d %s", first.Code, first.Header().Get("X-Cache"))
	}
	var body model.HeatmapResult
	if err := json.Unmarshal(first.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tiles) != 1 || body.Tiles[0].Count != 3 {
		t.Fatalf("first body: %+v", body)
	}
	second := do(t, h, http.MethodGet, target, nil)
	if second.Code != 200 || second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second: %d %s", second.Code, second.Header().Get("X-Cache"))
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("cached body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
	if rr := do(t, h, http.MethodGet, "/v1/safety/heatmap?bbox=1,2,3", nil); rr.Code != 400 {
		t.Fatalf("bad bbox: %d", rr.Code)
	}
}

func TestTilesHandlerMasks(t *testing.T) {
	h := newTestServer(t, seeded()).Routes()
	rr := do(t, h, http.MethodGet, "/v1/safety/tiles?bbox=-74.01,40.70,-74.00,40.71&days=7", nil)
	if rr.Code != 200 {
		t.Fatalf("tiles: %d %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Tiles []map[string]any `json:"tiles"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tiles) != 2 {
		t.Fatalf("want 2 tiles, got %d", len(body.Tiles))
	}
	masked := 0
	for _, tl := range body.Tiles {
		if tl["masked"] == true {
			masked++
			if _, ok := tl["count"]; ok {
				t.Fatalf("masked tile leaks count: %v", tl)
			}
		}
	}
	if masked != 1 {
		t.Fatalf("masked = %d", masked)
	}
}

func TestStoreFailureIsGeneric(t *testing.T) {
	h := newTestServer(t, failingStore{store.NewMemory()}).Routes()
	rr := do(t, h, http.MethodGet, "/v1/safety/tiles?bbox=-74.01,40.70,-74.00,40.71", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "refused") {
		t.Fatalf("internal detail leaked: %s", rr.Body.String())
	}
}

func TestDirectionsFallsBackWithoutProviders(t *testing.T) {
	h := newTestServer(t, seeded()).Routes()
	rr := do(t, h, http.MethodGet, "/v1/safety/directions?from=40.70,-74.01&to=40.71,-74.00", nil)
	if rr.Code != 200 {
		t.Fatalf("directions: %d %s", rr.Code, rr.Body.String())
	}
	var res model.RouteResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Source != model.SourceSampled || res.Best == nil {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, store.NewMemory())
	s.limiter = newClientLimiter(1, 2)
	h := s.Routes()
	target := "/v1/safety/directions?from=40.70,-74.01&to=40.71,-74.00"
	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, h, http.MethodGet, target, nil).Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestHeatmapWebSocket(t *testing.T) {
	s := newTestServer(t, seeded())
	s.StreamInterval = time.Hour
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/safety/heatmap/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close() }()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := c.WriteJSON(wsMessage{Type: "ping", ID: "p"}); err != nil {
		t.Fatal(err)
	}
	var m wsMessage
	if err := c.ReadJSON(&m); err != nil || m.Type != "pong" {
		t.Fatalf("pong: %+v %v", m, err)
	}

	sub, _ := json.Marshal(heatmapSubscription{BBox: "-74.01,40.70,-74.00,40.71"})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: sub}); err != nil {
		t.Fatal(err)
	}
	if err := c.ReadJSON(&m); err != nil || m.Type != "next" || m.ID != "1" {
		t.Fatalf("next: %+v %v", m, err)
	}
	var hm model.HeatmapResult
	if err := json.Unmarshal(m.Payload, &hm); err != nil || len(hm.Tiles) != 1 {
		t.Fatalf("payload: %s %v", m.Payload, err)
	}

	if err := c.WriteJSON(wsMessage{Type: "complete", ID: "1"}); err != nil {
		t.Fatal(err)
	}
	if err := c.ReadJSON(&m); err != nil || m.Type != "complete" {
		t.Fatalf("complete: %+v %v", m, err)
	}
}
