package directions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"safemap/internal/geo"
	"safemap/internal/model"
)

var (
	origin      = model.GeoPoint{Lat: 38.5, Lng: -120.2}
	destination = model.GeoPoint{Lat: 43.252, Lng: -126.453}
)

func primaryServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/directions/v2:computeRoutes" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Goog-Api-Key") != "pk" || r.Header.Get("X-Goog-FieldMask") == "" {
			t.Errorf("missing provider headers: %v", r.Header)
		}
		raw, _ := io.ReadAll(r.Body)
		var req computeRoutesRequest
		if err := json.Unmarshal(raw, &req); err != nil || !req.ComputeAlternativeRoutes {
			t.Errorf("bad request body %s: %v", raw, err)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func legacyServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		if r.URL.Path != "/maps/api/directions/json" || q.Get("alternatives") != "true" || q.Get("key") != "lk" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if q.Get("origin") != "38.5,-120.2" {
			t.Errorf("origin = %q", q.Get("origin"))
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrimarySuccess(t *testing.T) {
	srv := primaryServer(t, 200, `{"routes":[{"description":"I-5","distanceMeters":1200,"polyline":{"encodedPolyline":"`+refEncoded+`"}},{"polyline":{"encodedPolyline":"_p~iF~ps|U_ulLnnqC"}}]}`)
	routes, err := NewPrimary("pk", srv.URL).Attempt(context.Background(), origin, destination)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 2 || routes[0].Name != "route_0" || routes[0].Summary != "I-5" || len(routes[0].Points) != 3 {
		t.Fatalf("unexpected routes: %+v", routes)
	}
	if routes[0].DistanceMeters != 1200 || routes[1].DistanceMeters != 0 {
		t.Fatalf("distances: %v %v", routes[0].DistanceMeters, routes[1].DistanceMeters)
	}
}

func TestPrimaryFailures(t *testing.T) {
	offMap := EncodePolyline([]model.GeoPoint{{Lat: 40.7, Lng: -74.0}, {Lat: 95, Lng: -74.0}})
	cases := map[string]struct {
		status int
		body   string
	}{
		"error field":  {200, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`},
		"http status":  {500, `{}`},
		"garbage":      {200, `<html>`},
		"bad polyline": {200, `{"routes":[{"polyline":{"encodedPolyline":"_p~iF~ps|U_"}}]}`},
		"off map":      {200, `{"routes":[{"polyline":{"encodedPolyline":"` + offMap + `"}}]}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := primaryServer(t, tc.status, tc.body)
			if _, err := NewPrimary("pk", srv.URL).Attempt(context.Background(), origin, destination); err == nil {
				t.Fatal("expected failure")
			}
		})
	}
}

func TestProvidersWithoutKeyAreDisabled(t *testing.T) {
	ctx := context.Background()
	if _, err := NewPrimary("", "http://unused").Attempt(ctx, origin, destination); !errors.Is(err, ErrProviderDisabled) {
		t.Fatalf("primary: %v", err)
	}
	if _, err := NewLegacy("", "http://unused").Attempt(ctx, origin, destination); !errors.Is(err, ErrProviderDisabled) {
		t.Fatalf("legacy: %v", err)
	}
}

func TestLegacyStatusNotOK(t *testing.T) {
	var hits atomic.Int32
	srv := legacyServer(t, `{"status":"ZERO_RESULTS","routes":[]}`, &hits)
	if _, err := NewLegacy("lk", srv.URL).Attempt(context.Background(), origin, destination); err == nil {
		t.Fatal("expected failure for non OK status")
	}
}

func TestLegacyRouteDistanceAndValidation(t *testing.T) {
	var hits atomic.Int32
	srv := legacyServer(t, `{"status":"OK","routes":[{"summary":"CA-99","overview_polyline":{"points":"`+refEncoded+`"},"legs":[{"distance":{"value":700}},{"distance":{"value":500}}]}]}`, &hits)
	routes, err := NewLegacy("lk", srv.URL).Attempt(context.Background(), origin, destination)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 || routes[0].DistanceMeters != 1200 {
		t.Fatalf("unexpected routes: %+v", routes)
	}

	offMap := EncodePolyline([]model.GeoPoint{{Lat: 40.7, Lng: -74.0}, {Lat: 40.7, Lng: 181}})
	bad := legacyServer(t, `{"status":"OK","routes":[{"overview_polyline":{"points":"`+offMap+`"}}]}`, &hits)
	if _, err := NewLegacy("lk", bad.URL).Attempt(context.Background(), origin, destination); !errors.Is(err, geo.ErrInvalidPoint) {
		t.Fatalf("want ErrInvalidPoint, got %v", err)
	}
}

func TestDriverFallsBackToLegacy(t *testing.T) {
	primary := primaryServer(t, 200, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
	var hits atomic.Int32
	legacy := legacyServer(t, `{"status":"OK","routes":[{"summary":"CA-99","overview_polyline":{"points":"`+refEncoded+`"}}]}`, &hits)
	d := NewDriver(time.Second, nil, NewPrimary("pk", primary.URL), NewLegacy("lk", legacy.URL), Sampled{Steps: 10, TileSizeMeters: 50})

	routes, source, err := d.Resolve(context.Background(), origin, destination)
	if err != nil {
		t.Fatal(err)
	}
	if source != model.SourceLegacy || hits.Load() != 1 || len(routes) != 1 || routes[0].Summary != "CA-99" {
		t.Fatalf("source=%s hits=%d routes=%+v", source, hits.Load(), routes)
	}
}

func TestDriverFallsBackToSampler(t *testing.T) {
	primary := primaryServer(t, 502, `bad gateway`)
	var hits atomic.Int32
	legacy := legacyServer(t, `{"status":"REQUEST_DENIED","error_message":"key"}`, &hits)
	d := NewDriver(time.Second, nil, NewPrimary("pk", primary.URL), NewLegacy("lk", legacy.URL), Sampled{Steps: 10, TileSizeMeters: 50})

	routes, source, err := d.Resolve(context.Background(), origin, destination)
	if err != nil {
		t.Fatal(err)
	}
	if source != model.SourceSampled || hits.Load() != 1 || len(routes) != 3 {
		t.Fatalf("source=%s hits=%d routes=%d", source, hits.Load(), len(routes))
	}
}

func TestDriverAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	d := NewDriver(50*time.Millisecond, nil, NewPrimary("pk", slow.URL), Sampled{Steps: 5, TileSizeMeters: 50})
	start := time.Now()
	_, source, err := d.Resolve(context.Background(), origin, destination)
	if err != nil {
		t.Fatal(err)
	}
	if source != model.SourceSampled {
		t.Fatalf("source = %s", source)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("hanging provider delayed fallback")
	}
}

type emptyStrategy struct{}

func (emptyStrategy) Name() string { return "empty" }
func (emptyStrategy) Attempt(context.Context, model.GeoPoint, model.GeoPoint) ([]model.RouteGeometry, error) {
	return nil, nil
}

func TestDriverAllFail(t *testing.T) {
	d := NewDriver(time.Second, nil, emptyStrategy{}, NewLegacy("", "http://unused"))
	_, _, err := d.Resolve(context.Background(), origin, destination)
	if !errors.Is(err, ErrAllProvidersFailed) || !errors.Is(err, ErrNoRoutes) {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Fatalf("error should name the strategy: %v", err)
	}
}
