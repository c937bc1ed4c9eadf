package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"safemap/internal/model"
)

// Legacy calls the older directions endpoint. Anything but status "OK"
// is a failure.
type Legacy struct {
	APIKey  string
	BaseURL string
	Mode    string
	HTTP    *http.Client
}

func NewLegacy(apiKey, baseURL string) *Legacy {
	return &Legacy{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), Mode: "walking", HTTP: &http.Client{}}
}

func (l *Legacy) Name() string { return model.SourceLegacy }

type legacyResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Summary          string `json:"summary"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
		} `json:"legs"`
	} `json:"routes"`
}

func latLngParam(p model.GeoPoint) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

func (l *Legacy) Attempt(ctx context.Context, origin, destination model.GeoPoint) ([]model.RouteGeometry, error) {
	if l.APIKey == "" {
		return nil, ErrProviderDisabled
	}
	q := url.Values{}
	q.Set("origin", latLngParam(origin))
	q.Set("destination", latLngParam(destination))
	q.Set("alternatives", "true")
	q.Set("mode", l.Mode)
	q.Set("key", l.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL+"/maps/api/directions/json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read directions: %w", err)
	}
	var out legacyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode directions (http %d): %w", resp.StatusCode, err)
	}
	if out.Status != "OK" {
		return nil, fmt.Errorf("directions status %q: %s", out.Status, out.ErrorMessage)
	}
	routes := make([]model.RouteGeometry, 0, len(out.Routes))
	for i, r := range out.Routes {
		var dist float64
		for _, leg := range r.Legs {
			dist += leg.Distance.Value
		}
		g, err := decodeRoute(i, r.Summary, r.OverviewPolyline.Points, dist)
		if err != nil {
			return nil, err
		}
		if len(g.Points) == 0 {
			continue
		}
		routes = append(routes, g)
	}
	return routes, nil
}
