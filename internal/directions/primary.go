package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"safemap/internal/model"
)

// Primary calls a compute-routes style endpoint and asks for alternatives.
type Primary struct {
	APIKey  string
	BaseURL string
	Mode    string
	HTTP    *http.Client
}

func NewPrimary(apiKey, baseURL string) *Primary {
	return &Primary{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), Mode: "WALK", HTTP: &http.Client{}}
}

func (p *Primary) Name() string { return model.SourcePrimary }

type latLngWaypoint struct {
	Location struct {
		LatLng struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"latLng"`
	} `json:"location"`
}

func waypoint(p model.GeoPoint) latLngWaypoint {
	var w latLngWaypoint
	w.Location.LatLng.Latitude = p.Lat
	w.Location.LatLng.Longitude = p.Lng
	return w
}

type computeRoutesRequest struct {
	Origin                   latLngWaypoint `json:"origin"`
	Destination              latLngWaypoint `json:"destination"`
	TravelMode               string         `json:"travelMode"`
	ComputeAlternativeRoutes bool           `json:"computeAlternativeRoutes"`
	PolylineEncoding         string         `json:"polylineEncoding"`
}

type computeRoutesResponse struct {
	Routes []struct {
		Description    string `json:"description"`
		DistanceMeters int    `json:"distanceMeters"`
		Polyline       struct {
			EncodedPolyline string `json:"encodedPolyline"`
		} `json:"polyline"`
	} `json:"routes"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *Primary) Attempt(ctx context.Context, origin, destination model.GeoPoint) ([]model.RouteGeometry, error) {
	if p.APIKey == "" {
		return nil, ErrProviderDisabled
	}
	body, err := json.Marshal(computeRoutesRequest{
		Origin:                   waypoint(origin),
		Destination:              waypoint(destination),
		TravelMode:               p.Mode,
		ComputeAlternativeRoutes: true,
		PolylineEncoding:         "ENCODED_POLYLINE",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/directions/v2:computeRoutes", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", p.APIKey)
	req.Header.Set("X-Goog-FieldMask", "routes.polyline.encodedPolyline,routes.description,routes.distanceMeters")
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("compute routes: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read compute routes: %w", err)
	}
	var out computeRoutesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode compute routes (http %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("compute routes error %d %s: %s", out.Error.Code, out.Error.Status, out.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("compute routes: http %d", resp.StatusCode)
	}
	routes := make([]model.RouteGeometry, 0, len(out.Routes))
	for i, r := range out.Routes {
		g, err := decodeRoute(i, r.Description, r.Polyline.EncodedPolyline, float64(r.DistanceMeters))
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
