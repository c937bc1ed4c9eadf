package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"safemap/internal/geo"
	"safemap/internal/model"
	"safemap/internal/scoring"
)

// parsePoint reads a required "lat,lng" query parameter.
func parsePoint(q url.Values, name string) (model.GeoPoint, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return model.GeoPoint{}, fmt.Errorf("%s is required (lat,lng)", name)
	}
	latS, lngS, ok := strings.Cut(raw, ",")
	if !ok {
		return model.GeoPoint{}, fmt.Errorf("%s must be lat,lng", name)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err1 != nil || err2 != nil {
		return model.GeoPoint{}, fmt.Errorf("%s must be two numbers", name)
	}
	p := model.GeoPoint{Lat: lat, Lng: lng}
	if err := geo.ValidatePoint(p); err != nil {
		return model.GeoPoint{}, fmt.Errorf("%s: %v", name, err)
	}
	return p, nil
}

// parseSteps reads the sample step count. Out-of-range values are clamped
// rather than rejected; 0 means absent.
func parseSteps(q url.Values) (int, error) {
	raw := strings.TrimSpace(q.Get("steps"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("steps must be an integer")
	}
	return scoring.ClampSteps(n), nil
}

// parseOptionalInt returns 0 when the parameter is absent.
func parseOptionalInt(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be >= 1", name)
	}
	return n, nil
}

func requireBBox(q url.Values) (string, error) {
	b := strings.TrimSpace(q.Get("bbox"))
	if b == "" {
		return "", fmt.Errorf("bbox is required (minLng,minLat,maxLng,maxLat)")
	}
	return b, nil
}
