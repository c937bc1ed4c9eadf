package model

import "time"

// Core domain types shared by the store, scoring and API layers.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Report statuses. Only StatusSubmitted contributes to any aggregate.
const (
	StatusDraft       = "draft"
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusResolved    = "resolved"
	StatusArchived    = "archived"
)

// Report categories.
const (
	CategoryIncident           = "incident"
	CategoryHarassment         = "harassment"
	CategorySafetyConcern      = "safety_concern"
	CategoryPositiveExperience = "positive_experience"
)

// IsIncident reports whether a category counts towards the danger side of a tile.
func IsIncident(category string) bool {
	switch category {
	case CategoryIncident, CategoryHarassment, CategorySafetyConcern:
		return true
	}
	return false
}

// IsPositive reports whether a category counts towards the safe side of a tile.
func IsPositive(category string) bool { return category == CategoryPositiveExperience }

// Report is the slice of a stored report the aggregation layer reads.
type Report struct {
	ID        string    `json:"id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	PoorLight bool      `json:"poorLight,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TileAggregate is a read-side projection of the reports inside one tile.
// It is never written back to the store.
type TileAggregate struct {
	TileID         string     `json:"tileId"`
	Count          int        `json:"count"`
	IncidentCount  int        `json:"incidentCount"`
	PositiveCount  int        `json:"positiveCount"`
	LightingIssues int        `json:"lightingIssues,omitempty"`
	Latest         *time.Time `json:"latest,omitempty"`
}

// MaskedTile is the only shape a tile below the anonymity threshold may take.
type MaskedTile struct {
	TileID string `json:"tileId"`
	Masked bool   `json:"masked"`
}

// PublicTile is a tile that passed the anonymity threshold.
type PublicTile struct {
	TileID        string   `json:"tileId"`
	Centroid      GeoPoint `json:"centroid"`
	Count         int      `json:"count"`
	IncidentCount int      `json:"incidentCount"`
	PositiveCount int      `json:"positiveCount"`
	Weight        float64  `json:"weight"`
}

type HeatmapTile struct {
	TileID       string   `json:"tileId"`
	Centroid     GeoPoint `json:"centroid"`
	Count        int      `json:"count"`
	DangerWeight float64  `json:"dangerWeight"`
	SafeWeight   float64  `json:"safeWeight"`
}

// RouteCandidate is one proposed path and its safety score. Lower is safer.
type RouteCandidate struct {
	Name           string     `json:"name"`
	Points         []GeoPoint `json:"points"`
	Score          float64    `json:"score"`
	TilesEvaluated int        `json:"tilesEvaluated"`
	DistanceMeters float64    `json:"distanceMeters"`
	Summary        string     `json:"summary,omitempty"`
}

// Route sources.
const (
	SourcePrimary  = "primary"
	SourceLegacy   = "legacy"
	SourceSampled  = "sampled"
	SourceGeometry = "geometry"
)

// RouteResult is the response shape for every route-scoring query.
type RouteResult struct {
	Source     string           `json:"source"`
	Candidates []RouteCandidate `json:"candidates"`
	Best       *RouteCandidate  `json:"best"`
}

type HeatmapResult struct {
	BBox       string        `json:"bbox"`
	WindowDays int           `json:"windowDays"`
	TileSizeM  float64       `json:"tileSizeMeters"`
	Tiles      []HeatmapTile `json:"tiles"`
}

// RouteGeometry is an unscored path as produced by a routing provider or
// the internal sampler. DistanceMeters is the provider's own figure; zero
// means unknown.
type RouteGeometry struct {
	Name           string
	Summary        string
	Points         []GeoPoint
	DistanceMeters float64
}
