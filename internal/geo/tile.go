// Package geo quantizes coordinates onto the fixed safety grid and provides
// the small amount of spherical and planar math the scoring layer needs.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"safemap/internal/model"
)

// MetersPerDegree is the meters-per-degree-latitude approximation used
// for every meters to degrees conversion on the grid.
const MetersPerDegree = 111320.0

// DefaultMaxTiles caps the number of tiles a single bounds query may cover.
const DefaultMaxTiles = 250000

var (
	ErrInvalidTileSize = errors.New("tile size must be a positive number of meters")
	ErrInvalidTileID   = errors.New("invalid tile id")
	ErrInvalidPoint    = errors.New("invalid coordinate")
	ErrTooManyTiles    = errors.New("area covers too many tiles")
)

// TileID identifies one grid cell: "<lat>,<lng>" of its lower-left corner
// with 6 fixed decimals.
type TileID string

// Cell is the integer row/column of a tile on the grid.
type Cell struct {
	Row int64 // floor(lat/δ)
	Col int64 // floor(lng/δ)
}

// TileIndex maps coordinates to tiles of a fixed size. The zero value is
// not usable; construct with NewTileIndex.
type TileIndex struct {
	sizeMeters float64
	delta      float64
	MaxTiles   int
}

// NewTileIndex fails fast on degenerate sizes instead of dividing by them.
func NewTileIndex(tileSizeMeters float64) (TileIndex, error) {
	if !(tileSizeMeters > 0) || math.IsInf(tileSizeMeters, 0) {
		return TileIndex{}, fmt.Errorf("%w: %v", ErrInvalidTileSize, tileSizeMeters)
	}
	return TileIndex{
		sizeMeters: tileSizeMeters,
		delta:      tileSizeMeters / MetersPerDegree,
		MaxTiles:   DefaultMaxTiles,
	}, nil
}

// MustTileIndex is NewTileIndex for sizes known to be valid.
func MustTileIndex(tileSizeMeters float64) TileIndex {
	ix, err := NewTileIndex(tileSizeMeters)
	if err != nil {
		panic(err)
	}
	return ix
}

func (ix TileIndex) SizeMeters() float64 { return ix.sizeMeters }

// Delta is the tile edge in degrees.
func (ix TileIndex) Delta() float64 { return ix.delta }

// MetersToDegrees converts a distance with the same approximation as the grid.
func MetersToDegrees(m float64) float64 { return m / MetersPerDegree }

// CellOf returns the grid cell containing the point.
func (ix TileIndex) CellOf(lat, lng float64) Cell {
	return Cell{Row: int64(math.Floor(lat / ix.delta)), Col: int64(math.Floor(lng / ix.delta))}
}

// ID formats a cell as its tile id.
func (ix TileIndex) ID(c Cell) TileID {
	return formatID(float64(c.Row)*ix.delta, float64(c.Col)*ix.delta)
}

// ToTile quantizes a point to its tile id. Pure and deterministic.
func (ix TileIndex) ToTile(lat, lng float64) TileID {
	return ix.ID(ix.CellOf(lat, lng))
}

// ParseCell recovers the grid cell of an id produced by this index.
func (ix TileIndex) ParseCell(id TileID) (Cell, error) {
	p, err := parseID(id)
	if err != nil {
		return Cell{}, err
	}
	return Cell{Row: int64(math.Round(p.Lat / ix.delta)), Col: int64(math.Round(p.Lng / ix.delta))}, nil
}

// Centroid returns the tile's lower-left origin corner, not its geometric
// center. Heatmap markers are placed on this corner.
func Centroid(id TileID) (model.GeoPoint, error) {
	return parseID(id)
}

func formatID(lat, lng float64) TileID {
	return TileID(strconv.FormatFloat(lat, 'f', 6, 64) + "," + strconv.FormatFloat(lng, 'f', 6, 64))
}

func parseID(id TileID) (model.GeoPoint, error) {
	latS, lngS, ok := strings.Cut(string(id), ",")
	if !ok {
		return model.GeoPoint{}, fmt.Errorf("%w: %q", ErrInvalidTileID, id)
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("%w: %q", ErrInvalidTileID, id)
	}
	lng, err := strconv.ParseFloat(lngS, 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("%w: %q", ErrInvalidTileID, id)
	}
	return model.GeoPoint{Lat: lat, Lng: lng}, nil
}

// ValidatePoint rejects coordinates outside WGS84 ranges.
func ValidatePoint(p model.GeoPoint) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: (%v,%v)", ErrInvalidPoint, p.Lat, p.Lng)
	}
	return nil
}

// UniqueTiles returns the distinct tiles touched by points, in first-seen order.
func (ix TileIndex) UniqueTiles(points []model.GeoPoint) []TileID {
	seen := make(map[TileID]struct{}, len(points))
	out := make([]TileID, 0, len(points))
	for _, p := range points {
		id := ix.ToTile(p.Lat, p.Lng)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
