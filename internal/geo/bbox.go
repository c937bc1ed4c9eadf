package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"safemap/internal/model"
)

var ErrInvalidBBox = errors.New("bbox must be four numbers: minLng,minLat,maxLng,maxLat")

// ParseBBox parses "minLng,minLat,maxLng,maxLat".
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 {
		return orb.Bound{}, ErrInvalidBBox
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return orb.Bound{}, fmt.Errorf("%w: %q", ErrInvalidBBox, p)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return orb.Bound{}, fmt.Errorf("%w: min exceeds max", ErrInvalidBBox)
	}
	if err := ValidatePoint(model.GeoPoint{Lat: b.Min[1], Lng: b.Min[0]}); err != nil {
		return orb.Bound{}, fmt.Errorf("%w: %v", ErrInvalidBBox, err)
	}
	if err := ValidatePoint(model.GeoPoint{Lat: b.Max[1], Lng: b.Max[0]}); err != nil {
		return orb.Bound{}, fmt.Errorf("%w: %v", ErrInvalidBBox, err)
	}
	return b, nil
}

// Contains reports whether the point lies in the closed box.
func Contains(b orb.Bound, lat, lng float64) bool {
	return b.Contains(orb.Point{lng, lat})
}

// CellRange is the inclusive row/column span of a bounding box.
type CellRange struct {
	Min, Max Cell
}

func (r CellRange) Size() int64 {
	return (r.Max.Row - r.Min.Row + 1) * (r.Max.Col - r.Min.Col + 1)
}

// Bounds returns the degree box that exactly covers the range.
func (ix TileIndex) Bounds(r CellRange) orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(r.Min.Col) * ix.delta, float64(r.Min.Row) * ix.delta},
		Max: orb.Point{float64(r.Max.Col+1) * ix.delta, float64(r.Max.Row+1) * ix.delta},
	}
}

// CellRangeOf returns the cells intersecting b.
func (ix TileIndex) CellRangeOf(b orb.Bound) CellRange {
	return CellRange{
		Min: ix.CellOf(b.Min[1], b.Min[0]),
		Max: ix.CellOf(b.Max[1], b.Max[0]),
	}
}

// CellRangeOfTiles returns the smallest range covering every id.
func (ix TileIndex) CellRangeOfTiles(ids []TileID) (CellRange, []Cell, error) {
	cells := make([]Cell, 0, len(ids))
	var r CellRange
	for i, id := range ids {
		c, err := ix.ParseCell(id)
		if err != nil {
			return CellRange{}, nil, err
		}
		cells = append(cells, c)
		if i == 0 {
			r = CellRange{Min: c, Max: c}
			continue
		}
		r.Min.Row = min(r.Min.Row, c.Row)
		r.Min.Col = min(r.Min.Col, c.Col)
		r.Max.Row = max(r.Max.Row, c.Row)
		r.Max.Col = max(r.Max.Col, c.Col)
	}
	return r, cells, nil
}

// CheckBounds returns the cell range covering b, or ErrTooManyTiles when
// the range exceeds the index's tile cap.
func (ix TileIndex) CheckBounds(b orb.Bound) (CellRange, error) {
	r := ix.CellRangeOf(b)
	limit := ix.MaxTiles
	if limit <= 0 {
		limit = DefaultMaxTiles
	}
	if r.Size() > int64(limit) {
		return CellRange{}, fmt.Errorf("%w: %d > %d", ErrTooManyTiles, r.Size(), limit)
	}
	return r, nil
}
