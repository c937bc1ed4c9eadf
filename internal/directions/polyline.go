package directions

import (
	"errors"
	"math"
	"strings"

	"safemap/internal/model"
)

var ErrMalformedPolyline = errors.New("malformed encoded polyline")

// DecodePolyline decodes the standard encoded polyline format: signed
// deltas in 1e5 units, zig-zag sign, 5-bit groups with a 0x20
// continuation bit, each byte offset by 63.
func DecodePolyline(s string) ([]model.GeoPoint, error) {
	var (
		out      []model.GeoPoint
		lat, lng int64
		i        int
	)
	next := func() (int64, error) {
		var result int64
		var shift uint
		for {
			if i >= len(s) {
				return 0, ErrMalformedPolyline
			}
			b := int64(s[i]) - 63
			i++
			if b < 0 || b > 0x3f {
				return 0, ErrMalformedPolyline
			}
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				break
			}
			if shift > 60 {
				return 0, ErrMalformedPolyline
			}
		}
		if result&1 != 0 {
			return ^(result >> 1), nil
		}
		return result >> 1, nil
	}
	for i < len(s) {
		dLat, err := next()
		if err != nil {
			return nil, err
		}
		dLng, err := next()
		if err != nil {
			return nil, err
		}
		lat += dLat
		lng += dLng
		out = append(out, model.GeoPoint{Lat: float64(lat) / 1e5, Lng: float64(lng) / 1e5})
	}
	return out, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(points []model.GeoPoint) string {
	var sb strings.Builder
	var prevLat, prevLng int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * 1e5))
		lng := int64(math.Round(p.Lng * 1e5))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}
