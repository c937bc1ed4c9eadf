package directions

import (
	"errors"
	"math"
	"testing"

	"safemap/internal/model"
)

// Reference vector from the format's public documentation.
const refEncoded = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

var refPoints = []model.GeoPoint{
	{Lat: 38.5, Lng: -120.2},
	{Lat: 40.7, Lng: -120.95},
	{Lat: 43.252, Lng: -126.453},
}

func TestDecodeReferenceVector(t *testing.T) {
	got, err := DecodePolyline(refEncoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(refPoints) {
		t.Fatalf("len %d", len(got))
	}
	for i := range got {
		if math.Abs(got[i].Lat-refPoints[i].Lat) > 1e-5 || math.Abs(got[i].Lng-refPoints[i].Lng) > 1e-5 {
			t.Fatalf("point %d: got %+v want %+v", i, got[i], refPoints[i])
		}
	}
}

func TestEncodeReferenceVector(t *testing.T) {
	if got := EncodePolyline(refPoints); got != refEncoded {
		t.Fatalf("got %q want %q", got, refEncoded)
	}
}

func TestRoundTrip(t *testing.T) {
	pts := []model.GeoPoint{
		{Lat: 0, Lng: 0},
		{Lat: -33.86882, Lng: 151.20929},
		{Lat: 89.99999, Lng: -179.99999},
		{Lat: 40.71277, Lng: -74.00597},
		{Lat: 40.71278, Lng: -74.00598},
	}
	got, err := DecodePolyline(EncodePolyline(pts))
	if err != nil {
		t.Fatal(err)
	}
	for i := range pts {
		if math.Abs(got[i].Lat-pts[i].Lat) > 1e-5 || math.Abs(got[i].Lng-pts[i].Lng) > 1e-5 {
			t.Fatalf("point %d: got %+v want %+v", i, got[i], pts[i])
		}
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	// drop the final byte so the last longitude is incomplete
	if _, err := DecodePolyline(refEncoded[:len(refEncoded)-1]); !errors.Is(err, ErrMalformedPolyline) {
		t.Fatalf("want ErrMalformedPolyline, got %v", err)
	}
	if _, err := DecodePolyline("_p~iF"); !errors.Is(err, ErrMalformedPolyline) {
		t.Fatalf("lat without lng must fail, got %v", err)
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := DecodePolyline("")
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v %v", got, err)
	}
}
