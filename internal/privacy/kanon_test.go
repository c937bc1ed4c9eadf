package privacy

import (
	"encoding/json"
	"strings"
	"testing"

	"safemap/internal/model"
)

func TestEnforceMasksIffBelowK(t *testing.T) {
	for k := 1; k <= 5; k++ {
		for c := 0; c <= 6; c++ {
			out := Enforce([]model.TileAggregate{{TileID: "1.000000,2.000000", Count: c, IncidentCount: c}}, k)
			_, masked := out[0].(model.MaskedTile)
			if masked != (c < k) {
				t.Fatalf("k=%d c=%d: masked=%v", k, c, masked)
			}
		}
	}
}

func TestMaskedTileCarriesNoCounts(t *testing.T) {
	out := Enforce([]model.TileAggregate{{TileID: "1.000000,2.000000", Count: 2, IncidentCount: 2, PositiveCount: 0}}, 3)
	b, err := json.Marshal(out[0])
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, f := range []string{"count", "centroid", "weight", "Count"} {
		if strings.Contains(s, f) {
			t.Fatalf("masked tile leaks %q: %s", f, s)
		}
	}
	if !strings.Contains(s, `"masked":true`) {
		t.Fatalf("masked flag missing: %s", s)
	}
}

func TestEnforcePreservesOrderAndWeights(t *testing.T) {
	in := []model.TileAggregate{
		{TileID: "0.000000,0.000000", Count: 10},
		{TileID: "0.000449,0.000000", Count: 1},
		{TileID: "0.000898,0.000000", Count: 5},
	}
	out := Enforce(in, DefaultK)
	if len(out) != 3 {
		t.Fatalf("want 3, got %d", len(out))
	}
	a := out[0].(model.PublicTile)
	if a.Weight != 1 || a.Centroid.Lat != 0 {
		t.Fatalf("unexpected first tile: %+v", a)
	}
	if _, ok := out[1].(model.MaskedTile); !ok {
		t.Fatal("second tile must be masked")
	}
	if c := out[2].(model.PublicTile); c.Weight != 0.5 {
		t.Fatalf("weight: want 0.5, got %v", c.Weight)
	}
}

func TestVisibleClampsK(t *testing.T) {
	if Visible(0, 0) {
		t.Fatal("zero count is never visible")
	}
	if !Visible(1, -3) {
		t.Fatal("k below 1 behaves as 1")
	}
}
