package core

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

func rect(minX, minY, maxX, maxY float64) Polygon {
	return NewPolygon(orb.Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}})
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestParseWKTArea(t *testing.T) {
	cases := []struct {
		name string
		wkt  string
		kind Kind
		area float64
	}{
		{"square", "POLYGON((0 0,10 0,10 10,0 10,0 0))", KindPolygon, 100},
		{"clockwise square", "POLYGON((0 0,0 10,10 10,10 0,0 0))", KindPolygon, 100},
		{"with hole", "POLYGON((0 0,10 0,10 10,0 10,0 0),(2 2,4 2,4 4,2 4,2 2))", KindPolygon, 96},
		{"multipolygon", "MULTIPOLYGON(((0 0,1 0,1 1,0 1,0 0)),((5 5,7 5,7 7,5 7,5 5)))", KindPolygon, 5},
		{"point", "POINT(3 4)", KindPoint, 0},
		{"collinear", "POLYGON((0 0,1 1,2 2,0 0))", KindPolygon, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParseWKT(tc.wkt)
			if err != nil {
				t.Fatalf("ParseWKT(%q): %v", tc.wkt, err)
			}
			if p.Kind() != tc.kind {
				t.Errorf("kind = %v, want %v", p.Kind(), tc.kind)
			}
			if got := Area(p); !almostEqual(got, tc.area, 1e-9) {
				t.Errorf("Area = %v, want %v", got, tc.area)
			}
		})
	}
}

func TestParseWKTRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"POLYGON((0 0, 1 x, 1 1, 0 0))",
		"NOT A GEOMETRY",
		"LINESTRING(0 0, 1 1)",
	} {
		_, err := ParseWKT(in)
		if err == nil {
			t.Errorf("ParseWKT(%q) succeeded, want error", in)
			continue
		}
		var perr *GeometryParseError
		if !errors.As(err, &perr) {
			t.Errorf("ParseWKT(%q) error %T is not a GeometryParseError", in, err)
		}
	}

	_, err := ParseWKT("LINESTRING(0 0, 1 1)")
	if !errors.Is(err, ErrUnsupportedGeometry) {
		t.Errorf("LINESTRING error = %v, want ErrUnsupportedGeometry", err)
	}
}

func TestNewPolygonClosesAndDropsDegenerateRings(t *testing.T) {
	p := NewPolygon(
		orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}},
		orb.Ring{{1, 1}, {2, 2}},
	)
	if p.NumRings() != 1 {
		t.Fatalf("NumRings = %d, want 1", p.NumRings())
	}
	r := p.Rings()[0]
	if r[0] != r[len(r)-1] {
		t.Fatalf("ring is not closed: %v", r)
	}
	if got := Area(p); got != 16 {
		t.Fatalf("Area = %v, want 16", got)
	}
}

func TestPolygonRingsReturnsCopy(t *testing.T) {
	p := rect(0, 0, 1, 1)
	rings := p.Rings()
	rings[0][0] = orb.Point{100, 100}
	if got := p.Rings()[0][0]; got != (orb.Point{0, 0}) {
		t.Fatalf("polygon mutated through accessor: %v", got)
	}
}

func TestNestedIslandInsideHole(t *testing.T) {
	p := NewPolygon(
		orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		orb.Ring{{2, 2}, {8, 2}, {8, 8}, {2, 8}},
		orb.Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}},
	)
	if got := Area(p); !almostEqual(got, 100-36+4, 1e-9) {
		t.Fatalf("Area = %v, want 68", got)
	}
}

func TestWKTRoundTrip(t *testing.T) {
	in := "POLYGON((0 0,10 0,10 10,0 10,0 0),(2 2,4 2,4 4,2 4,2 2))"
	p, err := ParseWKT(in)
	if err != nil {
		t.Fatalf("ParseWKT: %v", err)
	}
	again, err := ParseWKT(p.WKT())
	if err != nil {
		t.Fatalf("ParseWKT(WKT()): %v", err)
	}
	if Area(again) != Area(p) || again.NumRings() != p.NumRings() {
		t.Fatalf("round trip changed polygon: %s", again.WKT())
	}
	if got := NewPolygon().WKT(); got != "POLYGON EMPTY" {
		t.Fatalf("empty WKT = %q", got)
	}
}

func TestParseGeoJSON(t *testing.T) {
	p, err := ParseGeoJSON([]byte(`{"type":"Polygon","coordinates":[[[0,0],[3,0],[3,3],[0,3],[0,0]]]}`))
	if err != nil {
		t.Fatalf("ParseGeoJSON: %v", err)
	}
	if got := Area(p); got != 9 {
		t.Fatalf("Area = %v, want 9", got)
	}
	if _, err := ParseGeoJSON([]byte(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`)); err == nil {
		t.Fatalf("expected error for LineString")
	}
	if _, err := ParseGeoJSON([]byte(`{not json`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestPolygonalPartsDropsNonArealMembers(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		rings int
		area  float64
	}{
		{"polygon", "POLYGON((0 0,2 0,2 2,0 2,0 0))", 1, 4},
		{"linestring", "LINESTRING(0 0,1 1)", 0, 0},
		{"point", "POINT(1 1)", 0, 0},
		{"multipolygon", "MULTIPOLYGON(((0 0,1 0,1 1,0 1,0 0)),((5 5,6 5,6 6,5 6,5 5)))", 2, 2},
		{"mixed collection", "GEOMETRYCOLLECTION(LINESTRING(0 0,1 1),POLYGON((0 0,2 0,2 2,0 2,0 0)),POINT(3 3))", 1, 4},
		{"lines only", "GEOMETRYCOLLECTION(LINESTRING(0 0,1 1),POINT(3 3))", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := wkt.Unmarshal(tc.in)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			p := PolygonalParts(g)
			if p.Kind() != KindPolygon {
				t.Fatalf("kind = %v", p.Kind())
			}
			if p.NumRings() != tc.rings || !almostEqual(Area(p), tc.area, 1e-9) {
				t.Fatalf("rings = %d area = %v, want %d and %v", p.NumRings(), Area(p), tc.rings, tc.area)
			}
		})
	}
}
