package core

import "testing"

func TestBBox(t *testing.T) {
	p, err := ParseWKT("MULTIPOLYGON(((0 0,1 0,1 1,0 1,0 0)),((5 -2,7 -2,7 7,5 7,5 -2)))")
	if err != nil {
		t.Fatalf("ParseWKT: %v", err)
	}
	want := BoundingBox{MinX: 0, MinY: -2, MaxX: 7, MaxY: 7}
	if got := BBox(p); got != want {
		t.Fatalf("BBox = %+v, want %+v", got, want)
	}

	pt := BBox(NewPoint(2, 3))
	if pt != (BoundingBox{MinX: 2, MinY: 3, MaxX: 2, MaxY: 3}) {
		t.Fatalf("point BBox = %+v", pt)
	}
	if !BBox(NewPolygon()).IsEmpty() {
		t.Fatalf("empty polygon should have an empty box")
	}
}

func TestBoundingBoxIntersects(t *testing.T) {
	base := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	cases := []struct {
		name string
		o    BoundingBox
		want bool
	}{
		{"overlap", BoundingBox{5, 5, 15, 15}, true},
		{"contained", BoundingBox{2, 2, 3, 3}, true},
		{"touching edge", BoundingBox{10, 0, 20, 10}, true},
		{"touching corner", BoundingBox{10, 10, 11, 11}, true},
		{"left", BoundingBox{-5, 0, -0.1, 10}, false},
		{"above", BoundingBox{0, 10.1, 10, 12}, false},
		{"empty", EmptyBox(), false},
	}
	for _, tc := range cases {
		if got := base.Intersects(tc.o); got != tc.want {
			t.Errorf("%s: Intersects = %v, want %v", tc.name, got, tc.want)
		}
		if got := tc.o.Intersects(base); got != tc.want {
			t.Errorf("%s (swapped): Intersects = %v, want %v", tc.name, got, tc.want)
		}
	}
}
