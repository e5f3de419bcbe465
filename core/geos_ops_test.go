//go:build geos

package core

import "testing"

func TestGEOSOpsTouchingSquaresIntersectEmpty(t *testing.T) {
	a := rect(0, 0, 1, 1)
	b := rect(1, 0, 2, 1)
	got, err := GEOSOps{}.Intersect(a, b)
	if err != nil {
		t.Fatalf("Intersect: %v", err)
	}
	if !got.IsEmpty() || got.Kind() != KindPolygon {
		t.Fatalf("got %s, want empty polygon", got.WKT())
	}

	union, err := GEOSOps{}.Union(a, b)
	if err != nil {
		t.Fatalf("Union: %v", err)
	}
	if !almostEqual(Area(union), 2, 1e-9) {
		t.Fatalf("union area = %v", Area(union))
	}
}
