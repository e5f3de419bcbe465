//go:build geos

package core

import (
	"fmt"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/twpayne/go-geos"
)

// GEOSOps runs boolean operations through libgeos. It is only compiled with
// the geos build tag since it needs cgo and the GEOS C library.
type GEOSOps struct{}

var _ GeometryOps = GEOSOps{}

// GEOSAvailable reports whether this binary was built with GEOS support.
const GEOSAvailable = true

func geosBackend() (GeometryOps, error) { return GEOSOps{}, nil }

func (GEOSOps) Area(p Polygon) float64     { return Area(p) }
func (GEOSOps) BBox(p Polygon) BoundingBox { return BBox(p) }

func (o GEOSOps) Union(a, b Polygon) (Polygon, error) {
	return o.apply(OpUnion, a, b, (*geos.Geom).Union)
}

func (o GEOSOps) Intersect(a, b Polygon) (Polygon, error) {
	return o.apply(OpIntersect, a, b, (*geos.Geom).Intersection)
}

func (o GEOSOps) Difference(a, b Polygon) (Polygon, error) {
	return o.apply(OpDifference, a, b, (*geos.Geom).Difference)
}

func (GEOSOps) apply(op string, a, b Polygon, fn func(*geos.Geom, *geos.Geom) *geos.Geom) (out Polygon, err error) {
	if res, ok := degenerate(op, a, b); ok {
		return res, nil
	}
	defer recoverOp(op, &err)

	ga, err := geos.NewGeomFromWKT(a.WKT())
	if err != nil {
		return Polygon{}, &BooleanOpError{Op: op, Err: err}
	}
	gb, err := geos.NewGeomFromWKT(b.WKT())
	if err != nil {
		return Polygon{}, &BooleanOpError{Op: op, Err: err}
	}
	res := fn(ga.MakeValid(), gb.MakeValid())
	if res == nil {
		return Polygon{}, &BooleanOpError{Op: op, Err: fmt.Errorf("nil result")}
	}
	if res.IsEmpty() {
		return NewPolygon(), nil
	}
	// Touching inputs can leave lines or points in the result.
	g, err := wkt.Unmarshal(res.ToWKT())
	if err != nil {
		return Polygon{}, &BooleanOpError{Op: op, Err: err}
	}
	return PolygonalParts(g), nil
}
