package core

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
)

// Boolean operation names carried by BooleanOpError.
const (
	OpUnion      = "union"
	OpIntersect  = "intersect"
	OpDifference = "difference"
)

// BooleanOpError wraps a failure (including a recovered panic) raised by a
// geometry backend during a boolean operation.
type BooleanOpError struct {
	Op  string
	Err error
}

func (e *BooleanOpError) Error() string {
	return fmt.Sprintf("geometry %s: %v", e.Op, e.Err)
}

func (e *BooleanOpError) Unwrap() error { return e.Err }

// GeometryOps is the boolean-operation backend used by the engine.
// Implementations must be safe for concurrent use.
type GeometryOps interface {
	Area(p Polygon) float64
	BBox(p Polygon) BoundingBox
	Union(a, b Polygon) (Polygon, error)
	Intersect(a, b Polygon) (Polygon, error)
	Difference(a, b Polygon) (Polygon, error)
}

// degenerate resolves operations where either side encloses no region, so
// backends never see point or empty inputs.
func degenerate(op string, a, b Polygon) (Polygon, bool) {
	aEmpty, bEmpty := a.IsEmpty(), b.IsEmpty()
	if !aEmpty && !bEmpty {
		return Polygon{}, false
	}
	switch op {
	case OpUnion:
		if aEmpty {
			return b, true
		}
		return a, true
	case OpIntersect:
		return NewPolygon(), true
	case OpDifference:
		if aEmpty {
			return NewPolygon(), true
		}
		return a, true
	}
	return Polygon{}, false
}

// recoverOp turns a backend panic into a BooleanOpError.
func recoverOp(op string, err *error) {
	if r := recover(); r != nil {
		*err = &BooleanOpError{Op: op, Err: fmt.Errorf("panic: %v", r)}
	}
}

// PlanarOps is the pure-Go backend built on github.com/ctessum/geom polygon
// clipping.
type PlanarOps struct{}

var _ GeometryOps = PlanarOps{}

func (PlanarOps) Area(p Polygon) float64     { return Area(p) }
func (PlanarOps) BBox(p Polygon) BoundingBox { return BBox(p) }

func (o PlanarOps) Union(a, b Polygon) (Polygon, error) {
	return o.apply(OpUnion, a, b, geom.Polygon.Union)
}

func (o PlanarOps) Intersect(a, b Polygon) (Polygon, error) {
	return o.apply(OpIntersect, a, b, geom.Polygon.Intersection)
}

func (o PlanarOps) Difference(a, b Polygon) (Polygon, error) {
	return o.apply(OpDifference, a, b, geom.Polygon.Difference)
}

func (PlanarOps) apply(op string, a, b Polygon, fn func(geom.Polygon, geom.Polygonal) geom.Polygonal) (out Polygon, err error) {
	if res, ok := degenerate(op, a, b); ok {
		return res, nil
	}
	defer recoverOp(op, &err)

	res := fn(toClip(a), toClip(b))
	return fromClip(res), nil
}

// toClip drops the closing vertex; the clipper works on implicit rings.
func toClip(p Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p.rings))
	for _, r := range p.rings {
		path := make(geom.Path, 0, len(r)-1)
		for _, pt := range r[:len(r)-1] {
			path = append(path, geom.Point{X: pt[0], Y: pt[1]})
		}
		out = append(out, path)
	}
	return out
}

// fromClip flattens every polygon of a clipper result into one ring list;
// nesting is recovered from the rings themselves.
func fromClip(g geom.Polygonal) Polygon {
	if g == nil {
		return NewPolygon()
	}
	var rings []orb.Ring
	for _, poly := range g.Polygons() {
		for _, path := range poly {
			if len(path) < 3 {
				continue
			}
			r := make(orb.Ring, 0, len(path)+1)
			for _, pt := range path {
				r = append(r, orb.Point{pt.X, pt.Y})
			}
			rings = append(rings, r)
		}
	}
	return NewPolygon(rings...)
}
