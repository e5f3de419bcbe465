package core

import "math"

// BoundingBox is an axis-aligned envelope. An empty box has Min > Max and
// intersects nothing.
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyBox returns the identity element for Extend.
func EmptyBox() BoundingBox {
	return BoundingBox{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether b covers no point.
func (b BoundingBox) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Extend grows b to include (x, y).
func (b BoundingBox) Extend(x, y float64) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, x),
		MinY: math.Min(b.MinY, y),
		MaxX: math.Max(b.MaxX, x),
		MaxY: math.Max(b.MaxY, y),
	}
}

// Intersects is a separating-axis test. Boxes that only touch intersect.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return !(b.MaxX < o.MinX || b.MinX > o.MaxX || b.MaxY < o.MinY || b.MinY > o.MaxY)
}

// BBox folds every coordinate of every ring of p into a box. Point footprints
// produce a zero-size box at the point.
func BBox(p Polygon) BoundingBox {
	b := EmptyBox()
	if pt, ok := p.Point(); ok {
		return b.Extend(pt[0], pt[1])
	}
	for _, r := range p.rings {
		for _, pt := range r {
			b = b.Extend(pt[0], pt[1])
		}
	}
	return b
}
