package core

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Kind distinguishes areal footprints from degenerate point footprints.
type Kind uint8

const (
	KindPolygon Kind = iota
	KindPoint
)

func (k Kind) String() string {
	if k == KindPoint {
		return "point"
	}
	return "polygon"
}

// ErrUnsupportedGeometry is wrapped by GeometryParseError when the input
// parses but is not a polygon, multipolygon or point.
var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

// GeometryParseError reports a WKT or GeoJSON input that could not be turned
// into a Polygon.
type GeometryParseError struct {
	Input string
	Err   error
}

func (e *GeometryParseError) Error() string {
	in := e.Input
	if len(in) > 64 {
		in = in[:64] + "..."
	}
	return fmt.Sprintf("parse geometry %q: %v", in, e.Err)
}

func (e *GeometryParseError) Unwrap() error { return e.Err }

// Polygon is an immutable planar region made of closed rings. Ring nesting
// decides coverage: a ring at even depth bounds filled area, a ring at odd
// depth is a hole. A point footprint has no rings and no area.
type Polygon struct {
	kind  Kind
	rings []orb.Ring
	depth []int
	point orb.Point
}

// NewPolygon builds a polygon from rings. Open rings are closed and rings
// with fewer than three distinct vertices are dropped.
func NewPolygon(rings ...orb.Ring) Polygon {
	out := make([]orb.Ring, 0, len(rings))
	for _, r := range rings {
		if c, ok := closeRing(r); ok {
			out = append(out, c)
		}
	}
	return Polygon{kind: KindPolygon, rings: out, depth: nestingDepths(out)}
}

// NewPoint builds a degenerate point footprint.
func NewPoint(x, y float64) Polygon {
	return Polygon{kind: KindPoint, point: orb.Point{x, y}}
}

// Kind reports whether p is an areal polygon or a point footprint.
func (p Polygon) Kind() Kind { return p.kind }

// IsEmpty reports whether p encloses no region.
func (p Polygon) IsEmpty() bool { return len(p.rings) == 0 }

// NumRings returns the number of rings.
func (p Polygon) NumRings() int { return len(p.rings) }

// Rings returns a copy of the rings.
func (p Polygon) Rings() []orb.Ring {
	out := make([]orb.Ring, len(p.rings))
	for i, r := range p.rings {
		out[i] = append(orb.Ring(nil), r...)
	}
	return out
}

// Point returns the location of a point footprint.
func (p Polygon) Point() (orb.Point, bool) {
	return p.point, p.kind == KindPoint
}

// Orb returns the polygon as an orb geometry: a MultiPolygon where every
// shell carries the holes nested directly inside it, or an orb.Point.
func (p Polygon) Orb() orb.Geometry {
	if p.kind == KindPoint {
		return p.point
	}
	var mp orb.MultiPolygon
	shellAt := make(map[int]int)
	for i, r := range p.rings {
		if p.depth[i]%2 == 0 {
			shellAt[i] = len(mp)
			mp = append(mp, orb.Polygon{append(orb.Ring(nil), r...)})
		}
	}
	for i, r := range p.rings {
		if p.depth[i]%2 == 0 {
			continue
		}
		parent := p.enclosingShell(i)
		if idx, ok := shellAt[parent]; ok {
			mp[idx] = append(mp[idx], append(orb.Ring(nil), r...))
		}
	}
	return mp
}

// WKT renders p. Empty polygons render as "POLYGON EMPTY".
func (p Polygon) WKT() string {
	if p.kind == KindPoint {
		return wkt.MarshalString(p.point)
	}
	mp := p.Orb().(orb.MultiPolygon)
	switch len(mp) {
	case 0:
		return "POLYGON EMPTY"
	case 1:
		return wkt.MarshalString(mp[0])
	}
	return wkt.MarshalString(mp)
}

func (p Polygon) enclosingShell(hole int) int {
	inside := interiorPoint(p.rings[hole])
	best, bestArea := -1, math.Inf(1)
	for j, r := range p.rings {
		if j == hole || p.depth[j] != p.depth[hole]-1 {
			continue
		}
		if !planar.RingContains(r, inside) {
			continue
		}
		if a := math.Abs(planar.Area(r)); a < bestArea {
			best, bestArea = j, a
		}
	}
	return best
}

// ParseWKT parses a POLYGON, MULTIPOLYGON or POINT. Geometry collections are
// accepted when every member is one of those types.
func ParseWKT(s string) (Polygon, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Polygon{}, &GeometryParseError{Input: s, Err: errors.New("empty input")}
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return Polygon{}, &GeometryParseError{Input: s, Err: err}
	}
	p, err := FromOrb(g)
	if err != nil {
		return Polygon{}, &GeometryParseError{Input: s, Err: err}
	}
	return p, nil
}

// ParseGeoJSON parses a GeoJSON geometry object of type Polygon,
// MultiPolygon or Point.
func ParseGeoJSON(data []byte) (Polygon, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return Polygon{}, &GeometryParseError{Input: string(data), Err: err}
	}
	p, err := FromOrb(g.Geometry())
	if err != nil {
		return Polygon{}, &GeometryParseError{Input: string(data), Err: err}
	}
	return p, nil
}

// FromOrb converts an orb geometry into a Polygon.
func FromOrb(g orb.Geometry) (Polygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return NewPolygon(v...), nil
	case orb.MultiPolygon:
		var rings []orb.Ring
		for _, poly := range v {
			rings = append(rings, poly...)
		}
		return NewPolygon(rings...), nil
	case orb.Point:
		return NewPoint(v[0], v[1]), nil
	case orb.Collection:
		var rings []orb.Ring
		for _, member := range v {
			p, err := FromOrb(member)
			if err != nil {
				return Polygon{}, err
			}
			rings = append(rings, p.rings...)
		}
		return NewPolygon(rings...), nil
	case nil:
		return Polygon{}, ErrUnsupportedGeometry
	default:
		return Polygon{}, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
	}
}

// PolygonalParts keeps only the areal members of g. Points, lines and
// other non-areal members are dropped; with nothing left the result is
// an empty polygon.
func PolygonalParts(g orb.Geometry) Polygon {
	var rings []orb.Ring
	var collect func(orb.Geometry)
	collect = func(g orb.Geometry) {
		switch v := g.(type) {
		case orb.Polygon:
			rings = append(rings, v...)
		case orb.MultiPolygon:
			for _, poly := range v {
				rings = append(rings, poly...)
			}
		case orb.Collection:
			for _, member := range v {
				collect(member)
			}
		}
	}
	collect(g)
	return NewPolygon(rings...)
}

// Area returns the planar area of p: shells count positive, holes negative.
// Degenerate and point polygons have zero area.
func Area(p Polygon) float64 {
	total := 0.0
	for i, r := range p.rings {
		a := math.Abs(planar.Area(r))
		if p.depth[i]%2 == 0 {
			total += a
		} else {
			total -= a
		}
	}
	if total < 0 || math.IsNaN(total) {
		return 0
	}
	return total
}

func closeRing(r orb.Ring) (orb.Ring, bool) {
	if len(r) == 0 {
		return nil, false
	}
	out := make(orb.Ring, 0, len(r)+1)
	for _, pt := range r {
		if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
			return nil, false
		}
		if n := len(out); n > 0 && out[n-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil, false
	}
	return append(out, out[0]), true
}

// nestingDepths counts, for every ring, how many other rings enclose it.
func nestingDepths(rings []orb.Ring) []int {
	depth := make([]int, len(rings))
	if len(rings) < 2 {
		return depth
	}
	bounds := make([]orb.Bound, len(rings))
	for i, r := range rings {
		bounds[i] = r.Bound()
	}
	for i, r := range rings {
		inside := interiorPoint(r)
		for j, other := range rings {
			if i == j || !bounds[j].Contains(inside) {
				continue
			}
			if planar.RingContains(other, inside) {
				depth[i]++
			}
		}
	}
	return depth
}

// interiorPoint returns a point just inside r, next to the midpoint of its
// longest edge. Rings produced by clipping may share edges with their
// neighbours, so a vertex is not reliably inside.
func interiorPoint(r orb.Ring) orb.Point {
	var (
		best    float64
		a, b    orb.Point
		twiceSA float64
	)
	for i := 0; i+1 < len(r); i++ {
		p, q := r[i], r[i+1]
		twiceSA += p[0]*q[1] - q[0]*p[1]
		dx, dy := q[0]-p[0], q[1]-p[1]
		if l := dx*dx + dy*dy; l > best {
			best, a, b = l, p, q
		}
	}
	if best == 0 {
		return r[0]
	}
	l := math.Sqrt(best)
	nx, ny := -(b[1]-a[1])/l, (b[0]-a[0])/l
	if twiceSA < 0 {
		nx, ny = -nx, -ny
	}
	step := l * 1e-6
	if area := math.Abs(twiceSA) / 2; area > 0 {
		step = math.Min(step, area/l*1e-3)
	}
	return orb.Point{(a[0]+b[0])/2 + nx*step, (a[1]+b[1])/2 + ny*step}
}
