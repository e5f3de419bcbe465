package core

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

// rectPad keeps zero-width boxes (points, axis-aligned slivers) insertable;
// rtreego rejects non-positive extents.
const rectPad = 1e-9

type indexEntry struct {
	seq  int
	cand Candidate
	box  BoundingBox
	rect rtreego.Rect
}

func (e *indexEntry) Bounds() rtreego.Rect { return e.rect }

// CandidateIndex is an R-tree over candidate bounding boxes. It is built
// once per batch and queried per site, so large overlay sets are not
// scanned linearly for every site. Not safe for concurrent Insert; Query is
// safe once building is done.
type CandidateIndex struct {
	tree *rtreego.Rtree
	n    int
}

// NewCandidateIndex indexes the given candidates.
func NewCandidateIndex(candidates []Candidate) *CandidateIndex {
	idx := &CandidateIndex{tree: rtreego.NewTree(2, 25, 50)}
	for _, c := range candidates {
		idx.Insert(c)
	}
	return idx
}

// Insert adds a candidate. Candidates with an empty box are ignored.
func (idx *CandidateIndex) Insert(c Candidate) {
	box := BBox(c.Footprint)
	rect, ok := toRect(box)
	if !ok {
		return
	}
	idx.tree.Insert(&indexEntry{seq: idx.n, cand: c, box: box, rect: rect})
	idx.n++
}

// Len returns the number of indexed candidates.
func (idx *CandidateIndex) Len() int { return idx.tree.Size() }

// Query returns the candidates whose boxes intersect box, in insertion order.
func (idx *CandidateIndex) Query(box BoundingBox) []Candidate {
	rect, ok := toRect(box)
	if !ok {
		return nil
	}
	hits := idx.tree.SearchIntersect(rect)
	entries := make([]*indexEntry, 0, len(hits))
	for _, h := range hits {
		e := h.(*indexEntry)
		if box.Intersects(e.box) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Candidate, len(entries))
	for i, e := range entries {
		out[i] = e.cand
	}
	return out
}

// QueryPolygon is Query with the bounding box of p.
func (idx *CandidateIndex) QueryPolygon(p Polygon) []Candidate {
	return idx.Query(BBox(p))
}

func toRect(b BoundingBox) (rtreego.Rect, bool) {
	if b.IsEmpty() || math.IsInf(b.MinX, 0) || math.IsInf(b.MaxX, 0) {
		return rtreego.Rect{}, false
	}
	w := b.MaxX - b.MinX + 2*rectPad
	h := b.MaxY - b.MinY + 2*rectPad
	rect, err := rtreego.NewRect(rtreego.Point{b.MinX - rectPad, b.MinY - rectPad}, []float64{w, h})
	if err != nil {
		return rtreego.Rect{}, false
	}
	return rect, true
}
