package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/sitecover/model"
)

type countingRecorder struct {
	mu        sync.Mutex
	coverage  []model.CoverageStatus
	earlyExit int
	skipped   map[string]int
}

func (r *countingRecorder) ObserveCoverage(status model.CoverageStatus, _ int, early bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coverage = append(r.coverage, status)
	if early {
		r.earlyExit++
	}
}

func (r *countingRecorder) ObserveSelection(int, time.Duration) {}

func (r *countingRecorder) SkippedCandidate(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.skipped == nil {
		r.skipped = make(map[string]int)
	}
	r.skipped[reason]++
}

// failingOps fails every operation involving a footprint whose box starts at
// failMinX.
type failingOps struct {
	PlanarOps
	op       string
	failMinX float64
}

func (f failingOps) hit(op string, b Polygon) bool {
	return op == f.op && !b.IsEmpty() && BBox(b).MinX == f.failMinX
}

func (f failingOps) Union(a, b Polygon) (Polygon, error) {
	if f.hit(OpUnion, b) {
		return Polygon{}, &BooleanOpError{Op: OpUnion, Err: errors.New("boom")}
	}
	return f.PlanarOps.Union(a, b)
}

func (f failingOps) Intersect(a, b Polygon) (Polygon, error) {
	if f.hit(OpIntersect, b) {
		return Polygon{}, &BooleanOpError{Op: OpIntersect, Err: errors.New("boom")}
	}
	return f.PlanarOps.Intersect(a, b)
}

func (f failingOps) Difference(a, b Polygon) (Polygon, error) {
	if f.hit(OpDifference, b) {
		return Polygon{}, &BooleanOpError{Op: OpDifference, Err: errors.New("boom")}
	}
	return f.PlanarOps.Difference(a, b)
}

func strictEngine() *Engine {
	return NewEngine(Config{Epsilon: DefaultEpsilon, EarlyExit: false})
}

func TestCoverageScenarios(t *testing.T) {
	site := rect(0, 0, 10, 10)
	cases := []struct {
		name       string
		candidates []Candidate
		status     model.CoverageStatus
		percent    float64
	}{
		{
			name:       "no candidates",
			candidates: nil,
			status:     model.CoverageNo,
		},
		{
			name:       "disjoint boxes",
			candidates: []Candidate{NewCandidate("far", rect(20, 20, 30, 30), 1)},
			status:     model.CoverageNo,
		},
		{
			name:       "full containment",
			candidates: []Candidate{NewCandidate("A", rect(-1, -1, 11, 11), 5)},
			status:     model.CoverageFull,
			percent:    100,
		},
		{
			name:       "half coverage",
			candidates: []Candidate{NewCandidate("A", rect(-5, -5, 5, 15), 5)},
			status:     model.CoveragePartial,
			percent:    50,
		},
		{
			name: "split coverage",
			candidates: []Candidate{
				NewCandidate("A", rect(-1, -1, 5, 11), 10),
				NewCandidate("B", rect(5, -1, 11, 11), 1),
			},
			status:  model.CoverageFull,
			percent: 100,
		},
		{
			name: "overlapping quarters",
			candidates: []Candidate{
				NewCandidate("A", rect(0, 0, 5, 5), 1),
				NewCandidate("B", rect(2.5, 0, 7.5, 5), 1),
			},
			status:  model.CoveragePartial,
			percent: 37.5,
		},
		{
			name:       "point footprint only",
			candidates: []Candidate{NewCandidate("P", NewPoint(5, 5), 1)},
			status:     model.CoverageNo,
		},
		{
			name: "boxes overlap but shapes do not",
			candidates: []Candidate{
				NewCandidate("tri", NewPolygon(orb.Ring{{9, 20}, {20, 9}, {20, 20}}), 1),
			},
			status: model.CoverageNo,
		},
	}

	for _, tc := range cases {
		for _, early := range []bool{true, false} {
			e := NewEngine(Config{Epsilon: DefaultEpsilon, EarlyExit: early})
			got := e.Coverage(context.Background(), site, tc.candidates)
			if got.Status != tc.status {
				t.Errorf("%s (early=%v): status = %s, want %s", tc.name, early, got.Status, tc.status)
			}
			if !almostEqual(got.Percent, tc.percent, 1e-7) {
				t.Errorf("%s (early=%v): percent = %v, want %v", tc.name, early, got.Percent, tc.percent)
			}
		}
	}
}

func TestCoveragePercentBoundsAndStatus(t *testing.T) {
	site := rect(0, 0, 10, 10)
	sets := [][]Candidate{
		{NewCandidate("a", rect(-100, -100, 100, 100), 1)},
		{NewCandidate("a", rect(9.999, 9.999, 20, 20), 1)},
		{NewCandidate("a", rect(0.5, 0.5, 9.5, 9.5), 1), NewCandidate("b", rect(-1, -1, 3, 3), 2)},
		{NewCandidate("a", rect(1, 1, 2, 2), 1), NewCandidate("b", rect(3, 3, 4, 4), 1)},
	}
	e := strictEngine()
	for i, cands := range sets {
		res := e.Coverage(context.Background(), site, cands)
		if res.Percent < 0 || res.Percent > 100 {
			t.Errorf("set %d: percent %v out of range", i, res.Percent)
		}
		switch res.Status {
		case model.CoverageFull:
			if math.Abs(res.Percent/100-1) >= DefaultEpsilon {
				t.Errorf("set %d: Full with percent %v", i, res.Percent)
			}
		case model.CoverageNo:
			if res.Percent != 0 {
				t.Errorf("set %d: No with percent %v", i, res.Percent)
			}
		case model.CoveragePartial:
			if res.Percent <= 0 || res.Percent >= 100 {
				t.Errorf("set %d: Partial with percent %v", i, res.Percent)
			}
		}
	}
}

func TestCoverageMonotonicInStrictMode(t *testing.T) {
	site := rect(0, 0, 10, 10)
	all := []Candidate{
		NewCandidate("a", rect(-1, -1, 3, 4), 3),
		NewCandidate("b", rect(2, 2, 6, 6), 1),
		NewCandidate("c", rect(5, -2, 12, 2.5), 2),
		NewCandidate("d", rect(20, 20, 25, 25), 1),
		NewCandidate("e", rect(1, 5, 9, 12), 4),
		NewCandidate("f", rect(-3, 3, 11, 7), 5),
		NewCandidate("g", rect(-1, -1, 11, 11), 6),
	}
	e := strictEngine()
	prev := 0.0
	for n := 1; n <= len(all); n++ {
		res := e.Coverage(context.Background(), site, all[:n])
		if res.Percent+1e-9 < prev {
			t.Fatalf("coverage decreased from %v to %v after adding %s", prev, res.Percent, all[n-1].ID)
		}
		prev = res.Percent
	}
	if !almostEqual(prev, 100, 1e-7) {
		t.Fatalf("final coverage = %v, want 100", prev)
	}
}

func TestCoverageDeterministic(t *testing.T) {
	site := rect(0, 0, 10, 10)
	cands := []Candidate{
		NewCandidate("a", rect(-1, -1, 4, 4), 3),
		NewCandidate("b", rect(3, 3, 8, 12), 1),
	}
	e := NewEngine(DefaultConfig())
	first := e.Coverage(context.Background(), site, cands)
	for i := 0; i < 5; i++ {
		if got := e.Coverage(context.Background(), site, cands); got != first {
			t.Fatalf("run %d: %+v, want %+v", i, got, first)
		}
	}
}

func TestCoverageEarlyExitMatchesStrict(t *testing.T) {
	site := rect(0, 0, 10, 10)
	cands := []Candidate{
		NewCandidate("all", rect(-1, -1, 11, 11), 1),
		NewCandidate("x", rect(2, 2, 30, 30), 1),
		NewCandidate("y", rect(-30, -30, 1, 1), 1),
	}
	rec := &countingRecorder{}
	early := NewEngine(DefaultConfig(), WithMetrics(rec)).Coverage(context.Background(), site, cands)
	strict := strictEngine().Coverage(context.Background(), site, cands)
	if early.Status != model.CoverageFull || strict.Status != model.CoverageFull {
		t.Fatalf("early=%+v strict=%+v, want both Full", early, strict)
	}
	if rec.earlyExit != 1 {
		t.Fatalf("early exits recorded = %d, want 1", rec.earlyExit)
	}
}

func TestCoverageEmptyOrDegenerateSite(t *testing.T) {
	e := NewEngine(DefaultConfig())
	cands := []Candidate{NewCandidate("a", rect(-1, -1, 11, 11), 1)}
	for name, site := range map[string]Polygon{
		"empty": NewPolygon(),
		"point": NewPoint(1, 1),
		"line":  NewPolygon(orb.Ring{{0, 0}, {1, 1}, {2, 2}}),
	} {
		if got := e.Coverage(context.Background(), site, cands); got.Status != model.CoverageNo || got.Percent != 0 {
			t.Errorf("%s site: %+v, want No", name, got)
		}
	}
}

func TestEvaluateWKTMalformedSite(t *testing.T) {
	e := NewEngine(DefaultConfig())
	cands := []Candidate{NewCandidate("a", rect(-1, -1, 11, 11), 1)}
	got := e.EvaluateWKT(context.Background(), "POLYGON((0 0, 1 x))", cands)
	if got.Coverage.Status != model.CoverageNo || got.Coverage.Percent != 0 {
		t.Fatalf("coverage = %+v, want No", got.Coverage)
	}
	if len(got.Selection.IDs) != 0 {
		t.Fatalf("selection = %v, want empty", got.Selection.IDs)
	}
}

func TestCoverageSkipsFailedUnion(t *testing.T) {
	rec := &countingRecorder{}
	e := NewEngine(Config{Epsilon: DefaultEpsilon},
		WithOps(failingOps{op: OpUnion, failMinX: 5}),
		WithMetrics(rec),
	)
	site := rect(0, 0, 10, 10)
	cands := []Candidate{
		NewCandidate("left", rect(-1, -1, 5, 11), 1),
		NewCandidate("right", rect(5, -1, 11, 11), 1),
	}
	got := e.Coverage(context.Background(), site, cands)
	if got.Status != model.CoveragePartial || !almostEqual(got.Percent, 50, 1e-7) {
		t.Fatalf("coverage = %+v, want Partial 50", got)
	}
	if rec.skipped[SkipUnionFailed] != 1 {
		t.Fatalf("skipped = %v, want one union failure", rec.skipped)
	}
}

func TestCoverageConcurrentUse(t *testing.T) {
	e := NewEngine(DefaultConfig())
	site := rect(0, 0, 10, 10)
	cands := []Candidate{NewCandidate("a", rect(-5, -5, 5, 15), 1)}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := e.Coverage(context.Background(), site, cands); got.Status != model.CoveragePartial {
				t.Errorf("status = %s, want Partial", got.Status)
			}
		}()
	}
	wg.Wait()
}

func TestNewEngineFallsBackToDefaultEpsilon(t *testing.T) {
	e := NewEngine(Config{Epsilon: -1, EarlyExit: true})
	if e.Config().Epsilon != DefaultEpsilon {
		t.Fatalf("epsilon = %v, want default", e.Config().Epsilon)
	}
}
