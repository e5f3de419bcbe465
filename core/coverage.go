package core

import (
	"context"
	"math"
	"time"

	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/model"
	"go.opentelemetry.io/otel/attribute"
)

// CoverageResult is the share of a site covered by the union of candidates.
// Percent is always within [0, 100].
type CoverageResult struct {
	Percent float64
	Status  model.CoverageStatus
}

// Coverage unions the bbox-filtered candidates in input order and measures
// how much of site the union covers.
func (e *Engine) Coverage(ctx context.Context, site Polygon, candidates []Candidate) CoverageResult {
	ctx, span := startSpan(ctx, "core.Coverage", attribute.Int("candidates", len(candidates)))
	defer span.End()

	start := time.Now()
	res, considered, early := e.coverage(ctx, site, candidates)
	e.metrics.ObserveCoverage(res.Status, considered, early, time.Since(start))

	span.SetAttributes(
		attribute.String("coverage.status", string(res.Status)),
		attribute.Float64("coverage.percent", res.Percent),
		attribute.Bool("coverage.early_exit", early),
	)
	return res
}

func (e *Engine) coverage(ctx context.Context, site Polygon, candidates []Candidate) (CoverageResult, int, bool) {
	none := CoverageResult{Status: model.CoverageNo}
	if site.IsEmpty() || len(candidates) == 0 {
		return none, 0, false
	}
	siteArea := e.ops.Area(site)
	if siteArea <= 0 {
		return none, 0, false
	}
	filtered := e.prefilter(e.ops.BBox(site), candidates)
	if len(filtered) == 0 {
		return none, 0, false
	}

	log := e.logger(ctx)
	unioned := filtered[0].Footprint
	early := false
	for i := 1; i < len(filtered); i++ {
		next, err := e.ops.Union(unioned, filtered[i].Footprint)
		if err != nil {
			log.Warn(ctx, "failed to union overlay",
				logging.String("overlay_id", filtered[i].ID),
				logging.Err(err),
			)
			e.metrics.SkippedCandidate(SkipUnionFailed)
			continue
		}
		unioned = next

		if !e.cfg.EarlyExit {
			continue
		}
		reached, err := e.ops.Intersect(site, unioned)
		if err != nil {
			continue
		}
		if e.fullyCovered(e.ops.Area(reached) / siteArea) {
			log.Debug(ctx, "site covered before all overlays were merged",
				logging.Int("processed", i+1),
				logging.Int("total", len(filtered)),
			)
			early = true
			break
		}
	}

	covered, err := e.ops.Intersect(site, unioned)
	if err != nil {
		log.Warn(ctx, "final coverage intersection failed", logging.Err(err))
		return none, len(filtered), early
	}
	if covered.IsEmpty() {
		return none, len(filtered), early
	}
	percent := clampPercent(e.ops.Area(covered) / siteArea * 100)
	return CoverageResult{Percent: percent, Status: e.classify(percent)}, len(filtered), early
}

func (e *Engine) classify(percent float64) model.CoverageStatus {
	switch {
	case e.fullyCovered(percent / 100):
		return model.CoverageFull
	case percent > 0:
		return model.CoveragePartial
	default:
		return model.CoverageNo
	}
}

// fullyCovered reports whether ratio is within epsilon of 1.
func (e *Engine) fullyCovered(ratio float64) bool {
	return math.Abs(ratio-1) < e.cfg.Epsilon
}

func clampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
