package core

import (
	"context"
	"sort"
	"time"

	"github.com/signalsfoundry/sitecover/internal/logging"
	"go.opentelemetry.io/otel/attribute"
)

// Selection is the ordered set of overlays chosen to cover a site, best
// resolution first.
type Selection struct {
	IDs           []string
	RemainingArea float64
	SiteArea      float64
}

// CoveredFraction returns the share of the site explained by the selection.
func (s Selection) CoveredFraction() float64 {
	if s.SiteArea <= 0 {
		return 0
	}
	f := (s.SiteArea - s.RemainingArea) / s.SiteArea
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Select greedily picks overlays in ascending resolution order, subtracting
// each chosen footprint from the still-uncovered part of the site, until the
// uncovered share drops below epsilon or the candidates run out.
func (e *Engine) Select(ctx context.Context, site Polygon, candidates []Candidate) Selection {
	ctx, span := startSpan(ctx, "core.Select", attribute.Int("candidates", len(candidates)))
	defer span.End()

	start := time.Now()
	sel := e.selectOverlays(ctx, site, candidates)
	e.metrics.ObserveSelection(len(sel.IDs), time.Since(start))

	span.SetAttributes(attribute.Int("selection.size", len(sel.IDs)))
	return sel
}

func (e *Engine) selectOverlays(ctx context.Context, site Polygon, candidates []Candidate) Selection {
	if site.IsEmpty() || len(candidates) == 0 {
		return Selection{}
	}
	siteArea := e.ops.Area(site)
	if siteArea <= 0 {
		return Selection{}
	}
	filtered := e.prefilter(e.ops.BBox(site), candidates)
	if len(filtered) == 0 {
		return Selection{SiteArea: siteArea, RemainingArea: siteArea}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return resolutionKey(filtered[i]) < resolutionKey(filtered[j])
	})

	log := e.logger(ctx)
	remaining := site
	sel := Selection{SiteArea: siteArea, RemainingArea: siteArea}
	for _, c := range filtered {
		inter, err := e.ops.Intersect(remaining, c.Footprint)
		if err != nil {
			log.Warn(ctx, "failed to intersect overlay with uncovered area",
				logging.String("overlay_id", c.ID),
				logging.Err(err),
			)
			e.metrics.SkippedCandidate(SkipIntersectFailed)
			continue
		}
		gained := e.ops.Area(inter)
		if inter.IsEmpty() || gained <= 0 {
			continue
		}

		sel.IDs = append(sel.IDs, c.ID)
		sel.RemainingArea -= gained
		if sel.RemainingArea/siteArea < e.cfg.Epsilon {
			log.Debug(ctx, "site fully covered by selection", logging.Int("overlays", len(sel.IDs)))
			return sel
		}

		if c.Footprint.Kind() == KindPoint {
			continue
		}
		diff, err := e.ops.Difference(remaining, c.Footprint)
		if err != nil {
			log.Warn(ctx, "failed to subtract overlay, keeping uncovered area",
				logging.String("overlay_id", c.ID),
				logging.Err(err),
			)
			e.metrics.SkippedCandidate(SkipDifferenceFailed)
			continue
		}
		remaining = diff
	}

	log.Debug(ctx, "overlay selection complete",
		logging.Int("overlays", len(sel.IDs)),
		logging.Float("covered_percent", sel.CoveredFraction()*100),
	)
	return sel
}
