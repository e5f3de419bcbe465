package enrich

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/sitecover/core"
	"github.com/signalsfoundry/sitecover/internal/cache"
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/internal/sitestore"
	"github.com/signalsfoundry/sitecover/model"
	"go.opentelemetry.io/otel/attribute"
)

// ErrReadOnly is returned by site management calls when the service has
// no writable store.
var ErrReadOnly = errors.New("site store is read-only")

// WithSiteManager enables visit updates, filtering, removal and history.
func WithSiteManager(w sitestore.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.manager = w
		}
	}
}

// WatchStore drops cached enrichments of sites that change in w, so the
// next read recomputes the merged status. The returned func stops watching.
func (s *Service) WatchStore(w interface {
	Subscribe(fn func(sitestore.Event)) (unsubscribe func())
}) (stop func()) {
	return w.Subscribe(func(ev sitestore.Event) {
		if ev.Type == sitestore.EventSiteAdded {
			return
		}
		s.Invalidate(context.Background(), ev.Site)
	})
}

// Invalidate removes the cached enrichment of site.
func (s *Service) Invalidate(ctx context.Context, site model.Site) {
	window := s.cfg.Window
	if s.sites != nil {
		if g, err := s.sites.Group(ctx, site.GroupID); err == nil {
			window = s.window(g)
		}
	}
	if err := s.cache.Delete(ctx, cache.SiteKey(site, window)); err != nil {
		s.logger(ctx).Warn(ctx, "failed to invalidate cached site", logging.Int64("site_id", site.ID), logging.Err(err))
	}
}

// FilterSites returns the group's sites matching f, enriched. Username and
// seen status are matched in the store; the updated status is matched on
// the computed coverage. Without a searcher only cached enrichments are
// used and uncached sites have no coverage to match.
func (s *Service) FilterSites(ctx context.Context, groupID int64, f model.SiteFilter) ([]model.EnrichedSite, error) {
	ctx, span := startSpan(ctx, "enrich.FilterSites", attribute.Int64("group.id", groupID))
	defer span.End()

	if s.manager == nil {
		return nil, ErrReadOnly
	}
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	group, err := s.manager.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	sites, err := s.manager.FilterSites(ctx, groupID, f)
	if err != nil {
		return nil, err
	}

	var enriched []model.EnrichedSite
	if s.search == nil {
		enriched = s.cachedSites(ctx, s.window(group), sites)
	} else {
		enriched, _, err = s.enrichEach(ctx, group, sites, false)
		if err != nil {
			return nil, err
		}
	}
	out := make([]model.EnrichedSite, 0, len(enriched))
	for _, e := range enriched {
		if f.MatchCoverage(e.Coverage) {
			out = append(out, e)
		}
	}
	span.SetAttributes(attribute.Int("sites", len(out)))
	return out, nil
}

func validateFilter(f model.SiteFilter) error {
	for _, st := range f.SeenStatuses {
		if !st.Valid() {
			return fmt.Errorf("%w: unknown seen status %q", ErrInvalidRequest, st)
		}
	}
	for _, st := range f.UpdatedStatuses {
		if !st.Valid() {
			return fmt.Errorf("%w: unknown updated status %q", ErrInvalidRequest, st)
		}
	}
	return nil
}

// SetVisit records a field visit on the site owned by username. A zero at
// means now.
func (s *Service) SetVisit(ctx context.Context, username, siteName string, status model.VisitStatus, at time.Time) (model.Site, error) {
	if s.manager == nil {
		return model.Site{}, ErrReadOnly
	}
	if !status.Valid() {
		return model.Site{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	if at.IsZero() {
		at = s.now()
	}
	site, err := s.manager.SiteByName(ctx, username, siteName)
	if err != nil {
		return model.Site{}, err
	}
	updated, err := s.manager.SetVisit(ctx, site.ID, status, at)
	if err != nil {
		return model.Site{}, err
	}
	s.logger(ctx).Info(ctx, "visit recorded",
		logging.Int64("site_id", updated.ID),
		logging.String("status", string(status)),
	)
	return updated, nil
}

// RemoveSite deletes the site owned by username.
func (s *Service) RemoveSite(ctx context.Context, username, siteName string) error {
	if s.manager == nil {
		return ErrReadOnly
	}
	site, err := s.manager.SiteByName(ctx, username, siteName)
	if err != nil {
		return err
	}
	if err := s.manager.RemoveSite(ctx, site.ID); err != nil {
		return err
	}
	s.logger(ctx).Info(ctx, "site removed", logging.Int64("site_id", site.ID))
	return nil
}

// VisitHistory lists the recorded visits of a site, oldest first.
func (s *Service) VisitHistory(ctx context.Context, siteID int64) ([]model.VisitRecord, error) {
	if s.manager == nil {
		return nil, ErrReadOnly
	}
	return s.manager.VisitHistory(ctx, siteID)
}

// CoverHistory searches the site's window and reports, per acquisition
// day, the coverage the imagery of that day gives the site. Days are in
// ascending order; overlays without a date are ignored.
func (s *Service) CoverHistory(ctx context.Context, siteID int64) ([]model.CoverUpdate, error) {
	ctx, span := startSpan(ctx, "enrich.CoverHistory", attribute.Int64("site.id", siteID))
	defer span.End()

	if s.manager == nil {
		return nil, ErrReadOnly
	}
	if s.search == nil {
		return nil, ErrNoSearcher
	}
	site, err := s.manager.Site(ctx, siteID)
	if err != nil {
		return nil, err
	}
	window := s.cfg.Window
	if g, err := s.manager.Group(ctx, site.GroupID); err == nil {
		window = s.window(g)
	}
	end := s.now()
	overlays, err := s.search.Overlays(ctx, site.Geometry, end.Add(-window), end)
	if err != nil {
		return nil, fmt.Errorf("search overlays for site %d: %w", site.ID, err)
	}

	byDay := make(map[string][]model.Overlay)
	for _, o := range overlays {
		if o.Date.IsZero() {
			continue
		}
		key := model.DateKey(o.Date)
		byDay[key] = append(byDay[key], o)
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	out := make([]model.CoverUpdate, 0, len(days))
	for _, d := range days {
		candidates := core.BuildCandidates(ctx, s.logger(ctx), byDay[d])
		cov := s.engine.EvaluateWKT(ctx, site.Geometry, candidates).Coverage
		out = append(out, model.CoverUpdate{Date: d, Status: cov.Status})
	}
	span.SetAttributes(attribute.Int("days", len(out)))
	return out, nil
}

// MergedHistory joins the site's cover history with its visit history.
func (s *Service) MergedHistory(ctx context.Context, siteID int64) (model.MergedHistory, error) {
	covers, err := s.CoverHistory(ctx, siteID)
	if err != nil {
		return model.MergedHistory{}, err
	}
	visits, err := s.manager.VisitHistory(ctx, siteID)
	if err != nil {
		return model.MergedHistory{}, err
	}
	site, err := s.manager.Site(ctx, siteID)
	if err != nil {
		return model.MergedHistory{}, err
	}
	return model.MergedHistory{
		SiteID:   site.ID,
		SiteName: site.Name,
		History:  model.MergeHistory(covers, visits),
	}, nil
}
