// Package enrich annotates sites with imagery coverage, the overlays that
// cover them, a deep link and the merged field status.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/sitecover/core"
	"github.com/signalsfoundry/sitecover/internal/cache"
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/internal/overlaysearch"
	"github.com/signalsfoundry/sitecover/internal/sitestore"
	"github.com/signalsfoundry/sitecover/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/signalsfoundry/sitecover/internal/enrich"

const (
	DefaultConcurrency = 4
	DefaultWindow      = 30 * 24 * time.Hour
)

// ErrNoSearcher is returned when overlays must be fetched but no searcher
// was configured.
var ErrNoSearcher = errors.New("no overlay searcher configured")

// SiteSource provides groups and their sites.
type SiteSource interface {
	Group(ctx context.Context, id int64) (model.Group, error)
	SitesByGroup(ctx context.Context, groupID int64) ([]model.Site, error)
}

// OverlaySearcher finds overlays intersecting a site within a time range.
type OverlaySearcher interface {
	Overlays(ctx context.Context, siteWKT string, start, end time.Time) ([]model.Overlay, error)
}

// MetricsRecorder receives cache lookup outcomes.
type MetricsRecorder interface {
	CacheLookup(hit bool)
}

type noopMetrics struct{}

func (noopMetrics) CacheLookup(bool) {}

// Config bounds enrichment work.
type Config struct {
	// Concurrency is the number of sites evaluated at once.
	Concurrency int
	// Window is the imagery lookback used when a group has none.
	Window time.Duration
	// SharedSearch makes EnrichGroup issue one overlay search for the
	// whole group instead of one per site.
	SharedSearch bool
}

// Service runs enrichment for single sites and whole groups.
type Service struct {
	sites   SiteSource
	manager sitestore.Writer
	search  OverlaySearcher
	engine  *core.Engine
	links   core.LinkBuilder
	cache   cache.Cache
	metrics MetricsRecorder
	log     logging.Logger
	cfg     Config
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(log logging.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a Service. search may be nil when only
// EnrichSitesWithOverlays and Evaluate are used.
func NewService(sites SiteSource, search OverlaySearcher, engine *core.Engine, links core.LinkBuilder, opts ...Option) *Service {
	s := &Service{
		sites:   sites,
		search:  search,
		engine:  engine,
		links:   links,
		cache:   cache.Noop{},
		metrics: noopMetrics{},
		log:     logging.Noop(),
		cfg:     Config{Concurrency: DefaultConcurrency, Window: DefaultWindow},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = core.NewEngine(core.DefaultConfig(), core.WithLogger(s.log))
	}
	if s.cfg.Concurrency < 1 {
		s.cfg.Concurrency = DefaultConcurrency
	}
	if s.cfg.Window <= 0 {
		s.cfg.Window = DefaultWindow
	}
	return s
}

// Engine exposes the coverage engine used by the service.
func (s *Service) Engine() *core.Engine { return s.engine }

// Evaluate computes the enriched record for site against overlays already
// in hand. It never fails: an unparseable site or footprint degrades to
// no coverage.
func (s *Service) Evaluate(ctx context.Context, site model.Site, overlays []model.Overlay) model.EnrichedSite {
	candidates := core.BuildCandidates(ctx, s.logger(ctx), overlays)
	return s.evaluateCandidates(ctx, site, candidates)
}

func (s *Service) evaluateCandidates(ctx context.Context, site model.Site, candidates []core.Candidate) model.EnrichedSite {
	eval := s.engine.EvaluateWKT(ctx, site.Geometry, candidates)
	out := model.EnrichedSite{
		Site:             site,
		Coverage:         eval.Coverage.Status,
		CoveragePercent:  eval.Coverage.Percent,
		SelectedOverlays: eval.Selection.IDs,
		Link:             s.links.Build(eval.Selection.IDs),
		Merged:           model.MergeStatus(eval.Coverage.Status, site.Visit),
		EvaluatedAt:      s.now().UTC(),
	}
	return out
}

// EnrichSite fetches overlays for site over window and evaluates them. A
// cached result is returned unless refresh is set. An upstream failure is
// returned alongside a not-covered record so callers can still render the
// site.
func (s *Service) EnrichSite(ctx context.Context, site model.Site, window time.Duration, refresh bool) (model.EnrichedSite, error) {
	ctx, span := startSpan(ctx, "enrich.EnrichSite", attribute.Int64("site.id", site.ID))
	defer span.End()

	if window <= 0 {
		window = s.cfg.Window
	}
	log := s.logger(ctx)
	key := cache.SiteKey(site, window)

	if !refresh {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn(ctx, "enrichment cache lookup failed", logging.Int64("site_id", site.ID), logging.Err(err))
		}
		s.metrics.CacheLookup(ok)
		if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	if s.search == nil {
		return s.failed(site), ErrNoSearcher
	}
	end := s.now()
	overlays, err := s.search.Overlays(ctx, site.Geometry, end.Add(-window), end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "overlay search failed")
		log.Error(ctx, "overlay search failed",
			logging.Int64("site_id", site.ID),
			logging.Err(err),
		)
		return s.failed(site), fmt.Errorf("search overlays for site %d: %w", site.ID, err)
	}

	out := s.Evaluate(ctx, site, overlays)
	if err := s.cache.Set(ctx, key, out); err != nil {
		log.Warn(ctx, "failed to cache enriched site", logging.Int64("site_id", site.ID), logging.Err(err))
	}
	span.SetAttributes(
		attribute.Int("overlays", len(overlays)),
		attribute.String("coverage.status", string(out.Coverage)),
	)
	return out, nil
}

// GroupResult is the outcome of enriching one group. Failed counts sites
// whose overlay search failed; they are present in Sites as not covered.
type GroupResult struct {
	Group  model.Group
	Sites  []model.EnrichedSite
	Failed int
}

// EnrichGroup enriches every site of a group with at most
// Config.Concurrency sites in flight. Results keep the store's site order.
// Only a store failure or cancellation returns an error.
func (s *Service) EnrichGroup(ctx context.Context, groupID int64, refresh bool) (GroupResult, error) {
	ctx, span := startSpan(ctx, "enrich.EnrichGroup", attribute.Int64("group.id", groupID))
	defer span.End()

	group, sites, err := s.loadGroup(ctx, groupID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GroupResult{}, err
	}

	var (
		out    []model.EnrichedSite
		failed int
	)
	if s.cfg.SharedSearch && s.search != nil {
		out, failed, err = s.enrichShared(ctx, group, sites, refresh)
	} else {
		out, failed, err = s.enrichEach(ctx, group, sites, refresh)
	}
	if err != nil {
		return GroupResult{}, err
	}

	res := GroupResult{Group: group, Sites: out, Failed: failed}
	span.SetAttributes(attribute.Int("sites", len(out)), attribute.Int("failed", res.Failed))
	s.logger(ctx).Info(ctx, "group enriched",
		logging.Int64("group_id", groupID),
		logging.Int("sites", len(out)),
		logging.Int("failed", res.Failed),
	)
	return res, nil
}

// enrichEach runs one overlay search per site.
func (s *Service) enrichEach(ctx context.Context, group model.Group, sites []model.Site, refresh bool) ([]model.EnrichedSite, int, error) {
	out := make([]model.EnrichedSite, len(sites))
	failed := make([]bool, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, site := range sites {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.EnrichSite(gctx, site, group.Window, refresh)
			out[i] = res
			failed[i] = err != nil
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return out, n, nil
}

// enrichShared serves cached sites from the cache and searches once for
// the rest, over the merged footprint of their boundaries. A failed search
// marks every uncached site failed.
func (s *Service) enrichShared(ctx context.Context, group model.Group, sites []model.Site, refresh bool) ([]model.EnrichedSite, int, error) {
	window := s.window(group)
	out := make([]model.EnrichedSite, len(sites))
	var (
		pending []int
		wkts    []string
	)
	for i, site := range sites {
		if !refresh {
			cached, ok, err := s.cache.Get(ctx, cache.SiteKey(site, window))
			s.metrics.CacheLookup(ok)
			if err == nil && ok {
				out[i] = cached
				continue
			}
		}
		pending = append(pending, i)
		wkts = append(wkts, site.Geometry)
	}
	if len(pending) == 0 {
		return out, 0, nil
	}

	todo := make([]model.Site, len(pending))
	for j, i := range pending {
		todo[j] = sites[i]
	}
	var overlays []model.Overlay
	if area := overlaysearch.MergeFootprints(wkts); area != "" {
		end := s.now()
		found, err := s.search.Overlays(ctx, area, end.Add(-window), end)
		if err != nil {
			s.logger(ctx).Error(ctx, "group overlay search failed",
				logging.Int64("group_id", group.ID),
				logging.Err(err),
			)
			for j, i := range pending {
				out[i] = s.failed(todo[j])
			}
			return out, len(pending), nil
		}
		overlays = found
	}

	enriched, err := s.EnrichSitesWithOverlays(ctx, todo, overlays)
	if err != nil {
		return nil, 0, err
	}
	for j, i := range pending {
		out[i] = enriched[j]
		if err := s.cache.Set(ctx, cache.SiteKey(todo[j], window), enriched[j]); err != nil {
			s.logger(ctx).Warn(ctx, "failed to cache enriched site", logging.Int64("site_id", todo[j].ID), logging.Err(err))
		}
	}
	return out, 0, nil
}

// EnrichSitesWithOverlays evaluates many sites against one shared overlay
// set. Footprints are parsed and indexed once; each site only sees the
// overlays whose boxes meet its own.
func (s *Service) EnrichSitesWithOverlays(ctx context.Context, sites []model.Site, overlays []model.Overlay) ([]model.EnrichedSite, error) {
	ctx, span := startSpan(ctx, "enrich.EnrichSitesWithOverlays",
		attribute.Int("sites", len(sites)),
		attribute.Int("overlays", len(overlays)),
	)
	defer span.End()

	idx := core.NewCandidateIndex(core.BuildCandidates(ctx, s.logger(ctx), overlays))
	out := make([]model.EnrichedSite, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, site := range sites {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var candidates []core.Candidate
			if poly, err := core.ParseWKT(site.Geometry); err == nil {
				candidates = idx.QueryPolygon(poly)
			}
			out[i] = s.evaluateCandidates(gctx, site, candidates)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GroupSites returns the group's sites, enriched from cache where possible
// and as not-yet-evaluated otherwise. It never calls the overlay search.
func (s *Service) GroupSites(ctx context.Context, groupID int64) ([]model.EnrichedSite, error) {
	group, sites, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.cachedSites(ctx, s.window(group), sites), nil
}

func (s *Service) cachedSites(ctx context.Context, window time.Duration, sites []model.Site) []model.EnrichedSite {
	out := make([]model.EnrichedSite, len(sites))
	for i, site := range sites {
		cached, ok, err := s.cache.Get(ctx, cache.SiteKey(site, window))
		s.metrics.CacheLookup(ok)
		if err == nil && ok {
			out[i] = cached
			continue
		}
		out[i] = model.EnrichedSite{Site: site}
	}
	return out
}

// window is the group's lookback, or the service default.
func (s *Service) window(group model.Group) time.Duration {
	if group.Window > 0 {
		return group.Window
	}
	return s.cfg.Window
}

func (s *Service) loadGroup(ctx context.Context, groupID int64) (model.Group, []model.Site, error) {
	if s.sites == nil {
		return model.Group{}, nil, errors.New("no site source configured")
	}
	group, err := s.sites.Group(ctx, groupID)
	if err != nil {
		return model.Group{}, nil, err
	}
	sites, err := s.sites.SitesByGroup(ctx, groupID)
	if err != nil {
		return model.Group{}, nil, err
	}
	return group, sites, nil
}

func (s *Service) failed(site model.Site) model.EnrichedSite {
	return model.EnrichedSite{
		Site:        site,
		Coverage:    model.CoverageNo,
		Link:        s.links.Build(nil),
		Merged:      model.MergeStatus(model.CoverageNo, site.Visit),
		EvaluatedAt: s.now().UTC(),
	}
}

func (s *Service) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, s.log)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
