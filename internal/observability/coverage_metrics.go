package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/sitecover/model"
)

// CoverageCollector exposes coverage-engine and enrichment metrics.
type CoverageCollector struct {
	gatherer prometheus.Gatherer

	Evaluations          *prometheus.CounterVec
	EvaluationDuration   prometheus.Histogram
	CandidatesConsidered prometheus.Histogram
	EarlyExits           prometheus.Counter
	SkippedCandidates    *prometheus.CounterVec
	SelectionSize        prometheus.Histogram
	CacheRequests        *prometheus.CounterVec
	GroupRefreshes       *prometheus.CounterVec
}

// NewCoverageCollector registers coverage metrics against the provided registerer.
func NewCoverageCollector(reg prometheus.Registerer) (*CoverageCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	evaluations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitecover_evaluations_total",
		Help: "Site coverage evaluations, labeled by resulting coverage status.",
	}, []string{"status"}), "sitecover_evaluations_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitecover_evaluation_duration_seconds",
		Help:    "Duration of a single site coverage computation.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}), "sitecover_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	considered, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitecover_candidates_considered",
		Help:    "Overlay candidates surviving the bounding-box prefilter per evaluation.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}), "sitecover_candidates_considered")
	if err != nil {
		return nil, err
	}

	earlyExits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitecover_early_exits_total",
		Help: "Evaluations that stopped merging overlays once the site was fully covered.",
	}), "sitecover_early_exits_total")
	if err != nil {
		return nil, err
	}

	skipped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitecover_skipped_candidates_total",
		Help: "Overlay candidates dropped during evaluation, labeled by reason.",
	}, []string{"reason"}), "sitecover_skipped_candidates_total")
	if err != nil {
		return nil, err
	}

	selection, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitecover_selection_size",
		Help:    "Number of overlays selected to cover a site.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
	}), "sitecover_selection_size")
	if err != nil {
		return nil, err
	}

	cache, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitecover_cache_requests_total",
		Help: "Enrichment cache lookups, labeled by result (hit or miss).",
	}, []string{"result"}), "sitecover_cache_requests_total")
	if err != nil {
		return nil, err
	}

	refreshes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitecover_group_refreshes_total",
		Help: "Periodic group refresh runs, labeled by outcome.",
	}, []string{"outcome"}), "sitecover_group_refreshes_total")
	if err != nil {
		return nil, err
	}

	return &CoverageCollector{
		gatherer:             gathererFor(reg),
		Evaluations:          evaluations,
		EvaluationDuration:   duration,
		CandidatesConsidered: considered,
		EarlyExits:           earlyExits,
		SkippedCandidates:    skipped,
		SelectionSize:        selection,
		CacheRequests:        cache,
		GroupRefreshes:       refreshes,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *CoverageCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveCoverage records one coverage computation.
func (c *CoverageCollector) ObserveCoverage(status model.CoverageStatus, candidates int, earlyExit bool, d time.Duration) {
	if c == nil {
		return
	}
	c.Evaluations.WithLabelValues(string(status)).Inc()
	c.EvaluationDuration.Observe(d.Seconds())
	c.CandidatesConsidered.Observe(float64(candidates))
	if earlyExit {
		c.EarlyExits.Inc()
	}
}

// ObserveSelection records the size of an overlay selection.
func (c *CoverageCollector) ObserveSelection(selected int, _ time.Duration) {
	if c == nil {
		return
	}
	c.SelectionSize.Observe(float64(selected))
}

// SkippedCandidate counts a candidate dropped for reason.
func (c *CoverageCollector) SkippedCandidate(reason string) {
	if c == nil {
		return
	}
	c.SkippedCandidates.WithLabelValues(reason).Inc()
}

// CacheLookup counts a cache hit or miss.
func (c *CoverageCollector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheRequests.WithLabelValues(result).Inc()
}

// GroupRefreshed counts a periodic refresh of one group.
func (c *CoverageCollector) GroupRefreshed(err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.GroupRefreshes.WithLabelValues(outcome).Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
