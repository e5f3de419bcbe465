package core

import (
	"context"
	"time"

	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/sitecover/core"

// Reasons reported to MetricsRecorder.SkippedCandidate.
const (
	SkipUnionFailed      = "union_failed"
	SkipIntersectFailed  = "intersect_failed"
	SkipDifferenceFailed = "difference_failed"
)

// MetricsRecorder receives engine measurements. The observability package
// provides a Prometheus implementation.
type MetricsRecorder interface {
	ObserveCoverage(status model.CoverageStatus, candidates int, earlyExit bool, d time.Duration)
	ObserveSelection(selected int, d time.Duration)
	SkippedCandidate(reason string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveCoverage(model.CoverageStatus, int, bool, time.Duration) {}
func (noopRecorder) ObserveSelection(int, time.Duration)                            {}
func (noopRecorder) SkippedCandidate(string)                                         {}

// Engine computes site coverage and overlay selections. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	ops     GeometryOps
	cfg     Config
	log     logging.Logger
	metrics MetricsRecorder
}

// EngineOption configures optional Engine dependencies.
type EngineOption func(*Engine)

// WithOps overrides the geometry backend.
func WithOps(ops GeometryOps) EngineOption {
	return func(e *Engine) {
		if ops != nil {
			e.ops = ops
		}
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(log logging.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics attaches a MetricsRecorder.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewEngine builds an engine. A zero or invalid Epsilon falls back to
// DefaultEpsilon.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	if cfg.Validate() != nil {
		cfg.Epsilon = DefaultEpsilon
	}
	e := &Engine{
		ops:     PlanarOps{},
		cfg:     cfg,
		log:     logging.Noop(),
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Evaluation is the combined result for one site.
type Evaluation struct {
	Coverage  CoverageResult
	Selection Selection
}

// Evaluate runs coverage and selection over the same candidates.
func (e *Engine) Evaluate(ctx context.Context, site Polygon, candidates []Candidate) Evaluation {
	return Evaluation{
		Coverage:  e.Coverage(ctx, site, candidates),
		Selection: e.Select(ctx, site, candidates),
	}
}

// EvaluateWKT parses the site boundary and evaluates it. A site that fails
// to parse is reported as not covered with an empty selection.
func (e *Engine) EvaluateWKT(ctx context.Context, siteWKT string, candidates []Candidate) Evaluation {
	site, err := ParseWKT(siteWKT)
	if err != nil {
		e.logger(ctx).Warn(ctx, "site geometry did not parse", logging.Err(err))
		e.metrics.ObserveCoverage(model.CoverageNo, 0, false, 0)
		return Evaluation{Coverage: CoverageResult{Status: model.CoverageNo}}
	}
	return e.Evaluate(ctx, site, candidates)
}

// prefilter keeps candidates whose box meets the site box, in input order.
func (e *Engine) prefilter(site BoundingBox, candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if site.Intersects(e.ops.BBox(c.Footprint)) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, e.log)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
