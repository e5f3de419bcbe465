package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// RPCCollector bundles Prometheus metrics for the gRPC surface and provides
// helpers to wire them into gRPC servers and HTTP handlers.
type RPCCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
	InFlight     *prometheus.GaugeVec

	Sites  prometheus.Gauge
	Groups prometheus.Gauge
}

// NewRPCCollector registers RPC metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRPCCollector(reg prometheus.Registerer) (*RPCCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := gathererFor(reg)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitecover_rpc_requests_total",
		Help: "Total number of handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "sitecover_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitecover_rpc_request_duration_seconds",
		Help:    "RPC latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method"})
	durations, err = registerHistogramVec(reg, durations, "sitecover_rpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	inFlight, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sitecover_rpc_in_flight",
		Help: "Requests currently being handled, labeled by service (gRPC service or \"http\").",
	}, []string{"service"}), "sitecover_rpc_in_flight")
	if err != nil {
		return nil, err
	}

	sites, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sitecover_store_sites",
		Help: "Current number of sites held by the site store.",
	}), "sitecover_store_sites")
	if err != nil {
		return nil, err
	}
	groups, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sitecover_store_groups",
		Help: "Current number of site groups held by the site store.",
	}), "sitecover_store_groups")
	if err != nil {
		return nil, err
	}

	return &RPCCollector{
		gatherer:     gatherer,
		RPCRequests:  requests,
		RPCDurations: durations,
		InFlight:     inFlight,
		Sites:        sites,
		Groups:       groups,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *RPCCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if c == nil {
			return handler(ctx, req)
		}
		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}

		done := c.TrackInFlight(fullMethod)
		start := time.Now()
		resp, err := handler(ctx, req)
		done()

		c.Observe(fullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// Observe records one request. The HTTP API reuses it with a synthetic
// "/http/<route>" method name.
func (c *RPCCollector) Observe(fullMethod, code string, d time.Duration) {
	if c == nil {
		return
	}
	service, method := SplitMethod(fullMethod)
	if c.RPCRequests != nil {
		c.RPCRequests.WithLabelValues(service, method, code).Inc()
	}
	if c.RPCDurations != nil {
		c.RPCDurations.WithLabelValues(service, method).Observe(d.Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RPCCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetStoreCounts satisfies sitestore.MetricsRecorder so the memory store can
// drive gauge values from its mutators.
func (c *RPCCollector) SetStoreCounts(sites, groups int) {
	if c == nil {
		return
	}
	if c.Sites != nil {
		c.Sites.Set(float64(sites))
	}
	if c.Groups != nil {
		c.Groups.Set(float64(groups))
	}
}

// TrackInFlight raises the in-flight gauge for the method's service and
// returns the function that lowers it again.
func (c *RPCCollector) TrackInFlight(fullMethod string) func() {
	if c == nil || c.InFlight == nil {
		return func() {}
	}
	service, _ := SplitMethod(fullMethod)
	g := c.InFlight.WithLabelValues(service)
	g.Inc()
	return g.Dec
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func gathererFor(reg prometheus.Registerer) prometheus.Gatherer {
	if g, ok := reg.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}
