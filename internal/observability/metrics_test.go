package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/sitecover.v1.CoverageService/EvaluateSite"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("CoverageService", "EvaluateSite", "OK")); got != 1 {
		t.Fatalf("sitecover_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "sitecover_rpc_request_duration_seconds", map[string]string{
		"service": "CoverageService",
		"method":  "EvaluateSite",
	}); count != 1 {
		t.Fatalf("sitecover_rpc_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/sitecover.v1.CoverageService/EnrichGroup"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("CoverageService", "EnrichGroup", "InvalidArgument")); got != 1 {
		t.Fatalf("sitecover_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesStoreGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	collector.SetStoreCounts(37, 5)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	collector.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"sitecover_rpc_requests_total",
		"sitecover_rpc_request_duration_seconds",
		"sitecover_store_sites",
		"sitecover_store_groups",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, "sitecover_store_sites 37") || !strings.Contains(body, "sitecover_store_groups 5") {
		t.Fatalf("/metrics output missing store gauge values: %s", body)
	}
}

func TestSplitMethod(t *testing.T) {
	cases := []struct {
		in, service, method string
	}{
		{"/sitecover.v1.CoverageService/EvaluateSite", "CoverageService", "EvaluateSite"},
		{"/http/coverage", "http", "coverage"},
		{"", "unknown", "unknown"},
		{"bogus", "unknown", "unknown"},
	}
	for _, tc := range cases {
		service, method := SplitMethod(tc.in)
		if service != tc.service || method != tc.method {
			t.Errorf("SplitMethod(%q) = %q, %q; want %q, %q", tc.in, service, method, tc.service, tc.method)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestUnaryInterceptorTracksInFlight(t *testing.T) {
	collector, err := NewRPCCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	gauge := collector.InFlight.WithLabelValues("CoverageService")
	info := &grpc.UnaryServerInfo{FullMethod: "/sitecover.v1.CoverageService/EnrichGroup"}

	var during float64
	_, err = collector.UnaryServerInterceptor()(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		during = testutil.ToFloat64(gauge)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if during != 1 {
		t.Fatalf("in-flight during handler = %v, want 1", during)
	}
	if after := testutil.ToFloat64(gauge); after != 0 {
		t.Fatalf("in-flight after handler = %v, want 0", after)
	}

	var nilCollector *RPCCollector
	nilCollector.TrackInFlight("/x/y")()
}
