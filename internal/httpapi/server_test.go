package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/sitecover/core"
	"github.com/signalsfoundry/sitecover/internal/cache"
	"github.com/signalsfoundry/sitecover/internal/enrich"
	"github.com/signalsfoundry/sitecover/internal/overlaysearch"
	"github.com/signalsfoundry/sitecover/internal/sitestore"
	"github.com/signalsfoundry/sitecover/model"
)

const (
	siteWKT  = "POLYGON((0 0,10 0,10 10,0 10,0 0))"
	coverAll = "POLYGON((-1 -1,11 -1,11 11,-1 11,-1 -1))"
)

type staticSearcher map[string][]model.Overlay

func (s staticSearcher) Overlays(_ context.Context, siteWKT string, _, _ time.Time) ([]model.Overlay, error) {
	return s[siteWKT], nil
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) Observe(method, code string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, method+" "+code)
}

func newTestRouter(t *testing.T) (http.Handler, *recordingObserver) {
	t.Helper()
	store := sitestore.NewMemory()
	if err := store.AddGroup(model.Group{ID: 3, Name: "east"}); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := store.AddSite(model.Site{ID: 1, GroupID: 3, Name: "well", Username: "dana", Visit: model.VisitSeen, Geometry: siteWKT}); err != nil {
		t.Fatalf("AddSite: %v", err)
	}
	mem, err := cache.NewMemory(100, 0)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })

	links, err := core.NewLinkBuilder("https://viewer/p?o={overlayIds}")
	if err != nil {
		t.Fatalf("NewLinkBuilder: %v", err)
	}
	links.Quote = ""
	acquired := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := enrich.NewService(store, staticSearcher{siteWKT: {{ID: "all", Footprint: coverAll, Resolution: 1, Date: acquired}}},
		core.NewEngine(core.DefaultConfig()), links, enrich.WithCache(mem), enrich.WithSiteManager(store))
	t.Cleanup(svc.WatchStore(store))
	obs := &recordingObserver{}
	return NewRouter(svc, nil, obs), obs
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

func TestRequestIDHeader(t *testing.T) {
	h, _ := newTestRouter(t)
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "echoed", incoming: "req-42", keep: true},
		{name: "at limit", incoming: strings.Repeat("a", maxRequestIDLen), keep: true},
		{name: "overlong replaced", incoming: strings.Repeat("b", maxRequestIDLen+1), keep: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(requestIDHeader, tt.incoming)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			got := rec.Header().Get(requestIDHeader)
			if got == "" || len(got) > maxRequestIDLen {
				t.Fatalf("request id = %q", got)
			}
			if (got == tt.incoming) != tt.keep {
				t.Fatalf("request id = %q, keep incoming = %v", got, tt.keep)
			}
		})
	}
}

func TestEvaluateSiteEndpoint(t *testing.T) {
	h, obs := newTestRouter(t)
	body := fmt.Sprintf(`{"site":{"id":5,"geometry":%q,"visit_status":"Not Seen"},"overlays":[{"id":"a","footprint":%q,"resolution":2}]}`, siteWKT, coverAll)
	rec := do(t, h, http.MethodPost, "/api/v1/coverage", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var got model.EnrichedSite
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Coverage != model.CoverageFull || got.Merged != model.MergedNotSeen || got.Link != "https://viewer/p?o=a" {
		t.Fatalf("got %+v", got)
	}
	if diff := cmp.Diff([]string{"/http/EvaluateSite 200"}, obs.calls); diff != "" {
		t.Fatalf("observed (-want +got):\n%s", diff)
	}
}

func TestEvaluateSiteBadRequests(t *testing.T) {
	h, _ := newTestRouter(t)
	for _, body := range []string{`{`, `{"site":{"id":1}}`, `{"site":{"geometry":"POINT(0 0)","visit_status":"odd"}}`} {
		if rec := do(t, h, http.MethodPost, "/api/v1/coverage", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestEnrichThenListGroupSites(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/groups/3/sites", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var before struct {
		Sites []model.EnrichedSite `json:"sites"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &before); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(before.Sites) != 1 || before.Sites[0].Coverage != "" {
		t.Fatalf("before enrich = %+v", before.Sites)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/groups/3/enrich", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("enrich status = %d body %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/groups/3/sites", "")
	var after struct {
		Sites []model.EnrichedSite `json:"sites"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after.Sites[0].Merged != model.MergedSeen {
		t.Fatalf("after enrich = %+v", after.Sites)
	}
}

func TestGroupErrors(t *testing.T) {
	h, _ := newTestRouter(t)
	if rec := do(t, h, http.MethodPost, "/api/v1/groups/404/enrich", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown group status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/groups/abc/sites", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("x: %w", sitestore.ErrGroupNotFound), http.StatusNotFound},
		{enrich.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("x: %w", sitestore.ErrInvalidStatus), http.StatusBadRequest},
		{enrich.ErrReadOnly, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: 500", overlaysearch.ErrUpstream), http.StatusBadGateway},
		{enrich.ErrNoSearcher, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
