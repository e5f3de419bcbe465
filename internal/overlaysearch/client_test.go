package overlaysearch

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const providerResponse = `{
  "entities_list": [
    {
      "date": "2025-03-01T10:00:00Z",
      "exclusive_id": {"data_store_name": "ds", "entity_id": "ov-1", "layer_id": "l"},
      "geo": {"wkt": "POLYGON((0 0,10 0,10 10,0 10,0 0))"},
      "Link": "https://imagery/ov-1",
      "properties_List": {"ImagingTechnique": "EO", "Resolution": 0.5, "Sensor": "cam", "Source": "sat"}
    },
    {
      "date": "2025-02-01T10:00:00Z",
      "exclusive_id": {"entity_id": "ov-2"},
      "geo": {"wkt": "POLYGON((5 5,6 5,6 6,5 6,5 5))"},
      "properties_List": {"ImagingTechnique": "EO"}
    },
    {
      "exclusive_id": {"entity_id": ""},
      "geo": {"wkt": "POINT(1 1)"}
    }
  ]
}`

func TestClientOverlays(t *testing.T) {
	var gotFilter Filter
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("index") != "imagery" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotFilter); err != nil {
			t.Errorf("decode filter: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(providerResponse))
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		BaseURL:     srv.URL + "/",
		Endpoint:    "/api/search",
		QueryParams: "index=imagery",
		Headers:     map[string]string{"X-Api-Key": "secret"},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(90 * 24 * time.Hour)
	site := "POLYGON((1 1,2 1,2 2,1 2,1 1))"
	overlays, err := c.Overlays(context.Background(), site, start, end)
	if err != nil {
		t.Fatalf("Overlays: %v", err)
	}

	ids := []string{}
	for _, o := range overlays {
		ids = append(ids, o.ID)
	}
	if diff := cmp.Diff([]string{"ov-1", "ov-2"}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	if overlays[0].Resolution != 0.5 || overlays[0].Link != "https://imagery/ov-1" {
		t.Fatalf("first overlay = %+v", overlays[0])
	}
	if !math.IsInf(overlays[1].Resolution, 1) {
		t.Fatalf("missing resolution = %v, want +Inf", overlays[1].Resolution)
	}
	if !overlays[0].Date.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", overlays[0].Date)
	}

	and := gotFilter.Filter.LogicalOperators.AND
	if len(and) != 2 {
		t.Fatalf("AND clauses = %d, want 2", len(and))
	}
	if diff := cmp.Diff([]string{"EO"}, and[0].Match["ImagingTechnique"].Values); diff != "" {
		t.Errorf("technique (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{site}, and[1].GeoIntersect["geo"].Values); diff != "" {
		t.Errorf("geo (-want +got):\n%s", diff)
	}
	dr := gotFilter.Filter.Range["date"].Values[0]
	if dr.GTE != "2025-01-01T00:00:00Z" || dr.LTE != "2025-04-01T00:00:00Z" {
		t.Errorf("date range = %+v", dr)
	}
	if gotFilter.Sort["date"] != "desc" {
		t.Errorf("sort = %v", gotFilter.Sort)
	}
}

func TestClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index missing", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Overlays(context.Background(), "POINT(0 0)", time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities_list":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, RateLimit: 0.001, Burst: 1})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Search(context.Background(), Filter{}); err != nil {
		t.Fatalf("first search: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Search(ctx, Filter{}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("second search err = %v, want ErrUpstream from limiter", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestMergeFootprints(t *testing.T) {
	got := MergeFootprints([]string{
		"POLYGON((0 0,1 0,1 1,0 1,0 0))",
		"",
		"garbage",
		"POINT(3 3)",
		"MULTIPOLYGON(((5 5,6 5,6 6,5 6,5 5)))",
	})
	want := "MULTIPOLYGON(((0 0,1 0,1 1,0 1,0 0)),((5 5,6 5,6 6,5 6,5 5)))"
	if got != want {
		t.Fatalf("MergeFootprints = %q, want %q", got, want)
	}
	if got := MergeFootprints([]string{"POINT(1 1)"}); got != "" {
		t.Fatalf("points only = %q, want empty", got)
	}
}
