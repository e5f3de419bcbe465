package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/sitecover/model"
)

type sitesBody struct {
	Sites []model.EnrichedSite `json:"sites"`
}

func decodeSites(t *testing.T, body []byte) []model.EnrichedSite {
	t.Helper()
	var out sitesBody
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.Sites
}

func TestSetVisitEndpointRefreshesMergedStatus(t *testing.T) {
	h, obs := newTestRouter(t)

	if rec := do(t, h, http.MethodPost, "/api/v1/groups/3/enrich", ""); rec.Code != http.StatusOK {
		t.Fatalf("enrich status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodPut, "/api/v1/sites/dana/well", `{"status":"Not Seen","date":"2025-02-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("visit status = %d body %s", rec.Code, rec.Body)
	}
	var site model.Site
	if err := json.Unmarshal(rec.Body.Bytes(), &site); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if site.Visit != model.VisitNotSeen || site.SeenDate.Format(model.DateLayout) != "2025-02-01" {
		t.Fatalf("site = %+v", site)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/groups/3/sites", "")
	if got := decodeSites(t, rec.Body.Bytes()); got[0].Coverage != "" {
		t.Fatalf("cached enrichment survived the visit: %+v", got[0])
	}
	rec = do(t, h, http.MethodPost, "/api/v1/groups/3/enrich", "")
	var res struct {
		Sites []model.EnrichedSite `json:"sites"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Sites[0].Merged != model.MergedNotSeen {
		t.Fatalf("merged after visit = %q", res.Sites[0].Merged)
	}

	want := []string{"/http/EnrichGroup 200", "/http/SetVisit 200", "/http/GroupSites 200", "/http/EnrichGroup 200"}
	if diff := cmp.Diff(want, obs.calls); diff != "" {
		t.Fatalf("observed (-want +got):\n%s", diff)
	}
}

func TestSetVisitEndpointErrors(t *testing.T) {
	h, _ := newTestRouter(t)
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad json", "/api/v1/sites/dana/well", `{`, http.StatusBadRequest},
		{"missing status", "/api/v1/sites/dana/well", `{}`, http.StatusBadRequest},
		{"unknown status", "/api/v1/sites/dana/well", `{"status":"Glimpsed"}`, http.StatusBadRequest},
		{"bad date", "/api/v1/sites/dana/well", `{"status":"Seen","date":"01/02/2025"}`, http.StatusBadRequest},
		{"unknown site", "/api/v1/sites/dana/pond", `{"status":"Seen"}`, http.StatusNotFound},
		{"other owner", "/api/v1/sites/eli/well", `{"status":"Seen"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPut, tt.path, tt.body); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestFilterSitesEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	tests := []struct {
		name  string
		path  string
		body  string
		want  int
		sites int
	}{
		{"empty body", "/api/v1/sites?group=3", "", http.StatusOK, 1},
		{"username", "/api/v1/sites?group=3", `{"usernames":["dana"]}`, http.StatusOK, 1},
		{"other username", "/api/v1/sites?group=3", `{"usernames":["zoe"]}`, http.StatusOK, 0},
		{"seen", "/api/v1/sites?group=3", `{"seen_statuses":["Seen"],"updated_statuses":["Full"]}`, http.StatusOK, 1},
		{"not covered", "/api/v1/sites?group=3", `{"updated_statuses":["No"]}`, http.StatusOK, 0},
		{"bad status", "/api/v1/sites?group=3", `{"seen_statuses":["Glimpsed"]}`, http.StatusBadRequest, 0},
		{"missing group", "/api/v1/sites", "", http.StatusBadRequest, 0},
		{"unknown group", "/api/v1/sites?group=8", "", http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if rec.Code == http.StatusOK {
				if got := decodeSites(t, rec.Body.Bytes()); len(got) != tt.sites {
					t.Fatalf("sites = %d, want %d", len(got), tt.sites)
				}
			}
		})
	}
}

func TestHistoryEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)
	if rec := do(t, h, http.MethodPut, "/api/v1/sites/dana/well", `{"status":"Seen","date":"2025-02-01"}`); rec.Code != http.StatusOK {
		t.Fatalf("visit status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/history/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var visits struct {
		History []model.VisitRecord `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &visits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(visits.History) != 1 || visits.History[0].Status != model.VisitSeen {
		t.Fatalf("history = %+v", visits.History)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/history/1/merged", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("merged status = %d body %s", rec.Code, rec.Body)
	}
	var merged model.MergedHistory
	if err := json.Unmarshal(rec.Body.Bytes(), &merged); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := model.MergedHistory{SiteID: 1, SiteName: "well", History: []model.MergedHistoryEntry{
		{Date: "2025-02-01", CoverStatus: model.CoverageFull, VisitStatus: model.VisitSeen, MergedStatus: model.MergedSeen},
	}}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged (-want +got):\n%s", diff)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/history/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/history/42", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown site status = %d", rec.Code)
	}
}

func TestRemoveSiteEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	if rec := do(t, h, http.MethodDelete, "/api/v1/sites/dana/well", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/sites/dana/well", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/history/1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("history of removed site status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/v1/groups/3/sites", "")
	if got := decodeSites(t, rec.Body.Bytes()); len(got) != 0 {
		t.Fatalf("group still lists %d sites", len(got))
	}
}
