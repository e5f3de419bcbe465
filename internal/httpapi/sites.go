package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/signalsfoundry/sitecover/model"
)

// visitRequest is the body of PUT /api/v1/sites/{username}/{siteName}.
// Date is YYYY-MM-DD or RFC 3339; empty means now.
type visitRequest struct {
	Status model.VisitStatus `json:"status"`
	Date   string            `json:"date,omitempty"`
}

// FilterSites handles POST /api/v1/sites?group={groupID} with a
// model.SiteFilter body.
func (h *Handler) FilterSites(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseInt(r.URL.Query().Get("group"), 10, 64)
	if err != nil || groupID <= 0 {
		writeError(w, http.StatusBadRequest, "group must be a positive integer")
		return
	}
	// An empty body filters nothing.
	var f model.SiteFilter
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	sites, err := h.svc.FilterSites(r.Context(), groupID, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": groupID, "sites": sites})
}

// SetVisit handles PUT /api/v1/sites/{username}/{siteName}.
func (h *Handler) SetVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	at, err := parseVisitDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or RFC 3339")
		return
	}
	site, err := h.svc.SetVisit(r.Context(), chi.URLParam(r, "username"), chi.URLParam(r, "siteName"), req.Status, at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func parseVisitDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// RemoveSite handles DELETE /api/v1/sites/{username}/{siteName}.
func (h *Handler) RemoveSite(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveSite(r.Context(), chi.URLParam(r, "username"), chi.URLParam(r, "siteName")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VisitHistory handles GET /api/v1/history/{siteID}.
func (h *Handler) VisitHistory(w http.ResponseWriter, r *http.Request) {
	siteID, ok := siteParam(w, r)
	if !ok {
		return
	}
	history, err := h.svc.VisitHistory(r.Context(), siteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if history == nil {
		history = []model.VisitRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"site_id": siteID, "history": history})
}

// MergedHistory handles GET /api/v1/history/{siteID}/merged.
func (h *Handler) MergedHistory(w http.ResponseWriter, r *http.Request) {
	siteID, ok := siteParam(w, r)
	if !ok {
		return
	}
	res, err := h.svc.MergedHistory(r.Context(), siteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func siteParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "siteID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "siteID must be a positive integer")
		return 0, false
	}
	return id, true
}
