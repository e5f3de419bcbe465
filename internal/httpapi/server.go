// Package httpapi exposes the coverage service as a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/signalsfoundry/sitecover/internal/enrich"
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/internal/overlaysearch"
	"github.com/signalsfoundry/sitecover/internal/sitestore"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 128
	maxBodyBytes    = 8 << 20
)

// Observer records one handled request. observability.RPCCollector
// satisfies it.
type Observer interface {
	Observe(fullMethod, code string, d time.Duration)
}

// inFlightTracker is implemented by observers that also track concurrent
// requests.
type inFlightTracker interface {
	TrackInFlight(fullMethod string) func()
}

// Handler serves the HTTP routes.
type Handler struct {
	svc      *enrich.Service
	log      logging.Logger
	observer Observer
}

// NewRouter builds the chi router for svc. observer may be nil.
func NewRouter(svc *enrich.Service, log logging.Logger, observer Observer) http.Handler {
	if log == nil {
		log = logging.Noop()
	}
	h := &Handler{svc: svc, log: log, observer: observer}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(h.requestContext)

	r.Get("/healthz", h.instrument("Healthz", h.Healthz))
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/coverage", h.instrument("EvaluateSite", h.EvaluateSite))
		r.Post("/groups/{groupID}/enrich", h.instrument("EnrichGroup", h.EnrichGroup))
		r.Get("/groups/{groupID}/sites", h.instrument("GroupSites", h.GroupSites))

		r.Post("/sites", h.instrument("FilterSites", h.FilterSites))
		r.Put("/sites/{username}/{siteName}", h.instrument("SetVisit", h.SetVisit))
		r.Delete("/sites/{username}/{siteName}", h.instrument("RemoveSite", h.RemoveSite))
		r.Get("/history/{siteID}", h.instrument("VisitHistory", h.VisitHistory))
		r.Get("/history/{siteID}/merged", h.instrument("MergedHistory", h.MergedHistory))
	})
	return r
}

// Healthz always answers 200 once the router is up.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EvaluateSite handles POST /api/v1/coverage with an enrich.EvaluateRequest body.
func (h *Handler) EvaluateSite(w http.ResponseWriter, r *http.Request) {
	var req enrich.EvaluateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	res, err := h.svc.HandleEvaluate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EnrichGroup handles POST /api/v1/groups/{groupID}/enrich[?refresh=true].
func (h *Handler) EnrichGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r)
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	res, err := h.svc.EnrichGroup(r.Context(), groupID, refresh)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group":  res.Group,
		"sites":  res.Sites,
		"failed": res.Failed,
	})
}

// GroupSites handles GET /api/v1/groups/{groupID}/sites from cache only.
func (h *Handler) GroupSites(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r)
	if !ok {
		return
	}
	sites, err := h.svc.GroupSites(r.Context(), groupID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": groupID, "sites": sites})
}

func groupParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "groupID must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		h.logger(r.Context()).Error(r.Context(), "request failed", logging.String("path", r.URL.Path), logging.Err(err))
	}
	writeError(w, code, err.Error())
}

// StatusCode maps service errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, sitestore.ErrGroupNotFound), errors.Is(err, sitestore.ErrSiteNotFound):
		return http.StatusNotFound
	case errors.Is(err, enrich.ErrInvalidRequest), errors.Is(err, sitestore.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, overlaysearch.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, enrich.ErrNoSearcher), errors.Is(err, overlaysearch.ErrNotConfigured), errors.Is(err, enrich.ErrReadOnly):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requestContext attaches a request id and a request logger, echoing the id
// in the response. Overlong incoming ids are replaced.
func (h *Handler) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if incoming := r.Header.Get(requestIDHeader); incoming != "" && len(incoming) <= maxRequestIDLen {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, h.log.With(
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		w.Header().Set(requestIDHeader, logging.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) instrument(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := "/http/" + route
		if t, ok := h.observer.(inFlightTracker); ok {
			defer t.TrackInFlight(method)()
		}
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		fn(ww, r)
		if h.observer != nil {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			h.observer.Observe(method, strconv.Itoa(status), time.Since(start))
		}
	}
}

func (h *Handler) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, h.log)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
