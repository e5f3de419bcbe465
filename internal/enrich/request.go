package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/signalsfoundry/sitecover/core"
	"github.com/signalsfoundry/sitecover/model"
)

// ErrInvalidRequest marks malformed evaluation requests.
var ErrInvalidRequest = errors.New("invalid request")

// OverlayInput is an overlay supplied by a caller. A missing resolution
// ranks the overlay last.
type OverlayInput struct {
	ID         string   `json:"id"`
	Footprint  string   `json:"footprint"`
	Resolution *float64 `json:"resolution,omitempty"`
}

// ToModel converts the input to a model.Overlay.
func (o OverlayInput) ToModel() model.Overlay {
	res := math.Inf(1)
	if o.Resolution != nil {
		res = *o.Resolution
	}
	return model.Overlay{ID: o.ID, Footprint: o.Footprint, Resolution: res}
}

// EvaluateRequest asks for one site to be evaluated. With Overlays set
// the given overlays are used as-is; otherwise they are searched for over
// Window (a Go duration, default the service window). The boundary comes
// from Site.Geometry as WKT, or from SiteGeoJSON when that is set.
type EvaluateRequest struct {
	Site        model.Site      `json:"site"`
	SiteGeoJSON json.RawMessage `json:"site_geojson,omitempty"`
	Overlays    []OverlayInput  `json:"overlays,omitempty"`
	Window      string          `json:"window,omitempty"`
	Refresh     bool            `json:"refresh,omitempty"`
}

// Validate checks the request shape. WKT validity is not checked here;
// an unparseable boundary evaluates to no coverage. A GeoJSON boundary
// must parse.
func (r EvaluateRequest) Validate() error {
	if len(r.SiteGeoJSON) > 0 {
		if strings.TrimSpace(r.Site.Geometry) != "" {
			return fmt.Errorf("%w: site.geometry and site_geojson are exclusive", ErrInvalidRequest)
		}
		if _, err := core.ParseGeoJSON(r.SiteGeoJSON); err != nil {
			return fmt.Errorf("%w: site_geojson: %v", ErrInvalidRequest, err)
		}
	} else if strings.TrimSpace(r.Site.Geometry) == "" {
		return fmt.Errorf("%w: site.geometry or site_geojson is required", ErrInvalidRequest)
	}
	if r.Site.Visit != "" && !r.Site.Visit.Valid() {
		return fmt.Errorf("%w: unknown visit_status %q", ErrInvalidRequest, r.Site.Visit)
	}
	for i, o := range r.Overlays {
		if o.ID == "" {
			return fmt.Errorf("%w: overlays[%d].id is required", ErrInvalidRequest, i)
		}
	}
	if r.Window != "" {
		if _, err := time.ParseDuration(r.Window); err != nil {
			return fmt.Errorf("%w: window: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}

// HandleEvaluate validates req and evaluates it.
func (s *Service) HandleEvaluate(ctx context.Context, req EvaluateRequest) (model.EnrichedSite, error) {
	if err := req.Validate(); err != nil {
		return model.EnrichedSite{}, err
	}
	if len(req.SiteGeoJSON) > 0 {
		poly, _ := core.ParseGeoJSON(req.SiteGeoJSON)
		req.Site.Geometry = poly.WKT()
	}
	if req.Site.Visit == "" {
		req.Site.Visit = model.VisitNotSeen
	}
	if len(req.Overlays) > 0 {
		overlays := make([]model.Overlay, len(req.Overlays))
		for i, o := range req.Overlays {
			overlays[i] = o.ToModel()
		}
		return s.Evaluate(ctx, req.Site, overlays), nil
	}
	var window time.Duration
	if req.Window != "" {
		window, _ = time.ParseDuration(req.Window)
	}
	return s.EnrichSite(ctx, req.Site, window, req.Refresh)
}
