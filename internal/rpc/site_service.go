package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/model"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/protobuf/types/known/structpb"
)

// SetVisitRequest is the SetVisit payload. Date is YYYY-MM-DD; empty
// means now.
type SetVisitRequest struct {
	Username string            `json:"username"`
	SiteName string            `json:"site_name"`
	Status   model.VisitStatus `json:"status"`
	Date     string            `json:"date,omitempty"`
}

// FilterSitesRequest is the FilterSites payload.
type FilterSitesRequest struct {
	GroupID int64 `json:"group_id"`
	model.SiteFilter
}

// FilterSitesResponse is the FilterSites result.
type FilterSitesResponse struct {
	GroupID int64                `json:"group_id"`
	Sites   []model.EnrichedSite `json:"sites"`
}

// SiteHistoryRequest is the SiteHistory payload.
type SiteHistoryRequest struct {
	SiteID int64 `json:"site_id"`
}

func (s *CoverageService) SetVisit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SetVisitRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if req.Username == "" || req.SiteName == "" {
		return nil, ToStatusError(fmt.Errorf("%w: username and site_name are required", ErrInvalidArgument))
	}
	var at time.Time
	if req.Date != "" {
		t, err := time.Parse(model.DateLayout, req.Date)
		if err != nil {
			return nil, ToStatusError(fmt.Errorf("%w: date: %v", ErrInvalidArgument, err))
		}
		at = t
	}
	site, err := s.svc.SetVisit(ctx, req.Username, req.SiteName, req.Status, at)
	if err != nil {
		s.logger(ctx).Warn(ctx, "set visit failed", logging.String("site_name", req.SiteName), logging.Err(err))
		return nil, ToStatusError(err)
	}
	return encodeStruct(site)
}

func (s *CoverageService) FilterSites(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req FilterSitesRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if req.GroupID <= 0 {
		return nil, ToStatusError(fmt.Errorf("%w: group_id is required", ErrInvalidArgument))
	}
	ctx, span := startGroupSpan(ctx, "CoverageService.FilterSites", req.GroupID)
	defer span.End()

	sites, err := s.svc.FilterSites(ctx, req.GroupID, req.SiteFilter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, ToStatusError(err)
	}
	if sites == nil {
		sites = []model.EnrichedSite{}
	}
	return encodeStruct(FilterSitesResponse{GroupID: req.GroupID, Sites: sites})
}

// SiteHistory returns the merged cover and visit history of one site.
func (s *CoverageService) SiteHistory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SiteHistoryRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if req.SiteID <= 0 {
		return nil, ToStatusError(fmt.Errorf("%w: site_id is required", ErrInvalidArgument))
	}
	ctx, span := startSiteSpan(ctx, "CoverageService.SiteHistory", req.SiteID)
	defer span.End()

	res, err := s.svc.MergedHistory(ctx, req.SiteID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, ToStatusError(err)
	}
	if res.History == nil {
		res.History = []model.MergedHistoryEntry{}
	}
	return encodeStruct(res)
}
