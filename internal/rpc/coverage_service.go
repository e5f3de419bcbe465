package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/signalsfoundry/sitecover/internal/enrich"
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/protobuf/types/known/structpb"
)

// EnrichGroupRequest is the EnrichGroup payload.
type EnrichGroupRequest struct {
	GroupID int64 `json:"group_id"`
	Refresh bool  `json:"refresh,omitempty"`
}

// EnrichGroupResponse is the EnrichGroup result.
type EnrichGroupResponse struct {
	Group  model.Group          `json:"group"`
	Sites  []model.EnrichedSite `json:"sites"`
	Failed int                  `json:"failed"`
}

// MergeStatusRequest is the MergeStatus payload.
type MergeStatusRequest struct {
	Coverage model.CoverageStatus `json:"coverage_status"`
	Visit    model.VisitStatus    `json:"visit_status"`
}

// MergeStatusResponse is the MergeStatus result.
type MergeStatusResponse struct {
	Merged model.MergedStatus `json:"merged_status"`
}

// CoverageService implements CoverageServiceServer on top of the
// enrichment service.
type CoverageService struct {
	svc *enrich.Service
	log logging.Logger
}

// NewCoverageService wires the service. A nil logger is replaced by Noop.
func NewCoverageService(svc *enrich.Service, log logging.Logger) *CoverageService {
	if log == nil {
		log = logging.Noop()
	}
	return &CoverageService{svc: svc, log: log}
}

func (s *CoverageService) EvaluateSite(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req enrich.EvaluateRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := startSiteSpan(ctx, "CoverageService.EvaluateSite", req.Site.ID,
		attribute.Int("overlays", len(req.Overlays)))
	defer span.End()

	res, err := s.svc.HandleEvaluate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger(ctx).Warn(ctx, "evaluate site failed", logging.Int64("site_id", req.Site.ID), logging.Err(err))
		return nil, ToStatusError(err)
	}
	return encodeStruct(res)
}

func (s *CoverageService) EnrichGroup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req EnrichGroupRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if req.GroupID <= 0 {
		return nil, ToStatusError(fmt.Errorf("%w: group_id is required", ErrInvalidArgument))
	}
	ctx, span := startGroupSpan(ctx, "CoverageService.EnrichGroup", req.GroupID)
	defer span.End()

	res, err := s.svc.EnrichGroup(ctx, req.GroupID, req.Refresh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger(ctx).Warn(ctx, "enrich group failed", logging.Int64("group_id", req.GroupID), logging.Err(err))
		return nil, ToStatusError(err)
	}
	return encodeStruct(EnrichGroupResponse{Group: res.Group, Sites: res.Sites, Failed: res.Failed})
}

func (s *CoverageService) MergeStatus(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req MergeStatusRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if !req.Coverage.Valid() {
		return nil, ToStatusError(fmt.Errorf("%w: unknown coverage_status %q", ErrInvalidArgument, req.Coverage))
	}
	if !req.Visit.Valid() {
		return nil, ToStatusError(fmt.Errorf("%w: unknown visit_status %q", ErrInvalidArgument, req.Visit))
	}
	return encodeStruct(MergeStatusResponse{Merged: model.MergeStatus(req.Coverage, req.Visit)})
}

func (s *CoverageService) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, s.log)
}

// decodeStruct maps a Struct onto v through its JSON form.
func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return fmt.Errorf("%w: empty request", ErrInvalidArgument)
	}
	raw, err := in.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode response: %w", err))
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, ToStatusError(fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}
