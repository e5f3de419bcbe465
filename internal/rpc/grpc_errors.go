package rpc

import (
	"context"
	"errors"

	"github.com/signalsfoundry/sitecover/core"
	"github.com/signalsfoundry/sitecover/internal/enrich"
	"github.com/signalsfoundry/sitecover/internal/overlaysearch"
	"github.com/signalsfoundry/sitecover/internal/sitestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidArgument marks request validation failures.
var ErrInvalidArgument = errors.New("invalid argument")

// ToStatusError maps service errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var parseErr *core.GeometryParseError
	switch {
	case errors.Is(err, sitestore.ErrGroupNotFound),
		errors.Is(err, sitestore.ErrSiteNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, enrich.ErrInvalidRequest),
		errors.Is(err, sitestore.ErrInvalidStatus),
		errors.Is(err, core.ErrUnsupportedGeometry),
		errors.As(err, &parseErr):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, enrich.ErrNoSearcher),
		errors.Is(err, enrich.ErrReadOnly),
		errors.Is(err, overlaysearch.ErrNotConfigured):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, overlaysearch.ErrUpstream):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
