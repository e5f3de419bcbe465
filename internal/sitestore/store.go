// Package sitestore provides the sites and groups that enrichment runs over.
package sitestore

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/sitecover/model"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrSiteNotFound  = errors.New("site not found")
	ErrDuplicate     = errors.New("already exists")
	ErrInvalidStatus = errors.New("invalid visit status")
)

// Store is the read side used by enrichment and the APIs.
type Store interface {
	ListGroups(ctx context.Context) ([]model.Group, error)
	Group(ctx context.Context, id int64) (model.Group, error)
	SitesByGroup(ctx context.Context, groupID int64) ([]model.Site, error)
	Site(ctx context.Context, id int64) (model.Site, error)
}

// Writer records field visits and manages sites. Every successful change
// is published to Subscribe callbacks.
type Writer interface {
	Store
	// FilterSites applies the username and seen-status parts of f.
	FilterSites(ctx context.Context, groupID int64, f model.SiteFilter) ([]model.Site, error)
	SiteByName(ctx context.Context, username, siteName string) (model.Site, error)
	// SetVisit stores a new visit status with its date and appends it to
	// the site's visit history.
	SetVisit(ctx context.Context, siteID int64, status model.VisitStatus, at time.Time) (model.Site, error)
	RemoveSite(ctx context.Context, id int64) error
	// VisitHistory lists the site's visit records, oldest first.
	VisitHistory(ctx context.Context, siteID int64) ([]model.VisitRecord, error)
	Subscribe(fn func(Event)) (unsubscribe func())
}

// MetricsRecorder receives store size gauges.
type MetricsRecorder interface {
	SetStoreCounts(sites, groups int)
}
