package sitestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/sitecover/model"
)

var _ Writer = (*Memory)(nil)

// Memory is an in-memory, thread-safe store for groups and sites.
type Memory struct {
	notifier

	mu sync.RWMutex

	groups  map[int64]model.Group
	sites   map[int64]model.Site
	history map[int64][]model.VisitRecord
	nextRec int64

	metrics MetricsRecorder
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMetrics reports store sizes after every mutation.
func WithMetrics(m MetricsRecorder) MemoryOption {
	return func(s *Memory) { s.metrics = m }
}

// NewMemory constructs an empty store.
func NewMemory(opts ...MemoryOption) *Memory {
	s := &Memory{
		groups:  make(map[int64]model.Group),
		sites:   make(map[int64]model.Site),
		history: make(map[int64][]model.VisitRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddGroup adds a group. It returns an error if the ID already exists.
func (s *Memory) AddGroup(g model.Group) error {
	s.mu.Lock()
	if _, exists := s.groups[g.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("group %d: %w", g.ID, ErrDuplicate)
	}
	s.groups[g.ID] = g
	sites, groups := len(s.sites), len(s.groups)
	s.mu.Unlock()

	s.report(sites, groups)
	return nil
}

// AddSite adds a site to an existing group. A site with a seen date starts
// its visit history with that record.
func (s *Memory) AddSite(site model.Site) error {
	s.mu.Lock()
	if _, exists := s.sites[site.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("site %d: %w", site.ID, ErrDuplicate)
	}
	if _, ok := s.groups[site.GroupID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("site %d references group %d: %w", site.ID, site.GroupID, ErrGroupNotFound)
	}
	s.sites[site.ID] = site
	if !site.SeenDate.IsZero() && site.Visit.Valid() {
		s.recordLocked(site, site.SeenDate)
	}
	sites, groups := len(s.sites), len(s.groups)
	s.mu.Unlock()

	s.report(sites, groups)
	s.publish(Event{Type: EventSiteAdded, Site: site})
	return nil
}

// UpdateSite replaces a stored site and notifies subscribers.
func (s *Memory) UpdateSite(site model.Site) error {
	s.mu.Lock()
	if err := s.updateLocked(site); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventSiteUpdated, Site: site})
	return nil
}

// SetVisit sets the site's visit status and seen date, appends a visit
// record and notifies subscribers like UpdateSite does.
func (s *Memory) SetVisit(_ context.Context, siteID int64, status model.VisitStatus, at time.Time) (model.Site, error) {
	if !status.Valid() {
		return model.Site{}, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}
	s.mu.Lock()
	site, ok := s.sites[siteID]
	if !ok {
		s.mu.Unlock()
		return model.Site{}, fmt.Errorf("site %d: %w", siteID, ErrSiteNotFound)
	}
	site.Visit = status
	site.SeenDate = at.UTC()
	if err := s.updateLocked(site); err != nil {
		s.mu.Unlock()
		return model.Site{}, err
	}
	s.recordLocked(site, site.SeenDate)
	s.mu.Unlock()

	s.publish(Event{Type: EventSiteUpdated, Site: site})
	return site, nil
}

// updateLocked must be called with mu held.
func (s *Memory) updateLocked(site model.Site) error {
	if _, ok := s.sites[site.ID]; !ok {
		return fmt.Errorf("site %d: %w", site.ID, ErrSiteNotFound)
	}
	if _, ok := s.groups[site.GroupID]; !ok {
		return fmt.Errorf("site %d references group %d: %w", site.ID, site.GroupID, ErrGroupNotFound)
	}
	s.sites[site.ID] = site
	return nil
}

// recordLocked must be called with mu held.
func (s *Memory) recordLocked(site model.Site, at time.Time) {
	s.nextRec++
	s.history[site.ID] = append(s.history[site.ID], model.VisitRecord{
		ID:           s.nextRec,
		SiteID:       site.ID,
		SiteName:     site.Name,
		Status:       site.Visit,
		RecordedDate: at.UTC(),
	})
}

// RemoveSite deletes a site with its visit history and notifies subscribers.
func (s *Memory) RemoveSite(_ context.Context, id int64) error {
	s.mu.Lock()
	site, ok := s.sites[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("site %d: %w", id, ErrSiteNotFound)
	}
	delete(s.sites, id)
	delete(s.history, id)
	sites, groups := len(s.sites), len(s.groups)
	s.mu.Unlock()

	s.report(sites, groups)
	s.publish(Event{Type: EventSiteRemoved, Site: site})
	return nil
}

func (s *Memory) ListGroups(context.Context) ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]model.Group, 0, len(s.groups))
	for _, g := range s.groups {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *Memory) Group(_ context.Context, id int64) (model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return model.Group{}, fmt.Errorf("group %d: %w", id, ErrGroupNotFound)
	}
	return g, nil
}

// SitesByGroup returns the group's sites ordered by id.
func (s *Memory) SitesByGroup(ctx context.Context, groupID int64) ([]model.Site, error) {
	return s.FilterSites(ctx, groupID, model.SiteFilter{})
}

// FilterSites returns the group's matching sites ordered by id.
func (s *Memory) FilterSites(_ context.Context, groupID int64, f model.SiteFilter) ([]model.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrGroupNotFound)
	}
	var res []model.Site
	for _, site := range s.sites {
		if site.GroupID == groupID && f.MatchSite(site) {
			res = append(res, site)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *Memory) Site(_ context.Context, id int64) (model.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return model.Site{}, fmt.Errorf("site %d: %w", id, ErrSiteNotFound)
	}
	return site, nil
}

// SiteByName returns the lowest-id site with that owner and name.
func (s *Memory) SiteByName(_ context.Context, username, siteName string) (model.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  model.Site
		found bool
	)
	for _, site := range s.sites {
		if site.Username != username || site.Name != siteName {
			continue
		}
		if !found || site.ID < best.ID {
			best, found = site, true
		}
	}
	if !found {
		return model.Site{}, fmt.Errorf("site %q of %q: %w", siteName, username, ErrSiteNotFound)
	}
	return best, nil
}

func (s *Memory) VisitHistory(_ context.Context, siteID int64) ([]model.VisitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sites[siteID]; !ok {
		return nil, fmt.Errorf("site %d: %w", siteID, ErrSiteNotFound)
	}
	out := append([]model.VisitRecord(nil), s.history[siteID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedDate.Equal(out[j].RecordedDate) {
			return out[i].RecordedDate.Before(out[j].RecordedDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Counts returns the number of stored sites and groups.
func (s *Memory) Counts() (sites, groups int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sites), len(s.groups)
}

func (s *Memory) report(sites, groups int) {
	if s.metrics != nil {
		s.metrics.SetStoreCounts(sites, groups)
	}
}
