package model

import (
	"sort"
	"time"
)

// DateLayout is the day granularity used by history entries.
const DateLayout = "2006-01-02"

// DateKey truncates t to its UTC calendar day.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// VisitRecord is one recorded visit status of a site. Higher IDs are newer.
type VisitRecord struct {
	ID           int64       `json:"history_id"`
	SiteID       int64       `json:"site_id"`
	SiteName     string      `json:"site_name"`
	Status       VisitStatus `json:"status"`
	RecordedDate time.Time   `json:"recorded_date"`
}

// CoverUpdate is the coverage a site had from imagery taken on one day.
type CoverUpdate struct {
	Date   string         `json:"date"`
	Status CoverageStatus `json:"status"`
}

// MergedHistoryEntry pairs a day's coverage with the visit status recorded
// for the same day.
type MergedHistoryEntry struct {
	Date         string         `json:"date"`
	CoverStatus  CoverageStatus `json:"cover_status"`
	VisitStatus  VisitStatus    `json:"visit_status"`
	MergedStatus MergedStatus   `json:"merged_status"`
}

// MergedHistory is the per-day history of one site.
type MergedHistory struct {
	SiteID   int64                `json:"site_id"`
	SiteName string               `json:"site_name"`
	History  []MergedHistoryEntry `json:"history"`
}

// MergeHistory produces one entry per cover update, in ascending date
// order. When a day has several visit records the newest one wins: latest
// RecordedDate first, then highest ID. Days without a visit record count as
// not seen.
func MergeHistory(covers []CoverUpdate, visits []VisitRecord) []MergedHistoryEntry {
	sorted := append([]VisitRecord(nil), visits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].RecordedDate.Equal(sorted[j].RecordedDate) {
			return sorted[i].RecordedDate.After(sorted[j].RecordedDate)
		}
		return sorted[i].ID > sorted[j].ID
	})
	byDay := make(map[string]VisitStatus, len(sorted))
	for _, v := range sorted {
		key := DateKey(v.RecordedDate)
		if _, ok := byDay[key]; !ok {
			byDay[key] = v.Status
		}
	}

	out := make([]MergedHistoryEntry, 0, len(covers))
	for _, c := range covers {
		visit, ok := byDay[c.Date]
		if !ok {
			visit = VisitNotSeen
		}
		out = append(out, MergedHistoryEntry{
			Date:         c.Date,
			CoverStatus:  c.Status,
			VisitStatus:  visit,
			MergedStatus: MergeStatus(c.Status, visit),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// SiteFilter narrows the sites of a group. Empty fields match everything;
// non-empty fields are ANDed.
type SiteFilter struct {
	Usernames    []string      `json:"usernames,omitempty"`
	SeenStatuses []VisitStatus `json:"seen_statuses,omitempty"`
	// UpdatedStatuses matches the computed coverage, so it applies after
	// enrichment.
	UpdatedStatuses []CoverageStatus `json:"updated_statuses,omitempty"`
}

// MatchSite reports whether s passes the username and seen-status parts.
func (f SiteFilter) MatchSite(s Site) bool {
	if len(f.Usernames) > 0 && !contains(f.Usernames, s.Username) {
		return false
	}
	if len(f.SeenStatuses) > 0 && !contains(f.SeenStatuses, s.Visit) {
		return false
	}
	return true
}

// MatchCoverage reports whether c passes the updated-status part.
func (f SiteFilter) MatchCoverage(c CoverageStatus) bool {
	return len(f.UpdatedStatuses) == 0 || contains(f.UpdatedStatuses, c)
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
