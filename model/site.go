package model

import "time"

// Site is a geographic area that field teams are expected to visit.
// Geometry is the site boundary as WKT.
type Site struct {
	ID          int64       `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	GroupID     int64       `json:"group_id" yaml:"group_id"`
	Username    string      `json:"username,omitempty" yaml:"username"`
	DisplayName string      `json:"display_name,omitempty" yaml:"display_name"`
	Visit       VisitStatus `json:"visit_status" yaml:"visit_status"`
	SeenDate    time.Time   `json:"seen_date,omitempty" yaml:"seen_date"`
	Geometry    string      `json:"geometry" yaml:"geometry"`
}

// Group is a set of sites that share an imagery lookback window.
type Group struct {
	ID     int64         `json:"id" yaml:"id"`
	Name   string        `json:"name" yaml:"name"`
	Window time.Duration `json:"window" yaml:"window"`
}

// EnrichedSite is a Site annotated with the computed coverage fields.
type EnrichedSite struct {
	Site

	Coverage         CoverageStatus `json:"coverage_status"`
	CoveragePercent  float64        `json:"coverage_percent"`
	SelectedOverlays []string       `json:"selected_overlays"`
	Link             string         `json:"link"`
	Merged           MergedStatus   `json:"merged_status"`
	EvaluatedAt      time.Time      `json:"evaluated_at"`
}
