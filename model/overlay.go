package model

import "time"

// Overlay is an imagery footprint returned by the overlay search provider.
// Footprint is WKT. Resolution follows the provider convention: lower values
// mean finer imagery.
type Overlay struct {
	ID               string    `json:"id"`
	Footprint        string    `json:"footprint"`
	Resolution       float64   `json:"resolution"`
	Date             time.Time `json:"date"`
	Sensor           string    `json:"sensor,omitempty"`
	Source           string    `json:"source,omitempty"`
	ImagingTechnique string    `json:"imaging_technique,omitempty"`
	Link             string    `json:"link,omitempty"`
}
