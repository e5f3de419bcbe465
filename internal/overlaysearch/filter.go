package overlaysearch

import "time"

// Filter is the search body understood by the imagery provider.
type Filter struct {
	Filter FilterBody        `json:"filter"`
	Sort   map[string]string `json:"sort"`
}

type FilterBody struct {
	LogicalOperators LogicalOperators      `json:"logical_operators"`
	Range            map[string]RangeMatch `json:"range"`
}

type LogicalOperators struct {
	AND []Clause `json:"AND"`
}

// Clause is one AND term; exactly one field is set.
type Clause struct {
	Match        map[string]InMatch `json:"match,omitempty"`
	GeoIntersect map[string]InMatch `json:"geo_intersect,omitempty"`
}

type InMatch struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

type RangeMatch struct {
	Type   string      `json:"type"`
	Values []DateRange `json:"values"`
}

type DateRange struct {
	GTE string `json:"gte"`
	LTE string `json:"lte"`
}

// DefaultImagingTechniques restricts searches to electro-optical imagery.
var DefaultImagingTechniques = []string{"EO"}

// NewFilter builds a search for overlays intersecting siteWKT and captured
// in [start, end], newest first.
func NewFilter(siteWKT string, start, end time.Time, techniques []string) Filter {
	if len(techniques) == 0 {
		techniques = DefaultImagingTechniques
	}
	return Filter{
		Filter: FilterBody{
			LogicalOperators: LogicalOperators{AND: []Clause{
				{Match: map[string]InMatch{"ImagingTechnique": {Type: "IN", Values: techniques}}},
				{GeoIntersect: map[string]InMatch{"geo": {Type: "IN", Values: []string{siteWKT}}}},
			}},
			Range: map[string]RangeMatch{
				"date": {Type: "IN", Values: []DateRange{{
					GTE: start.UTC().Format(time.RFC3339Nano),
					LTE: end.UTC().Format(time.RFC3339Nano),
				}}},
			},
		},
		Sort: map[string]string{"date": "desc"},
	}
}
