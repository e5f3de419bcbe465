package core

import (
	"context"
	"math"

	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/model"
)

// Candidate is an overlay footprint offered to the engine. Lower Resolution
// is better imagery.
type Candidate struct {
	ID         string
	Footprint  Polygon
	Resolution float64
}

// NewCandidate normalises a missing (NaN) resolution to +Inf so it sorts last.
func NewCandidate(id string, footprint Polygon, resolution float64) Candidate {
	if math.IsNaN(resolution) {
		resolution = math.Inf(1)
	}
	return Candidate{ID: id, Footprint: footprint, Resolution: resolution}
}

// BuildCandidates parses overlay footprints. Overlays whose WKT does not
// parse are logged and left out; the result keeps input order.
func BuildCandidates(ctx context.Context, log logging.Logger, overlays []model.Overlay) []Candidate {
	if log == nil {
		log = logging.Noop()
	}
	out := make([]Candidate, 0, len(overlays))
	for _, o := range overlays {
		fp, err := ParseWKT(o.Footprint)
		if err != nil {
			log.Warn(ctx, "skipping overlay with unparseable footprint",
				logging.String("overlay_id", o.ID),
				logging.Err(err),
			)
			continue
		}
		out = append(out, NewCandidate(o.ID, fp, o.Resolution))
	}
	return out
}

func resolutionKey(c Candidate) float64 {
	if math.IsNaN(c.Resolution) {
		return math.Inf(1)
	}
	return c.Resolution
}
