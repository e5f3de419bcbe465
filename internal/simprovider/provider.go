// Package simprovider generates synthetic overlays from satellite passes.
// Each propagation step yields a square footprint centred on the
// sub-satellite point; coarser resolution at higher altitude.
package simprovider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/signalsfoundry/sitecover/core"
	"github.com/signalsfoundry/sitecover/model"
)

const (
	earthRadiusKm = 6378.137
	kmPerDegree   = 111.32
)

// ErrNoSatellites is returned when a TLE source holds no usable element sets.
var ErrNoSatellites = errors.New("no satellites in TLE source")

// Satellite is one propagatable element set.
type Satellite struct {
	Name string
	sat  satellite.Satellite
}

// NewSatellite parses a two-line element set.
func NewSatellite(name, line1, line2 string) Satellite {
	return Satellite{Name: name, sat: satellite.TLEToSat(line1, line2, satellite.GravityWGS72)}
}

// SubPoint is the ground point below a satellite.
type SubPoint struct {
	Lon, Lat   float64
	AltitudeKm float64
}

// SubPointAt propagates to t and returns the geocentric sub-satellite point.
// go-satellite works in kilometres.
func (s Satellite) SubPointAt(t time.Time) SubPoint {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	ecef := satellite.ECIToECEF(posECI, gmst)

	r := math.Sqrt(ecef.X*ecef.X + ecef.Y*ecef.Y + ecef.Z*ecef.Z)
	return SubPoint{
		Lon:        math.Atan2(ecef.Y, ecef.X) * 180 / math.Pi,
		Lat:        math.Atan2(ecef.Z, math.Hypot(ecef.X, ecef.Y)) * 180 / math.Pi,
		AltitudeKm: r - earthRadiusKm,
	}
}

// ParseTLEs reads element sets in two-line or three-line (name first) form.
// Blank lines are ignored.
func ParseTLEs(r io.Reader) ([]Satellite, error) {
	var (
		out  []Satellite
		name string
		l1   string
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r ")
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, "1 "):
			l1 = line
		case strings.HasPrefix(line, "2 ") && l1 != "":
			if name == "" && len(l1) >= 7 {
				name = strings.TrimSpace(l1[2:7])
			}
			out = append(out, NewSatellite(name, l1, line))
			name, l1 = "", ""
		default:
			name, l1 = strings.TrimSpace(line), ""
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read TLEs: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoSatellites
	}
	return out, nil
}

// LoadTLEFile reads element sets from path.
func LoadTLEFile(path string) ([]Satellite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open TLE file: %w", err)
	}
	defer f.Close()
	return ParseTLEs(f)
}

// Config shapes the synthetic overlays.
type Config struct {
	FootprintKm     float64
	Step            time.Duration
	ResolutionPerKm float64
	// MaxSteps bounds propagation per satellite and search.
	MaxSteps int
}

// DefaultConfig returns a 40 km footprint sampled every minute.
func DefaultConfig() Config {
	return Config{FootprintKm: 40, Step: time.Minute, ResolutionPerKm: 0.002, MaxSteps: 100_000}
}

// Provider is an enrich.OverlaySearcher backed by satellite propagation.
type Provider struct {
	sats []Satellite
	cfg  Config
}

// New builds a provider. Zero config fields take their defaults.
func New(sats []Satellite, cfg Config) *Provider {
	def := DefaultConfig()
	if cfg.FootprintKm <= 0 {
		cfg.FootprintKm = def.FootprintKm
	}
	if cfg.Step <= 0 {
		cfg.Step = def.Step
	}
	if cfg.ResolutionPerKm <= 0 {
		cfg.ResolutionPerKm = def.ResolutionPerKm
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	return &Provider{sats: sats, cfg: cfg}
}

// Overlays returns every footprint in [start, end] whose box meets the
// site's box, ordered by satellite then time.
func (p *Provider) Overlays(ctx context.Context, siteWKT string, start, end time.Time) ([]model.Overlay, error) {
	site, err := core.ParseWKT(siteWKT)
	if err != nil {
		return nil, err
	}
	siteBox := core.BBox(site)
	if end.Before(start) {
		return nil, nil
	}

	var out []model.Overlay
	for _, s := range p.sats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		steps := 0
		for t := start; !t.After(end) && steps < p.cfg.MaxSteps; t = t.Add(p.cfg.Step) {
			steps++
			sp := s.SubPointAt(t)
			box, ok := p.footprint(sp)
			if !ok || !siteBox.Intersects(box) {
				continue
			}
			out = append(out, model.Overlay{
				ID:               fmt.Sprintf("%s-%d", strings.ReplaceAll(s.Name, " ", "_"), t.Unix()),
				Footprint:        boxWKT(box),
				Resolution:       sp.AltitudeKm * p.cfg.ResolutionPerKm,
				Date:             t.UTC(),
				Sensor:           s.Name,
				Source:           "simulated",
				ImagingTechnique: "EO",
			})
		}
	}
	return out, nil
}

// footprint returns the square around sp. Squares crossing a pole or the
// antimeridian are dropped.
func (p *Provider) footprint(sp SubPoint) (core.BoundingBox, bool) {
	if math.IsNaN(sp.Lon) || math.IsNaN(sp.Lat) {
		return core.BoundingBox{}, false
	}
	half := p.cfg.FootprintKm / 2
	dLat := half / kmPerDegree
	cos := math.Cos(sp.Lat * math.Pi / 180)
	if cos < 1e-6 {
		return core.BoundingBox{}, false
	}
	dLon := dLat / cos
	box := core.BoundingBox{MinX: sp.Lon - dLon, MinY: sp.Lat - dLat, MaxX: sp.Lon + dLon, MaxY: sp.Lat + dLat}
	if box.MinX < -180 || box.MaxX > 180 || box.MinY < -90 || box.MaxY > 90 {
		return core.BoundingBox{}, false
	}
	return box, true
}

func boxWKT(b core.BoundingBox) string {
	return wkt.MarshalString(orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}.ToPolygon())
}
