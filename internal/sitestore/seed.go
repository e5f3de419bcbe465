package sitestore

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/signalsfoundry/sitecover/model"
)

// Seed is the YAML layout accepted by LoadSeed.
//
//	groups:
//	  - id: 1
//	    name: north
//	    window: 720h
//	sites:
//	  - id: 10
//	    group_id: 1
//	    name: field A
//	    visit_status: Not Seen
//	    geometry: POLYGON((0 0,1 0,1 1,0 1,0 0))
type Seed struct {
	Groups []seedGroup `yaml:"groups"`
	Sites  []seedSite  `yaml:"sites"`
}

type seedGroup struct {
	ID     int64  `yaml:"id"`
	Name   string `yaml:"name"`
	Window string `yaml:"window"`
}

type seedSite struct {
	ID          int64  `yaml:"id"`
	GroupID     int64  `yaml:"group_id"`
	Name        string `yaml:"name"`
	Username    string `yaml:"username"`
	DisplayName string `yaml:"display_name"`
	Visit       string `yaml:"visit_status"`
	SeenDate    string `yaml:"seen_date"`
	Geometry    string `yaml:"geometry"`
}

// ParseSeed decodes a seed document.
func ParseSeed(r io.Reader) (Seed, error) {
	var s Seed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// LoadSeedFile reads path and applies it to a new Memory store.
func LoadSeedFile(path string, opts ...MemoryOption) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	seed, err := ParseSeed(f)
	if err != nil {
		return nil, err
	}
	s := NewMemory(opts...)
	if err := seed.Apply(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply adds every group, then every site, to s.
func (seed Seed) Apply(s *Memory) error {
	for _, g := range seed.Groups {
		var window time.Duration
		if g.Window != "" {
			d, err := time.ParseDuration(g.Window)
			if err != nil {
				return fmt.Errorf("group %d window: %w", g.ID, err)
			}
			window = d
		}
		if err := s.AddGroup(model.Group{ID: g.ID, Name: g.Name, Window: window}); err != nil {
			return err
		}
	}
	for _, site := range seed.Sites {
		visit := model.VisitStatus(site.Visit)
		if visit == "" {
			visit = model.VisitNotSeen
		}
		if !visit.Valid() {
			return fmt.Errorf("site %d: unknown visit status %q", site.ID, site.Visit)
		}
		var seen time.Time
		if site.SeenDate != "" {
			t, err := time.Parse(time.RFC3339, site.SeenDate)
			if err != nil {
				return fmt.Errorf("site %d seen_date: %w", site.ID, err)
			}
			seen = t
		}
		if err := s.AddSite(model.Site{
			ID:          site.ID,
			Name:        site.Name,
			GroupID:     site.GroupID,
			Username:    site.Username,
			DisplayName: site.DisplayName,
			Visit:       visit,
			SeenDate:    seen,
			Geometry:    site.Geometry,
		}); err != nil {
			return err
		}
	}
	return nil
}
