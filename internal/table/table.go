// Package table defines the canonical top-down table space: its
// dimensions, the pocket zones that give rule significance to object
// disappearances, and the rectification of raw frames into that space.
package table

import (
	"fmt"

	"poolmind/internal/geom"
)

// Zone is a circular region of canonical space. A track retiring with its
// last position inside a zone is attributed to that zone.
type Zone struct {
	Name   string     `json:"name"`
	Center geom.Point `json:"center"`
	Radius float64    `json:"radius"`
}

// Contains reports zone membership of a point, scaled by slop (>= 1 widens
// the effective radius). Membership is inclusive on the boundary.
func (z Zone) Contains(p geom.Point, slop float64) bool {
	if slop <= 0 {
		slop = 1
	}
	return geom.Dist(p, z.Center) <= z.Radius*slop
}

// Config holds canonical table parameters.
type Config struct {
	Width        int     // Canonical width in pixels
	Height       int     // Canonical height in pixels
	Margin       int     // Pocket inset from the rails
	PocketRadius float64 // Pocket zone radius
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Width < 2 || c.Height < 2 {
		return fmt.Errorf("table size %dx%d too small", c.Width, c.Height)
	}
	if c.PocketRadius <= 0 {
		return fmt.Errorf("pocket radius must be positive, got %v", c.PocketRadius)
	}
	return nil
}

// Table is the canonical playing surface.
type Table struct {
	cfg     Config
	pockets []Zone
}

// New builds a table with the standard six pockets: four corners plus the
// two middles of the long rails.
func New(cfg Config) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := float64(cfg.Width)
	h := float64(cfg.Height)
	m := float64(cfg.Margin)
	r := cfg.PocketRadius
	return &Table{
		cfg: cfg,
		pockets: []Zone{
			{Name: "top-left", Center: geom.Point{X: m, Y: m}, Radius: r},
			{Name: "top-middle", Center: geom.Point{X: w / 2, Y: m}, Radius: r},
			{Name: "top-right", Center: geom.Point{X: w - m, Y: m}, Radius: r},
			{Name: "bottom-right", Center: geom.Point{X: w - m, Y: h - m}, Radius: r},
			{Name: "bottom-middle", Center: geom.Point{X: w / 2, Y: h - m}, Radius: r},
			{Name: "bottom-left", Center: geom.Point{X: m, Y: h - m}, Radius: r},
		},
	}, nil
}

// Size returns the canonical dimensions.
func (t *Table) Size() (w, h int) { return t.cfg.Width, t.cfg.Height }

// Pockets returns a copy of the pocket zones.
func (t *Table) Pockets() []Zone {
	return append([]Zone(nil), t.pockets...)
}

// ZoneAt returns the nearest pocket zone containing p (inclusive, widened
// by slop), or false when p is in open table space.
func (t *Table) ZoneAt(p geom.Point, slop float64) (Zone, bool) {
	best := -1
	bestDist := 0.0
	for i, z := range t.pockets {
		if !z.Contains(p, slop) {
			continue
		}
		d := geom.Dist(p, z.Center)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return Zone{}, false
	}
	return t.pockets[best], true
}
