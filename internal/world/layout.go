package world

import (
	"math"
	"sort"
)

// Location is a named place an agent can be in.
type Location struct {
	Name  string   `json:"name" yaml:"name" toml:"name"`
	Coord HexCoord `json:"coord" yaml:"coord" toml:"coord"`
	Tags  []string `json:"tags,omitempty" yaml:"tags" toml:"tags"` // "food", "seating", "stage", ...
}

// HasTag reports whether the location carries the given tag.
func (l Location) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PointOfInterest attracts the scheduler's attention: agents near one are more relevant.
type PointOfInterest struct {
	Name   string   `json:"name" yaml:"name" toml:"name"`
	Coord  HexCoord `json:"coord" yaml:"coord" toml:"coord"`
	Weight float64  `json:"weight" yaml:"weight" toml:"weight"` // 0.0–1.0
}

// Layout is the static set of locations and points of interest.
type Layout struct {
	locations map[string]Location
	pois      []PointOfInterest
}

// NewLayout indexes locations by name.
func NewLayout(locs []Location, pois []PointOfInterest) *Layout {
	l := &Layout{locations: make(map[string]Location, len(locs))}
	for _, loc := range locs {
		l.locations[loc.Name] = loc
	}
	l.pois = append(l.pois, pois...)
	return l
}

// Location looks up a location by name.
func (l *Layout) Location(name string) (Location, bool) {
	loc, ok := l.locations[name]
	return loc, ok
}

// Names returns all location names, sorted.
func (l *Layout) Names() []string {
	names := make([]string, 0, len(l.locations))
	for n := range l.locations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PointsOfInterest returns the layout's points of interest.
func (l *Layout) PointsOfInterest() []PointOfInterest {
	return l.pois
}

// Proximity returns the strongest weighted closeness to any point of interest,
// weight / (1 + distance). Zero when there are no points of interest.
func (l *Layout) Proximity(c HexCoord) float64 {
	best := 0.0
	for _, p := range l.pois {
		score := p.Weight / float64(1+Distance(c, p.Coord))
		best = math.Max(best, score)
	}
	return best
}
