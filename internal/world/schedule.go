package world

// ScheduledEvent is an ambient happening the environment injects into perceptions:
// the supper bell, a brawl, a bard arriving. It first fires at At and repeats every Every
// ticks (0 fires once). Location "" means everywhere; a non-empty Tag further restricts it
// to locations carrying that tag. Kind is what agents react to: "food", "threat", "brawl",
// "music", ...
type ScheduledEvent struct {
	At             uint64  `json:"at" yaml:"at" toml:"at"`
	Every          uint64  `json:"every" yaml:"every" toml:"every"`
	Location       string  `json:"location" yaml:"location" toml:"location"`
	Tag            string  `json:"tag,omitempty" yaml:"tag" toml:"tag"`
	Kind           string  `json:"kind" yaml:"kind" toml:"kind"`
	Description    string  `json:"description" yaml:"description" toml:"description"`
	Valence        float64 `json:"valence" yaml:"valence" toml:"valence"`
	Unexpectedness float64 `json:"unexpectedness" yaml:"unexpectedness" toml:"unexpectedness"`
	Relevance      float64 `json:"relevance" yaml:"relevance" toml:"relevance"`
}

// Due reports whether the event fires at tick.
func (e ScheduledEvent) Due(tick uint64) bool {
	if tick < e.At {
		return false
	}
	if e.Every == 0 {
		return tick == e.At
	}
	return (tick-e.At)%e.Every == 0
}

// AppliesTo reports whether the event is perceivable at a location.
func (e ScheduledEvent) AppliesTo(loc Location) bool {
	if e.Location != "" && e.Location != loc.Name {
		return false
	}
	return e.Tag == "" || loc.HasTag(e.Tag)
}

// TagOutdoors marks locations open to the weather.
const TagOutdoors = "outdoors"

// DefaultTavern is the built-in layout: a taproom around the hearth, a stage, the kitchen
// and a quiet back room.
func DefaultTavern() ([]Location, []PointOfInterest) {
	locs := []Location{
		{Name: "taproom", Coord: HexCoord{Q: 0, R: 0}, Tags: []string{"food", "seating"}},
		{Name: "hearth", Coord: HexCoord{Q: 1, R: -1}, Tags: []string{"seating"}},
		{Name: "stage", Coord: HexCoord{Q: -1, R: 1}, Tags: []string{"stage"}},
		{Name: "kitchen", Coord: HexCoord{Q: 2, R: 0}, Tags: []string{"food", "work"}},
		{Name: "back room", Coord: HexCoord{Q: -2, R: 0}, Tags: []string{"seating", "refuge"}},
		{Name: "yard", Coord: HexCoord{Q: 0, R: 3}, Tags: []string{"work", TagOutdoors}},
	}
	pois := []PointOfInterest{
		{Name: "hearth", Coord: HexCoord{Q: 1, R: -1}, Weight: 1},
		{Name: "stage", Coord: HexCoord{Q: -1, R: 1}, Weight: 0.8},
		{Name: "bar", Coord: HexCoord{Q: 0, R: 0}, Weight: 0.6},
	}
	return locs, pois
}

// DefaultEvents is the built-in ambient schedule. Ticks are sim-minutes.
func DefaultEvents() []ScheduledEvent {
	return []ScheduledEvent{
		{At: 30, Every: 240, Location: "taproom", Kind: "food", Description: "a fresh pot of stew comes out", Valence: 0.4, Unexpectedness: 0.1, Relevance: 0.5},
		{At: 90, Every: 360, Location: "stage", Kind: "music", Description: "a fiddler strikes up a reel", Valence: 0.5, Unexpectedness: 0.3, Relevance: 0.4},
		{At: 200, Every: 720, Location: "taproom", Kind: "brawl", Description: "a brawl breaks out over a spilled drink", Valence: -0.7, Unexpectedness: 0.8, Relevance: 0.8},
		{At: 500, Every: 1440, Kind: "news", Description: "a courier brings word from the capital", Valence: 0.1, Unexpectedness: 0.6, Relevance: 0.3},
	}
}
