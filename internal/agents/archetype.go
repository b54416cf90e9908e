// Archetypes: behavioral templates for the tavern's regulars.
// Each archetype centres the personality distribution, supplies the values an agent holds,
// shifts when needs feel urgent, and may carry a standing goal.

package agents

import (
	"github.com/talgya/tavern-minds/internal/phi"
)

// Archetype constants, one per behavioral template.
const (
	ArchBarkeep  = "Barkeep"
	ArchBard     = "Bard"
	ArchMerchant = "Merchant"
	ArchGuard    = "Guard"
	ArchTraveler = "Traveler"
	ArchScholar  = "Scholar"
	ArchLaborer  = "Laborer"
	ArchGossip   = "Gossip"
)

// ArchetypeTemplate defines how an archetype shapes a freshly spawned agent.
type ArchetypeTemplate struct {
	// Traits is the centre of the personality distribution.
	Traits [NumTraits]float64

	// Values are the things this kind of person cares about.
	Values []Value

	// ThresholdOverrides shifts when needs feel "urgent" (higher = triggers sooner).
	ThresholdOverrides map[NeedType]float64

	// Goal is a standing goal the agent starts with, if any.
	Goal *GoalConfig

	// Weight is the relative spawn frequency.
	Weight float64
}

// archetypeOrder fixes iteration order for weighted picks.
var archetypeOrder = []string{
	ArchBarkeep, ArchBard, ArchMerchant, ArchGuard,
	ArchTraveler, ArchScholar, ArchLaborer, ArchGossip,
}

// archetypeTemplates maps archetype name to its template.
var archetypeTemplates = map[string]ArchetypeTemplate{
	ArchBarkeep: {
		Traits: [NumTraits]float64{0.4, 0.8, 0.7, 0.7, 0.3},
		Values: []Value{{Name: "community", Strength: 0.8}, {Name: "tradition", Strength: 0.5}},
		ThresholdOverrides: map[NeedType]float64{
			NeedBelonging: 0.2, // Surrounded by people all day
		},
		Goal:   &GoalConfig{Description: "keep the regulars happy", Type: "achievement", Seed: phi.Agnosis, Values: []string{"community"}},
		Weight: 0.5,
	},
	ArchBard: {
		Traits: [NumTraits]float64{0.9, 0.3, 0.8, 0.6, 0.5},
		Values: []Value{{Name: "pleasure", Strength: 0.7}, {Name: "freedom", Strength: 0.6}},
		ThresholdOverrides: map[NeedType]float64{
			NeedRespect: 0.4, // Lives for applause
			NeedPurpose: 0.4,
		},
		Goal:   &GoalConfig{Description: "write a song worth remembering", Type: "achievement", Seed: phi.Psyche * 0.5, Needs: []string{"purpose"}},
		Weight: 1,
	},
	ArchMerchant: {
		Traits: [NumTraits]float64{0.5, 0.7, 0.6, 0.4, 0.4},
		Values: []Value{{Name: "ambition", Strength: 0.8}, {Name: "security", Strength: 0.4}},
		ThresholdOverrides: map[NeedType]float64{
			NeedAchievement: 0.4,
			NeedSafety:      0.2, // Tolerates risk on the road
		},
		Weight: 1.5,
	},
	ArchGuard: {
		Traits: [NumTraits]float64{0.3, 0.8, 0.4, 0.5, 0.3},
		Values: []Value{{Name: "loyalty", Strength: 0.8}, {Name: "security", Strength: 0.7}},
		ThresholdOverrides: map[NeedType]float64{
			NeedSafety: 0.45, // Always on watch
		},
		Weight: 1,
	},
	ArchTraveler: {
		Traits: [NumTraits]float64{0.8, 0.4, 0.5, 0.5, 0.4},
		Values: []Value{{Name: "freedom", Strength: 0.9}, {Name: "knowledge", Strength: 0.5}},
		ThresholdOverrides: map[NeedType]float64{
			NeedCuriosity: 0.45,
			NeedBelonging: 0.15, // Used to being alone
		},
		Weight: 1.5,
	},
	ArchScholar: {
		Traits: [NumTraits]float64{0.9, 0.7, 0.3, 0.6, 0.5},
		Values: []Value{{Name: "knowledge", Strength: 0.9}, {Name: "honesty", Strength: 0.6}},
		ThresholdOverrides: map[NeedType]float64{
			NeedCuriosity: 0.5,
		},
		Goal:   &GoalConfig{Description: "learn the town's stories", Type: "exploration", Seed: phi.Agnosis, Values: []string{"knowledge"}},
		Weight: 0.5,
	},
	ArchLaborer: {
		Traits: [NumTraits]float64{0.3, 0.6, 0.5, 0.5, 0.5},
		Values: []Value{{Name: "community", Strength: 0.5}, {Name: "pleasure", Strength: 0.5}},
		ThresholdOverrides: map[NeedType]float64{
			NeedRest:       0.4, // Tired after the shift
			NeedSustenance: 0.4,
		},
		Weight: 2,
	},
	ArchGossip: {
		Traits: [NumTraits]float64{0.6, 0.4, 0.9, 0.3, 0.6},
		Values: []Value{{Name: "community", Strength: 0.6}, {Name: "honesty", Strength: 0.2}},
		ThresholdOverrides: map[NeedType]float64{
			NeedRespect:   0.45,
			NeedBelonging: 0.45,
		},
		Weight: 1,
	},
}

// Archetypes lists every archetype name in a fixed order.
func Archetypes() []string {
	return append([]string(nil), archetypeOrder...)
}

// ArchetypeTemplateFor returns an archetype's template.
func ArchetypeTemplateFor(name string) (ArchetypeTemplate, bool) {
	t, ok := archetypeTemplates[name]
	return t, ok
}
