// Agent spawning. Generates seed configurations for the tavern's initial population.

package agents

import (
	"math/rand"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/world"
)

// Spawner creates agent seeds for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// SpawnPopulation creates seeds for count agents spread over the given locations.
// Every returned Config passes New.
func (s *Spawner) SpawnPopulation(count int, locations []world.Location) []Config {
	cfgs := make([]Config, 0, count)
	for i := range count {
		var loc world.Location
		if len(locations) > 0 {
			loc = locations[i%len(locations)]
		}
		cfgs = append(cfgs, s.spawnOne(loc))
	}
	return cfgs
}

func (s *Spawner) spawnOne(loc world.Location) Config {
	id := s.nextID
	s.nextID++

	arch := s.pickArchetype()
	tmpl := archetypeTemplates[arch]

	// Traits: normally distributed around the archetype's centre.
	jitter := func(centre float64) float64 {
		return bounds.Clamp(centre+s.rng.NormFloat64()*0.12, 0, 1)
	}
	traits := TraitConfig{
		Openness:          jitter(tmpl.Traits[Openness]),
		Conscientiousness: jitter(tmpl.Traits[Conscientiousness]),
		Extraversion:      jitter(tmpl.Traits[Extraversion]),
		Agreeableness:     jitter(tmpl.Traits[Agreeableness]),
		Neuroticism:       jitter(tmpl.Traits[Neuroticism]),
	}
	for _, v := range tmpl.Values {
		traits.Values = append(traits.Values, Value{Name: v.Name, Strength: jitter(v.Strength)})
	}

	// Needs: mostly met at start (stable starting conditions).
	needs := []NeedConfig{
		{Type: NeedSustenance.String(), Level: 0.6 + s.rng.Float64()*0.4},
		{Type: NeedRest.String(), Level: 0.5 + s.rng.Float64()*0.4},
		{Type: NeedSafety.String(), Level: 0.7 + s.rng.Float64()*0.3},
		{Type: NeedBelonging.String(), Level: 0.4 + s.rng.Float64()*0.4},
		{Type: NeedAchievement.String(), Level: 0.4 + s.rng.Float64()*0.4},
		{Type: NeedAutonomy.String(), Level: 0.5 + s.rng.Float64()*0.4},
		{Type: NeedRespect.String(), Level: 0.4 + s.rng.Float64()*0.4},
		{Type: NeedPurpose.String(), Level: 0.3 + s.rng.Float64()*0.5},
		{Type: NeedCuriosity.String(), Level: 0.3 + s.rng.Float64()*0.5},
	}
	for i := range needs {
		t, _ := ParseNeedType(needs[i].Type)
		if th, ok := tmpl.ThresholdOverrides[t]; ok {
			needs[i].Threshold = th
		}
	}

	cfg := Config{
		ID:        id,
		Name:      s.generateName(),
		Archetype: arch,
		Location:  loc.Name,
		Coord:     loc.Coord,
		Traits:    traits,
		Needs:     needs,
	}
	if tmpl.Goal != nil {
		g := *tmpl.Goal
		g.Needs = append([]string(nil), tmpl.Goal.Needs...)
		g.Values = append([]string(nil), tmpl.Goal.Values...)
		cfg.Goals = []GoalConfig{g}
	}
	return cfg
}

func (s *Spawner) pickArchetype() string {
	total := 0.0
	for _, name := range archetypeOrder {
		total += archetypeTemplates[name].Weight
	}
	r := s.rng.Float64() * total
	for _, name := range archetypeOrder {
		r -= archetypeTemplates[name].Weight
		if r < 0 {
			return name
		}
	}
	return archetypeOrder[len(archetypeOrder)-1]
}

func (s *Spawner) generateName() string {
	firsts := maleNames
	if s.rng.Float32() < 0.5 {
		firsts = femaleNames
	}
	first := firsts[s.rng.Intn(len(firsts))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var maleNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Jasper", "Kael", "Leif", "Magnus", "Oswin", "Rowan",
	"Theron", "Ulric", "Wren", "Yorick", "Beric", "Edric", "Gunnar",
}

var femaleNames = []string{
	"Astrid", "Brenna", "Calla", "Elara", "Freya", "Greta", "Iris",
	"Kira", "Mira", "Nessa", "Olwen", "Petra", "Runa", "Thea",
	"Vera", "Willa", "Cora", "Dagny", "Fern", "Hilde", "Katla",
}

var lastNames = []string{
	"Thornwood", "Ashford", "Dunmore", "Stormcrow", "Hearthstone", "Millward",
	"Copperfield", "Ravenmoor", "Stoneheart", "Deepwell", "Brightwater",
	"Redforge", "Marshwood", "Nightingale", "Embercroft", "Holloway",
	"Farrow", "Thatcher", "Briar", "Harper", "Mercer", "Cross",
}
