package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/world"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tavernLayout() *world.Layout {
	return world.NewLayout(world.DefaultTavern())
}

// population spawns count agents spread over the default tavern.
func population(t *testing.T, seed int64, count int) []*agents.Agent {
	t.Helper()
	locs, _ := world.DefaultTavern()
	var out []*agents.Agent
	for _, cfg := range agents.NewSpawner(seed).SpawnPopulation(count, locs) {
		a, err := agents.New(cfg)
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

// hungry builds an agent at the taproom whose sustenance is urgent.
func hungry(t *testing.T, id agents.AgentID, name string) *agents.Agent {
	t.Helper()
	a, err := agents.New(agents.Config{
		ID:       id,
		Name:     name,
		Location: "taproom",
		Traits: agents.TraitConfig{
			Openness: 0.5, Conscientiousness: 0.5, Extraversion: 0.6, Agreeableness: 0.6, Neuroticism: 0.4,
		},
		Needs: []agents.NeedConfig{{Type: "sustenance", Level: 0.05, Threshold: 0.3}},
	})
	require.NoError(t, err)
	return a
}

func newSim(t *testing.T, seed int64, pop []*agents.Agent) *Simulation {
	t.Helper()
	s, err := NewSimulation(Options{
		Seed:      seed,
		Scheduler: SchedulerConfig{CycleBudget: len(pop), Workers: 4},
		Layout:    tavernLayout(),
		Events:    world.DefaultEvents(),
	}, pop)
	require.NoError(t, err)
	return s
}
