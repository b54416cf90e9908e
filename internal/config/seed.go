package config

import (
	"fmt"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/engine"
	"github.com/talgya/tavern-minds/internal/world"
)

// Population builds the configured agents: the hand-written seeds first, then Count spawned
// ones with IDs after the highest seed ID, spread across the layout's locations.
func (c Config) Population() ([]*agents.Agent, error) {
	var next agents.AgentID = 1
	out := make([]*agents.Agent, 0, len(c.Population.Agents)+c.Population.Count)
	for _, ac := range c.Population.Agents {
		if ac.Location != "" && ac.Coord == (world.HexCoord{}) {
			for _, loc := range c.Layout.Locations {
				if loc.Name == ac.Location {
					ac.Coord = loc.Coord
				}
			}
		}
		a, err := agents.New(ac)
		if err != nil {
			return nil, fmt.Errorf("seed agent %q: %w", ac.Name, err)
		}
		out = append(out, a)
		next = max(next, ac.ID+1)
	}

	sp := agents.NewSpawner(c.Seed)
	sp.SetNextID(next)
	for _, ac := range sp.SpawnPopulation(c.Population.Count, c.Layout.Locations) {
		a, err := agents.New(ac)
		if err != nil {
			return nil, fmt.Errorf("spawned agent %d: %w", ac.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// SimulationOptions maps the config onto the simulation's options.
func (c Config) SimulationOptions() engine.Options {
	return engine.Options{
		Seed: c.Seed,
		Scheduler: engine.SchedulerConfig{
			CycleBudget:    c.Scheduler.CycleBudget,
			ReactiveBudget: c.Scheduler.ReactiveBudget,
			Workers:        c.Scheduler.Workers,
			SoftBudget:     c.CycleSoftBudget(),
		},
		Layout:  world.NewLayout(c.Layout.Locations, c.Layout.Points),
		Events:  c.Events,
		Weather: c.Weather,
	}
}
