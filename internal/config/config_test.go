package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/agents"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

const yamlConfig = `
seed: 7
interval: 250ms
population:
  count: 3
  agents:
    - id: 10
      name: Mira
      archetype: Barkeep
      location: taproom
      traits:
        openness: 0.5
        conscientiousness: 0.8
        extraversion: 0.7
        agreeableness: 0.7
        neuroticism: 0.3
        values:
          - {name: hospitality, strength: 0.9}
scheduler:
  cycle_budget: 4
  reactive_budget: 2
  soft_budget: 20ms
`

const tomlConfig = `
seed = 7
interval = "250ms"

[population]
count = 3

[[population.agents]]
id = 10
name = "Mira"
archetype = "Barkeep"
location = "taproom"

[population.agents.traits]
openness = 0.5
conscientiousness = 0.8
extraversion = 0.7
agreeableness = 0.7
neuroticism = 0.3

[scheduler]
cycle_budget = 4
reactive_budget = 2
soft_budget = "20ms"
`

func TestLoadYAMLAndTOMLAgree(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "tavern.yaml")
	tml := filepath.Join(dir, "tavern.toml")
	require.NoError(t, os.WriteFile(yml, []byte(yamlConfig), 0o644))
	require.NoError(t, os.WriteFile(tml, []byte(tomlConfig), 0o644))

	fromYAML, err := Load(yml)
	require.NoError(t, err)
	fromTOML, err := Load(tml)
	require.NoError(t, err)

	for _, cfg := range []Config{fromYAML, fromTOML} {
		assert.Equal(t, int64(7), cfg.Seed)
		assert.Equal(t, 250*time.Millisecond, cfg.TickInterval())
		assert.Equal(t, 20*time.Millisecond, cfg.CycleSoftBudget())
		assert.Equal(t, 4, cfg.Scheduler.CycleBudget)
		require.Len(t, cfg.Population.Agents, 1)
		assert.Equal(t, "Mira", cfg.Population.Agents[0].Name)
		assert.Equal(t, Default().Cadence, cfg.Cadence, "unset sections keep their defaults")
	}
}

func TestValidateRejectsOutOfRangeSeeds(t *testing.T) {
	cfg := Default()
	cfg.Population.Agents = []agents.Config{
		{ID: 1, Name: "Mira", Traits: agents.TraitConfig{Openness: 1.4}},
		{ID: 1, Name: "Tam"},
	}
	cfg.Scheduler.SoftBudget = "soon"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, agents.ErrInvalidConfig)
	for _, want := range []string{"population.agents[0]", "duplicate id 1", "soft_budget", "logging.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	_, err := Parse([]byte("seed = 1"), ".ini")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPopulationSeedsThenSpawns(t *testing.T) {
	cfg, err := Parse([]byte(yamlConfig), "yaml")
	require.NoError(t, err)

	pop, err := cfg.Population()
	require.NoError(t, err)
	require.Len(t, pop, 4)
	assert.Equal(t, agents.AgentID(10), pop[0].ID)
	loc, coord := pop[0].Location()
	assert.Equal(t, "taproom", loc)
	assert.Zero(t, coord.Q)
	for i, a := range pop[1:] {
		assert.Equal(t, agents.AgentID(11+i), a.ID)
	}

	again, err := cfg.Population()
	require.NoError(t, err)
	for i := range pop {
		assert.Equal(t, pop[i].Name, again[i].Name, "spawning is seeded")
	}
}

func TestSimulationOptions(t *testing.T) {
	opts := Default().SimulationOptions()
	assert.Equal(t, int64(42), opts.Seed)
	assert.Equal(t, 12, opts.Scheduler.CycleBudget)
	assert.Equal(t, 50*time.Millisecond, opts.Scheduler.SoftBudget)
	_, ok := opts.Layout.Location("stage")
	assert.True(t, ok)
}
