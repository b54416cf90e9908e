package agents

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/world"
)

func TestSpawnedConfigsAreValid(t *testing.T) {
	locs := []world.Location{
		{Name: "taproom", Coord: world.HexCoord{}, Tags: []string{"food"}},
		{Name: "hearth", Coord: world.HexCoord{Q: 1}},
	}
	cfgs := NewSpawner(7).SpawnPopulation(40, locs)
	require.Len(t, cfgs, 40)

	seen := make(map[AgentID]bool)
	for i, cfg := range cfgs {
		a, err := New(cfg)
		require.NoError(t, err, "config %d", i)
		assert.False(t, seen[a.ID])
		seen[a.ID] = true
		_, ok := ArchetypeTemplateFor(cfg.Archetype)
		assert.True(t, ok)
		assert.Equal(t, locs[i%2].Name, cfg.Location)
	}
}

func TestSpawnerIsDeterministic(t *testing.T) {
	a := NewSpawner(99).SpawnPopulation(10, nil)
	b := NewSpawner(99).SpawnPopulation(10, nil)
	assert.Empty(t, cmp.Diff(a, b))

	c := NewSpawner(100).SpawnPopulation(10, nil)
	assert.NotEmpty(t, cmp.Diff(a, c))
}
