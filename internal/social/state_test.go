package social

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/entropy"
)

func TestStateRoundTrip(t *testing.T) {
	e := NewEngine(entropy.NewSource(6))
	for _, g := range SeedGroups() {
		require.NoError(t, e.AddGroup(g))
	}
	require.NoError(t, e.Join(1, 1))
	require.NoError(t, e.UpdateRelationship(1, 2, 0.4, 0.2, 0.1))
	require.NoError(t, e.UpdateRelationship(2, 1, -0.1, 0, 0))
	_, err := e.ApplyBatch(1)
	require.NoError(t, err)
	song := e.CreateArtifact(ArtifactSong, "a drinking song", 2, 1)
	_, err = e.SpreadCulturalArtifact(song.ID, 2, 1, 0.9, 2)
	require.NoError(t, err)
	e.Deliver(3, agents.Rumor{Origin: 1, Content: "news", Confidence: 0.5})

	raw, err := json.Marshal(e.State())
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal(raw, &st))

	restored := NewEngine(entropy.NewSource(6))
	require.NoError(t, restored.Restore(st))
	assert.Empty(t, cmp.Diff(e.State(), restored.State(), cmpopts.EquateEmpty()))

	att, ok := restored.Attitude(1, 2)
	require.True(t, ok)
	assert.InDelta(t, 0.4, att.Affinity, 1e-9)
}

func TestRestoreRejectsCorruptState(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.UpdateRelationship(1, 2, 0.4, 0, 0))
	_, err := e.ApplyBatch(1)
	require.NoError(t, err)
	before := e.State()

	bad := State{Relationships: []Relationship{{A: 1, B: 2, AtoB: Stance{Affinity: 3}}}}
	assert.ErrorIs(t, e.Restore(bad), ErrGraphCorrupt)
	bad = State{Reputation: []ReputationEntry{{Group: 1, Agent: 2, Value: -4}}}
	assert.ErrorIs(t, e.Restore(bad), ErrGraphCorrupt)
	assert.Empty(t, cmp.Diff(before, e.State(), cmpopts.EquateEmpty()))
}
