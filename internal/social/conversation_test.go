package social

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/entropy"
)

func newAgent(t *testing.T, id agents.AgentID, name string, agreeableness float64) *agents.Agent {
	t.Helper()
	a, err := agents.New(agents.Config{
		ID:   id,
		Name: name,
		Traits: agents.TraitConfig{
			Openness: 0.5, Conscientiousness: 0.5, Extraversion: 0.6, Agreeableness: agreeableness, Neuroticism: 0.3,
		},
	})
	require.NoError(t, err)
	return a
}

func TestWarmConversationBuildsRelationship(t *testing.T) {
	e := NewEngine(entropy.NewSource(11))
	mira, tomas := newAgent(t, 1, "Mira", 0.6), newAgent(t, 2, "Tomas", 0.6)
	_, ok := e.Relationship(1, 2)
	require.False(t, ok)

	rec, err := e.RunConversation(mira, tomas, ConversationContext{Topic: "the harvest", Location: "taproom", Tone: 0.8, Tick: 3, MaxTurns: 4})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, "finished", rec.Ended)
	require.Len(t, rec.Turns, 4)
	assert.Greater(t, rec.Outcome, 0.0)
	assert.Greater(t, rec.Depth, 0.0)
	assert.Greater(t, rec.Intimacy, 0.0)
	for i, turn := range rec.Turns {
		assert.Equal(t, i, turn.Index)
		assert.Greater(t, turn.Valence, 0.0)
	}
	assert.Equal(t, agents.AgentID(2), rec.Turns[1].Speaker)

	r, ok := e.Relationship(1, 2)
	require.True(t, ok)
	for _, s := range []Stance{r.AtoB, r.BtoA} {
		assert.Greater(t, s.Affinity, 0.0)
		assert.Greater(t, s.Familiarity, 0.0)
	}
	assert.Equal(t, 8, r.Interactions)

	assert.Len(t, mira.Memories(), 4)
	assert.Len(t, tomas.Memories(), 4)
	assert.Contains(t, tomas.Memories()[0].Tags, "conversation")
}

func TestHostileConversationEndsInArgument(t *testing.T) {
	e := NewEngine(entropy.NewSource(11))
	a, b := newAgent(t, 1, "Brannoc", 0.1), newAgent(t, 2, "Edda", 0.1)

	rec, err := e.RunConversation(a, b, ConversationContext{Topic: "the debt", Tone: -1, Tick: 9, MaxTurns: 10})
	require.NoError(t, err)
	assert.Equal(t, "argument", rec.Ended)
	assert.Less(t, len(rec.Turns), 10)
	assert.Less(t, rec.Outcome, 0.0)

	att, ok := e.Attitude(2, 1)
	require.True(t, ok)
	assert.Less(t, att.Affinity, 0.0)
}

func TestConversationIsReproducible(t *testing.T) {
	run := func() ConversationRecord {
		e := NewEngine(entropy.NewSource(5))
		rec, err := e.RunConversation(newAgent(t, 4, "Ilsa", 0.5), newAgent(t, 7, "Oren", 0.7), ConversationContext{Topic: "ale", Tone: 0.2, Tick: 12})
		require.NoError(t, err)
		return rec
	}
	first, second := run(), run()
	assert.Equal(t, first, second)
}

func TestConversationWithSelfRejected(t *testing.T) {
	e := NewEngine(nil)
	a := newAgent(t, 1, "Mira", 0.5)
	_, err := e.RunConversation(a, a, ConversationContext{})
	assert.ErrorIs(t, err, ErrSelfRelationship)
}
