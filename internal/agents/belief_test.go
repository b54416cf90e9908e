package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/phi"
)

func TestBeliefBlendKeepsEvidence(t *testing.T) {
	s := NewBeliefStore()
	s.Add(BeliefFact, "weather", "rain", 0.9, "window", 1)
	b := s.Add(BeliefFact, "weather", "sun", 0.1, "traveller", 2)

	assert.InDelta(t, 0.9*(1-phi.Matter)+0.1*phi.Matter, b.Confidence, 1e-9)
	assert.Equal(t, "sun", b.Content)
	assert.Equal(t, uint64(2), b.Tick)
	require.Len(t, b.Evidence, 2)
	assert.Equal(t, "window", b.Evidence[0].Ref)
	assert.Equal(t, 1, s.Len())
}

func TestBeliefsAboutOrderedByConfidence(t *testing.T) {
	s := NewBeliefStore()
	s.Add(BeliefFact, "mira", "plays the lute", 0.4, "", 1)
	s.Add(BeliefAbility, "mira", "can sing", 0.9, "", 1)
	s.Add(BeliefNorm, "mira", "pays her debts", 0.6, "", 1)
	s.Add(BeliefFact, "bram", "owes money", 1, "", 1)

	got := s.About("mira")
	require.Len(t, got, 3)
	assert.Equal(t, BeliefAbility, got[0].Kind)
	assert.Equal(t, BeliefNorm, got[1].Kind)
	assert.Equal(t, BeliefFact, got[2].Kind)
}

func TestBeliefConfidenceClamped(t *testing.T) {
	s := NewBeliefStore()
	b := s.Add(BeliefProbability, "rain", "likely", 7, "", 1)
	assert.Equal(t, 1.0, b.Confidence)
}

func TestMindModelDefaults(t *testing.T) {
	s := NewBeliefStore()
	assert.False(t, s.HasMindOf(7))
	assert.Equal(t, "unknown: never observed", s.PredictBehavior(7, "taproom"))
	assert.False(t, s.HasMindOf(7), "prediction must not create a model")

	m := s.MindOf(7, 1)
	assert.True(t, s.HasMindOf(7))
	for i := range NumTraits {
		b, ok := m.Beliefs.Get(BeliefProbability, traitSubject(TraitAxis(i)))
		require.True(t, ok)
		assert.Equal(t, 0.5, b.Confidence)
		assert.Equal(t, 0.5, m.Perceived[i])
	}
	assert.Same(t, m, s.MindOf(7, 2))
}

func TestPredictBehaviorFromHistory(t *testing.T) {
	build := func() *BeliefStore {
		s := NewBeliefStore()
		m := s.MindOf(3, 1)
		m.Observe(CmdConverse, "taproom", 1)
		m.Observe(CmdConverse, "taproom", 2)
		m.Observe(CmdWork, "kitchen", 3)
		return s
	}
	a, b := build(), build()

	got := a.PredictBehavior(3, "taproom")
	assert.Contains(t, got, string(CmdConverse))
	assert.Equal(t, got, b.PredictBehavior(3, "taproom"))
	assert.Equal(t, got, a.PredictBehavior(3, "taproom"))
	assert.Contains(t, a.PredictBehavior(3, "kitchen"), string(CmdWork))

	m := a.MindOf(3, 4)
	assert.Greater(t, m.Perceived[Extraversion], 0.5)
}
