package agents

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/bounds"
)

func TestNeedLevelsStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := DefaultNeeds()
	for range 5000 {
		if rng.Intn(2) == 0 {
			s.Decay(rng.Float64() * 50)
		} else {
			s.Satisfy(NeedType(rng.Intn(NumNeeds)), rng.Float64()*3-1)
		}
		for _, n := range s {
			require.True(t, bounds.InUnit(n.Level), "%s level %v", n.Type, n.Level)
		}
	}
}

func TestNeedDecayIsMonotonic(t *testing.T) {
	s := DefaultNeeds()
	prev := s
	for range 200 {
		s.Decay(1)
		for i := range s {
			assert.LessOrEqual(t, s[i].Level, prev[i].Level)
		}
		prev = s
	}
	assert.Equal(t, 0.0, s.Get(NeedSustenance).Level)
}

func TestUrgentNeedsOrderedByGap(t *testing.T) {
	s, err := NewNeedSet([]NeedConfig{
		{Type: "rest", Level: 0.2},
		{Type: "sustenance", Level: 0.05},
		{Type: "curiosity", Level: 0.1, Threshold: 0.5},
	})
	require.NoError(t, err)

	urgent := s.UrgentNeeds()
	require.Len(t, urgent, 3)
	assert.Equal(t, NeedCuriosity, urgent[0].Type) // gap 0.4
	assert.Equal(t, NeedSustenance, urgent[1].Type)
	assert.Equal(t, NeedRest, urgent[2].Type)
	assert.InDelta(t, 0.25/0.3, s.MaxUrgency(), 1e-9)
}

func TestNewNeedSetRejectsBadSeeds(t *testing.T) {
	for _, seed := range []NeedConfig{
		{Type: "sustenance", Level: 1.2},
		{Type: "sustenance", Level: -0.1},
		{Type: "hunger", Level: 0.5},
		{Type: "rest", Level: 0.5, DecayRate: -1},
		{Type: "rest", Level: 0.5, Threshold: 2},
	} {
		_, err := NewNeedSet([]NeedConfig{seed})
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", seed)
	}
}

func TestSatisfyIgnoresNegativeAmounts(t *testing.T) {
	s := DefaultNeeds()
	s.Satisfy(NeedRest, -0.5)
	assert.Equal(t, 0.8, s.Get(NeedRest).Level)
	s.Satisfy(NeedRest, 0.5)
	assert.Equal(t, 1.0, s.Get(NeedRest).Level)
}
