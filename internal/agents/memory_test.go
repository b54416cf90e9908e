package agents

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/phi"
)

func TestAccessibilityNonIncreasingWithTime(t *testing.T) {
	s := NewMemoryStore()
	id := s.Add(EpisodicInput{Content: "the bard's first song", Tick: 10, Importance: 0.7})
	m, ok := s.Get(id)
	require.True(t, ok)

	prev := m.Accessibility(10)
	for now := uint64(10); now <= 5000; now += 37 {
		a := m.Accessibility(now)
		assert.LessOrEqual(t, a, prev)
		assert.GreaterOrEqual(t, a, 0.0)
		prev = a
	}
}

func TestRecallReinforces(t *testing.T) {
	s := NewMemoryStore()
	id := s.Add(EpisodicInput{Content: "a brawl", Tick: 10, Importance: 0.6, Tags: []string{"brawl"}})
	s.Add(EpisodicInput{Content: "a quiet evening", Tick: 11, Importance: 0.6})

	for _, now := range []uint64{10, 400} {
		before, _ := s.Get(id)
		got := s.Recall(now, RecallQuery{Tag: "brawl"})
		require.Len(t, got, 1)
		after, _ := s.Get(id)
		assert.Greater(t, after.Accessibility(now), before.Accessibility(now))
		assert.Equal(t, before.Retrievals+1, after.Retrievals)
	}
}

func TestRecallRecentIsPureAndRestartable(t *testing.T) {
	s := NewMemoryStore()
	for tick := uint64(1); tick <= 10; tick++ {
		s.Add(EpisodicInput{Content: "tick", Tick: tick, Importance: 0.5})
	}
	seq := s.RecallRecent(10, 3)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Len(t, first, 4)
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(10), first[0].Tick)
	assert.Equal(t, uint64(7), first[3].Tick)
	for _, m := range s.Episodes() {
		assert.Zero(t, m.Retrievals)
	}
}

func TestRecallEmotionalFilters(t *testing.T) {
	s := NewMemoryStore()
	s.Add(EpisodicInput{Content: "mild", Valence: 0.1, Intensity: 0.9, Tick: 1})
	s.Add(EpisodicInput{Content: "awful", Valence: -0.9, Intensity: 0.8, Tick: 2})
	s.Add(EpisodicInput{Content: "faint", Valence: 0.9, Intensity: 0.1, Tick: 3})

	var got []string
	for m := range s.RecallEmotional(0.5, 0.5) {
		got = append(got, m.Content)
	}
	assert.Equal(t, []string{"awful"}, got)
}

func TestImportanceFloorKeepsMemoriesAccessible(t *testing.T) {
	s := NewMemoryStore()
	id := s.Add(EpisodicInput{Content: "nothing much", Tick: 1, Importance: 0})
	m, _ := s.Get(id)
	assert.Equal(t, phi.MinImportance, m.Importance)
	assert.Greater(t, m.Accessibility(1), 0.0)
}

func TestMostAccessibleDoesNotReinforce(t *testing.T) {
	s := NewMemoryStore()
	s.Add(EpisodicInput{Content: "old", Tick: 1, Importance: 0.9})
	s.Add(EpisodicInput{Content: "new", Tick: 500, Importance: 0.9})
	top := s.MostAccessible(500, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "new", top[0].Content)
	for _, m := range s.Episodes() {
		assert.Zero(t, m.Retrievals)
	}
}

func TestConsolidateIsAdditive(t *testing.T) {
	s := NewMemoryStore()
	for tick := range uint64(3) {
		s.Add(EpisodicInput{Content: "brawl", Tick: tick + 1, Tags: []string{"brawl"}})
	}
	s.Add(EpisodicInput{Content: "song", Tick: 5, Tags: []string{"music"}})

	assert.Equal(t, 1, s.Consolidate(3))
	assert.Equal(t, 0, s.Consolidate(3))
	assert.Equal(t, 4, s.Len())

	sem := s.Semantic()
	require.Len(t, sem, 1)
	assert.Equal(t, "brawl", sem[0].Content)
	assert.Zero(t, sem[0].Reinforcements)

	s.Add(EpisodicInput{Content: "brawl", Tick: 6, Tags: []string{"brawl"}})
	assert.Equal(t, 0, s.Consolidate(3))
	sem = s.Semantic()
	require.Len(t, sem, 1)
	assert.Equal(t, 1, sem[0].Reinforcements)
	assert.Greater(t, sem[0].Confidence, 0.0)
}
