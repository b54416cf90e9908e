package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppraiseNegativeSurprise(t *testing.T) {
	var s EmotionState
	got := s.Appraise(AppraisalEvent{Description: "a chair flies past", Valence: -0.8, Unexpectedness: 0.9, Relevance: 1}, 3)
	require.NotEmpty(t, got)

	d, ok := s.Dominant()
	require.True(t, ok)
	assert.Equal(t, EmotionFear, d.Type)
	assert.Greater(t, s.Intensity(EmotionAnger), 0.0)
	assert.Greater(t, s.Intensity(EmotionSadness), 0.0)
	assert.Zero(t, s.Intensity(EmotionJoy))
	assert.Less(t, s.RiskTolerance(), 1.0)
}

func TestAppraisePositive(t *testing.T) {
	var s EmotionState
	s.Appraise(AppraisalEvent{Valence: 0.7, Unexpectedness: 0.3, Relevance: 0.8}, 1)
	d, ok := s.Dominant()
	require.True(t, ok)
	assert.Equal(t, EmotionJoy, d.Type)
	assert.Greater(t, s.Intensity(EmotionHope), 0.0)
	assert.Greater(t, s.Sociability(), 1.0)
}

func TestAppraiseIgnoresIrrelevantEvents(t *testing.T) {
	var s EmotionState
	assert.Empty(t, s.Appraise(AppraisalEvent{Valence: -1, Unexpectedness: 1, Relevance: 0.01}, 1))
	assert.Empty(t, s.Active())
}

func TestRepeatedAppraisalStaysBounded(t *testing.T) {
	var s EmotionState
	for range 50 {
		s.Appraise(AppraisalEvent{Valence: -1, Unexpectedness: 1, Relevance: 1}, 1)
	}
	for _, e := range s.Active() {
		assert.LessOrEqual(t, e.Intensity, 1.0)
	}
}

func TestEmotionDecayNonIncreasingToZero(t *testing.T) {
	var s EmotionState
	s.Appraise(AppraisalEvent{Valence: -0.9, Unexpectedness: 0.8, Relevance: 1}, 1)
	s.Appraise(AppraisalEvent{Valence: 0.9, Unexpectedness: 0.8, Relevance: 1}, 1)

	prev := s
	for range 2000 {
		s.Decay(1)
		for i := range NumEmotions {
			assert.LessOrEqual(t, s.Intensity(EmotionType(i)), prev.Intensity(EmotionType(i)))
		}
		prev = s
	}
	assert.Empty(t, s.Active())
	_, ok := s.Dominant()
	assert.False(t, ok)
}

func TestDominantTieBreaksByTypeOrder(t *testing.T) {
	var s EmotionState
	s.Set(EmotionJoy, 0.5, 1)
	s.Set(EmotionFear, 0.5, 1)
	d, ok := s.Dominant()
	require.True(t, ok)
	assert.Equal(t, EmotionFear, d.Type)
}

func TestMoodFollowsEmotionsAndStaysBounded(t *testing.T) {
	var s EmotionState
	s.Set(EmotionFear, 1, 1)
	s.Set(EmotionAnger, 1, 1)
	for range 20 {
		s.UpdateMood(1)
	}
	m := s.Mood()
	assert.Less(t, m.Valence, 0.0)
	assert.Greater(t, m.Arousal, 0.0)
	assert.GreaterOrEqual(t, m.Valence, -1.0)
	assert.LessOrEqual(t, m.Arousal, 1.0)

	s = EmotionState{}
	s.setMood(Mood{Valence: -0.5, Arousal: 0.5})
	for range 50 {
		s.UpdateMood(10)
	}
	assert.InDelta(t, 0, s.Mood().Valence, 1e-6)
}

func TestAngerRaisesRiskTolerance(t *testing.T) {
	var s EmotionState
	s.Set(EmotionAnger, 0.8, 1)
	assert.Greater(t, s.RiskTolerance(), 1.0)
	assert.LessOrEqual(t, s.RiskTolerance(), 1.5)
}
