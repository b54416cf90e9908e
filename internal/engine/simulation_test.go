package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/social"
)

func TestStepRunsAndCommits(t *testing.T) {
	s := newSim(t, 1, []*agents.Agent{hungry(t, 1, "Mira"), hungry(t, 2, "Tam"), hungry(t, 3, "Oswin")})
	ctx := context.Background()

	report, err := s.Step(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.Tick)
	assert.Equal(t, 3, s.Observer.Len())
	assert.Positive(t, report.Actions)
	assert.Zero(t, report.Learned)

	report, err = s.Step(ctx, 2)
	require.NoError(t, err)
	assert.Positive(t, report.Learned, "outcomes from tick 1 are learned on tick 2")
	assert.Equal(t, 6, s.Observer.Len())
	assert.Equal(t, uint64(2), s.CurrentTick())

	for _, tr := range s.Observer.Traces() {
		assert.NotEmpty(t, tr.Digest)
		assert.Contains(t, []string{"deep", "medium"}, tr.Tier)
	}
}

func TestStepRejectsStaleTicks(t *testing.T) {
	s := newSim(t, 1, []*agents.Agent{hungry(t, 1, "Mira")})
	_, err := s.Step(context.Background(), 5)
	require.NoError(t, err)
	_, err = s.Step(context.Background(), 5)
	assert.Error(t, err)
	_, err = s.Step(context.Background(), 3)
	assert.Error(t, err)
}

func TestCancelledStepAborts(t *testing.T) {
	s := newSim(t, 1, []*agents.Agent{hungry(t, 1, "Mira"), hungry(t, 2, "Tam")})
	_, err := s.Step(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := s.Step(ctx, 2)
	require.ErrorIs(t, err, ErrTickAborted)
	assert.Equal(t, 2, report.Halted)
	assert.Zero(t, report.Learned, "pending outcomes wait for a tick that runs")

	report, err = s.Step(context.Background(), 3)
	require.NoError(t, err)
	assert.Positive(t, report.Learned)
}

func TestBackgroundAgentsAreSkipped(t *testing.T) {
	pop := population(t, 11, 8)
	s, err := NewSimulation(Options{
		Seed:      11,
		Scheduler: SchedulerConfig{CycleBudget: 2, ReactiveBudget: 2},
		Layout:    tavernLayout(),
	}, pop)
	require.NoError(t, err)

	report, err := s.Step(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Tiers[TierBackground])
	assert.Equal(t, 4, s.Observer.Len())
}

func TestReplayIsDeterministic(t *testing.T) {
	run := func() ([]string, social.State) {
		s := newSim(t, 42, population(t, 42, 12))
		for tick := uint64(1); tick <= 40; tick++ {
			_, err := s.Step(context.Background(), tick)
			require.NoError(t, err)
		}
		return s.Observer.Digests(), s.Social.State()
	}
	digestsA, socialA := run()
	digestsB, socialB := run()

	require.NotEmpty(t, digestsA)
	assert.Empty(t, cmp.Diff(digestsA, digestsB))
	assert.Empty(t, cmp.Diff(socialA, socialB, cmpopts.EquateEmpty()))
}

func TestStateRestoreResumes(t *testing.T) {
	s := newSim(t, 7, population(t, 7, 6))
	for tick := uint64(1); tick <= 10; tick++ {
		_, err := s.Step(context.Background(), tick)
		require.NoError(t, err)
	}
	st := s.State()

	r, err := RestoreSimulation(Options{
		Scheduler: SchedulerConfig{CycleBudget: 6, Workers: 4},
		Layout:    tavernLayout(),
	}, st)
	require.NoError(t, err)
	assert.Equal(t, s.RunID, r.RunID)
	assert.Equal(t, uint64(10), r.CurrentTick())
	assert.Empty(t, cmp.Diff(st, r.State(), cmpopts.EquateEmpty()))

	_, err = r.Step(context.Background(), 11)
	assert.NoError(t, err)
}

func TestAgentsJoinArchetypeGroups(t *testing.T) {
	pop := population(t, 2, 10)
	s := newSim(t, 2, pop)
	for _, a := range pop {
		g, ok := social.GroupForArchetype(a.Archetype)
		if !ok {
			assert.Empty(t, s.Social.GroupsOf(a.ID))
			continue
		}
		assert.Contains(t, s.Social.GroupsOf(a.ID), g)
	}
	assert.Error(t, s.AddAgent(pop[0]), "duplicate ids are rejected")
}

func TestTellQueuesInput(t *testing.T) {
	s := newSim(t, 1, []*agents.Agent{hungry(t, 1, "Mira")})
	require.NoError(t, s.Tell(1, "Mira, a word?"))
	assert.ErrorIs(t, s.Tell(9, "hello?"), ErrUnknownAgent)

	_, err := s.Step(context.Background(), 1)
	require.NoError(t, err)
	traces := s.Observer.ForAgent(1)
	require.Len(t, traces, 1)
	assert.Equal(t, "Mira, a word?", traces[0].Inputs.Input)
}

func TestSummaryReadsWithoutStepping(t *testing.T) {
	s := newSim(t, 1, []*agents.Agent{hungry(t, 1, "Mira"), hungry(t, 2, "Tam")})
	sum, ok := s.Summary(1, 2, 3)
	require.True(t, ok)
	assert.Equal(t, "Mira", sum.Name)
	assert.Equal(t, agents.AgentID(2), sum.Interlocutor)

	_, ok = s.Summary(99, 0, 3)
	assert.False(t, ok)
}
