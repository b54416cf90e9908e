package agents

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/world"
)

// attitudes is a fixed RelationshipReader for tests.
type attitudes map[[2]AgentID]Attitude

func (m attitudes) Attitude(from, to AgentID) (Attitude, bool) {
	a, ok := m[[2]AgentID{from, to}]
	return a, ok
}

func newTestAgent(t *testing.T, id AgentID, name string, needs ...NeedConfig) *Agent {
	t.Helper()
	a, err := New(Config{
		ID:   id,
		Name: name,
		Traits: TraitConfig{
			Openness: 0.6, Conscientiousness: 0.5, Extraversion: 0.7, Agreeableness: 0.6, Neuroticism: 0.4,
			Values: []Value{{Name: "community", Strength: 0.7}},
		},
		Needs: needs,
	})
	require.NoError(t, err)
	return a
}

func taproom(tick uint64, visible ...VisibleAgent) Perception {
	return Perception{
		Tick:          tick,
		Location:      "taproom",
		Coord:         world.HexCoord{Q: 0, R: 0},
		LocationTags:  []string{"food", "seating"},
		VisibleAgents: visible,
	}
}

func TestNewRejectsOutOfRangeSeeds(t *testing.T) {
	_, err := New(Config{ID: 1, Name: "Mira", Traits: TraitConfig{Openness: 1.5}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{ID: 1, Name: "Mira", Emotions: []EmotionConfig{{Type: "joy", Intensity: 2}}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{ID: 1, Name: "Mira", Goals: []GoalConfig{{Description: "x", Type: "conquest", Seed: 0.5}}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Name: "Nobody"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHungryAgentFormsSurvivalGoal(t *testing.T) {
	a := newTestAgent(t, 1, "Mira", NeedConfig{Type: "sustenance", Level: 0.05, Threshold: 0.3})

	res := a.CognitiveCycle(context.Background(), taproom(1), CycleOptions{})
	require.False(t, res.Malformed)

	var found *Goal
	for _, g := range a.Goals() {
		if g.Type == GoalSurvival && slices.Contains(g.Needs, NeedSustenance) {
			found = &g
			break
		}
	}
	require.NotNil(t, found, "expected a survival goal for sustenance")
	assert.GreaterOrEqual(t, found.Priority, 0.7)

	require.NotNil(t, res.Action)
	assert.Equal(t, CmdOrderFood, res.Action.Command)
	assert.Equal(t, "Mira orders a meal", res.Action.Description)
	assert.Equal(t, found.ID, res.Action.Goal)
	assert.Equal(t, StateIdle, a.CycleState())
}

func TestMalformedPerceptionLeavesAgentUntouched(t *testing.T) {
	a := newTestAgent(t, 1, "Mira")
	a.CognitiveCycle(context.Background(), taproom(5), CycleOptions{})
	before := a.State()

	for _, p := range []Perception{
		{Tick: 6},             // no location
		{Location: "taproom"}, // no time
		taproom(4),            // time went backwards
	} {
		res := a.CognitiveCycle(context.Background(), p, CycleOptions{})
		assert.True(t, res.Malformed)
		assert.Nil(t, res.Action)
		assert.Contains(t, res.Tags, "MalformedPerception")
	}
	assert.Empty(t, cmp.Diff(before, a.State(), cmpopts.EquateEmpty()))
}

func TestCancelledCycleKeepsPlan(t *testing.T) {
	a := newTestAgent(t, 1, "Mira", NeedConfig{Type: "sustenance", Level: 0.05})
	res := a.CognitiveCycle(context.Background(), taproom(1), CycleOptions{})
	require.NotNil(t, res.Action)
	goal := res.Action.Goal

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	halted := a.CognitiveCycle(ctx, taproom(2), CycleOptions{})
	assert.True(t, halted.Halted)
	assert.False(t, halted.Abandoned)
	assert.Nil(t, halted.Action)

	budget, cancelBudget := context.WithCancelCause(context.Background())
	cancelBudget(ErrCycleBudgetExceeded)
	abandoned := a.CognitiveCycle(budget, taproom(2), CycleOptions{})
	assert.True(t, abandoned.Abandoned)
	assert.Nil(t, abandoned.Action)

	plan, ok := a.goals.Plan(goal)
	require.True(t, ok)
	assert.Equal(t, CmdOrderFood, plan.Steps[0].Command)

	res = a.CognitiveCycle(context.Background(), taproom(3), CycleOptions{})
	require.NotNil(t, res.Action)
	assert.Equal(t, CmdOrderFood, res.Action.Command)
}

func TestOutcomesAdvanceThePlan(t *testing.T) {
	a := newTestAgent(t, 1, "Mira", NeedConfig{Type: "sustenance", Level: 0.05})
	ctx := context.Background()

	res := a.CognitiveCycle(ctx, taproom(1), CycleOptions{})
	require.NotNil(t, res.Action)
	assert.Empty(t, a.ProcessOutcome(*res.Action, Outcome{Success: true}, 2))

	res = a.CognitiveCycle(ctx, taproom(3), CycleOptions{})
	require.NotNil(t, res.Action)
	assert.Equal(t, CmdEat, res.Action.Command)
	goal := res.Action.Goal

	a.ProcessOutcome(*res.Action, Outcome{Success: true, Effects: []Effect{{Kind: EffectNeed, Need: NeedSustenance, Amount: 0.6}}}, 4)
	g, ok := findGoal(a, goal)
	require.True(t, ok)
	assert.Equal(t, GoalAchieved, g.Status)

	b, ok := a.beliefs.Get(BeliefAbility, "can:"+string(CmdEat))
	require.True(t, ok)
	assert.Equal(t, "yes", b.Content)
	assert.NotEmpty(t, slices.Collect(a.memory.RecallRecent(4, 1)))
}

func TestSocialActionProducesInteraction(t *testing.T) {
	a := newTestAgent(t, 1, "Mira", NeedConfig{Type: "belonging", Level: 0.05})
	tobin := VisibleAgent{ID: 2, Name: "Tobin", LastCommand: CmdConverse}

	res := a.CognitiveCycle(context.Background(), taproom(1, tobin), CycleOptions{})
	require.NotNil(t, res.Action)
	assert.Equal(t, CmdApproach, res.Action.Command)
	assert.Equal(t, AgentID(2), res.Action.Target)
	assert.Equal(t, "Mira walks over to Tobin", res.Action.Description)
	assert.True(t, a.beliefs.HasMindOf(2))

	in := a.ProcessOutcome(*res.Action, Outcome{Success: true}, 2)
	require.Len(t, in, 1)
	assert.Equal(t, AgentID(1), in[0].From)
	assert.Equal(t, AgentID(2), in[0].To)
	assert.Greater(t, in[0].Affinity, 0.0)

	res = a.CognitiveCycle(context.Background(), taproom(2, tobin), CycleOptions{})
	require.NotNil(t, res.Action)
	assert.Equal(t, CmdConverse, res.Action.Command)
	require.NotNil(t, res.Conversation)
	assert.Equal(t, AgentID(2), res.Conversation.With)
}

func TestStandardDepthSkipsTheoryOfMind(t *testing.T) {
	a := newTestAgent(t, 1, "Mira")
	a.CognitiveCycle(context.Background(), taproom(1, VisibleAgent{ID: 2, Name: "Tobin"}), CycleOptions{Depth: DepthStandard})
	assert.False(t, a.beliefs.HasMindOf(2))
	_, ok := a.beliefs.Get(BeliefFact, presenceSubject(2))
	assert.True(t, ok)
}

func TestReactivePassOnlyContinuesPlans(t *testing.T) {
	a := newTestAgent(t, 1, "Mira", NeedConfig{Type: "sustenance", Level: 0.05})
	res := a.CognitiveCycle(context.Background(), taproom(1), CycleOptions{Depth: DepthReactive})
	assert.Nil(t, res.Action)
	assert.Zero(t, len(a.Goals()), "reactive passes do not deliberate")

	a.CognitiveCycle(context.Background(), taproom(2), CycleOptions{})
	res = a.CognitiveCycle(context.Background(), taproom(3), CycleOptions{Depth: DepthReactive})
	require.NotNil(t, res.Action)
	assert.Equal(t, CmdOrderFood, res.Action.Command)
	assert.Contains(t, res.Tags, "reactive")
}

func TestRivalsTriggerAvoidance(t *testing.T) {
	a := newTestAgent(t, 1, "Mira")
	social := attitudes{{1, 2}: {Affinity: -0.9}}
	res := a.CognitiveCycle(context.Background(), taproom(1, VisibleAgent{ID: 2, Name: "Bram"}), CycleOptions{Social: social})
	require.NotNil(t, res.Action)
	assert.Equal(t, CmdWithdraw, res.Action.Command)
	assert.Equal(t, "Mira keeps their distance", res.Action.Description)
}

func TestRumorsBecomeBeliefsAndGossip(t *testing.T) {
	a := newTestAgent(t, 1, "Mira", NeedConfig{Type: "respect", Level: 0.05})
	social := attitudes{{1, 2}: {Affinity: 0.5, Trust: 0.8}}
	p := taproom(1, VisibleAgent{ID: 2, Name: "Tobin"})
	p.Rumors = []Rumor{{Origin: 3, Teller: 2, About: 3, Content: "Bram cheats at dice", Confidence: 0.9, Sentiment: -0.7, Hops: 1}}

	res := a.CognitiveCycle(context.Background(), p, CycleOptions{Social: social})
	b, ok := a.beliefs.Get(BeliefFact, rumorSubject(3))
	require.True(t, ok)
	assert.InDelta(t, 0.9*0.9, b.Confidence, 1e-9)

	require.NotNil(t, res.Action)
	assert.Equal(t, CmdApproach, res.Action.Command)
	assert.Contains(t, res.Tags, "plan:trade-gossip")

	a.ProcessOutcome(*res.Action, Outcome{Success: true}, 2)
	res = a.CognitiveCycle(context.Background(), taproom(2, VisibleAgent{ID: 2, Name: "Tobin"}), CycleOptions{Social: social})
	require.NotNil(t, res.Action)
	assert.Equal(t, CmdShareRumor, res.Action.Command)
	require.NotNil(t, res.Gossip)
	assert.Equal(t, AgentID(1), res.Gossip.Teller)
	assert.Equal(t, AgentID(3), res.Gossip.About)
}

func TestStateRoundTrip(t *testing.T) {
	a := newTestAgent(t, 1, "Mira", NeedConfig{Type: "sustenance", Level: 0.2}, NeedConfig{Type: "belonging", Level: 0.1})
	ctx := context.Background()
	social := attitudes{{1, 2}: {Affinity: 0.3, Trust: 0.4}}
	tobin := VisibleAgent{ID: 2, Name: "Tobin", LastCommand: CmdWork}

	scripted := func(tick uint64) Perception {
		p := taproom(tick, tobin)
		if tick%3 == 0 {
			p.Events = []AmbientEvent{{Kind: "music", Description: "a fiddler strikes up", Valence: 0.6, Unexpectedness: 0.4, Relevance: 0.7}}
		}
		if tick%4 == 0 {
			p.Rumors = []Rumor{{Origin: 2, Teller: 2, About: 5, Content: "the miller is broke", Confidence: 0.7, Sentiment: -0.5}}
		}
		return p
	}
	step := func(ag *Agent, tick uint64) CycleResult {
		res := ag.CognitiveCycle(ctx, scripted(tick), CycleOptions{Social: social})
		if res.Action != nil {
			ag.ProcessOutcome(*res.Action, Outcome{Success: tick%5 != 0}, tick)
		}
		return res
	}
	for tick := uint64(1); tick <= 12; tick++ {
		step(a, tick)
	}
	a.Consolidate(2)

	st := a.State()
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	var decoded AgentState
	require.NoError(t, json.Unmarshal(raw, &decoded))
	b, err := Restore(decoded)
	require.NoError(t, err)

	opts := cmpopts.EquateEmpty()
	require.Empty(t, cmp.Diff(st, b.State(), opts))

	for tick := uint64(13); tick <= 30; tick++ {
		ra, rb := step(a, tick), step(b, tick)
		require.Empty(t, cmp.Diff(ra, rb, opts), "tick %d", tick)
	}
	assert.Empty(t, cmp.Diff(a.State(), b.State(), opts))
}

func TestSummaryIsReadOnly(t *testing.T) {
	a := newTestAgent(t, 1, "Mira", NeedConfig{Type: "sustenance", Level: 0.05})
	p := taproom(1, VisibleAgent{ID: 2, Name: "Tobin"})
	p.Events = []AmbientEvent{{Kind: "threat", Description: "a stranger draws a knife", Valence: -0.9, Unexpectedness: 0.9, Relevance: 0.9}}
	a.CognitiveCycle(context.Background(), p, CycleOptions{})
	before := a.State()

	s := a.Summary(1, 2, attitudes{{1, 2}: {Affinity: 0.2}}, 3)
	assert.Equal(t, "fear", s.DominantEmotion)
	assert.NotEmpty(t, s.ActiveGoal)
	assert.NotEmpty(t, s.Memories)
	assert.Len(t, s.Traits, NumTraits)
	require.NotNil(t, s.Attitude)
	assert.Equal(t, 0.2, s.Attitude.Affinity)
	assert.NotEmpty(t, s.Expectation)

	assert.Empty(t, cmp.Diff(before, a.State(), cmpopts.EquateEmpty()))
}

func findGoal(a *Agent, id GoalID) (Goal, bool) {
	return a.goals.Get(id)
}
