package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/agents"
)

func TestAssignHonoursBudgets(t *testing.T) {
	pop := population(t, 3, 10)
	s := NewScheduler(SchedulerConfig{CycleBudget: 4, ReactiveBudget: 3}, tavernLayout())

	got := s.Assign(pop, nil)
	require.Len(t, got, 10)

	var counts [4]int
	for i, as := range got {
		counts[as.Tier]++
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Score, as.Score, "assignments sorted by relevance")
		}
	}
	assert.Equal(t, [4]int{2, 2, 3, 3}, counts)
}

func TestAssignBreaksTiesByID(t *testing.T) {
	pop := []*agents.Agent{hungry(t, 3, "C"), hungry(t, 1, "A"), hungry(t, 2, "B")}
	s := NewScheduler(SchedulerConfig{CycleBudget: 1, ReactiveBudget: 1}, tavernLayout())

	got := s.Assign(pop, nil)
	assert.Equal(t, agents.AgentID(1), got[0].Agent.ID)
	assert.Equal(t, TierDeep, got[0].Tier)
	assert.Equal(t, agents.AgentID(2), got[1].Agent.ID)
	assert.Equal(t, TierSimple, got[1].Tier)
	assert.Equal(t, TierBackground, got[2].Tier)
}

func TestConversingRaisesRelevance(t *testing.T) {
	a := hungry(t, 1, "Mira")
	s := NewScheduler(SchedulerConfig{}, tavernLayout())
	assert.InDelta(t, s.Relevance(a, false)+1, s.Relevance(a, true), 1e-9)
}

func TestRunSkipsBackgroundAndBoundsWorkers(t *testing.T) {
	pop := population(t, 5, 12)
	s := NewScheduler(SchedulerConfig{CycleBudget: 6, ReactiveBudget: 2, Workers: 2}, tavernLayout())

	var running, peak atomic.Int32
	results := s.Run(context.Background(), s.Assign(pop, nil), func(ctx context.Context, as Assignment) agents.CycleResult {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return agents.CycleResult{Agent: as.Agent.ID}
	})

	assert.Len(t, results, 8)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSoftBudgetAbandonsSlowCycles(t *testing.T) {
	a := hungry(t, 1, "Mira")
	s := NewScheduler(SchedulerConfig{CycleBudget: 1, SoftBudget: 10 * time.Millisecond}, tavernLayout())

	results := s.Run(context.Background(), s.Assign([]*agents.Agent{a}, nil), func(ctx context.Context, as Assignment) agents.CycleResult {
		<-ctx.Done()
		return as.Agent.CognitiveCycle(ctx, agents.Perception{Tick: 1, Location: "taproom"}, agents.CycleOptions{})
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Abandoned)
	assert.Nil(t, results[0].Action)
	assert.Contains(t, results[0].Tags, "CycleBudgetExceeded")
}

func TestPanickingCycleIsAbandoned(t *testing.T) {
	pop := []*agents.Agent{hungry(t, 1, "Mira"), hungry(t, 2, "Tam")}
	s := NewScheduler(SchedulerConfig{CycleBudget: 2}, tavernLayout())

	results := s.Run(context.Background(), s.Assign(pop, nil), func(ctx context.Context, as Assignment) agents.CycleResult {
		if as.Agent.ID == 2 {
			panic("boom")
		}
		return agents.CycleResult{Agent: as.Agent.ID, Tick: 1}
	})

	require.Len(t, results, 2)
	for _, res := range results {
		if res.Agent == 2 {
			assert.True(t, res.Abandoned)
			assert.Contains(t, res.Tags, "Panic")
		} else {
			assert.False(t, res.Abandoned)
		}
	}
}

func TestTierDepth(t *testing.T) {
	assert.Equal(t, agents.DepthFull, TierDeep.Depth())
	assert.Equal(t, agents.DepthStandard, TierMedium.Depth())
	assert.Equal(t, agents.DepthReactive, TierSimple.Depth())
	assert.Equal(t, "background", TierBackground.String())
}
