// Scheduler decides who thinks this tick, and how hard, then runs the cycles on a bounded
// worker pool. Tiers: deep and medium agents get full cycles, simple agents a reactive pass,
// background agents are skipped.

package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/phi"
	"github.com/talgya/tavern-minds/internal/world"
)

// Tier is how much attention the scheduler gives an agent in one tick.
type Tier uint8

const (
	TierDeep       Tier = iota // Full cycle with theory-of-mind modelling
	TierMedium                 // Full cycle without theory-of-mind modelling
	TierSimple                 // Reactive pass: continue the current plan
	TierBackground             // Skipped this tick
)

var tierNames = [...]string{"deep", "medium", "simple", "background"}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return fmt.Sprintf("tier(%d)", t)
}

// Depth maps a tier onto the cycle depth it grants.
func (t Tier) Depth() agents.CycleDepth {
	switch t {
	case TierDeep:
		return agents.DepthFull
	case TierMedium:
		return agents.DepthStandard
	default:
		return agents.DepthReactive
	}
}

// SchedulerConfig bounds the work done per tick.
type SchedulerConfig struct {
	CycleBudget    int           // Agents that get a full cycle
	ReactiveBudget int           // Agents after those that get a reactive pass
	Workers        int           // Concurrent cycles; defaults to GOMAXPROCS
	SoftBudget     time.Duration // Per-cycle time budget; zero disables it
}

// Assignment is one agent's tier for the tick.
type Assignment struct {
	Agent *agents.Agent
	Tier  Tier
	Score float64
}

// Job is the work run for one scheduled agent.
type Job func(ctx context.Context, as Assignment) agents.CycleResult

// Scheduler scores agents and runs their cycles.
type Scheduler struct {
	cfg    SchedulerConfig
	layout *world.Layout
}

// NewScheduler creates a scheduler. A nil layout scores proximity as zero.
func NewScheduler(cfg SchedulerConfig, layout *world.Layout) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.CycleBudget < 0 {
		cfg.CycleBudget = 0
	}
	if cfg.ReactiveBudget < 0 {
		cfg.ReactiveBudget = 0
	}
	if layout == nil {
		layout = world.NewLayout(nil, nil)
	}
	return &Scheduler{cfg: cfg, layout: layout}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() SchedulerConfig {
	return s.cfg
}

// Relevance scores how much an agent deserves attention: closeness to points of interest,
// being in a conversation, the most urgent need, and the strongest emotion.
func (s *Scheduler) Relevance(a *agents.Agent, conversing bool) float64 {
	_, coord := a.Location()
	score := s.layout.Proximity(coord) + a.MaxUrgency() + a.EmotionalIntensity()
	if conversing {
		score += 1
	}
	return score
}

// Assign ranks agents by relevance (ties by ascending ID) and hands out tiers. The first
// ⌈CycleBudget×Psyche⌉ full-cycle slots are deep, the rest of the budget medium.
func (s *Scheduler) Assign(population []*agents.Agent, conversing map[agents.AgentID]bool) []Assignment {
	out := make([]Assignment, len(population))
	for i, a := range population {
		out[i] = Assignment{Agent: a, Score: s.Relevance(a, conversing[a.ID])}
	}
	slices.SortFunc(out, func(x, y Assignment) int {
		return cmp.Or(cmp.Compare(y.Score, x.Score), cmp.Compare(x.Agent.ID, y.Agent.ID))
	})

	deep := int(math.Ceil(float64(s.cfg.CycleBudget) * phi.Psyche))
	for i := range out {
		switch {
		case i < min(deep, s.cfg.CycleBudget):
			out[i].Tier = TierDeep
		case i < s.cfg.CycleBudget:
			out[i].Tier = TierMedium
		case i < s.cfg.CycleBudget+s.cfg.ReactiveBudget:
			out[i].Tier = TierSimple
		default:
			out[i].Tier = TierBackground
		}
	}
	return out
}

// Run executes job for every non-background assignment on the worker pool and returns the
// results in assignment order, background agents omitted. Each job gets its own soft time
// budget; a job that panics yields an abandoned result. Run never returns an error: every
// failure is a per-agent soft failure.
func (s *Scheduler) Run(ctx context.Context, assignments []Assignment, job Job) []agents.CycleResult {
	var active []Assignment
	for _, as := range assignments {
		if as.Tier != TierBackground {
			active = append(active, as)
		}
	}
	results := make([]agents.CycleResult, len(active))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, as := range active {
		g.Go(func() error {
			results[i] = s.runOne(ctx, as, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Scheduler) runOne(ctx context.Context, as Assignment, job Job) (res agents.CycleResult) {
	if s.cfg.SoftBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.cfg.SoftBudget, agents.ErrCycleBudgetExceeded)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cycle panicked", "agent", as.Agent.ID, "tier", as.Tier, "panic", r)
			res = agents.CycleResult{
				Agent:     as.Agent.ID,
				Depth:     as.Tier.Depth(),
				Abandoned: true,
				Rationale: fmt.Sprintf("cycle abandoned: %v", r),
				Tags:      []string{"Panic"},
			}
		}
	}()
	return job(ctx, as)
}
