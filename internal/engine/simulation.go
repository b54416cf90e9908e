// Simulation ties together agents, the social graph, the scheduler and the observer, and
// advances them one tick at a time. It is the explicit context every subsystem hangs off:
// nothing in the simulation lives in package-level state.

package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/entropy"
	"github.com/talgya/tavern-minds/internal/observer"
	"github.com/talgya/tavern-minds/internal/phi"
	"github.com/talgya/tavern-minds/internal/social"
	"github.com/talgya/tavern-minds/internal/weather"
	"github.com/talgya/tavern-minds/internal/world"
)

// Options configures a simulation.
type Options struct {
	Seed              int64
	Scheduler         SchedulerConfig
	Layout            *world.Layout
	Events            []world.ScheduledEvent
	Weather           bool     // Let seeded weather into perceptions
	Resolver          Resolver // Defaults to a RuleResolver over Layout
	ConversationTurns int      // Defaults to phi.Completion
	RecentLimit       int      // Conversation records kept for inspection; defaults to 100
}

type pendingOutcome struct {
	action  agents.Action
	outcome agents.Outcome
}

// TickReport summarises one Step.
type TickReport struct {
	Tick          uint64             `json:"tick"`
	Tiers         [4]int             `json:"tiers"` // Agents per Tier
	Actions       int                `json:"actions"`
	Idle          int                `json:"idle"`
	Malformed     int                `json:"malformed"`
	Abandoned     int                `json:"abandoned"`
	Halted        int                `json:"halted"`
	Learned       int                `json:"learned"`
	Conversations int                `json:"conversations"`
	Rumors        int                `json:"rumors"`
	Artifacts     int                `json:"artifacts"`
	Social        social.BatchReport `json:"social"`
	Duration      time.Duration      `json:"duration"`
}

// Stats tracks aggregate state across the population.
type Stats struct {
	Population    int     `json:"population"`
	AvgMood       float64 `json:"avg_mood"`
	AvgUrgency    float64 `json:"avg_urgency"`
	ActiveGoals   int     `json:"active_goals"`
	Relationships int     `json:"relationships"`
	Artifacts     int     `json:"artifacts"`
	Traces        int     `json:"traces"`
}

// Simulation holds the complete state of one run.
type Simulation struct {
	RunID     uuid.UUID
	Seed      int64
	Social    *social.Engine
	Scheduler *Scheduler
	Observer  *observer.Log
	Env       *Environment
	Resolver  Resolver
	Entropy   *entropy.Source

	turns       int
	recentLimit int

	mu         sync.Mutex
	agents     []*agents.Agent // Sorted by ID
	index      map[agents.AgentID]*agents.Agent
	pending    map[agents.AgentID]pendingOutcome
	conversing map[agents.AgentID]bool
	recent     []social.ConversationRecord
	lastTick   uint64
	last       TickReport
}

// NewSimulation creates a simulation over a population. Agents join the reputation group
// their archetype belongs to.
func NewSimulation(opts Options, population []*agents.Agent) (*Simulation, error) {
	src := entropy.NewSource(opts.Seed)
	layout := opts.Layout
	if layout == nil {
		layout = world.NewLayout(world.DefaultTavern())
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = NewRuleResolver(layout, src)
	}
	s := &Simulation{
		RunID:       uuid.New(),
		Seed:        opts.Seed,
		Social:      social.NewEngine(src),
		Scheduler:   NewScheduler(opts.Scheduler, layout),
		Observer:    observer.NewLog(),
		Env:         NewEnvironment(layout, opts.Events),
		Resolver:    resolver,
		Entropy:     src,
		turns:       cmp.Or(opts.ConversationTurns, phi.Completion),
		recentLimit: cmp.Or(opts.RecentLimit, 100),
		index:       make(map[agents.AgentID]*agents.Agent, len(population)),
		pending:     make(map[agents.AgentID]pendingOutcome),
		conversing:  make(map[agents.AgentID]bool),
	}
	if opts.Weather {
		s.Env.SetSky(weather.NewSky(src))
	}
	for _, g := range social.SeedGroups() {
		if err := s.Social.AddGroup(g); err != nil {
			return nil, err
		}
	}
	for _, a := range population {
		if err := s.AddAgent(a); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddAgent adds an agent to the population.
func (s *Simulation) AddAgent(a *agents.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[a.ID]; dup {
		return fmt.Errorf("add agent %d: duplicate id", a.ID)
	}
	i, _ := slices.BinarySearchFunc(s.agents, a.ID, func(x *agents.Agent, id agents.AgentID) int {
		return cmp.Compare(x.ID, id)
	})
	s.agents = slices.Insert(s.agents, i, a)
	s.index[a.ID] = a
	if g, ok := social.GroupForArchetype(a.Archetype); ok {
		if err := s.Social.Join(a.ID, g); err != nil {
			return fmt.Errorf("add agent %d: %w", a.ID, err)
		}
	}
	return nil
}

// CurrentTick returns the most recently completed tick.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

// LastReport returns the report of the most recent Step.
func (s *Simulation) LastReport() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// snapshot is the frozen view of the world every cycle in a tick sees.
type snapshot struct {
	present map[string][]agents.VisibleAgent // location → agents there, by ID
}

func (s *Simulation) freeze() snapshot {
	snap := snapshot{present: make(map[string][]agents.VisibleAgent)}
	for _, a := range s.agents {
		loc, _ := a.Location()
		va := agents.VisibleAgent{ID: a.ID, Name: a.Name}
		if act, ok := a.LastAction(); ok {
			va.LastCommand = act.Command
		}
		snap.present[loc] = append(snap.present[loc], va)
	}
	return snap
}

func (snap snapshot) visibleTo(id agents.AgentID, loc string) []agents.VisibleAgent {
	var out []agents.VisibleAgent
	for _, va := range snap.present[loc] {
		if va.ID != id {
			out = append(out, va)
		}
	}
	return out
}

func (snap snapshot) presentIDs(id agents.AgentID, loc string) []agents.AgentID {
	var out []agents.AgentID
	for _, va := range snap.present[loc] {
		if va.ID != id {
			out = append(out, va.ID)
		}
	}
	return out
}

// Step advances the simulation by one tick:
//
//  1. assign tiers, let scheduled agents learn from their pending outcomes, then freeze the
//     environment and social view;
//  2. run the cycles in parallel on the scheduler's worker pool;
//  3. commit serially: traces, the buffered social batch, then conversations, gossip
//     and artifacts;
//  4. resolve the actions into outcomes for the next tick.
//
// Cancelling ctx aborts the tick with ErrTickAborted: agents that already finished stay
// committed and the rest resume next tick. A corrupt social batch is logged and returned
// after the rest of the commit completes.
func (s *Simulation) Step(ctx context.Context, tick uint64) (TickReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tick <= s.lastTick {
		return TickReport{}, fmt.Errorf("step tick %d: already at tick %d", tick, s.lastTick)
	}
	start := time.Now()
	report := TickReport{Tick: tick}

	assignments := s.Scheduler.Assign(s.agents, s.conversing)
	tiers := make(map[agents.AgentID]Tier, len(assignments))
	for _, as := range assignments {
		tiers[as.Agent.ID] = as.Tier
		report.Tiers[as.Tier]++
	}

	// Scheduled agents learn from last tick's outcome before the world is frozen, so their
	// perception already reflects where the outcome left them.
	if ctx.Err() == nil {
		for _, a := range s.agents {
			p, ok := s.pending[a.ID]
			if !ok || tiers[a.ID] == TierBackground {
				continue
			}
			delete(s.pending, a.ID)
			report.Learned++
			for _, in := range a.ProcessOutcome(p.action, p.outcome, tick) {
				if err := s.Social.Record(in); err != nil {
					slog.Debug("interaction dropped", "agent", a.ID, "err", err)
				}
			}
		}
	}

	snap := s.freeze()
	perceptions := make(map[agents.AgentID]agents.Perception, len(assignments))
	for _, as := range assignments {
		if as.Tier == TierBackground {
			continue
		}
		loc, _ := as.Agent.Location()
		rumors := s.Social.DrainInbox(as.Agent.ID)
		perceptions[as.Agent.ID] = s.Env.Perceive(tick, as.Agent, snap.visibleTo(as.Agent.ID, loc), rumors)
	}

	results := s.Scheduler.Run(ctx, assignments, func(ctx context.Context, as Assignment) agents.CycleResult {
		opts := agents.CycleOptions{Depth: as.Tier.Depth(), Social: s.Social}
		return as.Agent.CognitiveCycle(ctx, perceptions[as.Agent.ID], opts)
	})
	slices.SortFunc(results, func(x, y agents.CycleResult) int { return cmp.Compare(x.Agent, y.Agent) })

	for i := range results {
		res := &results[i]
		if res.Tick == 0 {
			res.Tick = tick
		}
		s.Observer.Record(observer.FromResult(*res, tiers[res.Agent].String()))
		switch {
		case res.Malformed:
			report.Malformed++
		case res.Abandoned:
			report.Abandoned++
		case res.Halted:
			report.Halted++
		case res.Action == nil:
			report.Idle++
		default:
			report.Actions++
		}
	}

	batch, batchErr := s.Social.ApplyBatch(tick)
	if batchErr != nil {
		slog.Error("social batch failed", "tick", tick, "err", batchErr)
	}
	report.Social = batch

	conversing := make(map[agents.AgentID]bool)
	for _, res := range results {
		if res.Action == nil {
			continue
		}
		a := s.index[res.Agent]
		loc, _ := a.Location()
		if res.Conversation != nil {
			if s.converse(a, res.Conversation, loc, snap, conversing, tick) {
				report.Conversations++
			}
		}
		if res.Gossip != nil {
			report.Rumors += s.gossip(a, *res.Gossip, res.Action.Target, tick)
		}
		if res.Artifact != nil {
			kind, ok := social.ParseArtifactKind(res.Artifact.Kind)
			if !ok {
				kind = social.ArtifactSaying
			}
			s.Social.CreateArtifact(kind, res.Artifact.Content, a.ID, tick)
			report.Artifacts++
		}
		if res.Performing {
			s.perform(a, snap.presentIDs(a.ID, loc), tick)
		}
	}

	for _, res := range results {
		if res.Action == nil {
			continue
		}
		a := s.index[res.Agent]
		loc, _ := a.Location()
		where, ok := s.Env.Layout().Location(loc)
		if !ok {
			where = world.Location{Name: loc}
		}
		scene := Scene{Tick: tick, Location: where, Present: snap.presentIDs(a.ID, loc), Events: s.Env.EventsAt(tick, loc)}
		s.pending[a.ID] = pendingOutcome{action: *res.Action, outcome: s.Resolver.Resolve(*res.Action, scene)}
	}

	s.conversing = conversing
	s.lastTick = tick
	s.Env.Forget(tick)
	report.Duration = time.Since(start)
	s.last = report

	slog.Debug("tick committed", "tick", tick, "actions", report.Actions, "idle", report.Idle,
		"conversations", report.Conversations, "pairs", report.Social.Pairs)

	if ctx.Err() != nil {
		return report, fmt.Errorf("tick %d: %w: %w", tick, ErrTickAborted, context.Cause(ctx))
	}
	if batchErr != nil {
		return report, fmt.Errorf("tick %d: %w", tick, batchErr)
	}
	return report, nil
}

// converse runs a requested conversation if the partner is still in the same place and
// neither side has already talked this tick.
func (s *Simulation) converse(a *agents.Agent, req *agents.ConversationRequest, loc string, snap snapshot, busy map[agents.AgentID]bool, tick uint64) bool {
	b, ok := s.index[req.With]
	if !ok || busy[a.ID] || busy[b.ID] {
		return false
	}
	if !slices.Contains(snap.presentIDs(a.ID, loc), b.ID) {
		return false
	}
	em := a.Emotions()
	tone := em.Mood().Valence * phi.Matter
	if att, ok := s.Social.Attitude(a.ID, b.ID); ok {
		tone += att.Affinity * phi.Psyche
	}
	rec, err := s.Social.RunConversation(a, b, social.ConversationContext{
		Topic:    req.Topic,
		Location: loc,
		Tone:     bounds.Signed(tone + phi.Agnosis),
		Tick:     tick,
		MaxTurns: s.turns,
	})
	if err != nil {
		slog.Debug("conversation skipped", "a", a.ID, "b", b.ID, "err", err)
		return false
	}
	busy[a.ID], busy[b.ID] = true, true
	s.recent = append(s.recent, rec)
	if len(s.recent) > s.recentLimit {
		s.recent = s.recent[len(s.recent)-s.recentLimit:]
	}
	return true
}

// gossip passes a rumor on: straight to the listener when the agent is telling someone,
// otherwise along the social graph. Returns how many agents received it.
func (s *Simulation) gossip(a *agents.Agent, r agents.Rumor, target agents.AgentID, tick uint64) int {
	r.Teller = a.ID
	if r.Origin == 0 {
		r.Origin = a.ID
	}
	if target != 0 {
		if target == r.About {
			return 0
		}
		r.Hops++
		s.Social.Deliver(target, r)
		return 1
	}
	return len(s.Social.SpreadGossip(a.ID, r, tick).Deliveries)
}

// perform teaches the performer's newest piece to everyone in the room.
func (s *Simulation) perform(a *agents.Agent, audience []agents.AgentID, tick uint64) {
	known := s.Social.ArtifactsKnownBy(a.ID)
	if len(known) == 0 {
		return
	}
	piece := known[len(known)-1]
	for _, id := range audience {
		listener := s.index[id]
		if _, err := s.Social.SpreadCulturalArtifact(piece.ID, a.ID, id, listener.Traits().Axis(agents.Openness), tick); err != nil {
			slog.Debug("artifact not spread", "artifact", piece.ID, "to", id, "err", err)
		}
	}
}

// Consolidate promotes recurring memories to knowledge for every agent. Returns how many
// semantic memories were created.
func (s *Simulation) Consolidate(minOccurrences int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.agents {
		n += a.Consolidate(minOccurrences)
	}
	return n
}

// Stats aggregates the population.
func (s *Simulation) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Population:    len(s.agents),
		Relationships: len(s.Social.Relationships()),
		Artifacts:     len(s.Social.Artifacts()),
		Traces:        s.Observer.Len(),
	}
	for _, a := range s.agents {
		em := a.Emotions()
		st.AvgMood += em.Mood().Valence
		st.AvgUrgency += a.MaxUrgency()
		if _, ok := a.ActiveGoal(); ok {
			st.ActiveGoals++
		}
	}
	if st.Population > 0 {
		st.AvgMood /= float64(st.Population)
		st.AvgUrgency /= float64(st.Population)
	}
	return st
}

// Report logs the periodic summary.
func (s *Simulation) Report(tick uint64) {
	st := s.Stats()
	last := s.LastReport()
	slog.Info("tavern report",
		"tick", tick,
		"time", SimTime(tick),
		"population", st.Population,
		"avg_mood", fmt.Sprintf("%.3f", st.AvgMood),
		"avg_urgency", fmt.Sprintf("%.3f", st.AvgUrgency),
		"active_goals", st.ActiveGoals,
		"relationships", humanize.Comma(int64(st.Relationships)),
		"artifacts", st.Artifacts,
		"traces", humanize.Comma(int64(st.Traces)),
		"last_tick_took", last.Duration.String(),
	)
}

// WithAgent runs fn with exclusive access to an agent. Returns false if the agent is unknown.
func (s *Simulation) WithAgent(id agents.AgentID, fn func(a *agents.Agent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.index[id]
	if !ok {
		return false
	}
	fn(a)
	return true
}

// AgentIDs returns the population's IDs, ascending.
func (s *Simulation) AgentIDs() []agents.AgentID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]agents.AgentID, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.ID
	}
	return out
}

// Summary returns an agent's dialogue-bridge view toward an interlocutor.
func (s *Simulation) Summary(id, interlocutor agents.AgentID, k int) (agents.StateSummary, bool) {
	var sum agents.StateSummary
	ok := s.WithAgent(id, func(a *agents.Agent) {
		sum = a.Summary(s.lastTick, interlocutor, s.Social, k)
	})
	return sum, ok
}

// RecentConversations returns the most recent conversation records, oldest first.
func (s *Simulation) RecentConversations() []social.ConversationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recent)
}

// ErrUnknownAgent is returned for an agent ID the simulation does not hold.
var ErrUnknownAgent = errors.New("unknown agent")

// Tell queues player input for an agent's next perception.
func (s *Simulation) Tell(id agents.AgentID, text string) error {
	s.mu.Lock()
	_, ok := s.index[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("tell %d: %w", id, ErrUnknownAgent)
	}
	s.Env.QueueInput(id, text)
	return nil
}
