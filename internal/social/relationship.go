// Package social is the shared social graph: relationships, reputation, gossip and culture.
// The Engine is the only owner of cross-agent state. Agents read it through Attitude and
// request changes through the buffered update API; the buffer is applied once per tick.
package social

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/entropy"
	"github.com/talgya/tavern-minds/internal/phi"
)

// Stance is one side's feelings toward the other side of a relationship.
type Stance struct {
	Affinity    float64 `json:"affinity"`    // -1.0 to +1.0
	Trust       float64 `json:"trust"`       // -1.0 to +1.0
	Respect     float64 `json:"respect"`     // -1.0 to +1.0
	Familiarity float64 `json:"familiarity"` // -1.0 to +1.0, only ever grows
}

// Attitude converts the stance into the view agents consume.
func (s Stance) Attitude() agents.Attitude {
	return agents.Attitude{Affinity: s.Affinity, Trust: s.Trust, Respect: s.Respect, Familiarity: s.Familiarity}
}

func (s Stance) valid() bool {
	return bounds.InSigned(s.Affinity) && bounds.InSigned(s.Trust) &&
		bounds.InSigned(s.Respect) && bounds.InSigned(s.Familiarity)
}

// Relationship is the pairwise bond between two agents. Identity is undirected (A < B);
// the values are not.
type Relationship struct {
	A            agents.AgentID `json:"a"`
	B            agents.AgentID `json:"b"`
	AtoB         Stance         `json:"a_to_b"`
	BtoA         Stance         `json:"b_to_a"`
	Interactions int            `json:"interactions"`
	Formed       uint64         `json:"formed"`
	LastTick     uint64         `json:"last_tick"`
}

// Stance returns from's stance toward the other side.
func (r Relationship) Stance(from agents.AgentID) Stance {
	if from == r.A {
		return r.AtoB
	}
	return r.BtoA
}

func (r *Relationship) stance(from agents.AgentID) *Stance {
	if from == r.A {
		return &r.AtoB
	}
	return &r.BtoA
}

type pairKey struct {
	a, b agents.AgentID
}

func keyFor(x, y agents.AgentID) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{x, y}
}

// Update is one buffered relationship delta from one agent toward another.
type Update struct {
	From     agents.AgentID `json:"from"`
	To       agents.AgentID `json:"to"`
	Affinity float64        `json:"affinity"`
	Trust    float64        `json:"trust"`
	Respect  float64        `json:"respect"`
}

type reputationUpdate struct {
	agent agents.AgentID
	group GroupID
	delta float64
}

// BatchReport summarises one ApplyBatch call.
type BatchReport struct {
	Tick       uint64 `json:"tick"`
	Updates    int    `json:"updates"`
	Pairs      int    `json:"pairs"`
	Formed     int    `json:"formed"`
	Reputation int    `json:"reputation"`
}

// Engine owns the social graph. Safe for concurrent use: reads take a shared lock, and the
// update buffer has its own lock so cycles can enqueue while others read.
type Engine struct {
	src *entropy.Source
	ns  uuid.UUID

	mu            sync.RWMutex
	relationships map[pairKey]*Relationship
	groups        map[GroupID]*Group
	reputation    map[GroupID]map[agents.AgentID]float64
	artifacts     map[uuid.UUID]*Artifact
	artifactOrder []uuid.UUID
	inboxes       map[agents.AgentID][]agents.Rumor
	conversations uint64

	pendMu     sync.Mutex
	pending    []Update
	pendingRep []reputationUpdate
}

// NewEngine creates an empty social graph drawing randomness from src. Record and artifact
// IDs derive from the source's seed so replays produce the same IDs.
func NewEngine(src *entropy.Source) *Engine {
	if src == nil {
		src = entropy.NewSource(0)
	}
	return &Engine{
		src:           src,
		ns:            uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "tavern-minds/%d", src.Seed())),
		relationships: make(map[pairKey]*Relationship),
		groups:        make(map[GroupID]*Group),
		reputation:    make(map[GroupID]map[agents.AgentID]float64),
		artifacts:     make(map[uuid.UUID]*Artifact),
		inboxes:       make(map[agents.AgentID][]agents.Rumor),
	}
}

// GetOrCreate returns the relationship between a and b, creating a neutral one on first use.
func (e *Engine) GetOrCreate(a, b agents.AgentID, tick uint64) (Relationship, error) {
	if a == b {
		return Relationship{}, fmt.Errorf("get relationship %d: %w", a, ErrSelfRelationship)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.getOrCreateLocked(a, b, tick), nil
}

func (e *Engine) getOrCreateLocked(a, b agents.AgentID, tick uint64) *Relationship {
	k := keyFor(a, b)
	r, ok := e.relationships[k]
	if !ok {
		r = &Relationship{A: k.a, B: k.b, Formed: tick, LastTick: tick}
		e.relationships[k] = r
	}
	return r
}

// Relationship returns the relationship between a and b if one exists.
func (e *Engine) Relationship(a, b agents.AgentID) (Relationship, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.relationships[keyFor(a, b)]
	if !ok {
		return Relationship{}, false
	}
	return *r, true
}

// Relationships returns every relationship ordered by (A, B).
func (e *Engine) Relationships() []Relationship {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Relationship, 0, len(e.relationships))
	for _, r := range e.relationships {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(x, y Relationship) int {
		return cmp.Or(cmp.Compare(x.A, y.A), cmp.Compare(x.B, y.B))
	})
	return out
}

// Attitude reports from's stance toward to. Implements agents.RelationshipReader.
func (e *Engine) Attitude(from, to agents.AgentID) (agents.Attitude, bool) {
	r, ok := e.Relationship(from, to)
	if !ok || from == to {
		return agents.Attitude{}, false
	}
	return r.Stance(from).Attitude(), true
}

// UpdateRelationship buffers a delta of from's stance toward to. Nothing changes until
// ApplyBatch; concurrent updates to the same pair are summed, never lost.
func (e *Engine) UpdateRelationship(from, to agents.AgentID, affinity, trust, respect float64) error {
	if from == to {
		return fmt.Errorf("update relationship %d: %w", from, ErrSelfRelationship)
	}
	e.pendMu.Lock()
	e.pending = append(e.pending, Update{From: from, To: to, Affinity: affinity, Trust: trust, Respect: respect})
	e.pendMu.Unlock()
	return nil
}

// Record buffers an agent-requested interaction.
func (e *Engine) Record(in agents.Interaction) error {
	return e.UpdateRelationship(in.From, in.To, in.Affinity, in.Trust, in.Respect)
}

// Pending reports how many relationship and reputation updates are buffered.
func (e *Engine) Pending() int {
	e.pendMu.Lock()
	defer e.pendMu.Unlock()
	return len(e.pending) + len(e.pendingRep)
}

type directedKey struct {
	from, to agents.AgentID
}

type summed struct {
	affinity, trust, respect float64
	count                    int
}

// ApplyBatch applies every buffered update as one atomic step. Each delta is clamped to
// [-1, 1], deltas on the same directed pair are summed, and the result is clamped into range.
// The staged graph is validated before it replaces the live one; on ErrGraphCorrupt the
// whole batch is discarded.
func (e *Engine) ApplyBatch(tick uint64) (BatchReport, error) {
	e.pendMu.Lock()
	updates, repUpdates := e.pending, e.pendingRep
	e.pending, e.pendingRep = nil, nil
	e.pendMu.Unlock()

	report := BatchReport{Tick: tick, Updates: len(updates), Reputation: len(repUpdates)}
	if len(updates) == 0 && len(repUpdates) == 0 {
		return report, nil
	}

	sums := make(map[directedKey]*summed)
	for _, u := range updates {
		k := directedKey{u.From, u.To}
		s, ok := sums[k]
		if !ok {
			s = &summed{}
			sums[k] = s
		}
		s.affinity += bounds.Signed(u.Affinity)
		s.trust += bounds.Signed(u.Trust)
		s.respect += bounds.Signed(u.Respect)
		s.count++
	}
	keys := make([]directedKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y directedKey) int {
		return cmp.Or(cmp.Compare(x.from, y.from), cmp.Compare(x.to, y.to))
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	staged := make(map[pairKey]*Relationship)
	stageRel := func(from, to agents.AgentID) *Relationship {
		k := keyFor(from, to)
		if r, ok := staged[k]; ok {
			return r
		}
		var r Relationship
		if live, ok := e.relationships[k]; ok {
			r = *live
		} else {
			r = Relationship{A: k.a, B: k.b, Formed: tick}
			report.Formed++
		}
		staged[k] = &r
		return &r
	}
	stagedRep := make(map[GroupID]map[agents.AgentID]float64)
	adjustRep := func(g GroupID, agent agents.AgentID, delta float64) {
		m, ok := stagedRep[g]
		if !ok {
			m = make(map[agents.AgentID]float64)
			stagedRep[g] = m
		}
		cur, ok := m[agent]
		if !ok {
			cur = e.reputation[g][agent]
		}
		m[agent] = bounds.Clamp(cur+delta, -1, 1)
	}

	for _, k := range keys {
		s := sums[k]
		r := stageRel(k.from, k.to)
		st := r.stance(k.from)
		st.Affinity = bounds.Clamp(st.Affinity+s.affinity, -1, 1)
		st.Trust = bounds.Clamp(st.Trust+s.trust, -1, 1)
		st.Respect = bounds.Clamp(st.Respect+s.respect, -1, 1)
		st.Familiarity = bounds.Clamp(st.Familiarity+phi.FamiliarityStep*float64(s.count), -1, 1)
		r.Interactions += s.count
		r.LastTick = tick

		// What members of a group feel privately leaks into the group's public opinion.
		for _, gid := range e.groupsOfLocked(k.from) {
			adjustRep(gid, k.to, bounds.Signed(s.affinity)*phi.Agnosis)
		}
	}
	for _, u := range repUpdates {
		if _, ok := e.groups[u.group]; !ok {
			continue
		}
		adjustRep(u.group, u.agent, bounds.Signed(u.delta))
	}

	for k, r := range staged {
		if r.A != k.a || r.B != k.b || r.A >= r.B || !r.AtoB.valid() || !r.BtoA.valid() {
			slog.Error("social batch rejected", "tick", tick, "a", r.A, "b", r.B)
			return BatchReport{Tick: tick}, fmt.Errorf("apply batch at tick %d: relationship %d-%d: %w", tick, r.A, r.B, ErrGraphCorrupt)
		}
	}
	for g, m := range stagedRep {
		for agent, v := range m {
			if !bounds.InSigned(v) {
				return BatchReport{Tick: tick}, fmt.Errorf("apply batch at tick %d: reputation of %d in group %d: %w", tick, agent, g, ErrGraphCorrupt)
			}
		}
	}

	for k, r := range staged {
		e.relationships[k] = r
	}
	for g, m := range stagedRep {
		live, ok := e.reputation[g]
		if !ok {
			live = make(map[agents.AgentID]float64)
			e.reputation[g] = live
		}
		for agent, v := range m {
			live[agent] = v
		}
	}
	report.Pairs = len(staged)
	slog.Debug("social batch applied", "tick", tick, "updates", report.Updates, "pairs", report.Pairs)
	return report, nil
}

// adjustLocked applies a delta immediately. Only used by serialized commit-phase operations
// such as conversations; callers hold e.mu.
func (e *Engine) adjustLocked(from, to agents.AgentID, affinity, trust, respect float64, tick uint64) {
	r := e.getOrCreateLocked(from, to, tick)
	st := r.stance(from)
	st.Affinity = bounds.Signed(st.Affinity + bounds.Signed(affinity))
	st.Trust = bounds.Signed(st.Trust + bounds.Signed(trust))
	st.Respect = bounds.Signed(st.Respect + bounds.Signed(respect))
	st.Familiarity = bounds.Signed(st.Familiarity + phi.FamiliarityStep)
	r.Interactions++
	r.LastTick = tick
}

func (e *Engine) stanceLocked(from, to agents.AgentID) Stance {
	if r, ok := e.relationships[keyFor(from, to)]; ok {
		return r.Stance(from)
	}
	return Stance{}
}

// Strength is a single scalar for how close two agents are, averaging both directions.
func (r Relationship) Strength() float64 {
	return (r.AtoB.Affinity + r.BtoA.Affinity + (r.AtoB.Trust+r.BtoA.Trust)*phi.Psyche) / (2 + 2*phi.Psyche)
}
