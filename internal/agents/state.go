package agents

import (
	"fmt"
	"maps"
	"slices"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/world"
)

// MindState is the saved form of one theory-of-mind model.
type MindState struct {
	Target    AgentID            `json:"target"`
	Perceived [NumTraits]float64 `json:"perceived"`
	History   []Observation      `json:"history,omitempty"`
	Beliefs   []Belief           `json:"beliefs"`
}

// MemoryState is the saved form of a memory store.
type MemoryState struct {
	Episodes     []Episodic     `json:"episodes,omitempty"`
	Semantic     []Semantic     `json:"semantic,omitempty"`
	Consolidated map[string]int `json:"consolidated,omitempty"`
	NextID       uint64         `json:"next_id"`
}

// GoalState is the saved form of a goal manager.
type GoalState struct {
	Goals  []Goal `json:"goals,omitempty"`
	Plans  []Plan `json:"plans,omitempty"`
	Active GoalID `json:"active,omitempty"`
	NextID GoalID `json:"next_id"`
}

// AgentState is an agent's complete state. Restoring it yields an agent whose future cycles
// are indistinguishable from the original's.
type AgentState struct {
	ID         AgentID        `json:"id"`
	Name       string         `json:"name"`
	Archetype  string         `json:"archetype,omitempty"`
	Location   string         `json:"location,omitempty"`
	Coord      world.HexCoord `json:"coord"`
	Traits     Traits         `json:"traits"`
	Needs      NeedSet        `json:"needs"`
	Emotions   []Emotion      `json:"emotions,omitempty"`
	Mood       Mood           `json:"mood"`
	Beliefs    []Belief       `json:"beliefs,omitempty"`
	Minds      []MindState    `json:"minds,omitempty"`
	Memory     MemoryState    `json:"memory"`
	Goals      GoalState      `json:"goals"`
	Gossip     []Rumor        `json:"gossip,omitempty"`
	LastTick   uint64         `json:"last_tick"`
	LastAction *Action        `json:"last_action,omitempty"`
}

// State captures the agent's full state. Collections come out in a deterministic order.
func (a *Agent) State() AgentState {
	st := AgentState{
		ID:        a.ID,
		Name:      a.Name,
		Archetype: a.Archetype,
		Location:  a.location,
		Coord:     a.coord,
		Traits:    a.traits.Clone(),
		Needs:     a.needs,
		Emotions:  a.emotions.Active(),
		Mood:      a.emotions.Mood(),
		Beliefs:   a.beliefs.All(),
		Memory: MemoryState{
			Episodes:     a.memory.Episodes(),
			Semantic:     a.memory.Semantic(),
			Consolidated: maps.Clone(a.memory.consolidated),
			NextID:       a.memory.nextID,
		},
		Goals: GoalState{
			Goals:  a.goals.Goals(),
			Active: a.goals.active,
			NextID: a.goals.nextID,
		},
		Gossip:   slices.Clone(a.gossip),
		LastTick: a.lastTick,
	}
	for _, id := range slices.Sorted(maps.Keys(a.beliefs.minds)) {
		m := a.beliefs.minds[id]
		st.Minds = append(st.Minds, MindState{
			Target:    m.Target,
			Perceived: m.Perceived,
			History:   slices.Clone(m.History),
			Beliefs:   m.Beliefs.All(),
		})
	}
	for _, id := range slices.Sorted(maps.Keys(a.goals.plans)) {
		st.Goals.Plans = append(st.Goals.Plans, *a.goals.plans[id].clone())
	}
	if a.lastAction != nil {
		act := *a.lastAction
		st.LastAction = &act
	}
	return st
}

// Restore rebuilds an agent from saved state. The traits and need levels are re-validated.
func Restore(st AgentState) (*Agent, error) {
	if st.ID == 0 || st.Name == "" {
		return nil, fmt.Errorf("%w: saved agent needs an id and a name", ErrInvalidConfig)
	}
	traits, err := NewTraits(st.Traits.Config())
	if err != nil {
		return nil, fmt.Errorf("restore agent %d: %w", st.ID, err)
	}
	for i, n := range st.Needs {
		if n.Type != NeedType(i) || !bounds.InUnit(n.Level) || n.DecayRate < 0 {
			return nil, fmt.Errorf("%w: saved agent %d has a corrupt %s need", ErrInvalidConfig, st.ID, NeedType(i))
		}
	}

	a := &Agent{
		ID:        st.ID,
		Name:      st.Name,
		Archetype: st.Archetype,
		traits:    traits,
		needs:     st.Needs,
		beliefs:   NewBeliefStore(),
		memory:    NewMemoryStore(),
		goals:     NewGoalManager(),
		location:  st.Location,
		coord:     st.Coord,
		gossip:    slices.Clone(st.Gossip),
		lastTick:  st.LastTick,
	}
	for _, e := range st.Emotions {
		a.emotions.Set(e.Type, e.Intensity, e.Triggered)
	}
	a.emotions.setMood(st.Mood)

	for _, b := range st.Beliefs {
		a.beliefs.restore(b)
	}
	for _, ms := range st.Minds {
		m := &MindModel{
			Target:    ms.Target,
			Beliefs:   NewBeliefStore(),
			Perceived: ms.Perceived,
			History:   slices.Clone(ms.History),
		}
		for _, b := range ms.Beliefs {
			m.Beliefs.restore(b)
		}
		a.beliefs.minds[ms.Target] = m
	}

	for _, e := range st.Memory.Episodes {
		a.memory.episodes = append(a.memory.episodes, e.clone())
	}
	for _, sm := range st.Memory.Semantic {
		a.memory.semIndex[sm.Category+"\x00"+sm.Content] = len(a.memory.semantic)
		a.memory.semantic = append(a.memory.semantic, sm)
	}
	maps.Copy(a.memory.consolidated, st.Memory.Consolidated)
	a.memory.nextID = max(st.Memory.NextID, 1)

	for _, g := range st.Goals.Goals {
		ng := g.clone()
		a.goals.goals = append(a.goals.goals, &ng)
		a.goals.index[ng.ID] = &ng
	}
	for _, p := range st.Goals.Plans {
		if _, ok := a.goals.index[p.Goal]; ok {
			a.goals.plans[p.Goal] = p.clone()
		}
	}
	a.goals.active = st.Goals.Active
	a.goals.nextID = max(st.Goals.NextID, 1)

	if st.LastAction != nil {
		act := *st.LastAction
		a.lastAction = &act
	}
	return a, nil
}
