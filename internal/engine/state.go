package engine

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/social"
)

// PendingOutcome is a resolved action waiting for its agent's next cycle.
type PendingOutcome struct {
	Agent   agents.AgentID `json:"agent"`
	Action  agents.Action  `json:"action"`
	Outcome agents.Outcome `json:"outcome"`
}

// State is everything needed to resume a run.
type State struct {
	RunID      uuid.UUID           `json:"run_id"`
	Seed       int64               `json:"seed"`
	LastTick   uint64              `json:"last_tick"`
	Agents     []agents.AgentState `json:"agents"`
	Social     social.State        `json:"social"`
	Pending    []PendingOutcome    `json:"pending,omitempty"`
	Conversing []agents.AgentID    `json:"conversing,omitempty"`
}

// State captures the simulation between ticks.
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		RunID:      s.RunID,
		Seed:       s.Seed,
		LastTick:   s.lastTick,
		Social:     s.Social.State(),
		Conversing: slices.Sorted(maps.Keys(s.conversing)),
	}
	for _, a := range s.agents {
		st.Agents = append(st.Agents, a.State())
	}
	for id, p := range s.pending {
		st.Pending = append(st.Pending, PendingOutcome{Agent: id, Action: p.action, Outcome: p.outcome})
	}
	slices.SortFunc(st.Pending, func(x, y PendingOutcome) int { return cmp.Compare(x.Agent, y.Agent) })
	return st
}

// RestoreSimulation rebuilds a simulation from a saved state. The seed and run ID come from
// the state; opts supplies everything else.
func RestoreSimulation(opts Options, st State) (*Simulation, error) {
	opts.Seed = st.Seed
	population := make([]*agents.Agent, 0, len(st.Agents))
	for _, as := range st.Agents {
		a, err := agents.Restore(as)
		if err != nil {
			return nil, fmt.Errorf("restore agent %d: %w", as.ID, err)
		}
		population = append(population, a)
	}
	s, err := NewSimulation(opts, population)
	if err != nil {
		return nil, err
	}
	if err := s.Social.Restore(st.Social); err != nil {
		return nil, err
	}
	s.RunID = st.RunID
	s.lastTick = st.LastTick
	for _, p := range st.Pending {
		if _, ok := s.index[p.Agent]; !ok {
			return nil, fmt.Errorf("restore pending outcome: %w: %d", ErrUnknownAgent, p.Agent)
		}
		s.pending[p.Agent] = pendingOutcome{action: p.Action, outcome: p.Outcome}
	}
	for _, id := range st.Conversing {
		s.conversing[id] = true
	}
	return s, nil
}
