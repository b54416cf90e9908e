package social

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/bounds"
)

// ReputationEntry is one agent's standing in one group.
type ReputationEntry struct {
	Group GroupID        `json:"group"`
	Agent agents.AgentID `json:"agent"`
	Value float64        `json:"value"`
}

// Inbox is the rumors waiting for one agent.
type Inbox struct {
	Agent  agents.AgentID `json:"agent"`
	Rumors []agents.Rumor `json:"rumors"`
}

// State is the serializable form of the social graph. Buffered updates are not part of it:
// state is taken between ticks, after the batch is applied.
type State struct {
	Relationships []Relationship    `json:"relationships"`
	Groups        []Group           `json:"groups"`
	Reputation    []ReputationEntry `json:"reputation"`
	Artifacts     []Artifact        `json:"artifacts"`
	Inboxes       []Inbox           `json:"inboxes,omitempty"`
	Conversations uint64            `json:"conversations"`
}

// State captures the graph in a stable order.
func (e *Engine) State() State {
	st := State{
		Relationships: e.Relationships(),
		Groups:        e.Groups(),
		Artifacts:     e.Artifacts(),
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for g, m := range e.reputation {
		for a, v := range m {
			st.Reputation = append(st.Reputation, ReputationEntry{Group: g, Agent: a, Value: v})
		}
	}
	slices.SortFunc(st.Reputation, func(x, y ReputationEntry) int {
		return cmp.Or(cmp.Compare(x.Group, y.Group), cmp.Compare(x.Agent, y.Agent))
	})
	for a, rumors := range e.inboxes {
		st.Inboxes = append(st.Inboxes, Inbox{Agent: a, Rumors: slices.Clone(rumors)})
	}
	slices.SortFunc(st.Inboxes, func(x, y Inbox) int { return cmp.Compare(x.Agent, y.Agent) })
	st.Conversations = e.conversations
	return st
}

// Restore replaces the engine's graph with st after validating it. On error the engine is
// left unchanged.
func (e *Engine) Restore(st State) error {
	var errs []error
	rels := make(map[pairKey]*Relationship, len(st.Relationships))
	for _, r := range st.Relationships {
		if r.A >= r.B || !r.AtoB.valid() || !r.BtoA.valid() {
			errs = append(errs, fmt.Errorf("relationship %d-%d out of range", r.A, r.B))
			continue
		}
		rels[pairKey{r.A, r.B}] = &r
	}
	groups := make(map[GroupID]*Group, len(st.Groups))
	for _, g := range st.Groups {
		g.Members = slices.Clone(g.Members)
		slices.Sort(g.Members)
		groups[g.ID] = &g
	}
	rep := make(map[GroupID]map[agents.AgentID]float64)
	for _, r := range st.Reputation {
		if !bounds.InSigned(r.Value) {
			errs = append(errs, fmt.Errorf("reputation of %d in group %d out of range", r.Agent, r.Group))
			continue
		}
		if rep[r.Group] == nil {
			rep[r.Group] = make(map[agents.AgentID]float64)
		}
		rep[r.Group][r.Agent] = r.Value
	}
	arts := make(map[uuid.UUID]*Artifact, len(st.Artifacts))
	order := make([]uuid.UUID, 0, len(st.Artifacts))
	for _, a := range st.Artifacts {
		c := a.clone()
		slices.Sort(c.KnownBy)
		if c.Sentiment == nil {
			c.Sentiment = make(map[agents.AgentID]float64)
		}
		arts[c.ID] = &c
		order = append(order, c.ID)
	}
	inboxes := make(map[agents.AgentID][]agents.Rumor, len(st.Inboxes))
	for _, in := range st.Inboxes {
		inboxes[in.Agent] = slices.Clone(in.Rumors)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("restore social graph: %w: %w", ErrGraphCorrupt, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.relationships = rels
	e.groups = groups
	e.reputation = rep
	e.artifacts = arts
	e.artifactOrder = order
	e.inboxes = inboxes
	e.conversations = st.Conversations
	return nil
}
