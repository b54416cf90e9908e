package social

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/bounds"
)

// GroupID is a unique identifier for a reputation group.
type GroupID uint64

// GroupKind categorizes the nature of a group.
type GroupKind uint8

const (
	GroupRegulars  GroupKind = iota // The tavern's everyday crowd
	GroupGuild                      // Trade and coin
	GroupWatch                      // Keepers of the peace
	GroupTroupe                     // Performers and storytellers
	GroupTravelers                  // Folk passing through
)

var groupKindNames = [...]string{"regulars", "guild", "watch", "troupe", "travelers"}

func (k GroupKind) String() string {
	if int(k) < len(groupKindNames) {
		return groupKindNames[k]
	}
	return fmt.Sprintf("GroupKind(%d)", k)
}

// Group is a set of agents whose shared opinion of others forms reputation. Reputation is
// public perception, distinct from any one member's private relationship.
type Group struct {
	ID      GroupID          `json:"id"`
	Name    string           `json:"name"`
	Kind    GroupKind        `json:"kind"`
	Members []agents.AgentID `json:"members"` // sorted
}

func (g *Group) has(id agents.AgentID) bool {
	_, found := slices.BinarySearch(g.Members, id)
	return found
}

// SeedGroups creates the tavern's standing groups.
func SeedGroups() []Group {
	return []Group{
		{ID: 1, Name: "The Regulars", Kind: GroupRegulars},
		{ID: 2, Name: "Merchants' Guild", Kind: GroupGuild},
		{ID: 3, Name: "Town Watch", Kind: GroupWatch},
		{ID: 4, Name: "The Players", Kind: GroupTroupe},
		{ID: 5, Name: "Road Company", Kind: GroupTravelers},
	}
}

// archetypeGroup is the group an archetype naturally belongs to. Scholars keep to themselves.
var archetypeGroup = map[string]GroupID{
	agents.ArchBarkeep:  1,
	agents.ArchLaborer:  1,
	agents.ArchGossip:   1,
	agents.ArchMerchant: 2,
	agents.ArchGuard:    3,
	agents.ArchBard:     4,
	agents.ArchTraveler: 5,
}

// GroupForArchetype returns the seed group an archetype joins, if any.
func GroupForArchetype(archetype string) (GroupID, bool) {
	id, ok := archetypeGroup[archetype]
	return id, ok
}

// AddGroup registers a group. Members are copied and sorted.
func (e *Engine) AddGroup(g Group) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.groups[g.ID]; exists {
		return fmt.Errorf("add group %d: already exists", g.ID)
	}
	g.Members = slices.Clone(g.Members)
	slices.Sort(g.Members)
	g.Members = slices.Compact(g.Members)
	e.groups[g.ID] = &g
	return nil
}

// Join adds an agent to a group. Joining twice is a no-op.
func (e *Engine) Join(agent agents.AgentID, group GroupID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.groups[group]
	if !ok {
		return fmt.Errorf("join group %d: %w", group, ErrUnknownGroup)
	}
	i, found := slices.BinarySearch(g.Members, agent)
	if !found {
		g.Members = slices.Insert(g.Members, i, agent)
	}
	return nil
}

// Groups returns copies of every group ordered by ID.
func (e *Engine) Groups() []Group {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Group, 0, len(e.groups))
	for _, g := range e.groups {
		c := *g
		c.Members = slices.Clone(g.Members)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Group) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// GroupsOf returns the IDs of the groups an agent belongs to, ascending.
func (e *Engine) GroupsOf(agent agents.AgentID) []GroupID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.groupsOfLocked(agent)
}

func (e *Engine) groupsOfLocked(agent agents.AgentID) []GroupID {
	var out []GroupID
	for id, g := range e.groups {
		if g.has(agent) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Reputation returns how a group regards an agent, in [-1, 1]. Unknown agents are neutral.
func (e *Engine) Reputation(agent agents.AgentID, group GroupID) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reputation[group][agent]
}

// AdjustReputation buffers a change to how a group regards an agent. Applied by ApplyBatch.
func (e *Engine) AdjustReputation(agent agents.AgentID, group GroupID, delta float64) {
	e.pendMu.Lock()
	e.pendingRep = append(e.pendingRep, reputationUpdate{agent: agent, group: group, delta: delta})
	e.pendMu.Unlock()
}

// Standing averages an agent's reputation across every group, weighting none above another.
func (e *Engine) Standing(agent agents.AgentID) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.groups) == 0 {
		return 0
	}
	sum := 0.0
	for id := range e.groups {
		sum += e.reputation[id][agent]
	}
	return bounds.Signed(sum / float64(len(e.groups)))
}
