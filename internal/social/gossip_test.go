package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/entropy"
	"github.com/talgya/tavern-minds/internal/phi"
)

// chain builds 1→2→…→n with warm, trusting ties, plus a cold tie from 1 to 99.
func chain(n int) *Network {
	var edges []Edge
	for i := 1; i < n; i++ {
		edges = append(edges, Edge{From: agents.AgentID(i), To: agents.AgentID(i + 1), Affinity: 0.9, Trust: 0.5})
	}
	edges = append(edges, Edge{From: 1, To: 99, Affinity: phi.GossipAffinityThreshold / 2, Trust: 1})
	return NewNetwork(edges)
}

func TestGossipBoundedByHops(t *testing.T) {
	e := NewEngine(entropy.NewSource(3))
	res := e.PropagateGossip(1, agents.Rumor{Content: "the cellar is haunted", Confidence: 1}, chain(9), 1)

	assert.Equal(t, []agents.AgentID{2, 3, 4, 5, 6}, res.Reached())
	assert.Equal(t, phi.Completion, res.MaxHops)
	assert.Zero(t, res.Dropped)

	prev := 1.0
	for i, d := range res.Deliveries {
		assert.Equal(t, i+1, d.Rumor.Hops)
		assert.Equal(t, agents.AgentID(i+1), d.Rumor.Teller)
		assert.Equal(t, agents.AgentID(1), d.Rumor.Origin)
		assert.Less(t, d.Rumor.Confidence, prev)
		prev = d.Rumor.Confidence
	}
}

func TestGossipSkipsColdTiesAndSubject(t *testing.T) {
	e := NewEngine(entropy.NewSource(3))
	res := e.PropagateGossip(1, agents.Rumor{About: 3, Content: "owes money", Confidence: 0.9, Sentiment: -0.5}, chain(6), 1)
	assert.Equal(t, []agents.AgentID{2}, res.Reached(), "the subject is never told and the rumor stops there")
	assert.NotContains(t, res.Reached(), agents.AgentID(99))
}

func TestGossipDropsAreDeterministic(t *testing.T) {
	var edges []Edge
	for i := 2; i <= 40; i++ {
		edges = append(edges, Edge{From: 1, To: agents.AgentID(i), Affinity: phi.GossipAffinityThreshold, Trust: 0})
	}
	n := NewNetwork(edges)
	rumor := agents.Rumor{Content: "a stranger in town", Confidence: 1}

	a := NewEngine(entropy.NewSource(8)).PropagateGossip(1, rumor, n, 4)
	b := NewEngine(entropy.NewSource(8)).PropagateGossip(1, rumor, n, 4)
	assert.Equal(t, a, b)
	assert.Positive(t, a.Dropped, "threshold ties only pass part of the time")
	assert.NotEmpty(t, a.Deliveries)
	assert.Equal(t, 39, a.Dropped+len(a.Deliveries))
}

func TestSpreadGossipFillsInboxes(t *testing.T) {
	e := NewEngine(entropy.NewSource(1))
	require.NoError(t, e.AddGroup(Group{ID: 1, Name: "The Regulars", Members: []agents.AgentID{2}}))
	require.NoError(t, e.UpdateRelationship(1, 2, 0.8, 0.5, 0))
	require.NoError(t, e.UpdateRelationship(2, 3, 0.1, 0, 0))
	_, err := e.ApplyBatch(1)
	require.NoError(t, err)

	res := e.SpreadGossip(1, agents.Rumor{About: 7, Content: "cheats at dice", Confidence: 0.8, Sentiment: -1}, 2)
	assert.Equal(t, []agents.AgentID{2}, res.Reached())

	assert.Len(t, e.PeekInbox(2), 1)
	got := e.DrainInbox(2)
	require.Len(t, got, 1)
	assert.Equal(t, agents.AgentID(1), got[0].Teller)
	assert.Empty(t, e.DrainInbox(2))
	assert.Empty(t, e.DrainInbox(3))

	_, err = e.ApplyBatch(2)
	require.NoError(t, err)
	assert.Less(t, e.Reputation(7, 1), 0.0)

	e.Deliver(5, agents.Rumor{Content: "hello"})
	assert.Len(t, e.DrainInbox(5), 1)
}
