package social

import (
	"cmp"
	"slices"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// Edge is one directed social tie: how From feels about To.
type Edge struct {
	From     agents.AgentID `json:"from"`
	To       agents.AgentID `json:"to"`
	Affinity float64        `json:"affinity"`
	Trust    float64        `json:"trust"`
}

// Network is an immutable snapshot of the social graph's directed ties, used for gossip and
// cluster detection without holding the engine's lock.
type Network struct {
	out   map[agents.AgentID][]Edge
	nodes []agents.AgentID
}

// NewNetwork builds a snapshot from edges. Duplicate edges keep the last one.
func NewNetwork(edges []Edge) *Network {
	n := &Network{out: make(map[agents.AgentID][]Edge)}
	seen := make(map[agents.AgentID]bool)
	addNode := func(id agents.AgentID) {
		if !seen[id] {
			seen[id] = true
			n.nodes = append(n.nodes, id)
		}
	}
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		addNode(e.From)
		addNode(e.To)
		list := n.out[e.From]
		if i := slices.IndexFunc(list, func(x Edge) bool { return x.To == e.To }); i >= 0 {
			list[i] = e
			continue
		}
		n.out[e.From] = append(list, e)
	}
	for id, list := range n.out {
		slices.SortFunc(list, func(a, b Edge) int { return cmp.Compare(a.To, b.To) })
		n.out[id] = list
	}
	slices.Sort(n.nodes)
	return n
}

// Network snapshots the current relationships.
func (e *Engine) Network() *Network {
	rels := e.Relationships()
	edges := make([]Edge, 0, 2*len(rels))
	for _, r := range rels {
		edges = append(edges,
			Edge{From: r.A, To: r.B, Affinity: r.AtoB.Affinity, Trust: r.AtoB.Trust},
			Edge{From: r.B, To: r.A, Affinity: r.BtoA.Affinity, Trust: r.BtoA.Trust},
		)
	}
	return NewNetwork(edges)
}

// Nodes returns every agent with at least one tie, ascending.
func (n *Network) Nodes() []agents.AgentID {
	return slices.Clone(n.nodes)
}

// Out returns the ties from an agent ordered by target ID.
func (n *Network) Out(from agents.AgentID) []Edge {
	return slices.Clone(n.out[from])
}

// Affinity returns from's affinity toward to, and whether a tie exists.
func (n *Network) Affinity(from, to agents.AgentID) (float64, bool) {
	for _, e := range n.out[from] {
		if e.To == to {
			return e.Affinity, true
		}
	}
	return 0, false
}

// Delivery is one rumor reaching one listener.
type Delivery struct {
	To    agents.AgentID `json:"to"`
	Rumor agents.Rumor   `json:"rumor"`
}

// GossipResult is the outcome of one propagation.
type GossipResult struct {
	Source     agents.AgentID `json:"source"`
	Deliveries []Delivery     `json:"deliveries"`
	Dropped    int            `json:"dropped"` // Ties that passed the threshold but lost the draw
	MaxHops    int            `json:"max_hops"`
}

// Reached returns the listeners in delivery order.
func (r GossipResult) Reached() []agents.AgentID {
	out := make([]agents.AgentID, len(r.Deliveries))
	for i, d := range r.Deliveries {
		out[i] = d.To
	}
	return out
}

// minRumorConfidence is the confidence below which nobody bothers repeating a rumor.
var minRumorConfidence = phi.Agnosis * 0.1

// PropagateGossip spreads a rumor outward from source, breadth first. A rumor only travels
// along ties whose affinity reaches the gossip threshold, so strangers and rivals never hear
// it. Each hop survives a keyed draw weighted by affinity, loses confidence, and the walk stops
// after phi.Completion hops. The subject of a rumor is never told it.
func (e *Engine) PropagateGossip(source agents.AgentID, rumor agents.Rumor, n *Network, tick uint64) GossipResult {
	res := GossipResult{Source: source}
	if rumor.Origin == 0 {
		rumor.Origin = source
	}
	rumor.Confidence = bounds.Unit(rumor.Confidence)

	type hop struct {
		holder agents.AgentID
		rumor  agents.Rumor
	}
	visited := map[agents.AgentID]bool{source: true}
	queue := []hop{{holder: source, rumor: rumor}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.rumor.Hops >= phi.Completion {
			continue
		}
		for _, edge := range n.out[cur.holder] {
			if visited[edge.To] || (rumor.About != 0 && edge.To == rumor.About) {
				continue
			}
			if edge.Affinity < phi.GossipAffinityThreshold {
				continue
			}
			pass := bounds.Unit(phi.Psyche + edge.Affinity)
			if e.src.Keyed(tick, uint64(source), uint64(cur.holder), uint64(edge.To), uint64(rumor.About)) >= pass {
				res.Dropped++
				continue
			}
			next := cur.rumor
			next.Teller = cur.holder
			next.Hops++
			next.Confidence *= phi.Matter * (0.5 + 0.5*bounds.Unit(edge.Trust+phi.Matter))
			if next.Confidence < minRumorConfidence {
				continue
			}
			visited[edge.To] = true
			res.Deliveries = append(res.Deliveries, Delivery{To: edge.To, Rumor: next})
			res.MaxHops = max(res.MaxHops, next.Hops)
			queue = append(queue, hop{holder: edge.To, rumor: next})
		}
	}
	return res
}

// SpreadGossip propagates a rumor over the current graph and queues each delivery in the
// listener's inbox for the next tick's perception. Groups the listener belongs to shift their
// view of the rumor's subject by its sentiment.
func (e *Engine) SpreadGossip(source agents.AgentID, rumor agents.Rumor, tick uint64) GossipResult {
	res := e.PropagateGossip(source, rumor, e.Network(), tick)

	e.mu.Lock()
	for _, d := range res.Deliveries {
		e.inboxes[d.To] = append(e.inboxes[d.To], d.Rumor)
	}
	e.mu.Unlock()

	if rumor.About != 0 && rumor.Sentiment != 0 {
		for _, d := range res.Deliveries {
			for _, g := range e.GroupsOf(d.To) {
				e.AdjustReputation(rumor.About, g, d.Rumor.Sentiment*d.Rumor.Confidence*phi.Agnosis*0.1)
			}
		}
	}
	return res
}

// Deliver queues a rumor for one listener directly, as when it is told face to face.
func (e *Engine) Deliver(to agents.AgentID, rumor agents.Rumor) {
	e.mu.Lock()
	e.inboxes[to] = append(e.inboxes[to], rumor)
	e.mu.Unlock()
}

// DrainInbox removes and returns every rumor waiting for an agent.
func (e *Engine) DrainInbox(agent agents.AgentID) []agents.Rumor {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.inboxes[agent]
	delete(e.inboxes, agent)
	return out
}

// PeekInbox returns the rumors waiting for an agent without removing them.
func (e *Engine) PeekInbox(agent agents.AgentID) []agents.Rumor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.inboxes[agent])
}
