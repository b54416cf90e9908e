package social

import (
	"cmp"
	"slices"

	"github.com/talgya/tavern-minds/internal/agents"
)

// DetectClusters finds groups of agents bound by mutual affinity. Two agents are linked when
// each one's affinity toward the other is at least threshold; clusters are the connected
// components of those links with two or more members. Members are ascending, and clusters
// are ordered largest first, then by lowest member ID.
func DetectClusters(n *Network, threshold float64) [][]agents.AgentID {
	adj := make(map[agents.AgentID][]agents.AgentID)
	for _, from := range n.nodes {
		for _, e := range n.out[from] {
			if e.From >= e.To || e.Affinity < threshold {
				continue
			}
			back, ok := n.Affinity(e.To, e.From)
			if !ok || back < threshold {
				continue
			}
			adj[e.From] = append(adj[e.From], e.To)
			adj[e.To] = append(adj[e.To], e.From)
		}
	}

	visited := make(map[agents.AgentID]bool)
	var clusters [][]agents.AgentID
	for _, start := range n.nodes {
		if visited[start] {
			continue
		}
		var component []agents.AgentID
		stack := []agents.AgentID{start}
		visited[start] = true
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, u)
			for _, v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					stack = append(stack, v)
				}
			}
		}
		if len(component) >= 2 {
			slices.Sort(component)
			clusters = append(clusters, component)
		}
	}
	slices.SortFunc(clusters, func(a, b []agents.AgentID) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), cmp.Compare(a[0], b[0]))
	})
	return clusters
}

// Clusters detects clusters over the engine's current graph.
func (e *Engine) Clusters(threshold float64) [][]agents.AgentID {
	return DetectClusters(e.Network(), threshold)
}
