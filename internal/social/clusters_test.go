package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/phi"
)

func mutual(a, b agents.AgentID, affinity float64) []Edge {
	return []Edge{{From: a, To: b, Affinity: affinity}, {From: b, To: a, Affinity: affinity}}
}

func TestDetectClustersUsesMutualAffinity(t *testing.T) {
	var edges []Edge
	edges = append(edges, mutual(5, 4, 0.7)...)
	edges = append(edges, mutual(1, 2, 0.6)...)
	edges = append(edges, mutual(2, 3, 0.5)...)
	edges = append(edges,
		Edge{From: 5, To: 6, Affinity: 0.9},
		Edge{From: 6, To: 5, Affinity: 0.1},
		Edge{From: 7, To: 1, Affinity: 0.9},
	)
	got := DetectClusters(NewNetwork(edges), phi.ClusterAffinityThreshold)
	assert.Equal(t, [][]agents.AgentID{{1, 2, 3}, {4, 5}}, got)

	assert.Empty(t, DetectClusters(NewNetwork(edges), 0.95))
}

func TestEngineClusters(t *testing.T) {
	e := NewEngine(nil)
	for _, pair := range [][2]agents.AgentID{{1, 2}, {2, 1}, {3, 4}, {4, 3}} {
		require.NoError(t, e.UpdateRelationship(pair[0], pair[1], 0.5, 0, 0))
	}
	require.NoError(t, e.UpdateRelationship(2, 3, 0.9, 0, 0))
	_, err := e.ApplyBatch(1)
	require.NoError(t, err)

	assert.Equal(t, [][]agents.AgentID{{1, 2}, {3, 4}}, e.Clusters(phi.ClusterAffinityThreshold))
}
