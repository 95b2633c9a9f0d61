package graph

import (
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// WeightedGraph exports an edge list over n voxels as a gonum undirected
// graph weighted by edge value. Every voxel becomes a node, isolated or not.
func WeightedGraph(edges []Edge, n int) *simple.WeightedUndirectedGraph {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for id := 0; id < n; id++ {
		g.AddNode(simple.Node(id))
	}
	for _, e := range edges {
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(e.V1),
			T: simple.Node(e.V2),
			W: e.Value,
		})
	}
	return g
}

// MaxSpanningForestWeight returns the total value of a maximum spanning
// forest over the edge list, computed by gonum's Kruskal on negated
// values.
func MaxSpanningForestWeight(edges []Edge, n int) float64 {
	negated := make([]Edge, len(edges))
	for i, e := range edges {
		e.Value = -e.Value
		negated[i] = e
	}

	dst := simple.NewWeightedUndirectedGraph(0, 0)
	return -path.Kruskal(dst, WeightedGraph(negated, n))
}
