// Package callgraph turns a merged project profile into a directed graph
// of reachability edges and ranks functions within it.
package callgraph

import (
	"sort"

	"github.com/panbanda/fuzzlens/pkg/profile"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Build creates the graph of every merged function and its reached edges.
// Self-edges and edges to functions without a merged record are dropped.
func Build(mp *profile.MergedProjectProfile) *Graph {
	g := &Graph{Nodes: make([]Node, 0), Edges: make([]Edge, 0)}
	for _, fp := range mp.Functions() {
		g.Nodes = append(g.Nodes, Node{
			ID:         fp.Name,
			File:       fp.SourceFile,
			HitCount:   fp.HitCount,
			Complexity: fp.CyclomaticComplexity,
		})
	}
	for _, fp := range mp.Functions() {
		seen := make(map[string]bool, len(fp.FunctionsReached))
		for _, callee := range fp.FunctionsReached {
			if seen[callee] || callee == fp.Name {
				continue
			}
			seen[callee] = true
			if _, ok := mp.Function(callee); ok {
				g.Edges = append(g.Edges, Edge{From: fp.Name, To: callee})
			}
		}
	}
	return g
}

// Analyzer computes centrality and cycle metrics over a Graph.
type Analyzer struct {
	damping   float64
	tolerance float64
	top       int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithTop keeps only the n highest ranked functions in the result (0 = all).
func WithTop(n int) Option {
	return func(a *Analyzer) {
		a.top = n
	}
}

// WithDamping sets the PageRank damping factor.
func WithDamping(d float64) Option {
	return func(a *Analyzer) {
		a.damping = d
	}
}

// New creates a new call graph analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		damping:   0.85,
		tolerance: 1e-6,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type gonumGraph struct {
	directed   *simple.DirectedGraph
	nodeIDToID map[string]int64
	idToNodeID map[int64]string
}

// toGonumGraph skips self-loops, which simple graphs do not support.
func toGonumGraph(g *Graph) *gonumGraph {
	gg := &gonumGraph{
		directed:   simple.NewDirectedGraph(),
		nodeIDToID: make(map[string]int64, len(g.Nodes)),
		idToNodeID: make(map[int64]string, len(g.Nodes)),
	}
	for i, node := range g.Nodes {
		id := int64(i)
		gg.nodeIDToID[node.ID] = id
		gg.idToNodeID[id] = node.ID
		gg.directed.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges {
		from, fromOK := gg.nodeIDToID[e.From]
		to, toOK := gg.nodeIDToID[e.To]
		if fromOK && toOK && from != to {
			gg.directed.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return gg
}

// Analyze ranks the graph's functions by PageRank and reports strongly
// connected components. Node metrics are sorted by PageRank, highest first.
func (a *Analyzer) Analyze(g *Graph) *Metrics {
	m := &Metrics{NodeMetrics: make([]NodeMetric, 0, len(g.Nodes))}
	m.Summary.TotalNodes = len(g.Nodes)
	m.Summary.TotalEdges = len(g.Edges)
	if len(g.Nodes) == 0 {
		return m
	}

	gg := toGonumGraph(g)
	rank := network.PageRankSparse(gg.directed, a.damping, a.tolerance)

	inDegree := make(map[string]int, len(g.Nodes))
	outDegree := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		inDegree[e.To]++
		outDegree[e.From]++
	}

	componentOf := make(map[string]int, len(g.Nodes))
	componentSize := make(map[int]int)
	sccs := topo.TarjanSCC(gg.directed)
	for i, scc := range sccs {
		componentSize[i] = len(scc)
		for _, n := range scc {
			componentOf[gg.idToNodeID[n.ID()]] = i
		}
		m.Summary.LargestComponent = max(m.Summary.LargestComponent, len(scc))
		if len(scc) > 1 {
			m.Summary.CycleCount++
			for _, n := range scc {
				m.Summary.CycleNodes = append(m.Summary.CycleNodes, gg.idToNodeID[n.ID()])
			}
		}
	}
	sort.Strings(m.Summary.CycleNodes)
	m.Summary.StronglyConnectedComponents = len(sccs)
	m.Summary.IsCyclic = m.Summary.CycleCount > 0

	totalDegree := 0
	for _, node := range g.Nodes {
		c := componentOf[node.ID]
		m.NodeMetrics = append(m.NodeMetrics, NodeMetric{
			Name:            node.ID,
			PageRank:        rank[gg.nodeIDToID[node.ID]],
			InDegree:        inDegree[node.ID],
			OutDegree:       outDegree[node.ID],
			HitCount:        node.HitCount,
			Complexity:      node.Complexity,
			ComponentID:     c,
			ComponentSize:   componentSize[c],
			ReachedByFuzzer: node.HitCount > 0,
		})
		totalDegree += inDegree[node.ID] + outDegree[node.ID]
		if node.HitCount > 0 {
			m.Summary.ReachedNodes++
		}
	}
	m.Summary.AvgDegree = float64(totalDegree) / float64(len(g.Nodes))
	if n := len(g.Nodes); n > 1 {
		m.Summary.Density = float64(len(g.Edges)) / float64(n*(n-1))
	}

	sort.SliceStable(m.NodeMetrics, func(i, j int) bool {
		if m.NodeMetrics[i].PageRank != m.NodeMetrics[j].PageRank {
			return m.NodeMetrics[i].PageRank > m.NodeMetrics[j].PageRank
		}
		return m.NodeMetrics[i].Name < m.NodeMetrics[j].Name
	})
	if a.top > 0 && len(m.NodeMetrics) > a.top {
		m.NodeMetrics = m.NodeMetrics[:a.top]
	}
	return m
}
