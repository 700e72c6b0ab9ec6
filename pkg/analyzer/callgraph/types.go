package callgraph

// Node is one merged function in the project call graph.
type Node struct {
	ID         string `json:"id" toon:"id"`
	File       string `json:"file,omitempty" toon:"file,omitempty"`
	HitCount   int    `json:"hitcount" toon:"hitcount"`
	Complexity int    `json:"cyclomatic_complexity" toon:"cyclomatic_complexity"`
}

// Edge records that From lists To among the functions it reaches.
type Edge struct {
	From string `json:"from" toon:"from"`
	To   string `json:"to" toon:"to"`
}

// Graph is the reachability graph of a merged project profile.
type Graph struct {
	Nodes []Node `json:"nodes" toon:"nodes"`
	Edges []Edge `json:"edges" toon:"edges"`
}

// NodeMetric holds the computed metrics of a single function.
type NodeMetric struct {
	Name            string  `json:"name" toon:"name"`
	PageRank        float64 `json:"pagerank" toon:"pagerank"`
	InDegree        int     `json:"in_degree" toon:"in_degree"`
	OutDegree       int     `json:"out_degree" toon:"out_degree"`
	HitCount        int     `json:"hitcount" toon:"hitcount"`
	Complexity      int     `json:"cyclomatic_complexity" toon:"cyclomatic_complexity"`
	ComponentID     int     `json:"component_id" toon:"component_id"`
	ComponentSize   int     `json:"component_size" toon:"component_size"`
	ReachedByFuzzer bool    `json:"reached" toon:"reached"`
}

// Summary provides aggregate graph statistics.
type Summary struct {
	TotalNodes                  int      `json:"total_nodes" toon:"total_nodes"`
	TotalEdges                  int      `json:"total_edges" toon:"total_edges"`
	ReachedNodes                int      `json:"reached_nodes" toon:"reached_nodes"`
	AvgDegree                   float64  `json:"avg_degree" toon:"avg_degree"`
	Density                     float64  `json:"density" toon:"density"`
	StronglyConnectedComponents int      `json:"strongly_connected_components" toon:"strongly_connected_components"`
	LargestComponent            int      `json:"largest_component" toon:"largest_component"`
	CycleCount                  int      `json:"cycle_count" toon:"cycle_count"`
	CycleNodes                  []string `json:"cycle_nodes,omitempty" toon:"cycle_nodes,omitempty"`
	IsCyclic                    bool     `json:"is_cyclic" toon:"is_cyclic"`
}

// Metrics is the result of Analyze.
type Metrics struct {
	NodeMetrics []NodeMetric `json:"node_metrics" toon:"node_metrics"`
	Summary     Summary      `json:"summary" toon:"summary"`
}
