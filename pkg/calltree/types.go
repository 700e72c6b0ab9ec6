package calltree

// Node is one call site in a fuzzer's static call tree.
//
// Trees are not linked by pointers. The parent of a node is the most recent
// node at Depth-1 in a sequence returned by Parse.
type Node struct {
	FunctionName string `json:"function_name" toon:"function_name"`
	Depth        int    `json:"depth" toon:"depth"`
	SourceFile   string `json:"source_file,omitempty" toon:"source_file,omitempty"`
	LineNumber   int    `json:"line_number" toon:"line_number"`

	// Set by Overlay.
	Index         int    `json:"index" toon:"index"`
	HitCount      int    `json:"hit_count" toon:"hit_count"`
	CoverageColor Color  `json:"coverage_color,omitempty" toon:"coverage_color,omitempty"`
	Parent        string `json:"parent,omitempty" toon:"parent,omitempty"`

	// Set by ComputeForwardReds.
	ForwardReds        int    `json:"forward_reds" toon:"forward_reds"`
	LargestBlockedFunc string `json:"largest_blocked_func,omitempty" toon:"largest_blocked_func,omitempty"`
}

// Color is a discrete bucket derived from a runtime hit count.
type Color string

const (
	ColorRed         Color = "red"
	ColorGold        Color = "gold"
	ColorYellow      Color = "yellow"
	ColorGreenYellow Color = "greenyellow"
	ColorLawnGreen   Color = "lawngreen"
)

// String returns the string representation.
func (c Color) String() string {
	return string(c)
}

// colorBucket maps the half-open hit range [Min, Max) to a color.
type colorBucket struct {
	Min   int
	Max   int
	Color Color
}

var colorBuckets = []colorBucket{
	{0, 1, ColorRed},
	{1, 10, ColorGold},
	{10, 30, ColorYellow},
	{30, 50, ColorGreenYellow},
	{50, int(^uint(0) >> 1), ColorLawnGreen},
}

// ColorForHits returns the coverage color for a hit count.
func ColorForHits(hits int) Color {
	for _, b := range colorBuckets {
		if hits >= b.Min && hits < b.Max {
			return b.Color
		}
	}
	return ColorRed
}

// EntrypointParent is the Parent value of the first node in an overlaid tree.
const EntrypointParent = "EP"

// MaxDepth returns the deepest call depth in nodes, or 0 if empty.
func MaxDepth(nodes []*Node) int {
	maxDepth := 0
	for _, n := range nodes {
		if n.Depth > maxDepth {
			maxDepth = n.Depth
		}
	}
	return maxDepth
}

// Stats summarizes a call tree.
type Stats struct {
	Callsites       int `json:"callsites" toon:"callsites"`
	MaxDepth        int `json:"max_depth" toon:"max_depth"`
	UniqueFunctions int `json:"unique_functions" toon:"unique_functions"`
	HitCallsites    int `json:"hit_callsites" toon:"hit_callsites"`
}

// ComputeStats returns call-site and depth statistics for nodes.
func ComputeStats(nodes []*Node) Stats {
	hit := 0
	for _, n := range nodes {
		if n.HitCount > 0 {
			hit++
		}
	}
	return Stats{
		Callsites:       len(nodes),
		MaxDepth:        MaxDepth(nodes),
		UniqueFunctions: len(Callsites(nodes)),
		HitCallsites:    hit,
	}
}
