package calltree

import (
	"errors"
	"sort"

	"github.com/panbanda/fuzzlens/pkg/coverage"
)

// ErrEntrypointNotFirst is returned by Overlay when the tree does not start
// at the fuzzer entrypoint.
var ErrEntrypointNotFirst = errors.New("call tree does not start at the fuzzer entrypoint")

// LineSource provides per-line coverage of a function.
type LineSource interface {
	HitDetails(name string) []coverage.LineHit
}

// Overlay assigns runtime hit counts and colors to every node.
//
// The first node must be the entrypoint; its hit count is the largest hit
// count of any of its lines. Every other call site takes the hit count that
// coverage recorded for the call-site line inside its parent function.
func Overlay(nodes []*Node, cov LineSource, entrypoint string) error {
	if len(nodes) == 0 || cov == nil {
		return nil
	}
	if coverage.Demangle(nodes[0].FunctionName) != entrypoint {
		return ErrEntrypointNotFirst
	}

	callstack := make(map[int]string)
	for i, node := range nodes {
		node.Index = i
		name := coverage.Demangle(node.FunctionName)
		callstack[node.Depth] = name

		hits := 0
		if i == 0 {
			for _, l := range cov.HitDetails(entrypoint) {
				hits = max(hits, l.Hits)
			}
			node.Parent = EntrypointParent
		} else if parent, ok := callstack[node.Depth-1]; ok {
			for _, l := range cov.HitDetails(parent) {
				if l.Line == node.LineNumber && l.Hits > 0 {
					hits = l.Hits
				}
			}
			node.Parent = parent
		}
		node.HitCount = hits
		node.CoverageColor = ColorForHits(hits)
	}
	return nil
}

// ComplexityFunc returns the total cyclomatic complexity of a function.
type ComplexityFunc func(name string) int

// ComputeForwardReds marks, for every node that starts an uncovered run,
// how many consecutive uncovered call sites follow it and which of them
// carries the largest total complexity. Overlay must run first.
func ComputeForwardReds(nodes []*Node, complexity ComplexityFunc) {
	prevEnd := -1
	for i, n1 := range nodes {
		if n1.HitCount == 0 && ((i > 0 && nodes[i-1].Depth <= n1.Depth) || i < prevEnd) {
			n1.ForwardReds = 0
			n1.LargestBlockedFunc = "none"
			continue
		}

		j := i + 1
		forward := 0
		largestName := ""
		largestCount := 0
		for ; j < len(nodes); j++ {
			n2 := nodes[j]
			if n2.HitCount != 0 {
				break
			}
			if complexity != nil {
				if c := complexity(n2.FunctionName); c > largestCount {
					largestCount = c
					largestName = n2.FunctionName
				}
			}
			forward++
		}
		prevEnd = j - 1
		n1.ForwardReds = forward
		n1.LargestBlockedFunc = largestName
	}
}

// Blockers returns up to limit nodes with the most uncovered call sites
// ahead of them. A limit <= 0 means no limit.
func Blockers(nodes []*Node, limit int) []*Node {
	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ForwardReds > sorted[j].ForwardReds
	})

	var blockers []*Node
	for _, n := range sorted {
		if n.ForwardReds == 0 || (limit > 0 && len(blockers) >= limit) {
			break
		}
		blockers = append(blockers, n)
	}
	return blockers
}
