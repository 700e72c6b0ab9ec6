package calltree

import (
	"errors"
	"strings"
	"testing"

	"github.com/panbanda/fuzzlens/pkg/coverage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorForHits(t *testing.T) {
	tests := []struct {
		hits int
		want Color
	}{
		{0, ColorRed},
		{1, ColorGold},
		{9, ColorGold},
		{10, ColorYellow},
		{29, ColorYellow},
		{30, ColorGreenYellow},
		{49, ColorGreenYellow},
		{50, ColorLawnGreen},
		{5_000_000, ColorLawnGreen},
		{-1, ColorRed},
	}
	for _, tt := range tests {
		if got := ColorForHits(tt.hits); got != tt.want {
			t.Errorf("ColorForHits(%d) = %s, want %s", tt.hits, got, tt.want)
		}
	}
}

// overlayTree is a tree where the entrypoint calls a (covered) and b
// (uncovered); b calls c and d, neither covered.
const overlayTree = `Call tree
LLVMFuzzerTestOneInput fuzz.c linenumber=0
  a lib.c linenumber=5
  b lib.c linenumber=6
    c lib.c linenumber=20
    d lib.c linenumber=21
======
`

func overlayCoverage() *coverage.Map {
	m := coverage.NewMap()
	m.StartFunction("LLVMFuzzerTestOneInput")
	m.AddLine("LLVMFuzzerTestOneInput", coverage.LineHit{Line: 4, Hits: 100})
	m.AddLine("LLVMFuzzerTestOneInput", coverage.LineHit{Line: 5, Hits: 100})
	m.AddLine("LLVMFuzzerTestOneInput", coverage.LineHit{Line: 6, Hits: 0})
	m.StartFunction("b")
	m.AddLine("b", coverage.LineHit{Line: 20, Hits: 0})
	return m
}

func TestOverlay(t *testing.T) {
	nodes, err := Parse(strings.NewReader(overlayTree))
	require.NoError(t, err)
	require.NoError(t, Overlay(nodes, overlayCoverage(), "LLVMFuzzerTestOneInput"))

	byName := make(map[string]*Node)
	for _, n := range nodes {
		byName[n.FunctionName] = n
	}

	entry := byName["LLVMFuzzerTestOneInput"]
	assert.Equal(t, 100, entry.HitCount)
	assert.Equal(t, EntrypointParent, entry.Parent)
	assert.Equal(t, ColorLawnGreen, entry.CoverageColor)

	assert.Equal(t, 100, byName["a"].HitCount)
	assert.Equal(t, "LLVMFuzzerTestOneInput", byName["a"].Parent)
	assert.Equal(t, 0, byName["b"].HitCount)
	assert.Equal(t, ColorRed, byName["b"].CoverageColor)
	assert.Equal(t, "b", byName["c"].Parent)
	assert.Equal(t, 0, byName["d"].HitCount)

	for i, n := range nodes {
		assert.Equal(t, i, n.Index)
	}
}

func TestOverlay_RequiresEntrypointFirst(t *testing.T) {
	nodes, err := Parse(strings.NewReader("Call tree\nmain\n  a x.c linenumber=1\n======\n"))
	require.NoError(t, err)

	err = Overlay(nodes, overlayCoverage(), "LLVMFuzzerTestOneInput")
	assert.True(t, errors.Is(err, ErrEntrypointNotFirst))
}

func TestOverlay_NoCoverageIsNoop(t *testing.T) {
	nodes, err := Parse(strings.NewReader(overlayTree))
	require.NoError(t, err)
	require.NoError(t, Overlay(nodes, nil, "LLVMFuzzerTestOneInput"))
	for _, n := range nodes {
		assert.Equal(t, Color(""), n.CoverageColor)
	}
}

func TestForwardRedsAndBlockers(t *testing.T) {
	nodes, err := Parse(strings.NewReader(overlayTree))
	require.NoError(t, err)
	require.NoError(t, Overlay(nodes, overlayCoverage(), "LLVMFuzzerTestOneInput"))

	complexity := map[string]int{"b": 12, "c": 30, "d": 4}
	ComputeForwardReds(nodes, func(name string) int { return complexity[name] })

	// nodes: entry, a, b, c, d
	assert.Equal(t, 0, nodes[0].ForwardReds)
	assert.Equal(t, 3, nodes[1].ForwardReds)
	assert.Equal(t, "c", nodes[1].LargestBlockedFunc)
	assert.Equal(t, 0, nodes[2].ForwardReds)
	assert.Equal(t, "none", nodes[2].LargestBlockedFunc)

	blockers := Blockers(nodes, 10)
	require.Len(t, blockers, 1)
	assert.Equal(t, "a", blockers[0].FunctionName)

	assert.Len(t, Blockers(nodes, 0), 1)
}
