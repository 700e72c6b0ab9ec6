// Package coverage maps runtime line coverage onto function names.
package coverage

import (
	"errors"
	"sort"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// ErrNoCoverage is returned when no coverage report matches a target.
var ErrNoCoverage = errors.New("no coverage data found")

// LineHit is the runtime hit count of one source line.
type LineHit struct {
	Line int `json:"line" toon:"line"`
	Hits int `json:"hits" toon:"hits"`
}

// Profile answers per-function coverage questions.
type Profile interface {
	// HitSummary returns the number of lines recorded for a function and
	// how many of them were executed. ok is false if the function has no
	// coverage data.
	HitSummary(name string) (total, hit int, ok bool)
	IsFuncHit(name string) bool
	HitDetails(name string) []LineHit
	Functions() []string
}

// Map is a Profile backed by per-function line records.
type Map struct {
	funcs   map[string][]LineHit
	Reports []string `json:"reports,omitempty"`
}

var _ Profile = (*Map)(nil)

// NewMap creates an empty coverage map.
func NewMap() *Map {
	return &Map{funcs: make(map[string][]LineHit)}
}

// StartFunction begins (or resets) the line record of a function.
func (m *Map) StartFunction(name string) {
	m.funcs[name] = []LineHit{}
}

// AddLine appends a line record to a function.
func (m *Map) AddLine(name string, hit LineHit) {
	m.funcs[name] = append(m.funcs[name], hit)
}

func (m *Map) lookup(name string) ([]LineHit, bool) {
	if lines, ok := m.funcs[name]; ok {
		return lines, true
	}
	if lines, ok := m.funcs[Demangle(name)]; ok {
		return lines, true
	}
	return nil, false
}

// HitSummary implements Profile.
func (m *Map) HitSummary(name string) (int, int, bool) {
	lines, ok := m.lookup(name)
	if !ok {
		return 0, 0, false
	}
	hit := 0
	for _, l := range lines {
		if l.Hits > 0 {
			hit++
		}
	}
	return len(lines), hit, true
}

// IsFuncHit implements Profile.
func (m *Map) IsFuncHit(name string) bool {
	_, hit, ok := m.HitSummary(name)
	return ok && hit > 0
}

// HitDetails implements Profile.
func (m *Map) HitDetails(name string) []LineHit {
	lines, _ := m.lookup(name)
	return lines
}

// Functions implements Profile. Names are sorted.
func (m *Map) Functions() []string {
	names := make([]string, 0, len(m.funcs))
	for name := range m.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of functions with coverage data.
func (m *Map) Len() int {
	return len(m.funcs)
}

// Merge combines profiles into one map, keeping the largest hit count seen
// for each (function, line) pair.
func Merge(profiles ...Profile) *Map {
	merged := NewMap()
	for _, p := range profiles {
		if p == nil {
			continue
		}
		if m, ok := p.(*Map); ok {
			merged.Reports = append(merged.Reports, m.Reports...)
		}
		for _, name := range p.Functions() {
			merged.funcs[name] = mergeLines(merged.funcs[name], p.HitDetails(name))
		}
	}
	return merged
}

func mergeLines(dst, src []LineHit) []LineHit {
	idx := make(map[int]int, len(dst))
	for i, l := range dst {
		idx[l.Line] = i
	}
	for _, l := range src {
		if i, ok := idx[l.Line]; ok {
			dst[i].Hits = max(dst[i].Hits, l.Hits)
			continue
		}
		idx[l.Line] = len(dst)
		dst = append(dst, l)
	}
	return dst
}

// Demangle returns the demangled form of a C++ symbol, or name unchanged
// if it is not a mangled symbol.
func Demangle(name string) string {
	stripped := strings.ReplaceAll(name, " ", "")
	if d := demangle.Filter(stripped); d != stripped {
		return d
	}
	return name
}
