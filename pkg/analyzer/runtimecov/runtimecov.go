// Package runtimecov finds functions that execute at runtime but leave most
// of their lines uncovered.
package runtimecov

import (
	"sort"

	"github.com/panbanda/fuzzlens/pkg/coverage"
)

const (
	defaultMinLines   = 30
	defaultMaxPercent = 55.0
)

// Function is one poorly covered function.
type Function struct {
	Name       string  `json:"function_name" toon:"function_name"`
	TotalLines int     `json:"total_lines" toon:"total_lines"`
	HitLines   int     `json:"hit_lines" toon:"hit_lines"`
	Percentage float64 `json:"hit_percentage" toon:"hit_percentage"`
}

// Analyzer scans a coverage profile for low coverage functions.
type Analyzer struct {
	minLines   int
	maxPercent float64
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMinLines only considers functions with more than n lines.
func WithMinLines(n int) Option {
	return func(a *Analyzer) {
		a.minLines = n
	}
}

// WithMaxPercent reports functions whose line coverage is below pct.
func WithMaxPercent(pct float64) Option {
	return func(a *Analyzer) {
		a.maxPercent = pct
	}
}

// New creates an analyzer with the default thresholds.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{minLines: defaultMinLines, maxPercent: defaultMaxPercent}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns the functions of cov with more than the minimum number of
// lines and a hit percentage under the threshold, lowest coverage first. A
// nil profile yields no functions.
func (a *Analyzer) Analyze(cov coverage.Profile) []Function {
	out := []Function{}
	if cov == nil {
		return out
	}
	for _, name := range cov.Functions() {
		total, hit, ok := cov.HitSummary(name)
		if !ok || total <= a.minLines {
			continue
		}
		pct := float64(hit) / float64(total) * 100.0
		if pct < a.maxPercent {
			out = append(out, Function{Name: name, TotalLines: total, HitLines: hit, Percentage: pct})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percentage < out[j].Percentage
	})
	return out
}
