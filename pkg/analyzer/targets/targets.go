// Package targets suggests new fuzz targets by greedily simulating coverage
// of the unreached functions that would expose the most complexity.
package targets

import (
	"log/slog"
	"strings"

	"github.com/panbanda/fuzzlens/pkg/profile"
)

const (
	defaultMinComplexity  = 20
	defaultStopComplexity = 35
)

// Target is one suggested fuzz target.
type Target struct {
	Name                      string `json:"function_name" toon:"function_name"`
	SourceFile                string `json:"function_source_file" toon:"function_source_file"`
	ArgCount                  int    `json:"arg_count" toon:"arg_count"`
	CyclomaticComplexity      int    `json:"cyclomatic_complexity" toon:"cyclomatic_complexity"`
	TotalCyclomaticComplexity int    `json:"total_cyclomatic_complexity" toon:"total_cyclomatic_complexity"`
	NewUnreachedComplexity    int    `json:"new_unreached_complexity" toon:"new_unreached_complexity"`
	FunctionsReached          int    `json:"functions_reached" toon:"functions_reached"`
	// CalledBy lists the project functions that reach the target.
	CalledBy []string `json:"called_by" toon:"called_by"`
}

// Result holds the selected targets and the project as it would look with
// all of them fuzzed.
type Result struct {
	Targets          []Target                      `json:"targets" toon:"targets"`
	Before           profile.FunctionSummary       `json:"before" toon:"before"`
	After            profile.FunctionSummary       `json:"after" toon:"after"`
	ComplexityBefore profile.ComplexitySummary     `json:"complexity_before" toon:"complexity_before"`
	ComplexityAfter  profile.ComplexitySummary     `json:"complexity_after" toon:"complexity_after"`
	Simulated        *profile.MergedProjectProfile `json:"-" toon:"-"`
}

// Selector picks targets from a merged project profile.
type Selector struct {
	maxCount       int
	minComplexity  int
	stopComplexity int
	excluded       []string
}

// Option is a functional option for configuring Selector.
type Option func(*Selector)

// WithMaxCount caps the number of targets. Zero derives the cap from the
// project size.
func WithMaxCount(n int) Option {
	return func(s *Selector) {
		s.maxCount = n
	}
}

// WithMinComplexity sets the minimum total complexity of a candidate.
func WithMinComplexity(n int) Option {
	return func(s *Selector) {
		s.minComplexity = n
	}
}

// WithStopComplexity stops selection once the best candidate would expose
// no more than n new complexity.
func WithStopComplexity(n int) Option {
	return func(s *Selector) {
		s.stopComplexity = n
	}
}

// New creates a selector with the default thresholds.
func New(opts ...Option) *Selector {
	s := &Selector{
		minComplexity:  defaultMinComplexity,
		stopComplexity: defaultStopComplexity,
		excluded:       []string{"main2"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxTargets returns the target budget for a project of n functions.
func MaxTargets(n int) int {
	switch {
	case n > 20000:
		return 1
	case n > 10000:
		return 5
	case n > 2000:
		return 7
	}
	return 10
}

func (s *Selector) isCandidate(fp *profile.FunctionProfile) bool {
	if fp.HitCount != 0 || len(fp.FunctionsReached) < 1 || fp.ArgCount <= 0 {
		return false
	}
	for _, ex := range s.excluded {
		if strings.Contains(fp.Name, ex) {
			return false
		}
	}
	return fp.TotalCyclomaticComplexity >= s.minComplexity
}

func (s *Selector) best(mp *profile.MergedProjectProfile) *profile.FunctionProfile {
	var best *profile.FunctionProfile
	for _, fp := range mp.Functions() {
		if !s.isCandidate(fp) {
			continue
		}
		if best == nil || fp.NewUnreachedComplexity > best.NewUnreachedComplexity {
			best = fp
		}
	}
	return best
}

// Select runs the greedy selection. mp is never modified.
func (s *Selector) Select(mp *profile.MergedProjectProfile) *Result {
	limit := s.maxCount
	if limit <= 0 {
		limit = MaxTargets(len(mp.Functions()))
	}

	res := &Result{
		Targets:          []Target{},
		Before:           mp.FunctionSummaries(),
		ComplexityBefore: mp.ComplexitySummaries(),
	}
	current := mp
	for len(res.Targets) < limit {
		fp := s.best(current)
		if fp == nil || fp.NewUnreachedComplexity <= s.stopComplexity {
			break
		}
		res.Targets = append(res.Targets, Target{
			Name:                      fp.Name,
			SourceFile:                fp.SourceFile,
			ArgCount:                  fp.ArgCount,
			CyclomaticComplexity:      fp.CyclomaticComplexity,
			TotalCyclomaticComplexity: fp.TotalCyclomaticComplexity,
			NewUnreachedComplexity:    fp.NewUnreachedComplexity,
			FunctionsReached:          len(fp.FunctionsReached),
			CalledBy:                  fp.IncomingReferenceNames(),
		})
		slog.Debug("selected fuzz target", "function", fp.Name, "new_unreached_complexity", fp.NewUnreachedComplexity)
		current = current.AddFuncToReachedAndClone(fp)
	}

	res.Simulated = current
	res.After = current.FunctionSummaries()
	res.ComplexityAfter = current.ComplexitySummaries()
	return res
}
