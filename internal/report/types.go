// Package report assembles the project summary written to summary.json and
// shown by the report command.
package report

import (
	"github.com/panbanda/fuzzlens/internal/vcs"
	"github.com/panbanda/fuzzlens/pkg/analyzer/engineinput"
	"github.com/panbanda/fuzzlens/pkg/analyzer/runtimecov"
	"github.com/panbanda/fuzzlens/pkg/analyzer/targets"
	"github.com/panbanda/fuzzlens/pkg/calltree"
	"github.com/panbanda/fuzzlens/pkg/profile"
)

// Metadata contains report generation metadata.
type Metadata struct {
	Root        string `json:"root" toon:"root"`
	Language    string `json:"language" toon:"language"`
	Basefolder  string `json:"basefolder" toon:"basefolder"`
	GeneratedAt string `json:"generated_at" toon:"generated_at"` // RFC 3339
	Version     string `json:"version" toon:"version"`
	// Revision is the source commit, nil outside a git checkout.
	Revision *vcs.Revision `json:"revision,omitempty" toon:"revision,omitempty"`
}

// ProjectStats are the merged project totals.
type ProjectStats struct {
	Fuzzers    int                       `json:"fuzzers" toon:"fuzzers"`
	Functions  profile.FunctionSummary   `json:"functions" toon:"functions"`
	Complexity profile.ComplexitySummary `json:"complexity" toon:"complexity"`
}

// Blocker is a call site whose callees are statically reachable but never
// executed.
type Blocker struct {
	Callsite           string `json:"callsite" toon:"callsite"`
	SourceFile         string `json:"source_file,omitempty" toon:"source_file,omitempty"`
	LineNumber         int    `json:"line_number" toon:"line_number"`
	ForwardReds        int    `json:"forward_reds" toon:"forward_reds"`
	LargestBlockedFunc string `json:"largest_blocked_func" toon:"largest_blocked_func"`
}

// FuzzerSummary is the per-fuzzer section of the summary.
type FuzzerSummary struct {
	Name               string         `json:"name" toon:"name"`
	SourceFile         string         `json:"source_file" toon:"source_file"`
	Executable         string         `json:"executable,omitempty" toon:"executable,omitempty"`
	Stats              profile.Stats  `json:"stats" toon:"stats"`
	ReachedFunctions   int            `json:"reached_functions" toon:"reached_functions"`
	UnreachedFunctions int            `json:"unreached_functions" toon:"unreached_functions"`
	CallTree           calltree.Stats `json:"calltree" toon:"calltree"`
	HasCoverage        bool           `json:"has_coverage" toon:"has_coverage"`
	// CoveredReachablePct is nil without runtime coverage.
	CoveredReachablePct *float64  `json:"covered_reachable_pct,omitempty" toon:"covered_reachable_pct,omitempty"`
	Blockers            []Blocker `json:"blockers" toon:"blockers"`
}

// FileSummary records which fuzzers reach and which cover one source file.
type FileSummary struct {
	File      string   `json:"file" toon:"file"`
	Functions int      `json:"functions" toon:"functions"`
	ReachedBy []string `json:"reached_by" toon:"reached_by"`
	CoveredBy []string `json:"covered_by" toon:"covered_by"`
}

// Summary is the complete analysis document.
type Summary struct {
	Metadata    Metadata              `json:"metadata" toon:"metadata"`
	Project     ProjectStats          `json:"MergedProjectProfile" toon:"MergedProjectProfile"`
	Fuzzers     []FuzzerSummary       `json:"fuzzers" toon:"fuzzers"`
	Files       []FileSummary         `json:"files" toon:"files"`
	Conclusions []profile.Conclusion  `json:"conclusions" toon:"conclusions"`
	Targets     *targets.Result       `json:"optimal_targets,omitempty" toon:"optimal_targets,omitempty"`
	LowCoverage []runtimecov.Function `json:"low_coverage_functions,omitempty" toon:"low_coverage_functions,omitempty"`
	EngineInput []engineinput.Input   `json:"engine_input,omitempty" toon:"engine_input,omitempty"`
}
