package report

import (
	"sort"
	"time"

	"github.com/panbanda/fuzzlens/internal/vcs"
	"github.com/panbanda/fuzzlens/pkg/analyzer/engineinput"
	"github.com/panbanda/fuzzlens/pkg/analyzer/runtimecov"
	"github.com/panbanda/fuzzlens/pkg/analyzer/targets"
	"github.com/panbanda/fuzzlens/pkg/calltree"
	"github.com/panbanda/fuzzlens/pkg/profile"
)

// Options controls which optional sections Build computes.
type Options struct {
	Root         string
	Language     profile.Language
	Version      string
	Revision     *vcs.Revision
	BlockerLimit int
	// Targets is nil to skip optimal target selection.
	Targets *targets.Selector
	// LowCoverage is nil to skip the runtime coverage scan.
	LowCoverage *runtimecov.Analyzer
	// EngineInput is nil to skip dictionary and focus function generation.
	EngineInput *engineinput.Generator
	Now         func() time.Time
}

// Build summarizes a merged project.
func Build(mp *profile.MergedProjectProfile, opts Options) *Summary {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	s := &Summary{
		Metadata: Metadata{
			Root:        opts.Root,
			Language:    opts.Language.String(),
			Basefolder:  mp.Basefolder(),
			GeneratedAt: now().UTC().Format(time.RFC3339),
			Version:     opts.Version,
			Revision:    opts.Revision,
		},
		Project: ProjectStats{
			Fuzzers:    len(mp.Profiles),
			Functions:  mp.FunctionSummaries(),
			Complexity: mp.ComplexitySummaries(),
		},
		Conclusions: mp.Conclusions(),
	}

	for _, p := range mp.Profiles {
		s.Fuzzers = append(s.Fuzzers, fuzzerSummary(p, opts.BlockerLimit))
	}
	s.Files = fileSummaries(mp, s.Metadata.Basefolder)
	if opts.Targets != nil {
		s.Targets = opts.Targets.Select(mp)
	}
	if opts.LowCoverage != nil {
		if cov := mp.RuntimeCoverage(); cov != nil {
			s.LowCoverage = opts.LowCoverage.Analyze(cov)
		}
	}
	if opts.EngineInput != nil {
		for _, p := range mp.Profiles {
			s.EngineInput = append(s.EngineInput, opts.EngineInput.Generate(p))
		}
	}
	return s
}

func fuzzerSummary(p *profile.FuzzerProfile, blockerLimit int) FuzzerSummary {
	fs := FuzzerSummary{
		Name:               p.Key(),
		SourceFile:         p.SourceFile,
		Executable:         p.BinaryExecutable,
		Stats:              p.Stats(),
		ReachedFunctions:   len(p.FunctionsReached),
		UnreachedFunctions: len(p.FunctionsUnreached),
		CallTree:           calltree.ComputeStats(p.CallTree),
		HasCoverage:        p.Coverage != nil,
		Blockers:           []Blocker{},
	}
	if pct, ok := p.CoveredReachablePercentage(); ok {
		fs.CoveredReachablePct = &pct
	}
	for _, n := range p.Blockers(blockerLimit) {
		fs.Blockers = append(fs.Blockers, Blocker{
			Callsite:           n.FunctionName,
			SourceFile:         n.SourceFile,
			LineNumber:         n.LineNumber,
			ForwardReds:        n.ForwardReds,
			LargestBlockedFunc: n.LargestBlockedFunc,
		})
	}
	return fs
}

// fileSummaries lists every source file defining a merged function, sorted
// by path, with the fuzzers whose call tree reaches it and the fuzzers that
// executed one of its functions.
func fileSummaries(mp *profile.MergedProjectProfile, basefolder string) []FileSummary {
	counts := make(map[string]int)
	for _, fp := range mp.Functions() {
		if fp.SourceFile == "" {
			continue
		}
		counts[fp.SourceFile]++
	}
	files := make([]string, 0, len(counts))
	for f := range counts {
		files = append(files, f)
	}
	sort.Strings(files)

	out := make([]FileSummary, 0, len(files))
	for _, f := range files {
		fs := FileSummary{File: f, Functions: counts[f], ReachedBy: []string{}, CoveredBy: []string{}}
		for _, p := range mp.Profiles {
			if p.ReachesFile(f, basefolder) {
				fs.ReachedBy = append(fs.ReachedBy, p.Key())
			}
			if p.IsFileCovered(f, basefolder) {
				fs.CoveredBy = append(fs.CoveredBy, p.Key())
			}
		}
		out = append(out, fs)
	}
	return out
}
