package profile

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/panbanda/fuzzlens/pkg/calltree"
	"github.com/panbanda/fuzzlens/pkg/coverage"
)

// CoverageLoader resolves the runtime coverage of one fuzzer target. A nil
// Profile with a nil error means no coverage exists for the target.
type CoverageLoader interface {
	LoadCoverage(lang Language, target string) (coverage.Profile, error)
}

// Pairing correlates a fuzzer binary with the data file it was built from.
type Pairing struct {
	ExecutablePath string `yaml:"executable_path" json:"executable_path"`
	FuzzerLogFile  string `yaml:"fuzzer_log_file" json:"fuzzer_log_file"`
}

// FuzzerProfile holds the static analysis output of one fuzz target.
type FuzzerProfile struct {
	DataFile         string
	SourceFile       string
	BinaryExecutable string
	Language         Language

	// Functions maps function name to its record.
	Functions map[string]*FunctionProfile
	// CallTree is nil when the fuzzer has no call-tree artifact.
	CallTree []*calltree.Node

	// Populated by Accumulate.
	Entrypoint                string
	FunctionsReached          []string
	FunctionsUnreached        []string
	Coverage                  coverage.Profile
	TotalBasicBlocks          int
	TotalCyclomaticComplexity int

	order       []string
	reachedSet  map[string]struct{}
	fileTargets map[string]map[string]struct{}
	accumulated bool
}

// NewFuzzerProfile builds a profile from a parsed function list and an
// optional call tree. Records with duplicate names replace earlier ones.
func NewFuzzerProfile(dataFile string, fl *FunctionList, tree []*calltree.Node, lang Language) (*FuzzerProfile, error) {
	if fl == nil || fl.FuzzerFilename == "" {
		return nil, &DataLoadError{Path: dataFile, Err: fmt.Errorf("%w: Fuzzer filename", ErrMissingKey)}
	}

	p := &FuzzerProfile{
		DataFile:    dataFile,
		SourceFile:  fl.FuzzerFilename,
		Language:    lang,
		Functions:   make(map[string]*FunctionProfile, len(fl.AllFunctions.Elements)),
		CallTree:    tree,
		fileTargets: make(map[string]map[string]struct{}),
	}
	for _, rec := range fl.AllFunctions.Elements {
		fp, err := NewFunctionProfile(rec)
		if err != nil {
			return nil, &DataLoadError{Path: dataFile, Err: err}
		}
		if fp.NeedsNormalisation() {
			slog.Debug("function name may not be normalised", "function", fp.Name)
		}
		if _, dup := p.Functions[fp.Name]; !dup {
			p.order = append(p.order, fp.Name)
		}
		p.Functions[fp.Name] = fp
	}
	return p, nil
}

// Accumulate derives reachability, coverage, file targets and totals. It
// must be called exactly once. loader may be nil, in which case the
// profile has no coverage.
func (p *FuzzerProfile) Accumulate(loader CoverageLoader) error {
	if p.accumulated {
		return ErrAlreadyAccumulated
	}
	if err := p.setReachedFunctions(); err != nil {
		return err
	}
	p.setUnreachedFunctions()
	p.loadCoverage(loader)
	p.setFileTargets()
	p.setTotals()
	p.accumulated = true
	return nil
}

// Accumulated reports whether Accumulate has completed.
func (p *FuzzerProfile) Accumulated() bool {
	return p.accumulated
}

func (p *FuzzerProfile) setReachedFunctions() error {
	entry, ok := p.Language.FindEntrypoint(p.order)
	if !ok {
		return &DataLoadError{
			Path: p.DataFile,
			Err:  fmt.Errorf("%w: want %s", ErrNoEntrypoint, p.Language.Entrypoint()),
		}
	}
	p.Entrypoint = entry

	p.reachedSet = make(map[string]struct{})
	p.FunctionsReached = p.FunctionsReached[:0]
	dropped := 0
	for _, name := range p.Functions[entry].FunctionsReached {
		if _, known := p.Functions[name]; !known {
			dropped++
			continue
		}
		if _, seen := p.reachedSet[name]; seen {
			continue
		}
		p.reachedSet[name] = struct{}{}
		p.FunctionsReached = append(p.FunctionsReached, name)
	}
	if dropped > 0 {
		slog.Debug("reached functions without records", "fuzzer", p.SourceFile, "count", dropped)
	}
	return nil
}

func (p *FuzzerProfile) setUnreachedFunctions() {
	p.FunctionsUnreached = make([]string, 0, len(p.order)-len(p.FunctionsReached))
	for _, name := range p.order {
		if _, ok := p.reachedSet[name]; !ok {
			p.FunctionsUnreached = append(p.FunctionsUnreached, name)
		}
	}
}

func (p *FuzzerProfile) loadCoverage(loader CoverageLoader) {
	if loader == nil {
		return
	}
	cov, err := loader.LoadCoverage(p.Language, p.TargetName())
	if err != nil {
		slog.Info("no runtime coverage", "fuzzer", p.SourceFile, "target", p.TargetName(), "reason", err)
		return
	}
	p.Coverage = cov
}

func (p *FuzzerProfile) setFileTargets() {
	for _, node := range p.CallTree {
		if strings.TrimSpace(node.SourceFile) == "" {
			continue
		}
		if p.fileTargets[node.SourceFile] == nil {
			p.fileTargets[node.SourceFile] = make(map[string]struct{})
		}
		p.fileTargets[node.SourceFile][node.FunctionName] = struct{}{}
	}
}

func (p *FuzzerProfile) setTotals() {
	p.TotalBasicBlocks = 0
	p.TotalCyclomaticComplexity = 0
	for _, name := range p.FunctionsReached {
		fp, ok := p.Functions[name]
		if !ok {
			continue
		}
		p.TotalBasicBlocks += fp.BBCount
		p.TotalCyclomaticComplexity += fp.CyclomaticComplexity
	}
}

// Clone returns a deep copy. Runtime coverage is read-only after loading
// and is shared with the copy.
func (p *FuzzerProfile) Clone() *FuzzerProfile {
	c := *p
	c.Functions = make(map[string]*FunctionProfile, len(p.Functions))
	for name, fp := range p.Functions {
		c.Functions[name] = fp.Clone()
	}
	if p.CallTree != nil {
		c.CallTree = make([]*calltree.Node, len(p.CallTree))
		for i, n := range p.CallTree {
			node := *n
			c.CallTree[i] = &node
		}
	}
	c.FunctionsReached = slices.Clone(p.FunctionsReached)
	c.FunctionsUnreached = slices.Clone(p.FunctionsUnreached)
	c.order = slices.Clone(p.order)
	if p.reachedSet != nil {
		c.reachedSet = maps.Clone(p.reachedSet)
	}
	c.fileTargets = make(map[string]map[string]struct{}, len(p.fileTargets))
	for file, funcs := range p.fileTargets {
		c.fileTargets[file] = maps.Clone(funcs)
	}
	return &c
}

// FunctionNames returns the function names in the order they were listed.
func (p *FuzzerProfile) FunctionNames() []string {
	return append([]string(nil), p.order...)
}

// ReachesFunc reports whether the fuzzer statically reaches name.
func (p *FuzzerProfile) ReachesFunc(name string) bool {
	_, ok := p.reachedSet[name]
	return ok
}

// FileTargets returns, per source file, the sorted names of the functions
// the call tree reaches in that file.
func (p *FuzzerProfile) FileTargets() map[string][]string {
	out := make(map[string][]string, len(p.fileTargets))
	for file, funcs := range p.fileTargets {
		names := make([]string, 0, len(funcs))
		for n := range funcs {
			names = append(names, n)
		}
		sort.Strings(names)
		out[file] = names
	}
	return out
}

// ReachesFile reports whether the call tree reaches a function in file.
// When basefolder is set the file is also matched with that prefix removed.
func (p *FuzzerProfile) ReachesFile(file, basefolder string) bool {
	if _, ok := p.fileTargets[file]; ok {
		return true
	}
	if basefolder != "" {
		_, ok := p.fileTargets[strings.TrimPrefix(file, basefolder)]
		return ok
	}
	return false
}

// Key identifies the fuzzer: the binary name when known, otherwise its
// source file.
func (p *FuzzerProfile) Key() string {
	if p.BinaryExecutable != "" {
		return filepath.Base(p.BinaryExecutable)
	}
	return p.SourceFile
}

// TargetName is the normalized name used to locate runtime coverage.
func (p *FuzzerProfile) TargetName() string {
	return p.Language.TargetName(p.SourceFile)
}

// CovMetrics returns the runtime line coverage of a function. ok is false
// when the fuzzer has no coverage or the function has no coverage lines.
func (p *FuzzerProfile) CovMetrics(name string) (total, hit int, pct float64, ok bool) {
	if p.Coverage == nil {
		return 0, 0, 0, false
	}
	total, hit, ok = p.Coverage.HitSummary(name)
	if !ok || total == 0 {
		return 0, 0, 0, false
	}
	return total, hit, float64(hit) / float64(total) * 100.0, true
}

// UncoveredReachableFuncs returns the reached functions that runtime
// coverage never executed. It is empty when there is no coverage.
func (p *FuzzerProfile) UncoveredReachableFuncs() []string {
	if p.Coverage == nil {
		return []string{}
	}
	uncovered := []string{}
	for _, name := range p.FunctionsReached {
		_, hit, _, ok := p.CovMetrics(name)
		if !ok || hit == 0 {
			uncovered = append(uncovered, name)
		}
	}
	return uncovered
}

// CoveredReachablePercentage returns the share of statically reachable
// functions that runtime coverage executed. ok is false without coverage.
func (p *FuzzerProfile) CoveredReachablePercentage() (float64, bool) {
	if p.Coverage == nil {
		return 0, false
	}
	reachable := len(p.FunctionsReached)
	if reachable == 0 {
		return 0, true
	}
	covered := reachable - len(p.UncoveredReachableFuncs())
	return float64(covered) / float64(reachable) * 100.0, true
}

// IsFileCovered reports whether any function defined in file was executed
// at runtime and the fuzzer's call tree reaches that file.
func (p *FuzzerProfile) IsFileCovered(file, basefolder string) bool {
	refine := func(s string) string {
		if basefolder == "" || basefolder == "/" {
			return s
		}
		return strings.TrimPrefix(s, basefolder)
	}
	file = filepath.Clean(file)
	refined := refine(file)

	for _, name := range p.order {
		funcFile := p.Functions[name].SourceFile
		if funcFile != file && refine(funcFile) != refined {
			continue
		}
		_, _, pct, ok := p.CovMetrics(name)
		if !ok || pct <= 0 {
			continue
		}
		if _, reached := p.fileTargets[funcFile]; reached {
			return true
		}
		if _, reached := p.fileTargets[refined]; reached {
			return true
		}
	}
	return false
}

// RefinePaths strips basefolder from the fuzzer source file, from call-site
// source files and from file-target keys.
func (p *FuzzerProfile) RefinePaths(basefolder string) {
	if basefolder == "" || basefolder == "/" {
		return
	}
	p.SourceFile = strings.TrimPrefix(p.SourceFile, basefolder)
	for _, node := range p.CallTree {
		node.SourceFile = strings.TrimPrefix(node.SourceFile, basefolder)
	}
	refined := make(map[string]map[string]struct{}, len(p.fileTargets))
	for file, funcs := range p.fileTargets {
		key := strings.TrimPrefix(file, basefolder)
		if refined[key] == nil {
			refined[key] = make(map[string]struct{}, len(funcs))
		}
		for n := range funcs {
			refined[key][n] = struct{}{}
		}
	}
	p.fileTargets = refined
}

// CorrelateExecutable sets BinaryExecutable from the pairing whose fuzzer
// log file matches this profile's data file.
func (p *FuzzerProfile) CorrelateExecutable(pairings []Pairing) {
	base := filepath.Base(p.DataFile)
	for _, pr := range pairings {
		if strings.Contains(pr.FuzzerLogFile+".data", base) {
			p.BinaryExecutable = pr.ExecutablePath
			slog.Info("correlated fuzzer binary", "data_file", base, "executable", pr.ExecutablePath)
		}
	}
}

// OverlayCoverage colors the call tree with runtime coverage and computes
// forward reds using complexity. Fuzzers without coverage or call tree are
// left untouched.
func (p *FuzzerProfile) OverlayCoverage(complexity calltree.ComplexityFunc) error {
	if p.Coverage == nil || len(p.CallTree) == 0 {
		return nil
	}
	entry := p.Entrypoint
	if entry == "" {
		entry = p.Language.Entrypoint()
	}
	if err := calltree.Overlay(p.CallTree, p.Coverage, coverage.Demangle(entry)); err != nil {
		return fmt.Errorf("%s: %w", p.Key(), err)
	}
	calltree.ComputeForwardReds(p.CallTree, complexity)
	return nil
}

// Blockers returns the call sites blocking the most uncovered code.
func (p *FuzzerProfile) Blockers(limit int) []*calltree.Node {
	return calltree.Blockers(p.CallTree, limit)
}

// Stats are the per-fuzzer totals written to the summary.
type Stats struct {
	TotalBasicBlocks          int `json:"total-basic-blocks" toon:"total-basic-blocks"`
	TotalCyclomaticComplexity int `json:"total-cyclomatic-complexity" toon:"total-cyclomatic-complexity"`
	FileTargetCount           int `json:"file-target-count" toon:"file-target-count"`
}

// Stats returns the accumulated totals.
func (p *FuzzerProfile) Stats() Stats {
	return Stats{
		TotalBasicBlocks:          p.TotalBasicBlocks,
		TotalCyclomaticComplexity: p.TotalCyclomaticComplexity,
		FileTargetCount:           len(p.fileTargets),
	}
}
