package profile

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/fuzzlens/pkg/coverage"
)

// DefaultInternalSubstrings mark runtime-internal functions that are kept out
// of the merged view.
var DefaultInternalSubstrings = []string{"sanitizer", "llvm"}

// nameTable interns function names to dense bitmap indices. It is append-only
// during construction and read-only afterwards, so clones share it.
type nameTable struct {
	ids   map[string]uint32
	names []string
}

func newNameTable() *nameTable {
	return &nameTable{ids: make(map[string]uint32)}
}

func (t *nameTable) intern(name string) uint32 {
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := uint32(len(t.names))
	t.ids[name] = id
	t.names = append(t.names, name)
	return id
}

func (t *nameTable) bitmap(names []string) *roaring.Bitmap {
	bm := roaring.New()
	for _, n := range names {
		bm.Add(t.intern(n))
	}
	return bm
}

// MergedProjectProfile is the whole-project view over a set of accumulated
// fuzzer profiles.
type MergedProjectProfile struct {
	Profiles []*FuzzerProfile

	functions []*FunctionProfile
	index     map[string]int

	names *nameTable
	// reach[i] holds the interned functionsReached of functions[i].
	reach []*roaring.Bitmap
	// complexity by name id; zero for names without a retained record.
	complexity []int
	retained   *roaring.Bitmap
	reached    *roaring.Bitmap
	unreached  *roaring.Bitmap

	internal []string
}

// MergeOption configures NewMergedProjectProfile.
type MergeOption func(*MergedProjectProfile)

// WithInternalSubstrings replaces the substrings that mark runtime-internal
// function names.
func WithInternalSubstrings(subs []string) MergeOption {
	return func(mp *MergedProjectProfile) {
		mp.internal = subs
	}
}

// NewMergedProjectProfile merges accumulated fuzzer profiles. Every profile
// must have been accumulated.
func NewMergedProjectProfile(profiles []*FuzzerProfile, opts ...MergeOption) (*MergedProjectProfile, error) {
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}
	mp := &MergedProjectProfile{
		Profiles: append([]*FuzzerProfile(nil), profiles...),
		index:    make(map[string]int),
		names:    newNameTable(),
		retained: roaring.New(),
		internal: DefaultInternalSubstrings,
	}
	for _, opt := range opts {
		opt(mp)
	}
	for _, p := range profiles {
		if !p.Accumulated() {
			return nil, fmt.Errorf("%w: %s", ErrNotAccumulated, p.SourceFile)
		}
	}

	mp.mergeFunctions()
	mp.mergeReachability()
	mp.linkIncomingReferences()
	mp.computeComplexity()

	slog.Debug("merged project profile",
		"fuzzers", len(profiles),
		"functions", len(mp.functions),
		"reached", mp.reached.GetCardinality(),
		"unreached", mp.unreached.GetCardinality())
	return mp, nil
}

// IsInternal reports whether name belongs to the sanitizer or compiler
// runtime.
func (mp *MergedProjectProfile) IsInternal(name string) bool {
	for _, sub := range mp.internal {
		if strings.Contains(name, sub) {
			return true
		}
	}
	return false
}

func (mp *MergedProjectProfile) mergeFunctions() {
	for _, p := range mp.Profiles {
		for _, name := range p.order {
			if mp.IsInternal(name) {
				continue
			}
			if _, seen := mp.index[name]; seen {
				continue
			}
			fp := p.Functions[name].Clone()
			fp.HitCount = 0
			fp.ReachedByFuzzers = []string{}
			mp.index[name] = len(mp.functions)
			mp.functions = append(mp.functions, fp)
			mp.retained.Add(mp.names.intern(name))
		}
	}

	mp.reach = make([]*roaring.Bitmap, len(mp.functions))
	for i, fp := range mp.functions {
		mp.reach[i] = mp.names.bitmap(fp.FunctionsReached)
	}
	mp.complexity = make([]int, len(mp.names.names))
	for _, fp := range mp.functions {
		mp.complexity[mp.names.ids[fp.Name]] = fp.CyclomaticComplexity
	}
}

func (mp *MergedProjectProfile) mergeReachability() {
	mp.reached = roaring.New()
	unreached := roaring.New()
	for _, p := range mp.Profiles {
		for _, name := range p.FunctionsReached {
			i, ok := mp.index[name]
			if !ok {
				continue
			}
			fp := mp.functions[i]
			fp.HitCount++
			fp.ReachedByFuzzers = append(fp.ReachedByFuzzers, p.Key())
			mp.reached.Add(mp.names.ids[name])
		}
		for _, name := range p.FunctionsUnreached {
			if id, ok := mp.names.ids[name]; ok && mp.retained.Contains(id) {
				unreached.Add(id)
			}
		}
	}
	mp.unreached = roaring.AndNot(unreached, mp.reached)
}

func (mp *MergedProjectProfile) linkIncomingReferences() {
	for _, fp := range mp.functions {
		fp.IncomingReferences = nil
	}
	for i, caller := range mp.functions {
		it := roaring.And(mp.reach[i], mp.retained).Iterator()
		for it.HasNext() {
			callee := mp.functions[mp.index[mp.names.names[it.Next()]]]
			callee.IncomingReferences = append(callee.IncomingReferences, caller)
		}
	}
}

func (mp *MergedProjectProfile) hitSet() *roaring.Bitmap {
	hit := roaring.New()
	for _, fp := range mp.functions {
		if fp.HitCount > 0 {
			hit.Add(mp.names.ids[fp.Name])
		}
	}
	return hit
}

func (mp *MergedProjectProfile) sumComplexity(bm *roaring.Bitmap) int {
	total := 0
	it := bm.Iterator()
	for it.HasNext() {
		total += mp.complexity[it.Next()]
	}
	return total
}

// computeComplexity fills TotalCyclomaticComplexity and
// NewUnreachedComplexity from the flat functionsReached lists.
func (mp *MergedProjectProfile) computeComplexity() {
	hit := mp.hitSet()
	for i, fp := range mp.functions {
		reach := roaring.And(mp.reach[i], mp.retained)
		fp.TotalCyclomaticComplexity = fp.CyclomaticComplexity + mp.sumComplexity(reach)

		uncovered := mp.sumComplexity(roaring.AndNot(reach, hit))
		if fp.HitCount == 0 {
			uncovered += fp.CyclomaticComplexity
		}
		fp.NewUnreachedComplexity = uncovered
	}
}

// AddFuncToReachedAndClone returns an independent copy of mp in which fn and
// every function it reaches are marked hit, with complexity recomputed. mp is
// not modified. A function unknown to mp yields an unchanged copy.
func (mp *MergedProjectProfile) AddFuncToReachedAndClone(fn *FunctionProfile) *MergedProjectProfile {
	c := mp.clone()
	if fn == nil {
		return c
	}
	i, ok := c.index[fn.Name]
	if !ok {
		slog.Debug("simulated function not in merged profile", "function", fn.Name)
		return c
	}

	mark := roaring.And(c.reach[i], c.retained)
	mark.Add(c.names.ids[fn.Name])
	it := mark.Iterator()
	for it.HasNext() {
		id := it.Next()
		target := c.functions[c.index[c.names.names[id]]]
		if target.HitCount == 0 {
			target.HitCount = 1
		}
		c.reached.Add(id)
	}
	c.unreached.AndNot(c.reached)
	c.computeComplexity()
	return c
}

func (mp *MergedProjectProfile) clone() *MergedProjectProfile {
	c := &MergedProjectProfile{
		Profiles:   make([]*FuzzerProfile, len(mp.Profiles)),
		functions:  make([]*FunctionProfile, len(mp.functions)),
		index:      make(map[string]int, len(mp.index)),
		names:      mp.names,
		reach:      mp.reach,
		complexity: mp.complexity,
		retained:   mp.retained,
		reached:    mp.reached.Clone(),
		unreached:  mp.unreached.Clone(),
		internal:   append([]string(nil), mp.internal...),
	}
	for i, p := range mp.Profiles {
		c.Profiles[i] = p.Clone()
	}
	for i, fp := range mp.functions {
		c.functions[i] = fp.Clone()
	}
	for k, v := range mp.index {
		c.index[k] = v
	}
	c.linkIncomingReferences()
	return c
}

// Function returns the merged record for name.
func (mp *MergedProjectProfile) Function(name string) (*FunctionProfile, bool) {
	i, ok := mp.index[name]
	if !ok {
		return nil, false
	}
	return mp.functions[i], true
}

// Functions returns the merged records in first-seen order.
func (mp *MergedProjectProfile) Functions() []*FunctionProfile {
	return append([]*FunctionProfile(nil), mp.functions...)
}

// TotalComplexityOf returns the total cyclomatic complexity of name, trying
// the demangled form when the raw name has no record.
func (mp *MergedProjectProfile) TotalComplexityOf(name string) int {
	if fp, ok := mp.Function(name); ok {
		return fp.TotalCyclomaticComplexity
	}
	for _, fp := range mp.functions {
		if coverage.Demangle(fp.Name) == name {
			return fp.TotalCyclomaticComplexity
		}
	}
	return 0
}

func (mp *MergedProjectProfile) sortedNames(bm *roaring.Bitmap) []string {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, mp.names.names[it.Next()])
	}
	sort.Strings(out)
	return out
}

// FunctionsReached returns the sorted names reached by at least one fuzzer.
func (mp *MergedProjectProfile) FunctionsReached() []string {
	return mp.sortedNames(mp.reached)
}

// UnreachedFunctions returns the sorted names no fuzzer reaches.
func (mp *MergedProjectProfile) UnreachedFunctions() []string {
	return mp.sortedNames(mp.unreached)
}

// ReachedFunctionCount returns the number of reached functions.
func (mp *MergedProjectProfile) ReachedFunctionCount() int {
	return int(mp.reached.GetCardinality())
}

// UnreachedFunctionCount returns the number of unreached functions.
func (mp *MergedProjectProfile) UnreachedFunctionCount() int {
	return int(mp.unreached.GetCardinality())
}

// FunctionSummary is the project-level function reachability.
type FunctionSummary struct {
	TotalFunctions     int     `json:"total-functions" toon:"total-functions"`
	ReachedFunctions   int     `json:"reached-functions" toon:"reached-functions"`
	UnreachedFunctions int     `json:"unreached-functions" toon:"unreached-functions"`
	ReachedPercentage  float64 `json:"reached-percentage" toon:"reached-percentage"`
	UnreachedPercent   float64 `json:"unreached-percentage" toon:"unreached-percentage"`
}

// FunctionSummaries returns reachability counts and percentages.
func (mp *MergedProjectProfile) FunctionSummaries() FunctionSummary {
	s := FunctionSummary{
		ReachedFunctions:   mp.ReachedFunctionCount(),
		UnreachedFunctions: mp.UnreachedFunctionCount(),
	}
	s.TotalFunctions = s.ReachedFunctions + s.UnreachedFunctions
	s.ReachedPercentage, s.UnreachedPercent = percentages(s.ReachedFunctions, s.UnreachedFunctions)
	return s
}

// ComplexitySummary is the project-level cyclomatic complexity split.
type ComplexitySummary struct {
	ReachedComplexity   int     `json:"reached-complexity" toon:"reached-complexity"`
	UnreachedComplexity int     `json:"unreached-complexity" toon:"unreached-complexity"`
	ReachedPercentage   float64 `json:"reached-complexity-percentage" toon:"reached-complexity-percentage"`
	UnreachedPercent    float64 `json:"unreached-complexity-percentage" toon:"unreached-complexity-percentage"`
}

// ComplexitySummaries splits the complexity of all merged functions by
// whether any fuzzer reaches them.
func (mp *MergedProjectProfile) ComplexitySummaries() ComplexitySummary {
	var s ComplexitySummary
	for _, fp := range mp.functions {
		if fp.HitCount > 0 {
			s.ReachedComplexity += fp.CyclomaticComplexity
		} else {
			s.UnreachedComplexity += fp.CyclomaticComplexity
		}
	}
	s.ReachedPercentage, s.UnreachedPercent = percentages(s.ReachedComplexity, s.UnreachedComplexity)
	return s
}

func percentages(reached, unreached int) (float64, float64) {
	total := reached + unreached
	if total == 0 {
		return 0, 0
	}
	return float64(reached) / float64(total) * 100.0, float64(unreached) / float64(total) * 100.0
}

// Basefolder returns the longest common prefix of all function source files,
// ignoring blank entries and "/".
func (mp *MergedProjectProfile) Basefolder() string {
	prefix := ""
	first := true
	for _, fp := range mp.functions {
		f := fp.SourceFile
		if f == "" || f == "/" {
			continue
		}
		if first {
			prefix, first = f, false
			continue
		}
		for !strings.HasPrefix(f, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
		if prefix == "" {
			break
		}
	}
	return prefix
}

// RefinePaths strips the project basefolder from every fuzzer's paths. A
// basefolder of "/" or "" leaves paths unchanged.
func (mp *MergedProjectProfile) RefinePaths() string {
	base := mp.Basefolder()
	if base == "" || base == "/" {
		return base
	}
	for _, p := range mp.Profiles {
		p.RefinePaths(base)
	}
	return base
}

// RuntimeCoverage merges the runtime coverage of every fuzzer. It returns
// nil when no fuzzer has coverage.
func (mp *MergedProjectProfile) RuntimeCoverage() *coverage.Map {
	var covs []coverage.Profile
	for _, p := range mp.Profiles {
		if p.Coverage != nil {
			covs = append(covs, p.Coverage)
		}
	}
	if len(covs) == 0 {
		return nil
	}
	return coverage.Merge(covs...)
}

// Conclusion is one graded finding about the project.
type Conclusion struct {
	Severity    int    `json:"severity" toon:"severity"`
	Title       string `json:"title" toon:"title"`
	Description string `json:"description,omitempty" toon:"description,omitempty"`
}

// BlockedThreshold is the covered-reachable percentage under which a fuzzer
// is reported as blocked.
const BlockedThreshold = 30.0

func gradeFunctions(pct float64) string {
	switch {
	case pct >= 90:
		return "excellent"
	case pct >= 75:
		return "good"
	case pct >= 50:
		return "fair"
	case pct >= 25:
		return "poor"
	}
	return "very poor"
}

func gradeComplexity(pct float64) string {
	switch {
	case pct >= 90:
		return "excellent"
	case pct >= 70:
		return "good"
	case pct >= 50:
		return "fair"
	}
	return "poor"
}

// Conclusions derives graded findings from the project percentages and from
// each fuzzer's runtime coverage. Results are sorted by severity, highest
// first.
func (mp *MergedProjectProfile) Conclusions() []Conclusion {
	fs := mp.FunctionSummaries()
	cs := mp.ComplexitySummaries()
	out := []Conclusion{
		{
			Severity: int(fs.ReachedPercentage * 0.1),
			Title:    fmt.Sprintf("Fuzzers reach %.2f%% of all functions.", fs.ReachedPercentage),
			Description: fmt.Sprintf("Static reachability is %s: %d of %d functions are reachable.",
				gradeFunctions(fs.ReachedPercentage), fs.ReachedFunctions, fs.TotalFunctions),
		},
		{
			Severity: int(cs.ReachedPercentage * 0.1),
			Title:    fmt.Sprintf("Fuzzers reach %.2f%% of cyclomatic complexity.", cs.ReachedPercentage),
			Description: fmt.Sprintf("Reached complexity is %s: %d of %d.",
				gradeComplexity(cs.ReachedPercentage), cs.ReachedComplexity, cs.ReachedComplexity+cs.UnreachedComplexity),
		},
	}
	for _, p := range mp.Profiles {
		pct, ok := p.CoveredReachablePercentage()
		if !ok || pct >= BlockedThreshold {
			continue
		}
		out = append(out, Conclusion{
			Severity: 2,
			Title:    fmt.Sprintf("Fuzzer %s is blocked:", p.Key()),
			Description: fmt.Sprintf("The runtime code coverage of %s covers %.2f%% of its statically reachable code. "+
				"Some place blocks the fuzzer from exploring more code at run time.", p.Key(), pct),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}
