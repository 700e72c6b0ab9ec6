package profile

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/panbanda/fuzzlens/pkg/calltree"
	"github.com/panbanda/fuzzlens/pkg/coverage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(name string, cc int, reached ...string) Record {
	return Record{
		FunctionName:         name,
		FunctionSourceFile:   "/src/proj/lib.c",
		CyclomaticComplexity: cc,
		BBCount:              cc * 2,
		ArgCount:             1,
		FunctionsReached:     reached,
	}
}

func functionList(src string, recs ...Record) *FunctionList {
	fl := &FunctionList{FuzzerFilename: src}
	fl.AllFunctions.Elements = recs
	fl.AllFunctions.FunctionCount = len(recs)
	return fl
}

// newFuzzer builds and accumulates a c-cpp fuzzer whose entrypoint reaches
// the given names.
func newFuzzer(t *testing.T, src string, reach []string, recs ...Record) *FuzzerProfile {
	t.Helper()
	all := append([]Record{rec("LLVMFuzzerTestOneInput", 1, reach...)}, recs...)
	p, err := NewFuzzerProfile("/out/"+src+".data", functionList("/src/proj/"+src, all...), nil, LangCCpp)
	require.NoError(t, err)
	require.NoError(t, p.Accumulate(nil))
	return p
}

type stubLoader struct {
	cov     coverage.Profile
	err     error
	targets []string
}

func (s *stubLoader) LoadCoverage(_ Language, target string) (coverage.Profile, error) {
	s.targets = append(s.targets, target)
	return s.cov, s.err
}

func TestNewFunctionProfile(t *testing.T) {
	fp, err := NewFunctionProfile(Record{FunctionName: "f", CyclomaticComplexity: -3})
	require.NoError(t, err)
	assert.Equal(t, 0, fp.CyclomaticComplexity)
	assert.Equal(t, []string{}, fp.FunctionsReached)
	assert.Equal(t, []string{}, fp.ArgTypes)
	assert.Zero(t, fp.HitCount)

	_, err = NewFunctionProfile(Record{})
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestFunctionProfile_NeedsNormalisation(t *testing.T) {
	tests := map[string]bool{
		"foo.123":  true,
		"foo":      false,
		"foo.bar":  false,
		"foo.12a":  false,
		"foo.1":    true,
		"_Z3foov":  false,
		"foo.123.": false,
	}
	for name, want := range tests {
		fp, err := NewFunctionProfile(Record{FunctionName: name})
		require.NoError(t, err)
		assert.Equal(t, want, fp.NeedsNormalisation(), name)
	}
}

func TestFunctionProfile_Clone(t *testing.T) {
	fp, err := NewFunctionProfile(rec("a", 2, "b", "c"))
	require.NoError(t, err)
	fp.ReachedByFuzzers = []string{"x"}

	c := fp.Clone()
	c.FunctionsReached[0] = "z"
	c.ReachedByFuzzers[0] = "y"

	assert.Equal(t, []string{"b", "c"}, fp.FunctionsReached)
	assert.Equal(t, []string{"x"}, fp.ReachedByFuzzers)
	assert.True(t, fp.Reaches("b"))
	assert.False(t, fp.Reaches("z"))
}

func TestNewFuzzerProfile_MissingFilename(t *testing.T) {
	_, err := NewFuzzerProfile("x.data", functionList(""), nil, LangCCpp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKey))

	var dle *DataLoadError
	require.True(t, errors.As(err, &dle))
	assert.Equal(t, "x.data", dle.Path)
}

func TestNewFuzzerProfile_MissingFunctionName(t *testing.T) {
	_, err := NewFuzzerProfile("x.data", functionList("f.c", Record{}), nil, LangCCpp)
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestFuzzerProfile_DuplicateNamesLastWins(t *testing.T) {
	p, err := NewFuzzerProfile("x.data", functionList("f.c",
		rec("LLVMFuzzerTestOneInput", 1, "a"), rec("a", 1), rec("a", 9)), nil, LangCCpp)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Functions["a"].CyclomaticComplexity)
	assert.Equal(t, []string{"LLVMFuzzerTestOneInput", "a"}, p.FunctionNames())
}

func TestAccumulate_Partition(t *testing.T) {
	p := newFuzzer(t, "fuzz.c", []string{"a", "b", "ghost", "a"},
		rec("a", 3), rec("b", 4), rec("c", 5), rec("d", 6))

	assert.Equal(t, []string{"a", "b"}, p.FunctionsReached)
	assert.ElementsMatch(t, []string{"LLVMFuzzerTestOneInput", "c", "d"}, p.FunctionsUnreached)

	seen := make(map[string]int)
	for _, n := range p.FunctionsReached {
		seen[n]++
	}
	for _, n := range p.FunctionsUnreached {
		seen[n]++
	}
	require.Len(t, seen, len(p.Functions))
	for name := range p.Functions {
		assert.Equal(t, 1, seen[name], name)
	}

	assert.Equal(t, 7, p.TotalCyclomaticComplexity)
	assert.Equal(t, 14, p.TotalBasicBlocks)
	assert.True(t, p.ReachesFunc("a"))
	assert.False(t, p.ReachesFunc("c"))
	assert.False(t, p.ReachesFunc("ghost"))
}

func TestAccumulate_OnlyOnce(t *testing.T) {
	p := newFuzzer(t, "fuzz.c", nil)
	assert.True(t, errors.Is(p.Accumulate(nil), ErrAlreadyAccumulated))
}

func TestAccumulate_NoEntrypoint(t *testing.T) {
	p, err := NewFuzzerProfile("x.data", functionList("f.c", rec("a", 1)), nil, LangCCpp)
	require.NoError(t, err)

	err = p.Accumulate(nil)
	assert.True(t, errors.Is(err, ErrNoEntrypoint))
	var dle *DataLoadError
	assert.True(t, errors.As(err, &dle))
	assert.False(t, p.Accumulated())
}

func TestAccumulate_EntrypointMarkerFallback(t *testing.T) {
	p, err := NewFuzzerProfile("x.data", functionList("f.c",
		rec("a", 1), rec("_Z22LLVMFuzzerTestOneInputPKhm", 1, "a")), nil, LangCCpp)
	require.NoError(t, err)
	require.NoError(t, p.Accumulate(nil))
	assert.Equal(t, "_Z22LLVMFuzzerTestOneInputPKhm", p.Entrypoint)
	assert.Equal(t, []string{"a"}, p.FunctionsReached)
}

func TestAccumulate_Languages(t *testing.T) {
	tests := []struct {
		lang  Language
		entry string
		src   string
		want  string
	}{
		{LangPython, "fuzz_json.TestOneInput", "/src/fuzz_json.py", "fuzz_json"},
		{LangJVM, "[Fuzz].fuzzerTestOneInput(byte[])", "/src/Fuzz.java", "Fuzz"},
		{LangCCpp, "LLVMFuzzerTestOneInput", "/src/fuzz_x.cc", "fuzz_x"},
	}
	for _, tt := range tests {
		t.Run(tt.lang.String(), func(t *testing.T) {
			p, err := NewFuzzerProfile("x.data", functionList(tt.src, rec(tt.entry, 1, "a"), rec("a", 2)), nil, tt.lang)
			require.NoError(t, err)
			loader := &stubLoader{}
			require.NoError(t, p.Accumulate(loader))
			assert.Equal(t, tt.entry, p.Entrypoint)
			assert.Equal(t, []string{tt.want}, loader.targets)
			assert.Equal(t, tt.want, p.TargetName())
		})
	}
}

func TestParseLanguage(t *testing.T) {
	for in, want := range map[string]Language{"": LangCCpp, "C++": LangCCpp, "py": LangPython, "java": LangJVM} {
		got, err := ParseLanguage(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLanguage("rust")
	assert.True(t, errors.Is(err, ErrUnknownLanguage))
}

func TestAccumulate_CoverageAndFileTargets(t *testing.T) {
	cov := coverage.NewMap()
	cov.AddLine("a", coverage.LineHit{Line: 1, Hits: 3})
	cov.AddLine("a", coverage.LineHit{Line: 2, Hits: 0})
	cov.AddLine("b", coverage.LineHit{Line: 9, Hits: 0})

	tree := []*calltree.Node{
		{FunctionName: "LLVMFuzzerTestOneInput"},
		{FunctionName: "a", SourceFile: "/src/proj/lib.c", Depth: 1},
		{FunctionName: "b", SourceFile: "/src/proj/lib.c", Depth: 1},
		{FunctionName: "c", SourceFile: "  ", Depth: 2},
	}
	all := []Record{rec("LLVMFuzzerTestOneInput", 1, "a", "b"), rec("a", 2), rec("b", 3)}
	p, err := NewFuzzerProfile("/out/fuzzerLogFile-1.data", functionList("/src/proj/fuzz.c", all...), tree, LangCCpp)
	require.NoError(t, err)
	require.NoError(t, p.Accumulate(&stubLoader{cov: cov}))

	total, hit, pct, ok := p.CovMetrics("a")
	require.True(t, ok)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, hit)
	assert.InDelta(t, 50.0, pct, 0.001)

	_, _, _, ok = p.CovMetrics("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"b"}, p.UncoveredReachableFuncs())
	covered, ok := p.CoveredReachablePercentage()
	require.True(t, ok)
	assert.InDelta(t, 50.0, covered, 0.001)

	assert.Equal(t, map[string][]string{"/src/proj/lib.c": {"a", "b"}}, p.FileTargets())
	assert.True(t, p.ReachesFile("/src/proj/lib.c", ""))
	assert.True(t, p.IsFileCovered("/src/proj/lib.c", ""))
	assert.Equal(t, Stats{TotalBasicBlocks: 10, TotalCyclomaticComplexity: 5, FileTargetCount: 1}, p.Stats())

	p.RefinePaths("/src/proj")
	assert.Equal(t, "/fuzz.c", p.SourceFile)
	assert.True(t, p.ReachesFile("/lib.c", ""))
	assert.True(t, p.ReachesFile("/src/proj/lib.c", "/src/proj"))
	assert.Equal(t, "/lib.c", p.CallTree[1].SourceFile)
}

func TestAccumulate_CoverageLoadErrorIsNotFatal(t *testing.T) {
	all := []Record{rec("LLVMFuzzerTestOneInput", 1, "a"), rec("a", 2)}
	p, err := NewFuzzerProfile("x.data", functionList("fuzz.c", all...), nil, LangCCpp)
	require.NoError(t, err)
	require.NoError(t, p.Accumulate(&stubLoader{err: coverage.ErrNoCoverage}))

	assert.Nil(t, p.Coverage)
	assert.Equal(t, []string{}, p.UncoveredReachableFuncs())
	_, ok := p.CoveredReachablePercentage()
	assert.False(t, ok)
	assert.False(t, p.IsFileCovered("/src/proj/lib.c", ""))
}

func TestFuzzerProfile_CorrelateExecutable(t *testing.T) {
	p := newFuzzer(t, "fuzz.c", nil)
	p.DataFile = "/out/fuzzerLogFile-12.data"
	assert.Equal(t, "/src/proj/fuzz.c", p.Key())

	p.CorrelateExecutable([]Pairing{
		{ExecutablePath: "/out/other", FuzzerLogFile: "fuzzerLogFile-99"},
		{ExecutablePath: "/out/fuzz_target", FuzzerLogFile: "fuzzerLogFile-12"},
	})
	assert.Equal(t, "/out/fuzz_target", p.BinaryExecutable)
	assert.Equal(t, "fuzz_target", p.Key())
}

func TestMerge_Empty(t *testing.T) {
	_, err := NewMergedProjectProfile(nil)
	assert.True(t, errors.Is(err, ErrNoProfiles))
}

func TestMerge_NotAccumulated(t *testing.T) {
	p, err := NewFuzzerProfile("x.data", functionList("f.c", rec("LLVMFuzzerTestOneInput", 1)), nil, LangCCpp)
	require.NoError(t, err)
	_, err = NewMergedProjectProfile([]*FuzzerProfile{p})
	assert.True(t, errors.Is(err, ErrNotAccumulated))
}

func TestMerge_TwoFuzzers(t *testing.T) {
	a := newFuzzer(t, "a.c", []string{"foo", "bar"}, rec("foo", 3), rec("bar", 5))
	b := newFuzzer(t, "b.c", []string{"bar", "baz"}, rec("bar", 5), rec("baz", 2))

	mp, err := NewMergedProjectProfile([]*FuzzerProfile{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"bar", "baz", "foo"}, mp.FunctionsReached())
	// Only the entrypoint is in neither reached set.
	assert.Equal(t, []string{"LLVMFuzzerTestOneInput"}, mp.UnreachedFunctions())

	get := func(name string) *FunctionProfile {
		fp, ok := mp.Function(name)
		require.True(t, ok, name)
		return fp
	}
	assert.Equal(t, 2, get("bar").HitCount)
	assert.Equal(t, 1, get("foo").HitCount)
	assert.Equal(t, []string{"/src/proj/a.c", "/src/proj/b.c"}, get("bar").ReachedByFuzzers)
	assert.Equal(t, 3, get("foo").TotalCyclomaticComplexity)
	assert.Equal(t, 0, get("foo").NewUnreachedComplexity)

	entry := get("LLVMFuzzerTestOneInput")
	assert.Equal(t, 1+3+5, entry.TotalCyclomaticComplexity)
	assert.ElementsMatch(t, []string{"LLVMFuzzerTestOneInput"}, get("foo").IncomingReferenceNames())
	assert.Equal(t, 1, entry.NewUnreachedComplexity)

	assertHitcountMatchesReached(t, mp)
}

func TestMerge_OnlyReachedFunctionsLeaveNothingUnreached(t *testing.T) {
	a := newFuzzer(t, "a.c", []string{"foo", "bar", "LLVMFuzzerTestOneInput"}, rec("foo", 3), rec("bar", 5))
	b := newFuzzer(t, "b.c", []string{"bar", "baz", "LLVMFuzzerTestOneInput"}, rec("bar", 5), rec("baz", 2))

	mp, err := NewMergedProjectProfile([]*FuzzerProfile{a, b})
	require.NoError(t, err)
	assert.Empty(t, mp.UnreachedFunctions())
	assert.Equal(t, 4, mp.ReachedFunctionCount())
}

func TestMerge_NewUnreachedComplexity(t *testing.T) {
	// foo reaches bar; neither is reached by the fuzzer.
	p := newFuzzer(t, "a.c", nil, rec("foo", 3, "bar"), rec("bar", 5))
	mp, err := NewMergedProjectProfile([]*FuzzerProfile{p})
	require.NoError(t, err)

	foo, _ := mp.Function("foo")
	assert.Equal(t, 8, foo.NewUnreachedComplexity)
	assert.Equal(t, 8, foo.TotalCyclomaticComplexity)

	// Once bar is hit only foo's own complexity is new.
	p2 := newFuzzer(t, "b.c", []string{"bar"}, rec("foo", 3, "bar"), rec("bar", 5))
	mp, err = NewMergedProjectProfile([]*FuzzerProfile{p2})
	require.NoError(t, err)
	foo, _ = mp.Function("foo")
	assert.Equal(t, 3, foo.NewUnreachedComplexity)
	bar, _ := mp.Function("bar")
	assert.Equal(t, []string{"LLVMFuzzerTestOneInput", "foo"}, bar.IncomingReferenceNames())
}

func TestMerge_ExcludesRuntimeInternals(t *testing.T) {
	p := newFuzzer(t, "a.c", []string{"foo", "__sanitizer_cov_trace_pc", "llvm.memcpy"},
		rec("foo", 3, "__sanitizer_cov_trace_pc"), rec("__sanitizer_cov_trace_pc", 50), rec("llvm.memcpy", 7))
	mp, err := NewMergedProjectProfile([]*FuzzerProfile{p})
	require.NoError(t, err)

	_, ok := mp.Function("__sanitizer_cov_trace_pc")
	assert.False(t, ok)
	assert.Equal(t, []string{"foo"}, mp.FunctionsReached())
	foo, _ := mp.Function("foo")
	assert.Equal(t, 3, foo.TotalCyclomaticComplexity)
	assertHitcountMatchesReached(t, mp)

	mp, err = NewMergedProjectProfile([]*FuzzerProfile{p}, WithInternalSubstrings(nil))
	require.NoError(t, err)
	assert.Len(t, mp.FunctionsReached(), 3)
}

func TestMerge_FirstOccurrenceWins(t *testing.T) {
	a := newFuzzer(t, "a.c", []string{"foo"}, rec("foo", 3))
	b := newFuzzer(t, "b.c", []string{"foo"}, rec("foo", 30))
	mp, err := NewMergedProjectProfile([]*FuzzerProfile{a, b})
	require.NoError(t, err)
	foo, _ := mp.Function("foo")
	assert.Equal(t, 3, foo.CyclomaticComplexity)
	assert.Equal(t, 2, foo.HitCount)
}

func snapshot(t *testing.T, mp *MergedProjectProfile) string {
	t.Helper()
	type fuzzerView struct {
		Profile     *FuzzerProfile
		FileTargets map[string][]string
	}
	type view struct {
		Functions []*FunctionProfile
		Incoming  map[string][]string
		Reached   []string
		Unreached []string
		Profiles  []fuzzerView
	}
	v := view{Functions: mp.Functions(), Incoming: map[string][]string{}, Reached: mp.FunctionsReached(), Unreached: mp.UnreachedFunctions()}
	for _, fp := range mp.Functions() {
		v.Incoming[fp.Name] = fp.IncomingReferenceNames()
	}
	for _, p := range mp.Profiles {
		v.Profiles = append(v.Profiles, fuzzerView{Profile: p, FileTargets: p.FileTargets()})
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func simulationProject(t *testing.T) *MergedProjectProfile {
	t.Helper()
	p := newFuzzer(t, "a.c", []string{"entry_helper"},
		rec("entry_helper", 2),
		rec("parse", 10, "parse_header", "parse_body"),
		rec("parse_header", 4),
		rec("parse_body", 6, "decode"),
		rec("decode", 8),
		rec("print", 3, "decode"),
	)
	mp, err := NewMergedProjectProfile([]*FuzzerProfile{p})
	require.NoError(t, err)
	return mp
}

func TestAddFuncToReachedAndClone(t *testing.T) {
	mp := simulationProject(t)
	before := snapshot(t, mp)

	parse, _ := mp.Function("parse")
	assert.Equal(t, 10+4+6, parse.NewUnreachedComplexity)

	sim := mp.AddFuncToReachedAndClone(parse)
	assert.Equal(t, before, snapshot(t, mp), "original profile modified")

	for _, name := range []string{"parse", "parse_header", "parse_body"} {
		fp, _ := sim.Function(name)
		assert.Equal(t, 1, fp.HitCount, name)
	}
	decode, _ := sim.Function("decode")
	assert.Zero(t, decode.HitCount)
	printFn, _ := sim.Function("print")
	assert.Equal(t, 3+8, printFn.NewUnreachedComplexity)
	assert.Contains(t, sim.FunctionsReached(), "parse")
	assert.NotContains(t, sim.UnreachedFunctions(), "parse")
	assertHitcountMatchesReached(t, sim)

	// Mutating the clone leaves the original untouched.
	simParse, _ := sim.Function("parse")
	simParse.HitCount = 42
	simParse.FunctionsReached[0] = "mutated"
	simParseHeader, _ := sim.Function("parse_header")
	simParseHeader.IncomingReferences[0].Name = "renamed"
	assert.Equal(t, before, snapshot(t, mp))
}

func TestAddFuncToReachedAndClone_FuzzerProfilesIndependent(t *testing.T) {
	tree := []*calltree.Node{
		{FunctionName: "foo", Depth: 0, SourceFile: "/src/proj/lib.c", LineNumber: 3},
	}
	all := []Record{rec("LLVMFuzzerTestOneInput", 1, "foo"), rec("foo", 4), rec("bar", 5)}
	p, err := NewFuzzerProfile("/out/a.c.data", functionList("/src/proj/a.c", all...), tree, LangCCpp)
	require.NoError(t, err)
	require.NoError(t, p.Accumulate(nil))
	mp, err := NewMergedProjectProfile([]*FuzzerProfile{p})
	require.NoError(t, err)
	before := snapshot(t, mp)

	bar, ok := mp.Function("bar")
	require.True(t, ok)
	sim := mp.AddFuncToReachedAndClone(bar)
	require.NotSame(t, mp.Profiles[0], sim.Profiles[0])

	sim.RefinePaths()
	sim.Profiles[0].CallTree[0].HitCount = 99
	sim.Profiles[0].Functions["foo"].FunctionsReached = append(sim.Profiles[0].Functions["foo"].FunctionsReached, "x")
	sim.Profiles[0].FunctionsReached[0] = "mutated"

	assert.Equal(t, "/src/proj/lib.c", mp.Profiles[0].CallTree[0].SourceFile)
	assert.Zero(t, mp.Profiles[0].CallTree[0].HitCount)
	assert.True(t, mp.Profiles[0].ReachesFile("/src/proj/lib.c", ""))
	assert.Equal(t, before, snapshot(t, mp))
}

func TestAddFuncToReachedAndClone_MonotonicNonIncrease(t *testing.T) {
	mp := simulationProject(t)
	prev := make(map[string]int)
	for _, fp := range mp.Functions() {
		prev[fp.Name] = fp.NewUnreachedComplexity
	}
	for _, name := range []string{"decode", "print", "parse_header", "parse"} {
		fp, ok := mp.Function(name)
		require.True(t, ok)
		mp = mp.AddFuncToReachedAndClone(fp)
		for _, f := range mp.Functions() {
			assert.LessOrEqual(t, f.NewUnreachedComplexity, prev[f.Name], "%s after hitting %s", f.Name, name)
			prev[f.Name] = f.NewUnreachedComplexity
		}
		assertHitcountMatchesReached(t, mp)
	}
}

func TestAddFuncToReachedAndClone_Unknown(t *testing.T) {
	mp := simulationProject(t)
	sim := mp.AddFuncToReachedAndClone(&FunctionProfile{Name: "nope"})
	assert.Equal(t, snapshot(t, mp), snapshot(t, sim))
	assert.Equal(t, snapshot(t, mp), snapshot(t, mp.AddFuncToReachedAndClone(nil)))
}

func assertHitcountMatchesReached(t *testing.T, mp *MergedProjectProfile) {
	t.Helper()
	hit := 0
	for _, fp := range mp.Functions() {
		if fp.HitCount > 0 {
			hit++
		}
	}
	assert.Equal(t, mp.ReachedFunctionCount(), hit)
}

func TestSummaries(t *testing.T) {
	p := newFuzzer(t, "a.c", []string{"foo"}, rec("foo", 6), rec("bar", 2))
	mp, err := NewMergedProjectProfile([]*FuzzerProfile{p})
	require.NoError(t, err)

	fs := mp.FunctionSummaries()
	assert.Equal(t, 3, fs.TotalFunctions)
	assert.Equal(t, 1, fs.ReachedFunctions)
	assert.Equal(t, 2, fs.UnreachedFunctions)
	assert.InDelta(t, 33.333, fs.ReachedPercentage, 0.01)
	assert.InDelta(t, 66.666, fs.UnreachedPercent, 0.01)

	cs := mp.ComplexitySummaries()
	assert.Equal(t, 6, cs.ReachedComplexity)
	assert.Equal(t, 3, cs.UnreachedComplexity)
	assert.InDelta(t, 66.666, cs.ReachedPercentage, 0.01)
}

func TestBasefolder(t *testing.T) {
	recs := []Record{rec("foo", 1), rec("bar", 1), rec("baz", 1)}
	recs[0].FunctionSourceFile = "/src/proj/a/x.c"
	recs[1].FunctionSourceFile = "/src/proj/b/y.c"
	recs[2].FunctionSourceFile = "/"
	p := newFuzzer(t, "f.c", nil, recs...)
	mp, err := NewMergedProjectProfile([]*FuzzerProfile{p})
	require.NoError(t, err)
	assert.Equal(t, "/src/proj/", mp.Basefolder())

	assert.Equal(t, "/src/proj/", mp.RefinePaths())
	assert.Equal(t, "f.c", p.SourceFile)
}

func TestConclusions(t *testing.T) {
	cov := coverage.NewMap()
	cov.AddLine("foo", coverage.LineHit{Line: 1, Hits: 0})
	all := []Record{rec("LLVMFuzzerTestOneInput", 1, "foo"), rec("foo", 6)}
	p, err := NewFuzzerProfile("x.data", functionList("fuzz.c", all...), nil, LangCCpp)
	require.NoError(t, err)
	require.NoError(t, p.Accumulate(&stubLoader{cov: cov}))

	mp, err := NewMergedProjectProfile([]*FuzzerProfile{p})
	require.NoError(t, err)

	got := mp.Conclusions()
	require.Len(t, got, 3)
	assert.Equal(t, "Fuzzers reach 85.71% of cyclomatic complexity.", got[0].Title)
	assert.Equal(t, 8, got[0].Severity)
	assert.Equal(t, "Fuzzers reach 50.00% of all functions.", got[1].Title)
	assert.Equal(t, 5, got[1].Severity)
	assert.Equal(t, "Fuzzer fuzz.c is blocked:", got[2].Title)
	assert.NotNil(t, mp.RuntimeCoverage())
}
