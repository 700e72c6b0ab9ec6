// Package profile builds per-fuzzer and whole-project views over the
// function lists and call trees emitted by the fuzz introspection pass.
package profile

import (
	"fmt"
	"regexp"
	"slices"
)

// Record is one element of the "All functions" list in a fuzzer's YAML
// function list.
type Record struct {
	FunctionName         string   `yaml:"functionName" json:"functionName"`
	FunctionSourceFile   string   `yaml:"functionSourceFile" json:"functionSourceFile"`
	FunctionLinenumber   int      `yaml:"functionLinenumber" json:"functionLinenumber"`
	FunctionDepth        int      `yaml:"functionDepth" json:"functionDepth"`
	ArgCount             int      `yaml:"argCount" json:"argCount"`
	ArgTypes             []string `yaml:"argTypes" json:"argTypes"`
	ArgNames             []string `yaml:"argNames" json:"argNames"`
	ReturnType           string   `yaml:"returnType" json:"returnType"`
	BBCount              int      `yaml:"BBCount" json:"BBCount"`
	ICount               int      `yaml:"ICount" json:"ICount"`
	EdgeCount            int      `yaml:"EdgeCount" json:"EdgeCount"`
	CyclomaticComplexity int      `yaml:"CyclomaticComplexity" json:"CyclomaticComplexity"`
	FunctionsReached     []string `yaml:"functionsReached" json:"functionsReached"`
	ConstantsTouched     []string `yaml:"constantsTouched" json:"constantsTouched"`
}

// FunctionList is the parsed YAML function list of one fuzzer.
type FunctionList struct {
	FuzzerFilename string `yaml:"Fuzzer filename" json:"fuzzer_filename"`
	AllFunctions   struct {
		FunctionCount int      `yaml:"Function count" json:"function_count"`
		Elements      []Record `yaml:"Elements" json:"elements"`
	} `yaml:"All functions" json:"all_functions"`
}

// FunctionProfile is one function as seen by static analysis. The derived
// fields are populated by NewMergedProjectProfile.
type FunctionProfile struct {
	Name                 string   `json:"function_name" toon:"function_name"`
	SourceFile           string   `json:"function_source_file" toon:"function_source_file"`
	LineNumber           int      `json:"function_linenumber" toon:"function_linenumber"`
	Depth                int      `json:"function_depth" toon:"function_depth"`
	ArgCount             int      `json:"arg_count" toon:"arg_count"`
	ArgTypes             []string `json:"arg_types" toon:"arg_types"`
	ArgNames             []string `json:"arg_names,omitempty" toon:"arg_names,omitempty"`
	ReturnType           string   `json:"return_type,omitempty" toon:"return_type,omitempty"`
	BBCount              int      `json:"bb_count" toon:"bb_count"`
	ICount               int      `json:"i_count" toon:"i_count"`
	EdgeCount            int      `json:"edge_count" toon:"edge_count"`
	CyclomaticComplexity int      `json:"cyclomatic_complexity" toon:"cyclomatic_complexity"`
	FunctionsReached     []string `json:"functions_reached" toon:"functions_reached"`
	ConstantsTouched     []string `json:"constants_touched,omitempty" toon:"constants_touched,omitempty"`

	HitCount                  int                `json:"hitcount" toon:"hitcount"`
	ReachedByFuzzers          []string           `json:"reached_by_fuzzers" toon:"reached_by_fuzzers"`
	IncomingReferences        []*FunctionProfile `json:"-" toon:"-"`
	TotalCyclomaticComplexity int                `json:"total_cyclomatic_complexity" toon:"total_cyclomatic_complexity"`
	NewUnreachedComplexity    int                `json:"new_unreached_complexity" toon:"new_unreached_complexity"`

	reached map[string]struct{}
}

// NewFunctionProfile builds a profile from a plugin record. The name is the
// only required field.
func NewFunctionProfile(rec Record) (*FunctionProfile, error) {
	if rec.FunctionName == "" {
		return nil, fmt.Errorf("%w: functionName", ErrMissingKey)
	}
	fp := &FunctionProfile{
		Name:                 rec.FunctionName,
		SourceFile:           rec.FunctionSourceFile,
		LineNumber:           rec.FunctionLinenumber,
		Depth:                rec.FunctionDepth,
		ArgCount:             rec.ArgCount,
		ArgTypes:             slices.Clone(rec.ArgTypes),
		ArgNames:             slices.Clone(rec.ArgNames),
		ReturnType:           rec.ReturnType,
		BBCount:              rec.BBCount,
		ICount:               rec.ICount,
		EdgeCount:            rec.EdgeCount,
		CyclomaticComplexity: max(rec.CyclomaticComplexity, 0),
		FunctionsReached:     slices.Clone(rec.FunctionsReached),
		ConstantsTouched:     slices.Clone(rec.ConstantsTouched),
	}
	if fp.ArgTypes == nil {
		fp.ArgTypes = []string{}
	}
	if fp.FunctionsReached == nil {
		fp.FunctionsReached = []string{}
	}
	fp.reached = toSet(fp.FunctionsReached)
	return fp, nil
}

// Reaches reports whether name is in the function's reached list.
func (f *FunctionProfile) Reaches(name string) bool {
	if f.reached == nil {
		f.reached = toSet(f.FunctionsReached)
	}
	_, ok := f.reached[name]
	return ok
}

// IncomingReferenceNames returns the names of the functions that reach f.
func (f *FunctionProfile) IncomingReferenceNames() []string {
	names := make([]string, len(f.IncomingReferences))
	for i, ref := range f.IncomingReferences {
		names[i] = ref.Name
	}
	return names
}

// Clone returns a deep copy. IncomingReferences is left empty because its
// targets belong to the owning merged profile; the caller relinks it.
func (f *FunctionProfile) Clone() *FunctionProfile {
	c := *f
	c.ArgTypes = slices.Clone(f.ArgTypes)
	c.ArgNames = slices.Clone(f.ArgNames)
	c.FunctionsReached = slices.Clone(f.FunctionsReached)
	c.ConstantsTouched = slices.Clone(f.ConstantsTouched)
	c.ReachedByFuzzers = slices.Clone(f.ReachedByFuzzers)
	c.IncomingReferences = nil
	c.reached = toSet(c.FunctionsReached)
	return &c
}

var trailingClone = regexp.MustCompile(`\.\d+$`)

// NeedsNormalisation reports names such as "foo.123" that carry an LLVM
// clone suffix and may not match their coverage records.
func (f *FunctionProfile) NeedsNormalisation() bool {
	return trailingClone.MatchString(f.Name)
}

func toSet(names []string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}
