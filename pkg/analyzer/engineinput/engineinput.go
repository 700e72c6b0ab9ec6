// Package engineinput derives fuzz engine guidance, dictionaries and focus
// functions, from a fuzzer's static profile and its coverage blockers.
package engineinput

import (
	"fmt"
	"io"
	"strings"

	"github.com/panbanda/fuzzlens/pkg/profile"
)

const defaultBlockerLimit = 10

// Input is the engine guidance for one fuzzer.
type Input struct {
	Fuzzer         string   `json:"fuzzer" toon:"fuzzer"`
	Dictionary     []string `json:"dictionary" toon:"dictionary"`
	FocusFunctions []string `json:"focus_functions" toon:"focus_functions"`
}

// Generator builds Inputs.
type Generator struct {
	blockerLimit int
}

// Option is a functional option for configuring Generator.
type Option func(*Generator)

// WithBlockerLimit sets how many blockers are inspected for focus functions.
func WithBlockerLimit(n int) Option {
	return func(g *Generator) {
		g.blockerLimit = n
	}
}

// New creates a generator.
func New(opts ...Option) *Generator {
	g := &Generator{blockerLimit: defaultBlockerLimit}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate collects the constants touched by every function the fuzzer
// reaches, in reach order, and the largest functions behind its blockers.
// Blockers are only available once coverage has been overlaid.
func (g *Generator) Generate(p *profile.FuzzerProfile) Input {
	in := Input{Fuzzer: p.Key(), Dictionary: []string{}, FocusFunctions: []string{}}

	seen := make(map[string]bool)
	for _, name := range p.FunctionsReached {
		fp, ok := p.Functions[name]
		if !ok {
			continue
		}
		for _, c := range fp.ConstantsTouched {
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			in.Dictionary = append(in.Dictionary, c)
		}
	}

	focus := make(map[string]bool)
	for _, n := range p.Blockers(g.blockerLimit) {
		f := n.LargestBlockedFunc
		if f == "" || f == "none" || focus[f] {
			continue
		}
		focus[f] = true
		in.FocusFunctions = append(in.FocusFunctions, f)
	}
	return in
}

var dictEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// WriteDictionary writes the dictionary in libFuzzer's format, one
// `k<N>="<value>"` entry per line.
func (in Input) WriteDictionary(w io.Writer) error {
	for i, c := range in.Dictionary {
		if _, err := fmt.Fprintf(w, "k%d=\"%s\"\n", i, dictEscaper.Replace(c)); err != nil {
			return err
		}
	}
	return nil
}
