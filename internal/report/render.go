package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/panbanda/fuzzlens/internal/output"
)

// SummaryFile is the default name of the written summary.
const SummaryFile = "summary.json"

// WriteJSON writes s to path, creating parent directories.
func WriteJSON(s *Summary, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadJSON reads a summary written by WriteJSON.
func ReadJSON(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// document lays the summary out as output renderables.
func (s *Summary) document(colored bool) *output.Report {
	fn, cx := s.Project.Functions, s.Project.Complexity
	overview := output.NewTable("Project overview",
		[]string{"Metric", "Reached", "Unreached", "Reached %"},
		[][]string{
			{"Functions", strconv.Itoa(fn.ReachedFunctions), strconv.Itoa(fn.UnreachedFunctions),
				output.Percent(fn.ReachedPercentage, 50, 75, colored)},
			{"Cyclomatic complexity", strconv.Itoa(cx.ReachedComplexity), strconv.Itoa(cx.UnreachedComplexity),
				output.Percent(cx.ReachedPercentage, 50, 70, colored)},
		}, nil, nil)

	rows := make([][]string, 0, len(s.Fuzzers))
	for _, f := range s.Fuzzers {
		cov := "n/a"
		if f.CoveredReachablePct != nil {
			cov = output.Percent(*f.CoveredReachablePct, 30, 70, colored)
		}
		rows = append(rows, []string{
			f.Name,
			strconv.Itoa(f.ReachedFunctions),
			strconv.Itoa(f.Stats.TotalBasicBlocks),
			strconv.Itoa(f.Stats.TotalCyclomaticComplexity),
			strconv.Itoa(f.Stats.FileTargetCount),
			cov,
		})
	}
	fuzzers := output.NewTable("Fuzzers",
		[]string{"Fuzzer", "Reached", "Basic blocks", "Complexity", "Files", "Covered"},
		rows, nil, nil)

	files := make([][]string, 0, len(s.Files))
	for _, f := range s.Files {
		files = append(files, []string{f.File, strconv.Itoa(f.Functions),
			strings.Join(f.ReachedBy, ", "), strings.Join(f.CoveredBy, ", ")})
	}
	fileTable := output.NewTable("Files",
		[]string{"File", "Functions", "Reached by", "Covered by"},
		files, nil, nil)

	conclusions := &output.Section{Title: "Conclusions"}
	for _, c := range s.Conclusions {
		title := c.Title
		if colored {
			title = output.SeverityColor(c.Severity, title)
		}
		conclusions.Sections = append(conclusions.Sections, output.Section{Title: title, Content: c.Description})
	}

	doc := &output.Report{
		Title:    "Fuzz introspection report",
		Sections: []output.Renderable{overview, fuzzers, fileTable},
		Data:     s,
	}
	if b := s.blockerTable(); b != nil {
		doc.Sections = append(doc.Sections, b)
	}
	if t := s.targetTable(); t != nil {
		doc.Sections = append(doc.Sections, t)
	}
	if len(s.LowCoverage) > 0 {
		rows := make([][]string, 0, len(s.LowCoverage))
		for _, f := range s.LowCoverage {
			rows = append(rows, []string{f.Name, strconv.Itoa(f.HitLines), strconv.Itoa(f.TotalLines),
				fmt.Sprintf("%.2f%%", f.Percentage)})
		}
		doc.Sections = append(doc.Sections, output.NewTable("Low runtime coverage",
			[]string{"Function", "Hit lines", "Total lines", "Coverage"}, rows, nil, nil))
	}
	doc.Sections = append(doc.Sections, conclusions)
	return doc
}

func (s *Summary) blockerTable() *output.Table {
	var rows [][]string
	for _, f := range s.Fuzzers {
		for _, b := range f.Blockers {
			rows = append(rows, []string{f.Name, b.Callsite,
				fmt.Sprintf("%s:%d", b.SourceFile, b.LineNumber),
				strconv.Itoa(b.ForwardReds), b.LargestBlockedFunc})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return output.NewTable("Fuzz blockers",
		[]string{"Fuzzer", "Callsite", "Location", "Blocked complexity", "Largest blocked function"},
		rows, nil, nil)
}

func (s *Summary) targetTable() *output.Table {
	if s.Targets == nil || len(s.Targets.Targets) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(s.Targets.Targets))
	for _, t := range s.Targets.Targets {
		rows = append(rows, []string{t.Name, t.SourceFile,
			strconv.Itoa(t.FunctionsReached), strconv.Itoa(t.NewUnreachedComplexity)})
	}
	footer := []string{"After fuzzing", "",
		strconv.Itoa(s.Targets.After.ReachedFunctions),
		fmt.Sprintf("%.2f%%", s.Targets.ComplexityAfter.ReachedPercentage)}
	return output.NewTable("Optimal targets",
		[]string{"Function", "Source file", "Functions reached", "New complexity"},
		rows, footer, nil)
}

// RenderText implements output.Renderable.
func (s *Summary) RenderText(w io.Writer, colored bool) error {
	return s.document(colored).RenderText(w, colored)
}

// RenderMarkdown implements output.Renderable.
func (s *Summary) RenderMarkdown(w io.Writer) error {
	return s.document(false).RenderMarkdown(w)
}

// RenderData implements output.Renderable.
func (s *Summary) RenderData() any {
	return s
}
