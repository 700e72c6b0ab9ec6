package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PythonReportSuffix is the file suffix of coverage.py JSON reports.
const PythonReportSuffix = ".json"

var errNotCoverageJSON = errors.New("json document has no coverage files")

type pyReport struct {
	Files map[string]pyFile `json:"files"`
}

type pyFile struct {
	ExecutedLines []int                 `json:"executed_lines"`
	MissingLines  []int                 `json:"missing_lines"`
	Functions     map[string]pyFunction `json:"functions"`
}

type pyFunction struct {
	ExecutedLines []int `json:"executed_lines"`
	MissingLines  []int `json:"missing_lines"`
}

// ParsePythonJSON decodes a coverage.py JSON report into m. Functions are
// keyed both by their bare name and qualified by their module path, e.g.
// "pkg.mod.func" for pkg/mod.py.
func ParsePythonJSON(r io.Reader, m *Map) error {
	var report pyReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return fmt.Errorf("decode coverage json: %w", err)
	}
	if len(report.Files) == 0 {
		return errNotCoverageJSON
	}

	files := make([]string, 0, len(report.Files))
	for name := range report.Files {
		files = append(files, name)
	}
	sort.Strings(files)

	for _, file := range files {
		data := report.Files[file]
		module := moduleName(file)
		if len(data.Functions) == 0 {
			// Older reports only carry file-level lines.
			m.StartFunction(module)
			for _, l := range pyLines(data.ExecutedLines, data.MissingLines) {
				m.AddLine(module, l)
			}
			continue
		}
		for fn, fd := range data.Functions {
			if fn == "" {
				continue
			}
			lines := pyLines(fd.ExecutedLines, fd.MissingLines)
			for _, key := range []string{module + "." + fn, fn} {
				m.StartFunction(key)
				for _, l := range lines {
					m.AddLine(key, l)
				}
			}
		}
	}
	return nil
}

func pyLines(executed, missing []int) []LineHit {
	lines := make([]LineHit, 0, len(executed)+len(missing))
	for _, l := range executed {
		lines = append(lines, LineHit{Line: l, Hits: 1})
	}
	for _, l := range missing {
		lines = append(lines, LineHit{Line: l, Hits: 0})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Line < lines[j].Line })
	return lines
}

func moduleName(path string) string {
	path = filepath.ToSlash(strings.TrimSuffix(path, ".py"))
	path = strings.TrimPrefix(path, "./")
	return strings.ReplaceAll(path, "/", ".")
}

// LoadPython reads every coverage.py JSON report found under dir.
func LoadPython(dir string) (*Map, error) {
	reports, err := FindReports(dir, PythonReportSuffix)
	if err != nil {
		return nil, err
	}

	m := NewMap()
	for _, report := range reports {
		f, err := os.Open(report)
		if err != nil {
			return nil, err
		}
		err = ParsePythonJSON(f, m)
		f.Close()
		if err != nil {
			// Other JSON files may live alongside coverage reports.
			continue
		}
		m.Reports = append(m.Reports, report)
	}
	if len(m.Reports) == 0 {
		return nil, ErrNoCoverage
	}
	return m, nil
}
