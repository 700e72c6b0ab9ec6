package coverage

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// LLVMReportSuffix is the file suffix of `llvm-cov show` output.
const LLVMReportSuffix = ".covreport"

// ParseLLVMCov parses the text output of `llvm-cov show` into m.
//
// Function headers are lines ending in ':' without a '|', either
// "name:" or "file:name:". Line records look like "   83|  5.99M|  code".
func ParseLLVMCov(r io.Reader, m *Map) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	current := ""
	for scanner.Scan() {
		raw := scanner.Bytes()
		if !utf8.Valid(raw) {
			continue
		}
		line := strings.TrimRight(string(raw), "\r")

		if strings.HasSuffix(line, ":") && !strings.Contains(line, "|") {
			current = Demangle(headerName(line))
			m.StartFunction(current)
			continue
		}

		if current == "" || !strings.Contains(line, "|") {
			continue
		}
		parts := strings.Split(line, "|")
		lineNumber, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		m.AddLine(current, LineHit{Line: lineNumber, Hits: parseCount(parts[1])})
	}
	return scanner.Err()
}

func headerName(line string) string {
	parts := strings.Split(line, ":")
	name := line
	if len(parts) == 3 {
		name = parts[1]
	}
	name = strings.ReplaceAll(name, " ", "")
	return strings.ReplaceAll(name, ":", "")
}

// parseCount decodes llvm-cov execution counts such as "12", "1.2k" or
// "5.99M". Blank or unparsable counts are 0.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'k':
		mult = 1e3
	case 'M':
		mult = 1e6
	case 'G':
		mult = 1e9
	}
	if mult != 1.0 {
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v * mult)
}

// FindReports returns every file under dir ending in suffix.
func FindReports(dir, suffix string) ([]string, error) {
	var reports []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			reports = append(reports, path)
		}
		return nil
	})
	return reports, err
}

// LoadLLVM reads the coverage reports found under dir. If any report path
// contains target only those reports are used, otherwise all reports are
// combined.
func LoadLLVM(dir, target string) (*Map, error) {
	reports, err := FindReports(dir, LLVMReportSuffix)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNoCoverage
	}

	filterByName := false
	if target != "" {
		for _, r := range reports {
			if strings.Contains(r, target) {
				filterByName = true
				break
			}
		}
	}

	m := NewMap()
	for _, report := range reports {
		if filterByName && !strings.Contains(report, target) {
			continue
		}
		if err := loadLLVMFile(report, m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func loadLLVMFile(path string, m *Map) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m.Reports = append(m.Reports, path)
	if err := ParseLLVMCov(f, m); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
