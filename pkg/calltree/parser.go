// Package calltree parses the textual call trees emitted by the fuzz
// introspection compiler pass and overlays runtime coverage onto them.
package calltree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnreadable is returned when a call-tree file cannot be read.
var ErrUnreadable = errors.New("call tree unreadable")

const (
	sectionStart     = "Call tree"
	minTerminatorLen = 6
	lineNumberPrefix = "linenumber="
	maxLineSize      = 4 * 1024 * 1024
)

// ParseFile reads the call tree section of a fuzzer data file.
func ParseFile(path string) ([]*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	nodes, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	return nodes, nil
}

// Parse reads every call tree section from r and returns the call sites
// flattened into depth groups. Each maximal run of equal-depth lines is
// emitted sorted by ascending line number.
func Parse(r io.Reader) ([]*Node, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		result  []*Node
		run     []*Node
		reading bool
	)
	flush := func() {
		if len(run) == 0 {
			return
		}
		sort.SliceStable(run, func(i, j int) bool {
			return run[i].LineNumber < run[j].LineNumber
		})
		result = append(result, run...)
		run = nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if reading && isTerminator(line) {
			reading = false
			continue
		}
		if !reading {
			if strings.Contains(line, sectionStart) {
				reading = true
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		node := parseLine(line)
		if len(run) > 0 && run[0].Depth != node.Depth {
			flush()
		}
		run = append(run, node)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	if result == nil {
		result = []*Node{}
	}
	return result, nil
}

// parseLine decodes "{indent}{name} [{file} linenumber={n}]".
func parseLine(line string) *Node {
	indent := len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
	fields := strings.Fields(line)

	node := &Node{
		FunctionName: fields[0],
		Depth:        indent / 2,
	}
	if len(fields) == 3 {
		node.SourceFile = fields[1]
		n, err := strconv.Atoi(strings.TrimPrefix(fields[2], lineNumberPrefix))
		if err == nil {
			node.LineNumber = n
		}
	}
	return node
}

func isTerminator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < minTerminatorLen {
		return false
	}
	return strings.Trim(trimmed, "=") == ""
}

// Callsites returns the unique destination function names in call order.
func Callsites(nodes []*Node) []string {
	seen := make(map[string]struct{}, len(nodes))
	var names []string
	for _, n := range nodes {
		if _, ok := seen[n.FunctionName]; ok {
			continue
		}
		seen[n.FunctionName] = struct{}{}
		names = append(names, n.FunctionName)
	}
	return names
}
