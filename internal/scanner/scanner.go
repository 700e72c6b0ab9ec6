// Package scanner discovers fuzzer artifacts under a directory tree.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/fuzzlens/pkg/config"
)

// Scanner finds artifact files in a directory.
type Scanner struct {
	config   *config.Config
	matchers []gitignore.Matcher
}

// NewScanner creates a new artifact scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// findGitRoot returns the nearest ancestor of start holding a .git
// directory, or "".
func findGitRoot(start string) string {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns combines config patterns, parsed as gitignore
// syntax, with every .gitignore found under the git root.
func (s *Scanner) loadExcludePatterns(root string) {
	s.matchers = nil
	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	for _, dir := range s.config.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(dir+"/", nil))
	}

	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
				patterns = append(patterns, gitPatterns...)
			}
		}
	}

	if len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}
}

func (s *Scanner) isExcluded(relPath string, isDir bool) bool {
	if len(s.matchers) == 0 || relPath == "." {
		return false
	}
	parts := strings.Split(relPath, string(filepath.Separator))
	for _, m := range s.matchers {
		if m.Match(parts, isDir) {
			return true
		}
	}
	return false
}

// ScanDir recursively finds files under root whose names end in one of
// suffixes. Symlinks that escape root are skipped. Results are sorted.
func (s *Scanner) ScanDir(root string, suffixes ...string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(absRoot)

	files := make([]string, 0, 64)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		relPath, _ := filepath.Rel(root, path)

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if s.isExcluded(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.isExcluded(relPath, false) || s.config.ShouldExclude(relPath) {
			return nil
		}
		if hasSuffix(d.Name(), suffixes) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, walkErr
}

func hasSuffix(name string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}
	for _, suf := range suffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// isWithinRoot reports whether path is root or lies beneath it.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
