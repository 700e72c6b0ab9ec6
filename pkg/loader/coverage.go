package loader

import (
	"errors"
	"sync"

	"github.com/panbanda/fuzzlens/pkg/coverage"
	"github.com/panbanda/fuzzlens/pkg/profile"
)

// CoverageDir resolves runtime coverage reports stored under one
// directory, dispatching on the fuzzer language.
type CoverageDir struct {
	Dir string

	mu     sync.Mutex
	python *coverage.Map
	pyErr  error
	pyDone bool
}

// NewCoverageDir returns a loader reading reports under dir.
func NewCoverageDir(dir string) *CoverageDir {
	return &CoverageDir{Dir: dir}
}

// LoadCoverage implements profile.CoverageLoader. Missing coverage yields
// a nil profile and a nil error.
func (c *CoverageDir) LoadCoverage(lang profile.Language, target string) (coverage.Profile, error) {
	var (
		m   *coverage.Map
		err error
	)
	switch lang {
	case profile.LangCCpp:
		m, err = coverage.LoadLLVM(c.Dir, target)
	case profile.LangPython:
		m, err = c.loadPython()
	default:
		// No JVM report format is read.
		return nil, nil
	}
	if errors.Is(err, coverage.ErrNoCoverage) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return m, nil
}

// Python reports are project wide, so they are read once and shared.
func (c *CoverageDir) loadPython() (*coverage.Map, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pyDone {
		c.python, c.pyErr = coverage.LoadPython(c.Dir)
		c.pyDone = true
	}
	return c.python, c.pyErr
}
