// Package loader discovers fuzzer artifacts on disk and turns them into
// accumulated profiles.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/panbanda/fuzzlens/internal/cache"
	"github.com/panbanda/fuzzlens/internal/fileproc"
	"github.com/panbanda/fuzzlens/internal/progress"
	"github.com/panbanda/fuzzlens/internal/scanner"
	"github.com/panbanda/fuzzlens/pkg/calltree"
	"github.com/panbanda/fuzzlens/pkg/config"
	"github.com/panbanda/fuzzlens/pkg/profile"
	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned when a function list is not valid YAML or does
// not match the function list schema.
var ErrMalformed = errors.New("malformed function list")

// FunctionListSuffix is appended to a data file path to locate its
// function list.
const FunctionListSuffix = ".yaml"

const cacheKind = "function-list"

type options struct {
	cfg      *config.Config
	lang     profile.Language
	cache    *cache.Cache
	coverage profile.CoverageLoader
	progress bool
}

// Option configures loading.
type Option func(*options)

// WithConfig sets the configuration used for discovery and exclusion.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLanguage sets the language of the fuzzers being loaded.
func WithLanguage(lang profile.Language) Option {
	return func(o *options) {
		o.lang = lang
	}
}

// WithCache caches decoded function lists.
func WithCache(c *cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithCoverage sets the runtime coverage source used during accumulation.
func WithCoverage(l profile.CoverageLoader) Option {
	return func(o *options) {
		o.coverage = l
	}
}

// WithProgress shows a progress bar on stderr.
func WithProgress(show bool) Option {
	return func(o *options) {
		o.progress = show
	}
}

func buildOptions(opts []Option) *options {
	o := &options{lang: profile.LangCCpp}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	return o
}

// FindDataFiles returns the call-tree data files under root, honoring the
// configured exclusions.
func FindDataFiles(root string, cfg *config.Config) ([]string, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return scanner.NewScanner(cfg).ScanDir(root, cfg.Analysis.DataSuffix)
}

// ReadFunctionList decodes the YAML function list at path, consulting c
// first when it is non-nil.
func ReadFunctionList(path string, c *cache.Cache) (*profile.FunctionList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var key string
	if c != nil && c.Enabled() {
		key = cache.Key(cacheKind, data)
		var fl profile.FunctionList
		if c.Get(key, &fl) {
			return &fl, nil
		}
	}

	fl, err := DecodeFunctionList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if key != "" {
		if err := c.Put(key, cacheKind, fl); err != nil {
			slog.Debug("cache write failed", "path", path, "error", err)
		}
	}
	return fl, nil
}

// DecodeFunctionList validates and decodes a YAML function list.
func DecodeFunctionList(data []byte) (*profile.FunctionList, error) {
	if err := validateFunctionList(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	var fl profile.FunctionList
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&fl); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &fl, nil
}

// LoadProfile builds the profile of the fuzzer whose call tree is dataFile.
// Both dataFile and dataFile+".yaml" must exist.
func LoadProfile(dataFile string, lang profile.Language, c *cache.Cache) (*profile.FuzzerProfile, error) {
	listFile := dataFile + FunctionListSuffix
	for _, p := range []string{dataFile, listFile} {
		if _, err := os.Stat(p); err != nil {
			return nil, &profile.DataLoadError{Path: dataFile, Err: err}
		}
	}

	fl, err := ReadFunctionList(listFile, c)
	if err != nil {
		return nil, &profile.DataLoadError{Path: dataFile, Err: err}
	}
	tree, err := calltree.ParseFile(dataFile)
	if err != nil {
		return nil, &profile.DataLoadError{Path: dataFile, Err: err}
	}
	return profile.NewFuzzerProfile(dataFile, fl, tree, lang)
}

// Result is the outcome of LoadAll.
type Result struct {
	Profiles []*profile.FuzzerProfile
	// Errors holds the fuzzers that were dropped, nil when none were.
	Errors *fileproc.ProcessingErrors
}

// LoadAll loads, correlates and accumulates every fuzzer under root.
// Fuzzers that fail to load are logged and dropped. It fails only when
// discovery fails or ctx is cancelled.
func LoadAll(ctx context.Context, root string, opts ...Option) (*Result, error) {
	o := buildOptions(opts)

	var spinner *progress.Tracker
	if o.progress {
		spinner = progress.NewSpinner("Scanning artifacts")
	}
	files, err := FindDataFiles(root, o.cfg)
	if spinner != nil {
		spinner.FinishSuccess()
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("found data files", "root", root, "count", len(files))

	pairings, err := correlation(root, o.cfg)
	if err != nil {
		slog.Warn("ignoring correlation file", "error", err)
	}

	var onProgress fileproc.ProgressFunc
	var tracker *progress.Tracker
	if o.progress && len(files) > 0 {
		tracker = progress.NewTracker("Loading fuzzers", len(files))
		onProgress = tracker.Tick
	}

	profiles, errs := fileproc.Map(ctx, files, o.cfg.Analysis.Workers,
		func(ctx context.Context, path string) (*profile.FuzzerProfile, error) {
			p, err := LoadProfile(path, o.lang, o.cache)
			if err != nil {
				return nil, err
			}
			p.CorrelateExecutable(pairings)
			if err := p.Accumulate(o.coverage); err != nil {
				return nil, err
			}
			return p, nil
		}, onProgress)

	if tracker != nil {
		if errs != nil {
			tracker.FinishSkipped(fmt.Sprintf("%d fuzzer(s) dropped", len(errs.Errors)))
		} else {
			tracker.FinishSuccess()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errs != nil {
		for _, e := range errs.Errors {
			slog.Warn("dropping fuzzer", "path", e.Path, "error", e.Err)
		}
	}
	return &Result{Profiles: profiles, Errors: errs}, nil
}

func correlation(root string, cfg *config.Config) ([]profile.Pairing, error) {
	name := cfg.Analysis.CorrelationFile
	if name == "" {
		return nil, nil
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, name)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	return ReadCorrelation(path)
}

type correlationFile struct {
	Pairings []profile.Pairing `yaml:"pairings"`
}

// ReadCorrelation reads the executable to data file pairings at path.
func ReadCorrelation(path string) ([]profile.Pairing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cf correlationFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cf.Pairings, nil
}

// WriteCorrelation writes pairings in the format read by ReadCorrelation.
func WriteCorrelation(path string, pairings []profile.Pairing) error {
	data, err := yaml.Marshal(correlationFile{Pairings: pairings})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
