package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration options for fuzzlens.
type Config struct {
	Analysis AnalysisConfig `koanf:"analysis"`
	Coverage CoverageConfig `koanf:"coverage"`
	Targets  TargetsConfig  `koanf:"targets"`
	Exclude  ExcludeConfig  `koanf:"exclude"`
	Cache    CacheConfig    `koanf:"cache"`
	Output   OutputConfig   `koanf:"output"`
	Log      LogConfig      `koanf:"log"`
}

// AnalysisConfig controls artifact discovery and merging.
type AnalysisConfig struct {
	Language           string   `koanf:"language"` // c-cpp, python, jvm
	DataSuffix         string   `koanf:"data_suffix"`
	CorrelationFile    string   `koanf:"correlation_file"`
	InternalSubstrings []string `koanf:"internal_substrings"`
	Workers            int      `koanf:"workers"` // 0 = 2x NumCPU
	BlockerLimit       int      `koanf:"blocker_limit"`
}

// CoverageConfig locates runtime coverage and sets low coverage thresholds.
type CoverageConfig struct {
	Dir        string  `koanf:"dir"` // defaults to the artifact root
	MinLines   int     `koanf:"min_lines"`
	MaxPercent float64 `koanf:"max_percent"`
}

// TargetsConfig tunes optimal target selection.
type TargetsConfig struct {
	MaxCount       int `koanf:"max_count"` // 0 = derived from project size
	MinComplexity  int `koanf:"min_complexity"`
	StopComplexity int `koanf:"stop_complexity"`
}

// ExcludeConfig defines artifact exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns"`
	Dirs      []string `koanf:"dirs"`
	Gitignore bool     `koanf:"gitignore"`
}

// CacheConfig controls caching of decoded function lists.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	TTL     int    `koanf:"ttl"` // TTL in hours, 0 = never expire
}

// TTLDuration returns the cache TTL as a duration.
func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Hour
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, markdown, json, toon
	Color   bool   `koanf:"color"`
	Summary string `koanf:"summary"` // summary.json path, empty to skip
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Language:           "c-cpp",
			DataSuffix:         ".data",
			CorrelationFile:    "exe_to_fuzz_introspector_logs.yaml",
			InternalSubstrings: []string{"sanitizer", "llvm"},
			BlockerLimit:       10,
		},
		Coverage: CoverageConfig{
			MinLines:   30,
			MaxPercent: 55,
		},
		Targets: TargetsConfig{
			MinComplexity:  20,
			StopComplexity: 35,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				".fuzzlens",
				"node_modules",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".fuzzlens/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a file over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

var configNames = []string{
	"fuzzlens.toml",
	"fuzzlens.yaml",
	"fuzzlens.yml",
	"fuzzlens.json",
	".fuzzlens.toml",
	".fuzzlens.yaml",
	".fuzzlens.yml",
	".fuzzlens.json",
}

// Find returns the first config file in dir or dir/.fuzzlens, or "".
func Find(dir string) string {
	for _, d := range []string{dir, filepath.Join(dir, ".fuzzlens")} {
		for _, name := range configNames {
			p := filepath.Join(d, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// LoadOrDefault loads the config found in the current directory, falling
// back to defaults when none exists or it fails to load.
func LoadOrDefault() *Config {
	if p := Find("."); p != "" {
		if cfg, err := Load(p); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

var (
	validFormats = []string{"text", "markdown", "json", "toon"}
	validLevels  = []string{"debug", "info", "warn", "error"}
	validLangs   = []string{"c-cpp", "python", "jvm"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.Analysis.Language, validLangs) {
		errs = append(errs, fmt.Errorf("analysis.language %q", c.Analysis.Language))
	}
	if c.Analysis.DataSuffix == "" {
		errs = append(errs, errors.New("analysis.data_suffix is empty"))
	}
	if c.Analysis.Workers < 0 {
		errs = append(errs, fmt.Errorf("analysis.workers %d", c.Analysis.Workers))
	}
	if !oneOf(c.Output.Format, validFormats) {
		errs = append(errs, fmt.Errorf("output.format %q", c.Output.Format))
	}
	if !oneOf(strings.ToLower(c.Log.Level), validLevels) {
		errs = append(errs, fmt.Errorf("log.level %q", c.Log.Level))
	}
	if c.Coverage.MaxPercent < 0 || c.Coverage.MaxPercent > 100 {
		errs = append(errs, fmt.Errorf("coverage.max_percent %v", c.Coverage.MaxPercent))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// ShouldExclude checks if a relative artifact path should be skipped.
func (c *Config) ShouldExclude(path string) bool {
	sep := string(filepath.Separator)
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, sep+dir+sep) || strings.HasPrefix(path, dir+sep) {
			return true
		}
	}
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
