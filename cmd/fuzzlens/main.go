package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/fuzzlens/pkg/config"
	"github.com/panbanda/fuzzlens/pkg/profile"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

const configKey = "config"

func newApp() *cli.App {
	return &cli.App{
		Name:     "fuzzlens",
		Usage:    "Fuzz introspection report and analysis CLI",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `fuzzlens reads the call trees and function lists emitted by the fuzz
introspection compiler pass, correlates them with runtime coverage and
reports reachability, fuzz blockers and optimal new fuzz targets.

Supports: C/C++ (llvm-cov), Python (coverage.py), JVM (static only)`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"FUZZLENS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.StringFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Usage:   "Fuzzer language: " + languageNames(),
			},
			&cli.StringFlag{
				Name:  "coverage-dir",
				Usage: "Directory holding runtime coverage reports (default: artifact root)",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable caching",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			setupLogging(cfg.Log.Level, c.Bool("verbose"))
			c.App.Metadata[configKey] = cfg
			return nil
		},
		Commands: []*cli.Command{
			reportCmd(),
			targetsCmd(),
			blockersCmd(),
			calltreeCmd(),
			graphCmd(),
			correlateCmd(),
			watchCmd(),
			cacheCmd(),
		},
	}
}

func languageNames() string {
	langs := profile.Languages()
	names := make([]string, len(langs))
	for i, l := range langs {
		names[i] = l.String()
	}
	return strings.Join(names, ", ")
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads --config when set, otherwise the config found in the
// working directory, and applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrDefault()
	}

	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
	}
	if l := c.String("language"); l != "" {
		cfg.Analysis.Language = l
	}
	if d := c.String("coverage-dir"); d != "" {
		cfg.Coverage.Dir = d
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(level string, verbose bool) {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func getConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}
