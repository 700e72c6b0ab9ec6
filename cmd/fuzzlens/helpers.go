package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/panbanda/fuzzlens/internal/cache"
	"github.com/panbanda/fuzzlens/internal/output"
	"github.com/panbanda/fuzzlens/pkg/config"
	"github.com/panbanda/fuzzlens/pkg/loader"
	"github.com/panbanda/fuzzlens/pkg/profile"
	"github.com/urfave/cli/v2"
)

// getRoot returns the artifact directory from the first positional
// argument, defaulting to ".".
func getRoot(c *cli.Context) (string, error) {
	root := "."
	if c.Args().Len() > 0 {
		root = c.Args().First()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", root, err)
	}
	return abs, nil
}

// loaderOptions translates cfg into loader options for artifacts under root.
func loaderOptions(cfg *config.Config, root string, showProgress bool) ([]loader.Option, error) {
	lang, err := profile.ParseLanguage(cfg.Analysis.Language)
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.Cache.Dir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(root, cacheDir)
	}
	c, err := cache.New(cacheDir, cfg.Cache.TTLDuration(), cfg.Cache.Enabled)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	covDir := cfg.Coverage.Dir
	if covDir == "" {
		covDir = root
	}

	return []loader.Option{
		loader.WithConfig(cfg),
		loader.WithLanguage(lang),
		loader.WithCache(c),
		loader.WithCoverage(loader.NewCoverageDir(covDir)),
		loader.WithProgress(showProgress),
	}, nil
}

func loadProject(c *cli.Context, cfg *config.Config) (*loader.Project, error) {
	root, err := getRoot(c)
	if err != nil {
		return nil, err
	}
	opts, err := loaderOptions(cfg, root, isTerminal())
	if err != nil {
		return nil, err
	}
	proj, err := loader.LoadProject(c.Context, root, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", root, err)
	}
	return proj, nil
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	colored := cfg.Output.Color && isTerminal()
	return output.NewFormatter(output.ParseFormat(cfg.Output.Format), c.String("output"), colored)
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// findFuzzer returns the profile whose key, source file, target name or
// data file base name equals name.
func findFuzzer(mp *profile.MergedProjectProfile, name string) (*profile.FuzzerProfile, bool) {
	for _, p := range mp.Profiles {
		if p.Key() == name || p.SourceFile == name || p.TargetName() == name ||
			filepath.Base(p.DataFile) == name ||
			strings.TrimSuffix(filepath.Base(p.DataFile), ".data") == name {
			return p, true
		}
	}
	return nil, false
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
