package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/fuzzlens/internal/cache"
	"github.com/panbanda/fuzzlens/internal/output"
	"github.com/panbanda/fuzzlens/internal/report"
	"github.com/panbanda/fuzzlens/internal/vcs"
	"github.com/panbanda/fuzzlens/pkg/analyzer/callgraph"
	"github.com/panbanda/fuzzlens/pkg/analyzer/engineinput"
	"github.com/panbanda/fuzzlens/pkg/analyzer/runtimecov"
	"github.com/panbanda/fuzzlens/pkg/analyzer/targets"
	"github.com/panbanda/fuzzlens/pkg/calltree"
	"github.com/panbanda/fuzzlens/pkg/config"
	"github.com/panbanda/fuzzlens/pkg/loader"
	"github.com/panbanda/fuzzlens/pkg/profile"
	"github.com/panbanda/fuzzlens/pkg/watch"
	"github.com/urfave/cli/v2"
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Aliases:   []string{"r"},
		Usage:     "Analyze all fuzzers and write the project summary",
		ArgsUsage: "[artifact-dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "summary",
				Usage: "Write summary.json to this path (default: output.summary from config)",
			},
			&cli.StringFlag{
				Name:  "dict-dir",
				Usage: "Write a libFuzzer dictionary per fuzzer into this directory",
			},
			&cli.BoolFlag{
				Name:  "no-targets",
				Usage: "Skip optimal target selection",
			},
		},
		Action: runReportCmd,
	}
}

func buildSummary(proj *loader.Project, cfg *config.Config, root string, withTargets bool) *report.Summary {
	lang, _ := profile.ParseLanguage(cfg.Analysis.Language)
	rev, err := vcs.Head(root)
	if err != nil {
		slog.Debug("no source revision", "path", root, "error", err)
	}
	opts := report.Options{
		Root:         root,
		Language:     lang,
		Version:      version,
		Revision:     rev,
		BlockerLimit: cfg.Analysis.BlockerLimit,
		LowCoverage: runtimecov.New(
			runtimecov.WithMinLines(cfg.Coverage.MinLines),
			runtimecov.WithMaxPercent(cfg.Coverage.MaxPercent),
		),
		EngineInput: engineinput.New(engineinput.WithBlockerLimit(cfg.Analysis.BlockerLimit)),
	}
	if withTargets {
		opts.Targets = newSelector(cfg)
	}
	return report.Build(proj.Merged, opts)
}

func newSelector(cfg *config.Config) *targets.Selector {
	return targets.New(
		targets.WithMaxCount(cfg.Targets.MaxCount),
		targets.WithMinComplexity(cfg.Targets.MinComplexity),
		targets.WithStopComplexity(cfg.Targets.StopComplexity),
	)
}

func runReportCmd(c *cli.Context) error {
	cfg := getConfig(c)
	root, err := getRoot(c)
	if err != nil {
		return err
	}
	proj, err := loadProject(c, cfg)
	if err != nil {
		return err
	}
	summary := buildSummary(proj, cfg, root, !c.Bool("no-targets"))

	summaryPath := c.String("summary")
	if summaryPath == "" {
		summaryPath = cfg.Output.Summary
	}
	if summaryPath != "" {
		if err := report.WriteJSON(summary, summaryPath); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		color.Green("Summary written to %s", summaryPath)
	}

	if dir := c.String("dict-dir"); dir != "" {
		if err := writeDictionaries(dir, summary.EngineInput); err != nil {
			return err
		}
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(summary)
}

func writeDictionaries(dir string, inputs []engineinput.Input) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, in := range inputs {
		if len(in.Dictionary) == 0 {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(in.Fuzzer), filepath.Ext(in.Fuzzer)) + ".dict"
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		err = in.WriteDictionary(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write dictionary %s: %w", name, err)
		}
	}
	return nil
}

func targetsCmd() *cli.Command {
	return &cli.Command{
		Name:      "targets",
		Usage:     "Suggest functions that would make the best new fuzz targets",
		ArgsUsage: "[artifact-dir]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max",
				Usage: "Maximum number of targets (0 = derived from project size)",
			},
			&cli.IntFlag{
				Name:  "min-complexity",
				Value: -1,
				Usage: "Minimum total complexity of a candidate (default from config)",
			},
		},
		Action: runTargetsCmd,
	}
}

func runTargetsCmd(c *cli.Context) error {
	cfg := getConfig(c)
	if c.IsSet("max") {
		cfg.Targets.MaxCount = c.Int("max")
	}
	if n := c.Int("min-complexity"); n >= 0 {
		cfg.Targets.MinComplexity = n
	}
	proj, err := loadProject(c, cfg)
	if err != nil {
		return err
	}
	res := newSelector(cfg).Select(proj.Merged)

	rows := make([][]string, 0, len(res.Targets))
	for _, t := range res.Targets {
		rows = append(rows, []string{
			t.Name,
			truncate(t.SourceFile, 50),
			strconv.Itoa(t.ArgCount),
			strconv.Itoa(t.TotalCyclomaticComplexity),
			strconv.Itoa(t.NewUnreachedComplexity),
		})
	}
	footer := []string{"Reached after", "", "",
		fmt.Sprintf("%.2f%% -> %.2f%%", res.ComplexityBefore.ReachedPercentage, res.ComplexityAfter.ReachedPercentage),
		strconv.Itoa(res.After.ReachedFunctions)}
	table := output.NewTable("Optimal fuzz targets",
		[]string{"Function", "Source file", "Args", "Total complexity", "New complexity"},
		rows, footer, res)

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	if len(res.Targets) == 0 {
		formatter.Warning("No function qualifies as a new fuzz target")
	}
	return formatter.Output(table)
}

func blockersCmd() *cli.Command {
	return &cli.Command{
		Name:      "blockers",
		Usage:     "List the call sites blocking the most uncovered code per fuzzer",
		ArgsUsage: "[artifact-dir]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 10,
				Usage: "Blockers per fuzzer (0 = all)",
			},
		},
		Action: runBlockersCmd,
	}
}

func runBlockersCmd(c *cli.Context) error {
	cfg := getConfig(c)
	proj, err := loadProject(c, cfg)
	if err != nil {
		return err
	}

	type fuzzerBlockers struct {
		Fuzzer   string           `json:"fuzzer" toon:"fuzzer"`
		Blockers []*calltree.Node `json:"blockers" toon:"blockers"`
	}
	var data []fuzzerBlockers
	var rows [][]string
	for _, p := range proj.Merged.Profiles {
		blockers := p.Blockers(c.Int("limit"))
		data = append(data, fuzzerBlockers{Fuzzer: p.Key(), Blockers: blockers})
		for _, n := range blockers {
			rows = append(rows, []string{
				p.Key(),
				n.FunctionName,
				fmt.Sprintf("%s:%d", n.SourceFile, n.LineNumber),
				strconv.Itoa(n.ForwardReds),
				n.LargestBlockedFunc,
			})
		}
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	if len(rows) == 0 {
		formatter.Info("No fuzz blockers found (blockers require runtime coverage)")
	}
	return formatter.Output(output.NewTable("Fuzz blockers",
		[]string{"Fuzzer", "Callsite", "Location", "Blocked complexity", "Largest blocked function"},
		rows, nil, data))
}

func calltreeCmd() *cli.Command {
	return &cli.Command{
		Name:      "calltree",
		Aliases:   []string{"ct"},
		Usage:     "Show a fuzzer's call tree with runtime coverage",
		ArgsUsage: "[artifact-dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "fuzzer",
				Usage:    "Fuzzer key, source file or data file name",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "max-depth",
				Value: -1,
				Usage: "Hide call sites deeper than this (-1 = unlimited)",
			},
		},
		Action: runCalltreeCmd,
	}
}

func colorize(col calltree.Color, text string) string {
	switch col {
	case calltree.ColorRed:
		return color.RedString(text)
	case calltree.ColorGold, calltree.ColorYellow:
		return color.YellowString(text)
	case calltree.ColorGreenYellow, calltree.ColorLawnGreen:
		return color.GreenString(text)
	}
	return text
}

func runCalltreeCmd(c *cli.Context) error {
	cfg := getConfig(c)
	proj, err := loadProject(c, cfg)
	if err != nil {
		return err
	}
	name := c.String("fuzzer")
	p, ok := findFuzzer(proj.Merged, name)
	if !ok {
		return fmt.Errorf("no fuzzer named %s", name)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	maxDepth := c.Int("max-depth")
	var rows [][]string
	var nodes []*calltree.Node
	for _, n := range p.CallTree {
		if maxDepth >= 0 && n.Depth > maxDepth {
			continue
		}
		nodes = append(nodes, n)
		label := strings.Repeat("  ", n.Depth) + n.FunctionName
		if formatter.Colored() {
			label = colorize(n.CoverageColor, label)
		}
		rows = append(rows, []string{
			label,
			fmt.Sprintf("%s:%d", n.SourceFile, n.LineNumber),
			strconv.Itoa(n.HitCount),
			strconv.Itoa(n.ForwardReds),
		})
	}

	stats := calltree.ComputeStats(p.CallTree)
	footer := []string{
		fmt.Sprintf("%d call sites", stats.Callsites),
		fmt.Sprintf("max depth %d", stats.MaxDepth),
		fmt.Sprintf("%d hit", stats.HitCallsites), "",
	}
	return formatter.Output(output.NewTable("Call tree of "+p.Key(),
		[]string{"Callsite", "Location", "Hits", "Blocked complexity"},
		rows, footer, nodes))
}

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Usage:     "Rank functions in the project call graph",
		ArgsUsage: "[artifact-dir]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "top",
				Value: 20,
				Usage: "Show the top N functions by PageRank (0 = all)",
			},
			&cli.Float64Flag{
				Name:  "damping",
				Value: 0.85,
				Usage: "PageRank damping factor",
			},
		},
		Action: runGraphCmd,
	}
}

func runGraphCmd(c *cli.Context) error {
	cfg := getConfig(c)
	proj, err := loadProject(c, cfg)
	if err != nil {
		return err
	}
	g := callgraph.Build(proj.Merged)
	metrics := callgraph.New(
		callgraph.WithTop(c.Int("top")),
		callgraph.WithDamping(c.Float64("damping")),
	).Analyze(g)

	rows := make([][]string, 0, len(metrics.NodeMetrics))
	for _, m := range metrics.NodeMetrics {
		reached := "no"
		if m.ReachedByFuzzer {
			reached = "yes"
		}
		rows = append(rows, []string{
			m.Name,
			fmt.Sprintf("%.4f", m.PageRank),
			strconv.Itoa(m.InDegree),
			strconv.Itoa(m.OutDegree),
			strconv.Itoa(m.Complexity),
			reached,
		})
	}
	s := metrics.Summary
	footer := []string{
		fmt.Sprintf("%d nodes", s.TotalNodes),
		fmt.Sprintf("%d edges", s.TotalEdges),
		fmt.Sprintf("%d SCCs", s.StronglyConnectedComponents),
		fmt.Sprintf("%d cycles", s.CycleCount),
		"",
		fmt.Sprintf("%d reached", s.ReachedNodes),
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(output.NewTable("Call graph",
		[]string{"Function", "PageRank", "In", "Out", "Complexity", "Reached"},
		rows, footer, metrics))
}

func correlateCmd() *cli.Command {
	return &cli.Command{
		Name:  "correlate",
		Usage: "Pair fuzzer executables with the data files they were built from",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "binaries-dir",
				Usage:    "Directory holding the fuzzer executables",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Correlation file to write (default: analysis.correlation_file)",
			},
		},
		Action: runCorrelateCmd,
	}
}

func runCorrelateCmd(c *cli.Context) error {
	cfg := getConfig(c)
	pairings, err := loader.ScanExecutables(c.Context, c.String("binaries-dir"), cfg.Analysis.Workers)
	if err != nil {
		return fmt.Errorf("scan executables: %w", err)
	}
	out := c.String("out")
	if out == "" {
		out = cfg.Analysis.CorrelationFile
	}
	if err := loader.WriteCorrelation(out, pairings); err != nil {
		return fmt.Errorf("write correlation file: %w", err)
	}
	color.Green("Correlated %d executable(s), written to %s", len(pairings), out)
	return nil
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch the artifact directory and re-run the report on change",
		ArgsUsage: "[artifact-dir]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: 500 * time.Millisecond,
				Usage: "Quiet period before re-running",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	cfg := getConfig(c)
	root, err := getRoot(c)
	if err != nil {
		return err
	}

	w, err := watch.NewWatcher(root, cfg, c.Duration("debounce"), nil)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.SetCallback(func([]string) {
		opts, err := loaderOptions(cfg, root, false)
		if err != nil {
			color.Red("Error: %v", err)
			return
		}
		proj, err := loader.LoadProject(ctx, root, opts...)
		if err != nil {
			color.Red("Error: %v", err)
			return
		}
		fs := proj.Merged.FunctionSummaries()
		cs := proj.Merged.ComplexitySummaries()
		fmt.Printf("%d fuzzers reach %d/%d functions (%.2f%%) and %.2f%% of complexity\n",
			len(proj.Merged.Profiles), fs.ReachedFunctions, fs.TotalFunctions,
			fs.ReachedPercentage, cs.ReachedPercentage)
		if cfg.Output.Summary != "" {
			summary := buildSummary(proj, cfg, root, false)
			if err := report.WriteJSON(summary, cfg.Output.Summary); err != nil {
				color.Red("Error: %v", err)
			}
		}
	})

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:      "cache",
		Usage:     "Inspect or clear the function list cache",
		ArgsUsage: "[artifact-dir]",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Remove expired entries and show cache statistics",
				Action: runCacheStatsCmd,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cache entry",
				Action: runCacheClearCmd,
			},
		},
	}
}

func openCache(c *cli.Context) (*cache.Cache, error) {
	cfg := getConfig(c)
	root, err := getRoot(c)
	if err != nil {
		return nil, err
	}
	dir := cfg.Cache.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return cache.New(dir, cfg.Cache.TTLDuration(), cfg.Cache.Enabled)
}

func runCacheStatsCmd(c *cli.Context) error {
	ch, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := ch.Sweep()
	if err != nil {
		return err
	}
	formatter, err := newFormatter(c, getConfig(c))
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(output.NewTable("Cache",
		[]string{"Entries", "Expired", "Size", "Oldest"},
		[][]string{{
			strconv.Itoa(stats.Entries),
			strconv.Itoa(stats.Expired),
			fmt.Sprintf("%d B", stats.TotalSize),
			stats.OldestAge.Round(time.Second).String(),
		}}, nil, stats))
}

func runCacheClearCmd(c *cli.Context) error {
	ch, err := openCache(c)
	if err != nil {
		return err
	}
	if err := ch.Clear(); err != nil {
		return err
	}
	color.Green("Cache cleared")
	return nil
}
