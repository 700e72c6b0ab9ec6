package loader

import (
	"context"
	"log/slog"

	"github.com/panbanda/fuzzlens/pkg/profile"
)

// Project is a loaded, merged and coverage-overlaid set of fuzzers.
type Project struct {
	Merged     *profile.MergedProjectProfile
	Basefolder string
	Result     *Result
}

// LoadProject loads every fuzzer under root, merges them and overlays
// runtime coverage on each call tree. Overlay failures are logged.
func LoadProject(ctx context.Context, root string, opts ...Option) (*Project, error) {
	o := buildOptions(opts)
	res, err := LoadAll(ctx, root, opts...)
	if err != nil {
		return nil, err
	}

	mp, err := profile.NewMergedProjectProfile(res.Profiles,
		profile.WithInternalSubstrings(o.cfg.Analysis.InternalSubstrings))
	if err != nil {
		return nil, err
	}

	for _, p := range mp.Profiles {
		if err := p.OverlayCoverage(mp.TotalComplexityOf); err != nil {
			slog.Warn("coverage overlay failed", "fuzzer", p.Key(), "error", err)
		}
	}
	base := mp.RefinePaths()
	return &Project{Merged: mp, Basefolder: base, Result: res}, nil
}
