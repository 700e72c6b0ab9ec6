package loader

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/panbanda/fuzzlens/internal/fileproc"
	"github.com/panbanda/fuzzlens/pkg/profile"
)

// logTag matches the data file stem compiled into an instrumented binary.
var logTag = regexp.MustCompile(`fuzzerLogFile-[0-9A-Za-z_-]+`)

// ScanExecutables pairs every executable under dir with the data file name
// embedded in it. Executables without a tag are skipped.
func ScanExecutables(ctx context.Context, dir string, workers int) ([]profile.Pairing, error) {
	var exes []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Mode().Perm()&0o111 != 0 {
			exes = append(exes, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	type found struct {
		pairing profile.Pairing
		ok      bool
	}
	results, errs := fileproc.Map(ctx, exes, workers, func(_ context.Context, path string) (found, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return found{}, err
		}
		tag := logTag.Find(data)
		if tag == nil {
			return found{}, nil
		}
		return found{pairing: profile.Pairing{ExecutablePath: path, FuzzerLogFile: string(tag)}, ok: true}, nil
	}, nil)
	if errs != nil {
		for _, e := range errs.Errors {
			slog.Warn("skipping executable", "path", e.Path, "error", e.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairings := make([]profile.Pairing, 0, len(results))
	for _, r := range results {
		if r.ok {
			pairings = append(pairings, r.pairing)
		}
	}
	return pairings, nil
}
