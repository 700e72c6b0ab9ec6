// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// Map processes files in parallel with at most maxWorkers goroutines
// (2x NumCPU when maxWorkers <= 0). Results keep the order of files; files
// that fail are omitted from the results and reported in the returned
// errors, which is nil when every file succeeded. Files not yet started
// when ctx is cancelled fail with the context error.
func Map[T any](ctx context.Context, files []string, maxWorkers int, fn func(context.Context, string) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	slots := make([]T, len(files))
	ok := make([]bool, len(files))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			if onProgress != nil {
				defer onProgress()
			}
			select {
			case <-ctx.Done():
				errs.Add(path, ctx.Err())
				return nil
			default:
			}

			result, err := fn(ctx, path)
			if err != nil {
				errs.Add(path, err)
				return nil // individual failures never stop the pool
			}
			slots[i] = result
			ok[i] = true
			return nil
		})
	}
	_ = p.Wait()

	results := make([]T, 0, len(files))
	for i := range slots {
		if ok[i] {
			results = append(results, slots[i])
		}
	}
	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
