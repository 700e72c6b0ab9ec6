// Package progress draws progress bars for artifact loading on stderr.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for fuzzer artifact processing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
}

type settings struct {
	out io.Writer
}

// Option configures a Tracker.
type Option func(*settings)

// WithWriter draws the bar on w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.out = w
	}
}

func apply(opts []Option) settings {
	s := settings{out: os.Stderr}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewSpinner creates a spinner for a step with an unknown item count, such
// as directory discovery.
func NewSpinner(label string, opts ...Option) *Tracker {
	s := apply(opts)
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, out: s.out}
}

// NewTracker creates a bar counting total fuzzers.
func NewTracker(label string, total int, opts ...Option) *Tracker {
	s := apply(opts)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: s.out}
}

// Tick advances the bar by one. Safe for concurrent use.
func (t *Tracker) Tick() {
	_ = t.bar.Add(1)
}

// FinishSuccess clears the bar without printing anything.
func (t *Tracker) FinishSuccess() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// FinishSkipped clears the bar and prints why part of the work was skipped.
func (t *Tracker) FinishSkipped(reason string) {
	t.FinishSuccess()
	fmt.Fprintf(t.out, "  %s: %s\n", t.label, reason)
}

// FinishError clears the bar and prints err.
func (t *Tracker) FinishError(err error) {
	t.FinishSuccess()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}
