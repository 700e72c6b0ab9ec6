package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestTrackerConcurrentTicks(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Loading fuzzers", 50, WithWriter(&buf))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Tick()
		}()
	}
	wg.Wait()
	tracker.FinishSuccess()

	if got := tracker.bar.State().CurrentNum; got != 50 {
		t.Errorf("CurrentNum = %d, want 50", got)
	}
}

func TestTrackerFinishMessages(t *testing.T) {
	tests := []struct {
		name   string
		finish func(*Tracker)
		want   string
	}{
		{"skipped", func(tr *Tracker) { tr.FinishSkipped("2 fuzzer(s) dropped") }, "Loading fuzzers: 2 fuzzer(s) dropped\n"},
		{"error", func(tr *Tracker) { tr.FinishError(errors.New("boom")) }, "Loading fuzzers error: boom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracker := NewTracker("Loading fuzzers", 1, WithWriter(&buf))
			tt.finish(tracker)
			if !strings.HasSuffix(buf.String(), tt.want) {
				t.Errorf("output = %q, want suffix %q", buf.String(), tt.want)
			}
		})
	}
}

func TestSpinner(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Scanning artifacts", WithWriter(&buf))
	s.Tick()
	s.FinishSuccess()
	if s.label != "Scanning artifacts" {
		t.Errorf("label = %q", s.label)
	}
}
