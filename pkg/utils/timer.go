package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stage is one timed step of a run.
type Stage struct {
	Name     string
	Duration time.Duration
	done     bool
	start    time.Time
}

// StageTimer records the durations of sequential pipeline stages such as
// metadata loading, resolution and report writing.
type StageTimer struct {
	mu     sync.Mutex
	name   string
	clock  Clock
	start  time.Time
	stages []*Stage
}

// TimerOption configures a StageTimer.
type TimerOption func(*StageTimer)

// WithClock sets the clock used by the timer.
func WithClock(clock Clock) TimerOption {
	return func(t *StageTimer) {
		t.clock = clock
	}
}

// NewStageTimer creates a timer named name.
func NewStageTimer(name string, opts ...TimerOption) *StageTimer {
	t := &StageTimer{name: name, clock: RealClock{}}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

// Start begins a stage. The returned function stops it; calling it more than
// once has no further effect.
func (t *StageTimer) Start(name string) func() time.Duration {
	t.mu.Lock()
	stage := &Stage{Name: name, start: t.clock.Now()}
	t.stages = append(t.stages, stage)
	t.mu.Unlock()

	return func() time.Duration {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !stage.done {
			stage.Duration = t.clock.Since(stage.start)
			stage.done = true
		}
		return stage.Duration
	}
}

// Time runs fn as the stage name.
func (t *StageTimer) Time(name string, fn func() error) error {
	stop := t.Start(name)
	defer stop()
	return fn()
}

// Stages returns copies of the recorded stages in start order.
func (t *StageTimer) Stages() []Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Stage, 0, len(t.stages))
	for _, s := range t.stages {
		out = append(out, Stage{Name: s.Name, Duration: s.Duration, done: s.done})
	}
	return out
}

// Total returns the time elapsed since the timer was created.
func (t *StageTimer) Total() time.Duration {
	return t.clock.Since(t.start)
}

// Summary renders one line per stage followed by the total.
func (t *StageTimer) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s timing ===\n", t.name)
	for i, s := range t.Stages() {
		fmt.Fprintf(&sb, "%d. %s: %v\n", i+1, s.Name, s.Duration)
	}
	fmt.Fprintf(&sb, "Total: %v\n", t.Total())
	return sb.String()
}

// Log writes the summary through logger at info level.
func (t *StageTimer) Log(logger Logger) {
	if logger == nil {
		return
	}
	for _, line := range strings.Split(strings.TrimSpace(t.Summary()), "\n") {
		logger.Info("%s", line)
	}
}
