package utils

import (
	"sync"
	"time"
)

// Phase is one timed step of a weaving run.
type Phase struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	start    time.Time
	done     bool
}

// PhaseTimer stops a phase started by Timer.Start; use it with defer.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop records the phase duration. Only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.stop(pt.name)
}

// Timer records named phases in start order and logs a summary.
type Timer struct {
	mu      sync.Mutex
	name    string
	start   time.Time
	phases  []*Phase
	logger  Logger
	clock   Clock
	enabled bool
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithLogger sets the logger PrintSummary writes to.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		t.logger = logger
	}
}

// WithEnabled toggles the timer; a disabled timer records nothing.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) {
		t.enabled = enabled
	}
}

// WithClock sets a custom clock.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		enabled: true,
		clock:   NewRealClock(),
		logger:  &NullLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

// Start begins a phase.
func (t *Timer) Start(name string) *PhaseTimer {
	pt := &PhaseTimer{timer: t, name: name}
	if !t.enabled {
		return pt
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, &Phase{Name: name, start: t.clock.Now()})
	return pt
}

func (t *Timer) stop(name string) time.Duration {
	if !t.enabled {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.phases) - 1; i >= 0; i-- {
		p := t.phases[i]
		if p.Name != name {
			continue
		}
		if !p.done {
			p.Duration = t.clock.Since(p.start)
			p.done = true
		}
		return p.Duration
	}
	return 0
}

// TimeFuncWithError times fn as a phase.
func (t *Timer) TimeFuncWithError(name string, fn func() error) (time.Duration, error) {
	pt := t.Start(name)
	err := fn()
	return pt.Stop(), err
}

// Phases returns copies of the recorded phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Phase, 0, len(t.phases))
	for _, p := range t.phases {
		out = append(out, Phase{Name: p.Name, Duration: p.Duration})
	}
	return out
}

// Total returns the time elapsed since the timer was created.
func (t *Timer) Total() time.Duration {
	return t.clock.Since(t.start)
}

// PrintSummary logs one line per phase at info level.
func (t *Timer) PrintSummary() {
	if !t.enabled {
		return
	}
	for i, p := range t.Phases() {
		t.logger.Info("%s phase %d - %s: %v", t.name, i+1, p.Name, p.Duration)
	}
	t.logger.Info("%s total: %v", t.name, t.Total())
}
