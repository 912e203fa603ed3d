package timectrl

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidTicks indicates a controller configured with no ticks to run.
var ErrInvalidTicks = errors.New("tick count must be at least 1")

// SimClock gives read access to simulation time so listeners and renderers
// can depend on a clock abstraction rather than the concrete controller.
type SimClock interface {
	// Now returns the simulated time of the current tick, in seconds.
	Now() float64
	// Tick returns the index of the current tick, or -1 before the first.
	Tick() int
}

// Mode describes how the TickController paces ticks.
type Mode int

const (
	// Accelerated runs ticks back to back as fast as the loop allows.
	Accelerated Mode = iota
	// RealTime waits Pace of wall-clock time between ticks.
	RealTime
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Accelerated:
		return "accelerated"
	case RealTime:
		return "realtime"
	default:
		return "unknown"
	}
}

// Tick identifies one step of a run.
type Tick struct {
	Index   int
	SimTime float64 // seconds, Index*Dt
}

// TickController drives a fixed number of ticks and notifies registered
// listeners, in registration order, on every tick. There is no early
// termination: a run always executes all Ticks.
type TickController struct {
	mu    sync.RWMutex
	Dt    float64 // seconds per tick
	Ticks int
	Mode  Mode
	// Pace is the wall-clock delay between ticks in RealTime mode.
	Pace time.Duration

	current int

	listeners []func(Tick)
}

// NewTickController constructs a controller for ticks steps of dt seconds.
// RealTime pacing defaults to one wall-clock dt per tick.
func NewTickController(dt float64, ticks int, mode Mode) (*TickController, error) {
	if ticks < 1 {
		return nil, ErrInvalidTicks
	}
	return &TickController{
		Dt:      dt,
		Ticks:   ticks,
		Mode:    mode,
		Pace:    time.Duration(dt * float64(time.Second)),
		current: -1,
	}, nil
}

// Now returns the simulated time of the current tick. Implements SimClock.
func (tc *TickController) Now() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.current < 0 {
		return 0
	}
	return float64(tc.current) * tc.Dt
}

// Tick returns the current tick index. Implements SimClock.
func (tc *TickController) Tick() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.current
}

// AddListener registers a callback invoked on every tick.
func (tc *TickController) AddListener(fn func(Tick)) {
	tc.listeners = append(tc.listeners, fn)
}

// Run executes every tick on the calling goroutine and returns when done.
func (tc *TickController) Run() {
	var ticker *time.Ticker
	if tc.Mode == RealTime && tc.Pace > 0 {
		ticker = time.NewTicker(tc.Pace)
		defer ticker.Stop()
	}

	for i := 0; i < tc.Ticks; i++ {
		if ticker != nil && i > 0 {
			<-ticker.C
		}

		tc.mu.Lock()
		tc.current = i
		tc.mu.Unlock()

		t := Tick{Index: i, SimTime: float64(i) * tc.Dt}
		for _, fn := range tc.listeners {
			fn(t)
		}
	}
}

// Start runs the controller in a separate goroutine. The ticks themselves
// still execute sequentially on that goroutine. The returned channel is
// closed when the last tick has been delivered.
func (tc *TickController) Start() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		tc.Run()
	}()
	return done
}
