package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/traffic-simulator/internal/logging"
	"github.com/signalsfoundry/traffic-simulator/model"
	"github.com/signalsfoundry/traffic-simulator/timectrl"
)

const tracerName = "github.com/signalsfoundry/traffic-simulator/core"

var (
	// ErrInvalidAgent indicates an agent whose state or parameters are out of range.
	ErrInvalidAgent = errors.New("invalid agent")
	// ErrOverlappingAgents indicates two agents placed on top of each other in one lane.
	ErrOverlappingAgents = errors.New("agents overlap in lane")
	// ErrAgentPastClosure indicates an agent placed in the closing lane beyond the closure.
	ErrAgentPastClosure = errors.New("agent placed past the lane closure")
	// ErrAgentIndex indicates an agent index outside the world's collection.
	ErrAgentIndex = errors.New("agent index out of range")
)

// MetricsRecorder receives per-tick and per-run figures. It is satisfied by
// observability.SimCollector.
type MetricsRecorder interface {
	ObserveTick(report TickReport, agentsPerLane []int, elapsed time.Duration)
	ObserveRun(summary RunSummary)
}

// TickListener is invoked after every tick with a read-only copy of the agents.
type TickListener func(tick timectrl.Tick, agents []model.Agent)

// RunSummary aggregates a completed run.
type RunSummary struct {
	Ticks           int
	SimTime         float64 // seconds
	LaneChanges     int
	ForcedMerges    int
	Collisions      int
	BarrierStops    int
	AverageSpeed    float64
	AverageDistance float64
	MaxDistance     float64
	AgentsPerLane   []int
	Elapsed         time.Duration
}

// World owns the agent collection and the road configuration for one run.
// Agents handed to NewWorld belong to the world until the run is over.
type World struct {
	cfg    model.RoadConfig
	agents []*model.Agent

	log       logging.Logger
	metrics   MetricsRecorder
	listeners []TickListener
	mode      timectrl.Mode
	pace      time.Duration

	clock  *timectrl.TickController
	active *activeRun

	ticksRun int
}

// activeRun carries the scope of the Run in progress to the clock listener.
type activeRun struct {
	ctx     context.Context
	log     logging.Logger
	summary *RunSummary
}

// WorldOption customises World construction.
type WorldOption func(*World)

// WithLogger attaches a structured logger. Without one the world logs to
// the logger carried by the run context, if any.
func WithLogger(l logging.Logger) WorldOption {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) WorldOption {
	return func(w *World) {
		w.metrics = m
	}
}

// WithTickListener registers a listener called after every tick, e.g. a
// renderer. Listeners never mutate the world.
func WithTickListener(fn TickListener) WorldOption {
	return func(w *World) {
		if fn != nil {
			w.listeners = append(w.listeners, fn)
		}
	}
}

// WithMode selects how ticks are paced. pace is only used in RealTime mode;
// zero keeps one wall-clock dt per tick.
func WithMode(mode timectrl.Mode, pace time.Duration) WorldOption {
	return func(w *World) {
		w.mode = mode
		w.pace = pace
	}
}

// NewWorld validates cfg and agents and returns a world ready to run. cfg
// is used as given: start from model.DefaultRoadConfig or call WithDefaults
// to fill unset tunables. Once validation passes, agent IDs are reassigned
// to their index; a rejected world leaves the caller's agents untouched.
func NewWorld(cfg model.RoadConfig, agents []*model.Agent, opts ...WorldOption) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("road config: %w", err)
	}
	for i, a := range agents {
		if err := validateAgent(a, cfg); err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
	}
	if err := checkPlacement(agents, cfg); err != nil {
		return nil, err
	}

	owned := make([]*model.Agent, len(agents))
	for i, a := range agents {
		a.ID = i
		owned[i] = a
	}

	w := &World{
		cfg:    cfg,
		agents: owned,
		mode:   timectrl.Accelerated,
	}
	for _, opt := range opts {
		opt(w)
	}

	clock, err := timectrl.NewTickController(cfg.Dt, cfg.Ticks(), w.mode)
	if err != nil {
		return nil, fmt.Errorf("tick controller: %w", err)
	}
	if w.pace > 0 {
		clock.Pace = w.pace
	}
	clock.AddListener(w.onTick)
	w.clock = clock
	return w, nil
}

func validateAgent(a *model.Agent, cfg model.RoadConfig) error {
	switch {
	case a == nil:
		return fmt.Errorf("%w: nil agent", ErrInvalidAgent)
	case !cfg.ValidLane(a.Lane):
		return fmt.Errorf("%w: lane %d outside [1, %d]", ErrInvalidAgent, a.Lane, cfg.NumLanes)
	case a.LengthFt <= 0:
		return fmt.Errorf("%w: length %v", ErrInvalidAgent, a.LengthFt)
	case a.MaxSpeed < 0 || a.MaxAccel < 0 || a.DesiredGap < 0:
		return fmt.Errorf("%w: negative parameter", ErrInvalidAgent)
	case a.Speed < 0 || a.Speed > a.MaxSpeed:
		return fmt.Errorf("%w: speed %v outside [0, %v]", ErrInvalidAgent, a.Speed, a.MaxSpeed)
	}
	return nil
}

// checkPlacement rejects overlapping starts and closing-lane agents that are
// already past the closure. Agents are named by their index in agents.
func checkPlacement(agents []*model.Agent, cfg model.RoadConfig) error {
	for lane := 1; lane <= cfg.NumLanes; lane++ {
		var idx []int
		for i, a := range agents {
			if a.Lane == lane {
				idx = append(idx, i)
			}
		}
		slices.SortFunc(idx, func(i, j int) int { return cmp.Compare(agents[i].Position, agents[j].Position) })
		for k := 1; k < len(idx); k++ {
			prev, cur := agents[idx[k-1]], agents[idx[k]]
			if prev.Extent().Overlaps(cur.Extent()) {
				return fmt.Errorf("%w %d: agents %d and %d", ErrOverlappingAgents, lane, idx[k-1], idx[k])
			}
		}
		if cfg.ClosureActive() && lane == cfg.ClosingLane() {
			for _, i := range idx {
				if a := agents[i]; a.Front() > cfg.LaneClosureAt {
					return fmt.Errorf("%w: agent %d front at %.1f ft, closure at %.1f ft", ErrAgentPastClosure, i, a.Front(), cfg.LaneClosureAt)
				}
			}
		}
	}
	return nil
}

// Config returns the world's road configuration.
func (w *World) Config() model.RoadConfig { return w.cfg }

// Len returns the number of agents.
func (w *World) Len() int { return len(w.agents) }

// TicksRun returns how many ticks have been executed so far.
func (w *World) TicksRun() int { return w.ticksRun }

// Run executes exactly cfg.Ticks() ticks and returns the run summary. The
// ticks are driven by the world's clock on its own goroutine; Run blocks
// until the last one. ctx carries logging and tracing scope only; the run
// length is fixed up front. Run must not be called concurrently.
func (w *World) Run(ctx context.Context) (RunSummary, error) {
	ctx, log := logging.WithRunLogger(ctx, w.logger(ctx))

	ticks := w.cfg.Ticks()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "World.Run", trace.WithAttributes(
		attribute.Int("sim.lanes", w.cfg.NumLanes),
		attribute.Int("sim.agents", len(w.agents)),
		attribute.Int("sim.ticks", ticks),
		attribute.Float64("sim.dt", w.cfg.Dt),
		attribute.Float64("sim.lane_closure_at", w.cfg.LaneClosureAt),
	))
	defer span.End()

	log.Info(ctx, "simulation starting",
		logging.Int("lanes", w.cfg.NumLanes),
		logging.Int("agents", len(w.agents)),
		logging.Int("ticks", ticks),
		logging.Float("dt", w.cfg.Dt),
		logging.Float("lane_closure_at", w.cfg.LaneClosureAt),
		logging.String("mode", w.mode.String()),
	)

	summary := RunSummary{Ticks: ticks}
	start := time.Now()
	w.active = &activeRun{ctx: ctx, log: log, summary: &summary}
	<-w.clock.Start()
	w.active = nil

	summary.Elapsed = time.Since(start)
	summary.SimTime = float64(ticks) * w.cfg.Dt
	summary.AverageSpeed = w.AverageSpeed()
	summary.AverageDistance = w.AverageDistance()
	summary.MaxDistance = w.MaxDistance()
	summary.AgentsPerLane = w.AgentsPerLane()

	if w.metrics != nil {
		w.metrics.ObserveRun(summary)
	}
	span.SetAttributes(
		attribute.Int("sim.lane_changes", summary.LaneChanges),
		attribute.Int("sim.collisions", summary.Collisions),
	)
	log.Info(ctx, "simulation complete",
		logging.Int("ticks", summary.Ticks),
		logging.Int("lane_changes", summary.LaneChanges),
		logging.Int("forced_merges", summary.ForcedMerges),
		logging.Int("collisions", summary.Collisions),
		logging.Float("average_speed_mph", summary.AverageSpeed),
		logging.Float("max_distance_ft", summary.MaxDistance),
		logging.String("elapsed", summary.Elapsed.String()),
	)
	return summary, nil
}

// Clock exposes the simulated time of the tick being delivered by Run.
func (w *World) Clock() timectrl.SimClock { return w.clock }

// onTick is the clock listener driving Run.
func (w *World) onTick(t timectrl.Tick) {
	r := w.active
	report := w.step(r.ctx, r.log, t)
	r.summary.LaneChanges += len(report.LaneChanges)
	r.summary.ForcedMerges += report.ForcedMerges()
	r.summary.Collisions += report.Collisions
	r.summary.BarrierStops += report.BarrierStops
}

// Step executes a single tick outside of Run.
func (w *World) Step(ctx context.Context) TickReport {
	return w.step(ctx, w.logger(ctx), timectrl.Tick{Index: w.ticksRun, SimTime: float64(w.ticksRun) * w.cfg.Dt})
}

func (w *World) logger(ctx context.Context) logging.Logger {
	if w.log != nil {
		return w.log
	}
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return logging.Noop()
}

func (w *World) step(ctx context.Context, log logging.Logger, t timectrl.Tick) TickReport {
	start := time.Now()
	report := Tick(w.agents, w.cfg)
	w.ticksRun++

	for _, lc := range report.LaneChanges {
		log.Debug(ctx, "lane change",
			logging.Int("tick", t.Index),
			logging.Int("agent", lc.AgentID),
			logging.Int("from", lc.From),
			logging.Int("to", lc.To),
			logging.Any("forced", lc.Forced),
		)
	}
	if report.Collisions > 0 {
		log.Debug(ctx, "collisions resolved",
			logging.Int("tick", t.Index),
			logging.Int("count", report.Collisions),
		)
	}

	if w.metrics != nil {
		w.metrics.ObserveTick(report, w.AgentsPerLane(), time.Since(start))
	}
	if len(w.listeners) > 0 {
		snap := w.Snapshot()
		for _, fn := range w.listeners {
			fn(t, snap)
		}
	}
	return report
}
