package observability

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/traffic-simulator/core"
)

// SimCollector bundles Prometheus metrics for the simulation engine. It
// satisfies core.MetricsRecorder so a World can drive it directly.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TicksTotal        prometheus.Counter
	TickDuration      prometheus.Histogram
	LaneChangesTotal  *prometheus.CounterVec
	CollisionsTotal   prometheus.Counter
	BarrierStopsTotal prometheus.Counter
	ClosureBraking    prometheus.Counter
	AgentsPerLane     *prometheus.GaugeVec

	RunsTotal       prometheus.Counter
	AverageSpeedMPH prometheus.Gauge
	MaxDistanceFt   prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Total number of simulation ticks executed.",
	}), "sim_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall-clock time spent sweeping all lanes for one tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	laneChanges, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_lane_changes_total",
		Help: "Committed lane changes, labeled by whether the closure forced them.",
	}, []string{"forced"}), "sim_lane_changes_total")
	if err != nil {
		return nil, err
	}

	collisions, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_collisions_resolved_total",
		Help: "Moves clamped by the collision resolver to prevent overlap.",
	}), "sim_collisions_resolved_total")
	if err != nil {
		return nil, err
	}

	barrier, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_closure_barrier_stops_total",
		Help: "Moves clamped at the lane closure point.",
	}), "sim_closure_barrier_stops_total")
	if err != nil {
		return nil, err
	}

	braking, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_closure_braking_total",
		Help: "Agent updates that braked because the merge lane was blocked.",
	}), "sim_closure_braking_total")
	if err != nil {
		return nil, err
	}

	perLane, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_agents_per_lane",
		Help: "Current number of agents in each lane.",
	}, []string{"lane"}), "sim_agents_per_lane")
	if err != nil {
		return nil, err
	}

	runs, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_runs_total",
		Help: "Completed simulation runs.",
	}), "sim_runs_total")
	if err != nil {
		return nil, err
	}

	avgSpeed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_average_speed_mph",
		Help: "Mean agent speed at the end of the last run.",
	}), "sim_average_speed_mph")
	if err != nil {
		return nil, err
	}

	maxDistance, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_max_distance_feet",
		Help: "Furthest agent position at the end of the last run.",
	}), "sim_max_distance_feet")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		TicksTotal:        ticks,
		TickDuration:      tickDuration,
		LaneChangesTotal:  laneChanges,
		CollisionsTotal:   collisions,
		BarrierStopsTotal: barrier,
		ClosureBraking:    braking,
		AgentsPerLane:     perLane,
		RunsTotal:         runs,
		AverageSpeedMPH:   avgSpeed,
		MaxDistanceFt:     maxDistance,
	}, nil
}

// ObserveTick records one tick. Implements core.MetricsRecorder.
func (c *SimCollector) ObserveTick(report core.TickReport, agentsPerLane []int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.TicksTotal.Inc()
	c.TickDuration.Observe(elapsed.Seconds())

	forced := report.ForcedMerges()
	if n := len(report.LaneChanges) - forced; n > 0 {
		c.LaneChangesTotal.WithLabelValues("false").Add(float64(n))
	}
	if forced > 0 {
		c.LaneChangesTotal.WithLabelValues("true").Add(float64(forced))
	}
	c.CollisionsTotal.Add(float64(report.Collisions))
	c.BarrierStopsTotal.Add(float64(report.BarrierStops))
	c.ClosureBraking.Add(float64(report.Braking))

	for i, n := range agentsPerLane {
		c.AgentsPerLane.WithLabelValues(strconv.Itoa(i + 1)).Set(float64(n))
	}
}

// ObserveRun records the end-of-run figures. Implements core.MetricsRecorder.
// NaN averages from an empty world are left out.
func (c *SimCollector) ObserveRun(summary core.RunSummary) {
	if c == nil {
		return
	}
	c.RunsTotal.Inc()
	if !math.IsNaN(summary.AverageSpeed) {
		c.AverageSpeedMPH.Set(summary.AverageSpeed)
	}
	if !math.IsNaN(summary.MaxDistance) {
		c.MaxDistanceFt.Set(summary.MaxDistance)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
