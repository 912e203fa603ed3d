package model

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidLanes indicates a road with fewer than one lane.
	ErrInvalidLanes = errors.New("number of lanes must be at least 1")
	// ErrInvalidTimeStep indicates a non-positive or non-finite dt.
	ErrInvalidTimeStep = errors.New("time step must be a positive finite number of seconds")
	// ErrInvalidDuration indicates a negative or non-finite simulated duration.
	ErrInvalidDuration = errors.New("simulation duration must be a non-negative finite number of seconds")
	// ErrClosureNeedsTwoLanes indicates a lane closure on a single-lane road,
	// which would leave no lane to merge into.
	ErrClosureNeedsTwoLanes = errors.New("lane closure requires at least two lanes")
	// ErrInvalidTunable indicates a negative tuning parameter.
	ErrInvalidTunable = errors.New("invalid tuning parameter")
)

// RoadConfig is the immutable per-run configuration threaded through every
// component of the update engine. Agents never hold a reference to it.
type RoadConfig struct {
	NumLanes    int
	Dt          float64 // seconds per tick
	SimDuration float64 // seconds
	// LaneClosureAt is the position (ft) where the outermost lane ends.
	// A non-positive value disables the closure.
	LaneClosureAt float64

	// CollisionPenaltyPerSec is the speed (mph) shed per second of dt when
	// the collision resolver has to clamp a move.
	CollisionPenaltyPerSec float64
	// CollisionClearanceFt is the space left behind the obstacle when clamping.
	CollisionClearanceFt float64
	// LaneChangeGapMargin and LaneChangeSpeedMargin are the slack a target
	// lane's leader must beat the current leader by before a discretionary
	// lane change pays off. Zero means a strict comparison.
	LaneChangeGapMargin   float64 // ft
	LaneChangeSpeedMargin float64 // mph
	// LaneChangeLookaheadFactor scales DesiredGap into the front-car distance
	// beyond which lane changes are evaluated.
	LaneChangeLookaheadFactor float64

	ForcedMergeEvalFt     float64 // closing-lane agents evaluate merges inside this distance
	ForcedMergeRequiredFt float64 // closing-lane agents merge regardless of benefit inside this distance
	ClosureBrakingFt      float64 // blocked closing-lane agents brake inside this distance
	ClosureHardStopFt     float64 // unmerged closing-lane agents stop inside this distance
}

// Tunable defaults.
const (
	DefaultCollisionPenaltyPerSec    = 10.0
	DefaultCollisionClearanceFt      = 1.0
	DefaultLaneChangeLookaheadFactor = 2.5
	DefaultForcedMergeEvalFt         = 600.0
	DefaultForcedMergeRequiredFt     = 500.0
	DefaultClosureBrakingFt          = 700.0
	DefaultClosureHardStopFt         = 30.0
)

// MaxTicks bounds the number of ticks a single run may execute.
const MaxTicks = math.MaxInt32

// DefaultRoadConfig mirrors the reference constants: two lanes, 20 ms ticks,
// two simulated minutes and no closure.
func DefaultRoadConfig() RoadConfig {
	return RoadConfig{
		NumLanes:    2,
		Dt:          0.02,
		SimDuration: 120,
	}.WithDefaults()
}

// WithDefaults returns a copy with zero-valued tunables replaced by their
// defaults. The lane-change margins default to zero and are left untouched.
func (c RoadConfig) WithDefaults() RoadConfig {
	if c.CollisionPenaltyPerSec == 0 {
		c.CollisionPenaltyPerSec = DefaultCollisionPenaltyPerSec
	}
	if c.CollisionClearanceFt == 0 {
		c.CollisionClearanceFt = DefaultCollisionClearanceFt
	}
	if c.LaneChangeLookaheadFactor == 0 {
		c.LaneChangeLookaheadFactor = DefaultLaneChangeLookaheadFactor
	}
	if c.ForcedMergeEvalFt == 0 {
		c.ForcedMergeEvalFt = DefaultForcedMergeEvalFt
	}
	if c.ForcedMergeRequiredFt == 0 {
		c.ForcedMergeRequiredFt = DefaultForcedMergeRequiredFt
	}
	if c.ClosureBrakingFt == 0 {
		c.ClosureBrakingFt = DefaultClosureBrakingFt
	}
	if c.ClosureHardStopFt == 0 {
		c.ClosureHardStopFt = DefaultClosureHardStopFt
	}
	return c
}

// Validate rejects configurations that cannot produce a well-defined run.
func (c RoadConfig) Validate() error {
	if c.NumLanes < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLanes, c.NumLanes)
	}
	if c.Dt <= 0 || math.IsNaN(c.Dt) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidTimeStep, c.Dt)
	}
	if c.SimDuration < 0 || math.IsNaN(c.SimDuration) || math.IsInf(c.SimDuration, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidDuration, c.SimDuration)
	}
	if n := c.SimDuration / c.Dt; n > MaxTicks {
		return fmt.Errorf("%w: %v s at %v s per tick exceeds %d ticks", ErrInvalidTimeStep, c.SimDuration, c.Dt, MaxTicks)
	}
	if c.ClosureActive() && c.NumLanes < 2 {
		return ErrClosureNeedsTwoLanes
	}
	for name, v := range map[string]float64{
		"collision penalty":        c.CollisionPenaltyPerSec,
		"collision clearance":      c.CollisionClearanceFt,
		"lane change gap margin":   c.LaneChangeGapMargin,
		"lane change speed margin": c.LaneChangeSpeedMargin,
		"lane change lookahead":    c.LaneChangeLookaheadFactor,
		"forced merge evaluation":  c.ForcedMergeEvalFt,
		"forced merge required":    c.ForcedMergeRequiredFt,
		"closure braking":          c.ClosureBrakingFt,
		"closure hard stop":        c.ClosureHardStopFt,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidTunable, name, v)
		}
	}
	return nil
}

// Ticks returns the number of ticks a run executes: ceil(SimDuration/Dt),
// never fewer than one. A tiny relative tolerance snaps near-exact multiples
// such as 120/0.02 to the nearest whole tick. The result is only meaningful
// for a config that passed Validate, which caps it at MaxTicks.
func (c RoadConfig) Ticks() int {
	n := c.SimDuration / c.Dt
	ticks := math.Ceil(n)
	if r := math.Round(n); math.Abs(n-r) <= n*1e-9 {
		ticks = r
	}
	return max(1, int(ticks))
}

// ValidLane reports whether lane lies in [1, NumLanes].
func (c RoadConfig) ValidLane(lane int) bool {
	return lane >= 1 && lane <= c.NumLanes
}

// ClosureActive reports whether the lane closure feature is enabled.
func (c RoadConfig) ClosureActive() bool { return c.LaneClosureAt > 0 }

// ClosingLane is the lane that ends at LaneClosureAt: the outermost lane.
func (c RoadConfig) ClosingLane() int { return c.NumLanes }

// MergeLane is the only legal destination for a forced pre-closure merge.
func (c RoadConfig) MergeLane() int { return c.NumLanes - 1 }

// DistanceToClosure returns how far position is from the closure point.
// It is negative past the closure.
func (c RoadConfig) DistanceToClosure(position float64) float64 {
	return c.LaneClosureAt - position
}

// InClosureZone reports whether an agent in lane at position is in the
// closing lane and no further than within feet from an active closure.
func (c RoadConfig) InClosureZone(lane int, position, within float64) bool {
	return c.ClosureActive() && lane == c.ClosingLane() && c.DistanceToClosure(position) <= within
}
