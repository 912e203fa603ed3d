package core

import (
	"github.com/signalsfoundry/traffic-simulator/model"
)

// LaneDecision is the outcome of one lane-change evaluation.
type LaneDecision struct {
	From    int
	To      int
	Changed bool
	// Forced is set when the change was required by an upcoming closure
	// rather than chosen for a faster lane.
	Forced bool
}

// EvaluateLaneChange decides whether a moves to an adjacent lane this tick.
// It reads agents but mutates nothing; ApplyLaneChange commits the result.
//
// Left (-1) is tried before right (+1) and the first acceptable lane wins.
func EvaluateLaneChange(a *model.Agent, agents []*model.Agent, cfg model.RoadConfig) LaneDecision {
	stay := LaneDecision{From: a.Lane, To: a.Lane}

	front := frontAgent(a, agents, a.Lane)
	open := front == nil || centreGap(a, front) > a.DesiredGap*cfg.LaneChangeLookaheadFactor
	mustTry := cfg.InClosureZone(a.Lane, a.Position, cfg.ForcedMergeEvalFt)
	if !open && !mustTry {
		return stay
	}

	for _, dir := range [...]int{-1, 1} {
		target := a.Lane + dir
		if !cfg.ValidLane(target) {
			continue
		}
		if cfg.InClosureZone(target, a.Position, cfg.ForcedMergeEvalFt) {
			// The closing lane is no destination near its own end.
			continue
		}
		if !laneClear(a, agents, target) {
			continue
		}

		required := cfg.InClosureZone(a.Lane, a.Position, cfg.ForcedMergeRequiredFt)
		if required || laneBenefit(a, front, frontAgent(a, agents, target), cfg) {
			return LaneDecision{From: a.Lane, To: target, Changed: true, Forced: required}
		}
	}
	return stay
}

// ApplyLaneChange commits d to a.
func ApplyLaneChange(a *model.Agent, d LaneDecision) {
	if d.Changed {
		a.Lane = d.To
	}
}

// laneClear reports whether every occupant of lane keeps at least half of a's
// desired gap, bumper to bumper, ahead of or behind a's current position.
func laneClear(a *model.Agent, agents []*model.Agent, lane int) bool {
	margin := a.DesiredGap / 2
	for _, other := range agents {
		if other == a || other.Lane != lane {
			continue
		}
		if edgeGap(a, other) < margin {
			return false
		}
	}
	return true
}

// laneBenefit compares the leader a would get in the target lane against its
// current one. No current leader means nothing to gain; an empty target lane
// always pays off.
func laneBenefit(a, current, target *model.Agent, cfg model.RoadConfig) bool {
	switch {
	case current == nil:
		return false
	case target == nil:
		return true
	}
	gapCurrent := centreGap(a, current)
	gapTarget := centreGap(a, target)
	return gapTarget > gapCurrent+cfg.LaneChangeGapMargin ||
		target.Speed > current.Speed+cfg.LaneChangeSpeedMargin
}
