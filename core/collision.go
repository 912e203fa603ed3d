package core

import (
	"math"

	"github.com/signalsfoundry/traffic-simulator/model"
)

// Resolution is the movement actually granted to an agent for this tick.
type Resolution struct {
	Delta float64 // ft, never negative
	Speed float64 // mph, never above the agent's max speed
	// Collided is set when the move was clamped behind another agent.
	Collided bool
	// Barrier is set when the move was clamped at the lane closure.
	Barrier bool
}

// ResolveCollision checks the tentative move m against the current extents of
// the agents ahead of a in its lane and trims it so a never overlaps them.
// Agents already updated this tick are read at their new position, the rest
// at their pre-tick one.
//
// On overlap a's front stops CollisionClearanceFt short of the obstacle's
// back and a sheds CollisionPenaltyPerSec*dt mph. In the closing lane the
// front is additionally held at the closure point and the agent stops there.
func ResolveCollision(a *model.Agent, m Motion, agents []*model.Agent, cfg model.RoadConfig) Resolution {
	res := Resolution{Delta: math.Max(0, m.Delta), Speed: m.Speed}
	proposed := a.Extent().Shift(res.Delta)

	var blocker *model.Agent
	for _, other := range agents {
		if other == a || other.Lane != a.Lane || other.Position <= a.Position {
			continue
		}
		if !proposed.Overlaps(other.Extent()) {
			continue
		}
		if blocker == nil || other.Back() < blocker.Back() {
			blocker = other
		}
	}
	if blocker != nil {
		res.Delta = math.Max(0, blocker.Back()-cfg.CollisionClearanceFt-a.Front())
		res.Speed = math.Max(0, res.Speed-cfg.CollisionPenaltyPerSec*cfg.Dt)
		res.Collided = true
	}

	if cfg.ClosureActive() && a.Lane == cfg.ClosingLane() && a.Position < cfg.LaneClosureAt {
		if room := cfg.LaneClosureAt - a.Front(); res.Delta > room {
			res.Delta = math.Max(0, room)
			res.Speed = 0
			res.Barrier = true
		}
	}

	res.Speed = math.Min(res.Speed, a.MaxSpeed)
	return res
}
