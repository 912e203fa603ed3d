package core

import (
	"github.com/samber/lo"

	"github.com/signalsfoundry/traffic-simulator/model"
)

// Motion is the tentative result of integrating one agent over one tick.
type Motion struct {
	Speed float64 // mph after the acceleration limit
	Delta float64 // tentative forward movement, ft
	// Braked is set when a blocked merge ahead of the closure halved the speeds.
	Braked bool
	// HardStop is set when the agent was told to stop short of the closure.
	HardStop bool
}

// Integrate turns a target speed into an acceleration-limited speed and a
// tentative position delta for this tick. Agents still in the closing lane
// near an active closure brake when the merge lane is blocked and come to a
// hard stop right before the closure point.
func Integrate(a *model.Agent, targetSpeed float64, agents []*model.Agent, cfg model.RoadConfig) Motion {
	var m Motion
	speed := a.Speed

	if cfg.InClosureZone(a.Lane, a.Position, cfg.ClosureBrakingFt) {
		if mergeBlocked(a, agents, cfg.MergeLane()) {
			speed /= 2
			targetSpeed /= 2
			m.Braked = true
		}
		if cfg.DistanceToClosure(a.Position) <= cfg.ClosureHardStopFt {
			targetSpeed = 0
			speed /= 2
			m.HardStop = true
		}
	}

	maxDelta := a.MaxAccel * cfg.Dt
	speedDiff := lo.Clamp(targetSpeed-speed, -maxDelta, maxDelta)

	m.Speed = lo.Clamp(speed+speedDiff, 0, a.MaxSpeed)
	m.Delta = model.MPHToFeetPerSecond(m.Speed) * cfg.Dt
	return m
}

// mergeBlocked reports whether any occupant of lane sits within a's desired
// gap, ahead or behind.
func mergeBlocked(a *model.Agent, agents []*model.Agent, lane int) bool {
	for _, other := range agents {
		if other == a || other.Lane != lane {
			continue
		}
		if edgeGap(a, other) < a.DesiredGap {
			return true
		}
	}
	return false
}
