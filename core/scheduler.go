package core

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/signalsfoundry/traffic-simulator/model"
)

// LaneChange records one committed lane change.
type LaneChange struct {
	AgentID int
	From    int
	To      int
	Forced  bool
}

// TickReport summarises what happened during one tick.
type TickReport struct {
	LaneChanges  []LaneChange
	Collisions   int
	BarrierStops int
	HardStops    int
	Braking      int
}

// ForcedMerges counts the lane changes required by the closure.
func (r TickReport) ForcedMerges() int {
	return lo.CountBy(r.LaneChanges, func(c LaneChange) bool { return c.Forced })
}

// Tick advances every agent by one tick.
//
// Agents are partitioned by lane at the start of the tick, then each lane is
// swept front to back. A follower sees its leader at the leader's post-update
// position, while agents not reached yet (same-lane followers and lanes swept
// later) are still at their pre-tick state. The order is part of the model:
// lane-change and collision outcomes depend on it, so the sweep is strictly
// sequential.
func Tick(agents []*model.Agent, cfg model.RoadConfig) TickReport {
	var report TickReport

	byLane := lo.GroupBy(agents, func(a *model.Agent) int { return a.Lane })
	for lane := 1; lane <= cfg.NumLanes; lane++ {
		laneAgents := byLane[lane]
		sortFrontToBack(laneAgents)

		for i, a := range laneAgents {
			var leader *model.Agent
			if i > 0 {
				leader = laneAgents[i-1]
			}
			updateAgent(a, leader, agents, cfg, &report)
		}
	}
	return report
}

// sortFrontToBack orders agents by descending position, breaking ties by ID.
func sortFrontToBack(agents []*model.Agent) {
	slices.SortFunc(agents, func(a, b *model.Agent) int {
		if c := cmp.Compare(b.Position, a.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// updateAgent runs the per-agent pipeline: lane change, car following,
// integration, collision resolution, commit.
func updateAgent(a, leader *model.Agent, agents []*model.Agent, cfg model.RoadConfig, report *TickReport) {
	decision := EvaluateLaneChange(a, agents, cfg)
	ApplyLaneChange(a, decision)
	if decision.Changed {
		report.LaneChanges = append(report.LaneChanges, LaneChange{
			AgentID: a.ID,
			From:    decision.From,
			To:      decision.To,
			Forced:  decision.Forced,
		})
	}

	target := TargetSpeed(a, leader)
	motion := Integrate(a, target, agents, cfg)
	res := ResolveCollision(a, motion, agents, cfg)

	a.Speed = res.Speed
	a.Position += res.Delta

	if motion.Braked {
		report.Braking++
	}
	if motion.HardStop {
		report.HardStops++
	}
	if res.Collided {
		report.Collisions++
	}
	if res.Barrier {
		report.BarrierStops++
	}
}
