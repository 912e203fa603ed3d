package core

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/signalsfoundry/traffic-simulator/model"
)

// AverageSpeed returns the mean speed in mph, or NaN for an empty world.
func (w *World) AverageSpeed() float64 {
	if len(w.agents) == 0 {
		return math.NaN()
	}
	return lo.SumBy(w.agents, func(a *model.Agent) float64 { return a.Speed }) / float64(len(w.agents))
}

// AverageDistance returns the mean position in ft, or NaN for an empty world.
func (w *World) AverageDistance() float64 {
	if len(w.agents) == 0 {
		return math.NaN()
	}
	return lo.SumBy(w.agents, func(a *model.Agent) float64 { return a.Position }) / float64(len(w.agents))
}

// MaxDistance returns the furthest position in ft, or NaN for an empty world.
func (w *World) MaxDistance() float64 {
	if len(w.agents) == 0 {
		return math.NaN()
	}
	return lo.MaxBy(w.agents, func(a, best *model.Agent) bool { return a.Position > best.Position }).Position
}

// AgentsPerLane returns the occupancy of each lane; index 0 is lane 1.
func (w *World) AgentsPerLane() []int {
	counts := make([]int, w.cfg.NumLanes)
	for _, a := range w.agents {
		if w.cfg.ValidLane(a.Lane) {
			counts[a.Lane-1]++
		}
	}
	return counts
}

// AgentDistance returns the position of the agent at index i.
func (w *World) AgentDistance(i int) (float64, error) {
	a, err := w.Agent(i)
	if err != nil {
		return 0, err
	}
	return a.Position, nil
}

// Agent returns a copy of the agent at index i.
func (w *World) Agent(i int) (model.Agent, error) {
	if i < 0 || i >= len(w.agents) {
		return model.Agent{}, fmt.Errorf("%w: %d not in [0, %d)", ErrAgentIndex, i, len(w.agents))
	}
	return w.agents[i].Snapshot(), nil
}

// Snapshot returns copies of every agent in index order.
func (w *World) Snapshot() []model.Agent {
	return lo.Map(w.agents, func(a *model.Agent, _ int) model.Agent { return a.Snapshot() })
}
