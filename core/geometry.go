package core

import (
	"math"

	"github.com/signalsfoundry/traffic-simulator/model"
)

// frontAgent returns the nearest agent strictly ahead of a (by centre
// position) in lane, or nil. a itself is never returned, so the query works
// for both a's own lane and a prospective one.
func frontAgent(a *model.Agent, agents []*model.Agent, lane int) *model.Agent {
	var closest *model.Agent
	closestDist := math.Inf(1)
	for _, other := range agents {
		if other == a || other.Lane != lane {
			continue
		}
		gap := other.Position - a.Position
		if gap > 0 && gap < closestDist {
			closestDist = gap
			closest = other
		}
	}
	return closest
}

// centreGap is the centre-to-centre distance from a to other.
func centreGap(a, other *model.Agent) float64 {
	return other.Position - a.Position
}

// edgeGap returns the free space between a and other, whichever is ahead.
// It is negative when the two extents overlap.
func edgeGap(a, other *model.Agent) float64 {
	if other.Position > a.Position {
		return other.Back() - a.Front()
	}
	return a.Back() - other.Front()
}
