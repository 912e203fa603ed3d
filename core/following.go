package core

import (
	"github.com/samber/lo"

	"github.com/signalsfoundry/traffic-simulator/model"
)

// TargetSpeed is the car-following controller. It returns the speed the
// follower wants to reach this tick: its maximum speed on an open lane, or a
// PD correction on the bumper gap error and closing speed behind a leader.
// There is no integral term, so a steady-state gap error is tolerated.
func TargetSpeed(follower, leader *model.Agent) float64 {
	if leader == nil || leader.Lane != follower.Lane {
		return follower.MaxSpeed
	}

	gapErr := follower.GapTo(leader) - follower.DesiredGap
	relSpeed := leader.Speed - follower.Speed
	adjustment := follower.KP*gapErr + follower.KD*relSpeed

	return lo.Clamp(follower.Speed+adjustment, 0, follower.MaxSpeed)
}
