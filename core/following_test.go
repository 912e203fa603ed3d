package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/traffic-simulator/model"
)

// agentAt builds a medium car at the given lane, position and speed.
func agentAt(lane int, position, speed float64) *model.Agent {
	a := model.NewAgent(model.MediumCar, lane, position)
	a.Speed = speed
	return a
}

func TestTargetSpeed_NoLeaderReturnsMaxSpeed(t *testing.T) {
	a := agentAt(1, 0, 20)
	if got := TargetSpeed(a, nil); got != a.MaxSpeed {
		t.Fatalf("expected max speed %v, got %v", a.MaxSpeed, got)
	}

	other := agentAt(2, 30, 0)
	if got := TargetSpeed(a, other); got != a.MaxSpeed {
		t.Fatalf("leader in another lane should be ignored, got %v", got)
	}
}

func TestTargetSpeed_PDCorrection(t *testing.T) {
	follower := agentAt(1, 0, 40)
	leader := agentAt(1, 40, 45)

	// gap = 32.5 - 7.5 = 25 ft, error 15 ft, closing speed +5 mph
	want := 40 + 0.6*15 + 0.025*5
	if got := TargetSpeed(follower, leader); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTargetSpeed_ClampsToRange(t *testing.T) {
	follower := agentAt(1, 0, 45)

	far := agentAt(1, 1000, 50)
	if got := TargetSpeed(follower, far); got != follower.MaxSpeed {
		t.Fatalf("large gap should clamp to max speed, got %v", got)
	}

	follower.Speed = 5
	tight := agentAt(1, 16, 0) // 1 ft gap
	if got := TargetSpeed(follower, tight); got != 0 {
		t.Fatalf("negative correction should clamp to 0, got %v", got)
	}
}
