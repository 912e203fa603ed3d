package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/traffic-simulator/model"
)

func TestWorldStats(t *testing.T) {
	cfg := model.DefaultRoadConfig()
	cfg.NumLanes = 3
	agents := []*model.Agent{
		agentAt(1, 100, 20),
		agentAt(1, 300, 40),
		agentAt(3, 50, 30),
	}
	w, err := NewWorld(cfg, agents)
	if err != nil {
		t.Fatalf("NewWorld error: %v", err)
	}

	if got := w.AverageSpeed(); math.Abs(got-30) > eps {
		t.Fatalf("expected average speed 30, got %v", got)
	}
	if got := w.AverageDistance(); math.Abs(got-150) > eps {
		t.Fatalf("expected average distance 150, got %v", got)
	}
	if got := w.MaxDistance(); got != 300 {
		t.Fatalf("expected max distance 300, got %v", got)
	}

	perLane := w.AgentsPerLane()
	if len(perLane) != 3 || perLane[0] != 2 || perLane[1] != 0 || perLane[2] != 1 {
		t.Fatalf("unexpected lane counts %v", perLane)
	}

	if d, err := w.AgentDistance(2); err != nil || d != 50 {
		t.Fatalf("AgentDistance(2) = %v, %v", d, err)
	}
	if _, err := w.AgentDistance(3); !errors.Is(err, ErrAgentIndex) {
		t.Fatalf("expected ErrAgentIndex, got %v", err)
	}
	if _, err := w.Agent(-1); !errors.Is(err, ErrAgentIndex) {
		t.Fatalf("expected ErrAgentIndex, got %v", err)
	}

	snap := w.Snapshot()
	snap[0].Position = 9999
	if d, _ := w.AgentDistance(0); d != 100 {
		t.Fatalf("snapshot mutation leaked into the world: %v", d)
	}
}

func TestWorldStats_Empty(t *testing.T) {
	w, err := NewWorld(model.DefaultRoadConfig(), nil)
	if err != nil {
		t.Fatalf("NewWorld error: %v", err)
	}
	for name, v := range map[string]float64{
		"AverageSpeed":    w.AverageSpeed(),
		"AverageDistance": w.AverageDistance(),
		"MaxDistance":     w.MaxDistance(),
	} {
		if !math.IsNaN(v) {
			t.Fatalf("%s: expected NaN, got %v", name, v)
		}
	}
	if w.Len() != 0 {
		t.Fatalf("expected empty world, got %d agents", w.Len())
	}
}
