package core

import (
	"testing"

	"github.com/signalsfoundry/traffic-simulator/model"
)

func threeLaneRoad() model.RoadConfig {
	cfg := model.DefaultRoadConfig()
	cfg.NumLanes = 3
	return cfg
}

func TestEvaluateLaneChange_StaysBehindCloseLeader(t *testing.T) {
	cfg := threeLaneRoad()
	a := agentAt(2, 0, 30)
	front := agentAt(2, 20, 30) // centre gap 20 <= 10*2.5
	agents := []*model.Agent{a, front}

	d := EvaluateLaneChange(a, agents, cfg)
	if d.Changed {
		t.Fatalf("expected no lane change behind a close leader, got %+v", d)
	}
}

func TestEvaluateLaneChange_PrefersLeftWhenBothBetter(t *testing.T) {
	cfg := threeLaneRoad()
	a := agentAt(2, 0, 30)
	front := agentAt(2, 40, 30)
	agents := []*model.Agent{a, front}

	d := EvaluateLaneChange(a, agents, cfg)
	if !d.Changed || d.From != 2 || d.To != 1 || d.Forced {
		t.Fatalf("expected discretionary change 2 -> 1, got %+v", d)
	}
}

func TestEvaluateLaneChange_NoLeaderNoBenefit(t *testing.T) {
	cfg := threeLaneRoad()
	a := agentAt(2, 0, 30)

	d := EvaluateLaneChange(a, []*model.Agent{a}, cfg)
	if d.Changed {
		t.Fatalf("an agent with an open lane ahead has nothing to gain, got %+v", d)
	}
}

func TestEvaluateLaneChange_SkipsBlockedLaneAndTriesRight(t *testing.T) {
	cfg := threeLaneRoad()
	a := agentAt(2, 0, 30)
	front := agentAt(2, 40, 30)
	// Edge gap to a is 18 - 7.5 - 7.5 = 3 ft, below desiredGap/2.
	beside := agentAt(1, 18, 30)
	agents := []*model.Agent{a, front, beside}

	d := EvaluateLaneChange(a, agents, cfg)
	if !d.Changed || d.To != 3 {
		t.Fatalf("expected change to lane 3, got %+v", d)
	}
}

func TestEvaluateLaneChange_StrictBenefitAndMargins(t *testing.T) {
	cfg := model.DefaultRoadConfig()
	a := agentAt(1, 0, 30)
	front := agentAt(1, 40, 30)
	target := agentAt(2, 44, 30)
	agents := []*model.Agent{a, front, target}

	if d := EvaluateLaneChange(a, agents, cfg); !d.Changed {
		t.Fatalf("a leader 4 ft further ahead should pay off with no margin, got %+v", d)
	}

	cfg.LaneChangeGapMargin = 5
	if d := EvaluateLaneChange(a, agents, cfg); d.Changed {
		t.Fatalf("a 5 ft margin should reject a 4 ft gain, got %+v", d)
	}

	target.Speed = 33
	cfg.LaneChangeSpeedMargin = 2
	if d := EvaluateLaneChange(a, agents, cfg); !d.Changed {
		t.Fatalf("a 3 mph faster leader should beat a 2 mph margin, got %+v", d)
	}
}

func TestEvaluateLaneChange_ClosingLaneIsNotADestination(t *testing.T) {
	cfg := threeLaneRoad()
	cfg.LaneClosureAt = 1000

	a := agentAt(2, 500, 30)
	front := agentAt(2, 540, 30)
	blocker := agentAt(1, 505, 30)
	agents := []*model.Agent{a, front, blocker}

	d := EvaluateLaneChange(a, agents, cfg)
	if d.Changed {
		t.Fatalf("lane 3 within 600 ft of its closure must be skipped, got %+v", d)
	}
}

func TestEvaluateLaneChange_ForcedMergeIgnoresBenefit(t *testing.T) {
	cfg := model.DefaultRoadConfig()
	cfg.LaneClosureAt = 1000

	a := agentAt(2, 450, 30)
	front := agentAt(2, 470, 30) // not open, but inside the evaluation zone
	slow := agentAt(1, 470, 5)   // same gap and slower: no benefit
	agents := []*model.Agent{a, front, slow}

	if d := EvaluateLaneChange(a, agents, cfg); d.Changed {
		t.Fatalf("550 ft from the closure a merge must still pay off, got %+v", d)
	}

	a.Position = 510
	front.Position = 530
	slow.Position = 530
	d := EvaluateLaneChange(a, agents, cfg)
	if !d.Changed || d.To != 1 || !d.Forced {
		t.Fatalf("expected forced merge into lane 1, got %+v", d)
	}
}

func TestApplyLaneChange(t *testing.T) {
	a := agentAt(2, 0, 30)
	ApplyLaneChange(a, LaneDecision{From: 2, To: 2})
	if a.Lane != 2 {
		t.Fatalf("unchanged decision moved the agent to lane %d", a.Lane)
	}
	ApplyLaneChange(a, LaneDecision{From: 2, To: 1, Changed: true})
	if a.Lane != 1 {
		t.Fatalf("expected lane 1, got %d", a.Lane)
	}
}
