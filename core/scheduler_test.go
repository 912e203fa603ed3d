package core

import (
	"testing"

	"github.com/signalsfoundry/traffic-simulator/model"
)

func cloneAgents(agents []*model.Agent) []*model.Agent {
	out := make([]*model.Agent, len(agents))
	for i, a := range agents {
		c := *a
		out[i] = &c
	}
	return out
}

func TestTick_IndependentOfSliceOrder(t *testing.T) {
	cfg := threeLaneRoad()
	base := []*model.Agent{
		agentAt(1, 0, 40),
		agentAt(1, 30, 20),
		agentAt(2, 10, 45),
		agentAt(2, 80, 10),
		agentAt(3, 5, 50),
		agentAt(3, 200, 30),
	}
	for i, a := range base {
		a.ID = i
	}

	forward := cloneAgents(base)
	reversed := cloneAgents(base)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}

	for tick := 0; tick < 200; tick++ {
		Tick(forward, cfg)
		Tick(reversed, cfg)
	}

	byID := make(map[int]*model.Agent, len(reversed))
	for _, a := range reversed {
		byID[a.ID] = a
	}
	for _, a := range forward {
		b := byID[a.ID]
		if a.Lane != b.Lane || a.Position != b.Position || a.Speed != b.Speed {
			t.Fatalf("agent %d diverged: %+v vs %+v", a.ID, *a, *b)
		}
	}
}

func TestTick_LeaderMovesFirst(t *testing.T) {
	cfg := model.DefaultRoadConfig()
	cfg.NumLanes = 1
	follower := agentAt(1, 0, 50)
	// One foot of room: the follower only fits if the leader has already
	// moved this tick.
	leader := agentAt(1, 16, 50)
	follower.ID, leader.ID = 0, 1

	report := Tick([]*model.Agent{follower, leader}, cfg)
	if report.Collisions != 0 {
		t.Fatalf("follower was clamped against a stale leader: %+v", report)
	}
}

func TestTick_ReportsLaneChanges(t *testing.T) {
	cfg := model.DefaultRoadConfig()
	cfg.LaneClosureAt = 1000

	merging := agentAt(2, 600, 30)
	merging.ID = 0
	slow := agentAt(1, 100, 20)
	slow.ID = 1
	ahead := agentAt(1, 160, 20)
	ahead.ID = 2

	report := Tick([]*model.Agent{merging, slow, ahead}, cfg)
	if len(report.LaneChanges) != 2 {
		t.Fatalf("expected 2 lane changes, got %+v", report.LaneChanges)
	}
	if report.ForcedMerges() != 1 {
		t.Fatalf("expected 1 forced merge, got %d", report.ForcedMerges())
	}
	for _, lc := range report.LaneChanges {
		switch lc.AgentID {
		case 0:
			if lc.From != 2 || lc.To != 1 || !lc.Forced {
				t.Fatalf("unexpected merge %+v", lc)
			}
		case 1:
			if lc.From != 1 || lc.To != 2 || lc.Forced {
				t.Fatalf("unexpected discretionary change %+v", lc)
			}
		default:
			t.Fatalf("unexpected lane change %+v", lc)
		}
	}
}

func TestTick_EarlierLaneSeesLaterLaneBeforeItMoves(t *testing.T) {
	cfg := model.DefaultRoadConfig()

	// Lane 1 is swept first. x has a slow leader and an empty lane 2 ahead;
	// y trails in lane 2 with 6 ft of room, which shrinks below x's 5 ft
	// margin once y has moved this tick.
	x := agentAt(1, 100, 30)
	lead := agentAt(1, 140, 20)
	y := agentAt(2, 79, 50)
	x.ID, lead.ID, y.ID = 0, 1, 2

	moved := *y
	moved.Position += model.MPHToFeetPerSecond(y.Speed) * cfg.Dt
	if laneClear(x, []*model.Agent{&moved}, 2) {
		t.Fatalf("test setup: lane 2 should be blocked once y has moved")
	}

	report := Tick([]*model.Agent{x, lead, y}, cfg)
	if len(report.LaneChanges) != 1 || report.LaneChanges[0] != (LaneChange{AgentID: 0, From: 1, To: 2}) {
		t.Fatalf("expected x to move into lane 2 against y's pre-tick position, got %+v", report.LaneChanges)
	}
	if x.Lane != 2 {
		t.Fatalf("x stayed in lane %d", x.Lane)
	}
}

func TestTick_LaterLaneSeesEarlierLaneAfterItMoves(t *testing.T) {
	cfg := model.DefaultRoadConfig()

	// Lane 2 is swept after lane 1. w sits 4 ft ahead of z's front, inside
	// z's 5 ft margin, and opens the gap to 5.47 ft during its own update.
	w := agentAt(1, 119, 50)
	z := agentAt(2, 100, 30)
	lead := agentAt(2, 140, 20)
	w.ID, z.ID, lead.ID = 0, 1, 2

	if laneClear(z, []*model.Agent{w}, 1) {
		t.Fatalf("test setup: lane 1 should be blocked before w moves")
	}

	report := Tick([]*model.Agent{w, z, lead}, cfg)
	if len(report.LaneChanges) != 1 || report.LaneChanges[0] != (LaneChange{AgentID: 1, From: 2, To: 1}) {
		t.Fatalf("expected z to move into lane 1 behind the updated w, got %+v", report.LaneChanges)
	}
	if z.Lane != 1 || w.Lane != 1 || lead.Lane != 2 {
		t.Fatalf("unexpected lanes after the tick: w=%d z=%d lead=%d", w.Lane, z.Lane, lead.Lane)
	}
	if report.Collisions != 0 {
		t.Fatalf("merge must not collide, got %d", report.Collisions)
	}
}
