// core/scenario_loader.go
package core

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/traffic-simulator/model"
	"github.com/signalsfoundry/traffic-simulator/population"
)

// ErrInvalidScenario indicates a scenario file that decodes but cannot be run.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a decoded, validated scenario file: the road, the RNG seed
// and the agents to place.
type Scenario struct {
	Road         model.RoadConfig
	Seed         int64
	RandomAgents int
	Agents       []population.Spec
}

// internal YAML shapes, unexported so the file format can evolve.
type scenarioYAML struct {
	Road         roadYAML    `yaml:"road"`
	Seed         int64       `yaml:"seed"`
	RandomAgents int         `yaml:"random_agents"`
	Agents       []agentYAML `yaml:"agents"`
}

type roadYAML struct {
	Lanes                     *int     `yaml:"lanes"`
	Dt                        *float64 `yaml:"dt"`
	Duration                  *float64 `yaml:"duration"`
	LaneClosureAt             *float64 `yaml:"lane_closure_at"`
	CollisionPenaltyPerSec    *float64 `yaml:"collision_penalty_per_sec"`
	CollisionClearanceFt      *float64 `yaml:"collision_clearance_ft"`
	LaneChangeGapMargin       *float64 `yaml:"lane_change_gap_margin"`
	LaneChangeSpeedMargin     *float64 `yaml:"lane_change_speed_margin"`
	LaneChangeLookaheadFactor *float64 `yaml:"lane_change_lookahead_factor"`
	ForcedMergeEvalFt         *float64 `yaml:"forced_merge_eval_ft"`
	ForcedMergeRequiredFt     *float64 `yaml:"forced_merge_required_ft"`
	ClosureBrakingFt          *float64 `yaml:"closure_braking_ft"`
	ClosureHardStopFt         *float64 `yaml:"closure_hard_stop_ft"`
}

// apply overrides the fields of road that are present in the file. An
// explicit zero is kept as zero.
func (r roadYAML) apply(road *model.RoadConfig) {
	if r.Lanes != nil {
		road.NumLanes = *r.Lanes
	}
	for _, f := range []struct {
		dst *float64
		src *float64
	}{
		{&road.Dt, r.Dt},
		{&road.SimDuration, r.Duration},
		{&road.LaneClosureAt, r.LaneClosureAt},
		{&road.CollisionPenaltyPerSec, r.CollisionPenaltyPerSec},
		{&road.CollisionClearanceFt, r.CollisionClearanceFt},
		{&road.LaneChangeGapMargin, r.LaneChangeGapMargin},
		{&road.LaneChangeSpeedMargin, r.LaneChangeSpeedMargin},
		{&road.LaneChangeLookaheadFactor, r.LaneChangeLookaheadFactor},
		{&road.ForcedMergeEvalFt, r.ForcedMergeEvalFt},
		{&road.ForcedMergeRequiredFt, r.ForcedMergeRequiredFt},
		{&road.ClosureBrakingFt, r.ClosureBrakingFt},
		{&road.ClosureHardStopFt, r.ClosureHardStopFt},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
}

type agentYAML struct {
	Preset     string   `yaml:"preset"`
	MaxSpeed   *float64 `yaml:"max_speed"`
	MaxAccel   *float64 `yaml:"max_accel"`
	DesiredGap *float64 `yaml:"desired_gap"`
	Length     *float64 `yaml:"length"`
	KP         *float64 `yaml:"kp"`
	KD         *float64 `yaml:"kd"`
	Lane       int      `yaml:"lane"`
	Position   *float64 `yaml:"position"`
	Speed      *float64 `yaml:"speed"`
}

// LoadScenario reads a YAML scenario from r. JSON input works too, being a
// subset of YAML. Road fields missing from the file keep their
// model.DefaultRoadConfig values.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	road := model.DefaultRoadConfig()
	payload.Road.apply(&road)

	if err := road.Validate(); err != nil {
		return nil, fmt.Errorf("LoadScenario: road: %w", err)
	}
	if payload.RandomAgents < 0 {
		return nil, fmt.Errorf("LoadScenario: %w: random_agents = %d", ErrInvalidScenario, payload.RandomAgents)
	}

	sc := &Scenario{
		Road:         road,
		Seed:         payload.Seed,
		RandomAgents: payload.RandomAgents,
		Agents:       make([]population.Spec, 0, len(payload.Agents)),
	}
	for i, a := range payload.Agents {
		spec, err := a.toSpec()
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: agent %d: %w", i, err)
		}
		sc.Agents = append(sc.Agents, spec)
	}
	return sc, nil
}

func (a agentYAML) toSpec() (population.Spec, error) {
	params := model.MediumCar
	if a.Preset != "" {
		p, ok := model.Presets[a.Preset]
		if !ok {
			return population.Spec{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidScenario, a.Preset)
		}
		params = p
	}
	override := func(dst, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	override(&params.MaxSpeed, a.MaxSpeed)
	override(&params.MaxAccel, a.MaxAccel)
	override(&params.DesiredGap, a.DesiredGap)
	override(&params.LengthFt, a.Length)
	override(&params.KP, a.KP)
	override(&params.KD, a.KD)

	return population.Spec{
		Params:   params,
		Lane:     a.Lane,
		Position: a.Position,
		Speed:    a.Speed,
	}, nil
}

// Build places the scenario's explicit agents followed by RandomAgents
// randomised ones, using a builder seeded with Seed.
func (s *Scenario) Build() ([]*model.Agent, error) {
	b := population.NewBuilder(s.Road, s.Seed)
	specs := append(append([]population.Spec{}, s.Agents...), b.RandomSpecs(s.RandomAgents)...)
	return b.FromSpecs(specs)
}

// NewWorldFromScenario builds the scenario's agents and wraps them in a World.
func NewWorldFromScenario(s *Scenario, opts ...WorldOption) (*World, error) {
	agents, err := s.Build()
	if err != nil {
		return nil, fmt.Errorf("building population: %w", err)
	}
	return NewWorld(s.Road, agents, opts...)
}
