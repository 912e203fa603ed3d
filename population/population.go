// Package population builds the initial agent set for a run: either a
// randomised fleet or caller supplied agent specs, laid out per lane with
// non-overlapping, strictly increasing starting positions.
package population

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/signalsfoundry/traffic-simulator/model"
)

// Parameter ranges for randomised agents: value = Min + U[0,1) * Span.
const (
	maxSpeedMin    = 40.0
	maxSpeedSpan   = 40.0
	maxAccelMin    = 6.7
	maxAccelSpan   = 3.5
	desiredGapMin  = 5.0
	desiredGapSpan = 30.0
	kPMin          = 0.3
	kPSpan         = 0.5
	kDSpan         = 0.05

	// spacingBuffer and spacingJitter pad each agent beyond its desired gap.
	spacingBuffer = 30.0
	spacingJitter = 20.0
)

var (
	// ErrNoRand indicates a Builder without a random source.
	ErrNoRand = errors.New("population builder needs a random source")
	// ErrInvalidSpec indicates an agent spec that cannot be placed.
	ErrInvalidSpec = errors.New("invalid agent spec")
)

// Spec describes one caller supplied agent. A zero Lane is drawn at random;
// a nil Position is placed ahead of the previous agent of the lane; a nil Speed
// starts the agent at half its maximum speed.
type Spec struct {
	Params   model.AgentParams
	Lane     int
	Position *float64
	Speed    *float64
}

// Builder lays out agents for one road. Rand makes the layout repeatable.
type Builder struct {
	Road model.RoadConfig
	Rand *rand.Rand
}

// NewBuilder returns a builder for road seeded with seed.
func NewBuilder(road model.RoadConfig, seed int64) *Builder {
	return &Builder{Road: road, Rand: rand.New(rand.NewSource(seed))}
}

// Random synthesises n agents with randomised parameters and lanes.
func (b *Builder) Random(n int) ([]*model.Agent, error) {
	if b.Rand == nil {
		return nil, ErrNoRand
	}
	return b.FromSpecs(b.RandomSpecs(n))
}

// RandomSpecs draws n specs with randomised parameters and no fixed lane or
// position.
func (b *Builder) RandomSpecs(n int) []Spec {
	specs := make([]Spec, n)
	for i := range specs {
		specs[i] = Spec{Params: b.randomParams()}
	}
	return specs
}

// FromParams places one agent per parameter set in a random lane.
func (b *Builder) FromParams(params []model.AgentParams) ([]*model.Agent, error) {
	specs := make([]Spec, len(params))
	for i, p := range params {
		specs[i] = Spec{Params: p}
	}
	return b.FromSpecs(specs)
}

// FromSpecs places the given specs in order. Agents without an explicit
// position go len/2 + desiredGap + 30 + U·20 feet ahead of the lane's last
// placed agent, the first one measured from the start of the road.
// Agents are never placed in the closing lane past an active closure.
func (b *Builder) FromSpecs(specs []Spec) ([]*model.Agent, error) {
	if b.Rand == nil {
		return nil, ErrNoRand
	}
	lastPos := make(map[int]float64, b.Road.NumLanes)
	agents := make([]*model.Agent, 0, len(specs))

	for i, spec := range specs {
		lane := spec.Lane
		if lane == 0 {
			lane = b.randomLane()
		}
		if !b.Road.ValidLane(lane) {
			return nil, fmt.Errorf("%w %d: lane %d outside [1, %d]", ErrInvalidSpec, i, lane, b.Road.NumLanes)
		}

		a := model.NewAgent(spec.Params, lane, 0)
		if spec.Position != nil {
			a.Position = *spec.Position
		} else {
			a.Position = lastPos[lane] + a.LengthFt/2 + a.DesiredGap + spacingBuffer + b.Rand.Float64()*spacingJitter
		}
		if spec.Speed != nil {
			a.Speed = *spec.Speed
		}

		if b.pastClosure(a) {
			if spec.Lane != 0 || spec.Position != nil {
				return nil, fmt.Errorf("%w %d: lane %d at %.1f ft is past the closure at %.1f ft",
					ErrInvalidSpec, i, lane, a.Position, b.Road.LaneClosureAt)
			}
			// A randomly laned agent falls back to the merge lane.
			a.Lane = b.Road.MergeLane()
			a.Position = lastPos[a.Lane] + a.LengthFt/2 + a.DesiredGap + spacingBuffer + b.Rand.Float64()*spacingJitter
		}

		a.ID = i
		lastPos[a.Lane] = a.Position
		agents = append(agents, a)
	}
	return agents, nil
}

func (b *Builder) randomParams() model.AgentParams {
	r := b.Rand
	return model.AgentParams{
		MaxSpeed:   maxSpeedMin + r.Float64()*maxSpeedSpan,
		MaxAccel:   maxAccelMin + r.Float64()*maxAccelSpan,
		DesiredGap: desiredGapMin + r.Float64()*desiredGapSpan,
		LengthFt:   model.DefaultCarLengthFt,
		KP:         kPMin + r.Float64()*kPSpan,
		KD:         r.Float64() * kDSpan,
	}
}

func (b *Builder) randomLane() int {
	return 1 + b.Rand.Intn(b.Road.NumLanes)
}

func (b *Builder) pastClosure(a *model.Agent) bool {
	return b.Road.ClosureActive() && a.Lane == b.Road.ClosingLane() && a.Front() > b.Road.LaneClosureAt
}
