package model

// DefaultCarLengthFt is the vehicle length used when AgentParams.LengthFt is unset.
const DefaultCarLengthFt = 15.0

// feetPerSecondPerMPH converts mph to ft/s (5280 ft per mile / 3600 s per hour).
const feetPerSecondPerMPH = 5280.0 / 3600.0

// AgentParams holds the per-vehicle parameters fixed at creation time.
type AgentParams struct {
	MaxSpeed   float64 // mph
	MaxAccel   float64 // mph per second; the per-tick bound is MaxAccel*dt
	DesiredGap float64 // ft, bumper to bumper
	LengthFt   float64 // ft
	KP         float64 // gap error gain
	KD         float64 // closing speed gain
}

// Presets lifted from the reference fleet.
var (
	FastCar   = AgentParams{MaxSpeed: 70, MaxAccel: 10, DesiredGap: 10, LengthFt: DefaultCarLengthFt, KP: 0.7, KD: 0.03}
	MediumCar = AgentParams{MaxSpeed: 50, MaxAccel: 8, DesiredGap: 10, LengthFt: DefaultCarLengthFt, KP: 0.6, KD: 0.025}
	SlowCar   = AgentParams{MaxSpeed: 30, MaxAccel: 6, DesiredGap: 10, LengthFt: DefaultCarLengthFt, KP: 0.5, KD: 0.02}
)

// Presets maps the scenario-file names of the presets to their parameters.
var Presets = map[string]AgentParams{
	"fast":   FastCar,
	"medium": MediumCar,
	"slow":   SlowCar,
}

// Agent is the mutable state of one simulated vehicle. The engine mutates
// Lane, Position and Speed once per tick; AgentParams never change.
type Agent struct {
	AgentParams

	ID       int
	Lane     int     // 1-based
	Position float64 // distance from start, ft (centre of the vehicle)
	Speed    float64 // mph
}

// NewAgent creates an agent at the given lane and position, starting at half
// of its maximum speed.
func NewAgent(params AgentParams, lane int, position float64) *Agent {
	if params.LengthFt == 0 {
		params.LengthFt = DefaultCarLengthFt
	}
	return &Agent{
		AgentParams: params,
		Lane:        lane,
		Position:    position,
		Speed:       params.MaxSpeed / 2,
	}
}

// Front returns the position of the agent's front bumper.
func (a *Agent) Front() float64 { return a.Position + a.LengthFt/2 }

// Back returns the position of the agent's rear bumper.
func (a *Agent) Back() float64 { return a.Position - a.LengthFt/2 }

// Extent returns the occupied interval [back, front].
func (a *Agent) Extent() Extent { return Extent{Back: a.Back(), Front: a.Front()} }

// SpeedFtPerSec returns the current speed in feet per second.
func (a *Agent) SpeedFtPerSec() float64 { return MPHToFeetPerSecond(a.Speed) }

// GapTo returns the bumper-to-bumper distance from a to leader.
func (a *Agent) GapTo(leader *Agent) float64 { return leader.Back() - a.Front() }

// Snapshot returns a value copy safe to hand to read-only consumers.
func (a *Agent) Snapshot() Agent { return *a }

// MPHToFeetPerSecond converts a speed in mph to ft/s.
func MPHToFeetPerSecond(mph float64) float64 { return mph * feetPerSecondPerMPH }

// Extent is a closed longitudinal interval occupied by a vehicle.
type Extent struct {
	Back  float64
	Front float64
}

// Overlaps reports whether two extents share any point.
func (e Extent) Overlaps(o Extent) bool {
	return e.Back <= o.Front && o.Back <= e.Front
}

// Shift returns the extent moved forward by delta feet.
func (e Extent) Shift(delta float64) Extent {
	return Extent{Back: e.Back + delta, Front: e.Front + delta}
}
