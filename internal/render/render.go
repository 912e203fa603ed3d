// Package render draws lane occupancy on a tcell screen. It only reads agent
// snapshots and never touches the world.
package render

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/traffic-simulator/model"
	"github.com/signalsfoundry/traffic-simulator/timectrl"
)

const (
	// DefaultWidth is the number of road columns per lane.
	DefaultWidth = 92
	// DefaultWorldFt is the stretch of road mapped onto the columns.
	DefaultWorldFt = 15000.0

	// LabelWidth is the space reserved for "Lane N:" before the road columns.
	LabelWidth = 10

	// AgentRune marks an agent; BarrierRune marks the closure point.
	AgentRune   = '>'
	BarrierRune = '|'
)

var (
	styleDefault = tcell.StyleDefault
	styleHeader  = styleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleLabel   = styleDefault.Foreground(tcell.ColorSilver)
	styleBarrier = styleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorRed).Bold(true)

	// Speed bands, slowest first.
	styleSlow   = styleDefault.Foreground(tcell.ColorRed)
	styleMedium = styleDefault.Foreground(tcell.ColorYellow)
	styleFast   = styleDefault.Foreground(tcell.ColorGreen)
)

// Terminal renders one frame per tick onto a tcell screen. The caller owns
// the screen and is responsible for Init and Fini.
type Terminal struct {
	Screen  tcell.Screen
	Road    model.RoadConfig
	Width   int
	WorldFt float64
	// Clock, when set, supplies the time printed in the header.
	Clock timectrl.SimClock
}

// NewTerminal returns a renderer with the default geometry, narrowed to fit
// the screen.
func NewTerminal(screen tcell.Screen, road model.RoadConfig) *Terminal {
	width := DefaultWidth
	if w, _ := screen.Size(); w > LabelWidth && w-LabelWidth < width {
		width = w - LabelWidth
	}
	return &Terminal{
		Screen:  screen,
		Road:    road,
		Width:   width,
		WorldFt: DefaultWorldFt,
	}
}

// OnTick draws and shows one frame. Its signature matches core.TickListener.
func (t *Terminal) OnTick(tick timectrl.Tick, agents []model.Agent) {
	simTime := tick.SimTime
	if t.Clock != nil {
		simTime = t.Clock.Now()
	}
	t.Draw(simTime, agents)
	t.Screen.Show()
}

// Draw paints a frame at simulated time simTime without showing it.
func (t *Terminal) Draw(simTime float64, agents []model.Agent) {
	s := t.Screen
	s.Clear()

	drawText(s, 0, 0, fmt.Sprintf("Time: %.2f", simTime), styleHeader)
	for lane := 1; lane <= t.Road.NumLanes; lane++ {
		drawText(s, 0, lane, fmt.Sprintf("Lane %d:", lane), styleLabel)
	}

	for _, a := range agents {
		if !t.Road.ValidLane(a.Lane) {
			continue
		}
		s.SetContent(LabelWidth+t.column(a.Position), a.Lane, AgentRune, nil, SpeedStyle(a.Speed))
	}

	if t.Road.ClosureActive() {
		if col := int(t.Road.LaneClosureAt / t.WorldFt * float64(t.Width)); col >= 0 && col < t.Width {
			s.SetContent(LabelWidth+col, t.Road.ClosingLane(), BarrierRune, nil, styleBarrier)
		}
	}
}

func (t *Terminal) column(position float64) int {
	col := int(position / t.WorldFt * float64(t.Width))
	return min(t.Width-1, max(0, col))
}

// SpeedStyle colours an agent by its current speed in mph.
func SpeedStyle(speed float64) tcell.Style {
	switch {
	case speed < 45:
		return styleSlow
	case speed < 65:
		return styleMedium
	default:
		return styleFast
	}
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range text {
		s.SetContent(x+i, y, r, nil, style)
	}
}
