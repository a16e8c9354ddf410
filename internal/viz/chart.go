package viz

import (
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/samber/lo"

	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/sim"
	"github.com/san-kum/mpctrack/internal/track"
)

type series struct {
	caption string
	value   func(sim.Step) float64
}

var chartSeries = []series{
	{"cross-track error (m)", func(s sim.Step) float64 { return s.CTE }},
	{"speed (m/s)", func(s sim.Step) float64 { return s.Speed }},
	{"steering (rad)", func(s sim.Step) float64 { return s.Command.Steer }},
	{"acceleration", func(s sim.Step) float64 { return s.Command.Accel }},
	{"solve time (ms)", func(s sim.Step) float64 { return float64(s.SolveTime.Microseconds()) / 1000 }},
}

// Charts plots the main signals of a run, one asciigraph per signal.
func Charts(steps []sim.Step, width, height int) string {
	if len(steps) < 2 {
		return ""
	}
	var b strings.Builder
	for _, s := range chartSeries {
		data := lo.Map(steps, func(st sim.Step, _ int) float64 { return s.value(st) })
		b.WriteString(asciigraph.Plot(data,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(s.caption),
		))
		b.WriteString("\n\n")
	}
	return b.String()
}

// Map draws a track with the vehicle trail and an optional predicted
// horizon. The viewport is fixed to the track at construction.
type Map struct {
	canvas *Canvas
	view   Viewport
	track  []geom.Point
}

func NewMap(trk *track.Track, w, h int) *Map {
	pts := trk.Points
	if trk.Closed && len(pts) > 0 {
		pts = append(append([]geom.Point{}, pts...), pts[0])
	}
	c := NewCanvas(w, h)
	return &Map{canvas: c, view: Fit(c, pts), track: pts}
}

func (m *Map) Render(trail, predicted []geom.Point) string {
	m.canvas.Clear()
	for i, p := range m.track {
		// dotted centre line
		if i%2 == 0 {
			m.canvas.Plot(m.view, p)
		}
	}
	m.canvas.Polyline(m.view, trail)
	for _, p := range predicted {
		x, y := m.view.Project(p)
		m.canvas.Set(x, y)
		m.canvas.Set(x+1, y)
	}
	return m.canvas.String()
}
