package metrics

import (
	"math"

	"github.com/san-kum/mpctrack/internal/analysis"
	"github.com/san-kum/mpctrack/internal/sim"
)

// SteerChatter is the RMS steering (rad) above Cutoff Hz. Tracking a road
// needs slow steering; energy up there is the controller fighting itself.
type SteerChatter struct {
	Cutoff float64

	steers []float64
	first  float64
	last   float64
}

func NewSteerChatter(cutoff float64) *SteerChatter {
	return &SteerChatter{Cutoff: cutoff}
}

func (m *SteerChatter) Name() string { return "steer_chatter" }

func (m *SteerChatter) Observe(s sim.Step) {
	if len(m.steers) == 0 {
		m.first = s.Time
	}
	m.last = s.Time
	m.steers = append(m.steers, s.Command.Steer)
}

func (m *SteerChatter) Value() float64 {
	n := len(m.steers)
	if n < 4 || m.last <= m.first {
		return 0
	}
	dt := (m.last - m.first) / float64(n-1)
	spec := analysis.NewSpectrum(m.steers, dt)
	return spec.Band(m.Cutoff, math.Inf(1))
}

func (m *SteerChatter) Reset() {
	m.steers = m.steers[:0]
	m.first, m.last = 0, 0
}
