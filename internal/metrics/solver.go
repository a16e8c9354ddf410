package metrics

import (
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/sim"
)

// DegradedRatio is the fraction of cycles whose solve did not converge,
// fallbacks included.
type DegradedRatio struct {
	bad     int
	samples int
}

func NewDegradedRatio() *DegradedRatio { return &DegradedRatio{} }

func (m *DegradedRatio) Name() string { return "degraded_ratio" }

func (m *DegradedRatio) Observe(s sim.Step) {
	m.samples++
	if s.Status != mpc.Converged || s.Fallback {
		m.bad++
	}
}

func (m *DegradedRatio) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.bad) / float64(m.samples)
}

func (m *DegradedRatio) Reset() { *m = DegradedRatio{} }

// SolveTime is the mean solve time in milliseconds.
type SolveTime struct {
	sum     float64
	samples int
}

func NewSolveTime() *SolveTime { return &SolveTime{} }

func (m *SolveTime) Name() string { return "solve_ms" }

func (m *SolveTime) Observe(s sim.Step) {
	m.sum += float64(s.SolveTime.Microseconds()) / 1000
	m.samples++
}

func (m *SolveTime) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *SolveTime) Reset() { *m = SolveTime{} }

// Default is the set the CLI records for every run.
func Default() []sim.Metric {
	return []sim.Metric{
		NewCTERMS(),
		NewMaxCTE(),
		NewMeanSpeed(),
		NewControlEffort(),
		NewSteerJerk(),
		NewSteerChatter(1.0),
		NewStability(1.0),
		NewDegradedRatio(),
		NewSolveTime(),
	}
}
