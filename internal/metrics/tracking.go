package metrics

import (
	"math"

	"github.com/san-kum/mpctrack/internal/sim"
)

// CTERMS is the root mean square cross-track error.
type CTERMS struct {
	sumSq   float64
	samples int
}

func NewCTERMS() *CTERMS { return &CTERMS{} }

func (m *CTERMS) Name() string { return "cte_rms" }

func (m *CTERMS) Observe(s sim.Step) {
	m.sumSq += s.CTE * s.CTE
	m.samples++
}

func (m *CTERMS) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *CTERMS) Reset() { *m = CTERMS{} }

type MaxCTE struct {
	max float64
}

func NewMaxCTE() *MaxCTE { return &MaxCTE{} }

func (m *MaxCTE) Name() string { return "max_cte" }

func (m *MaxCTE) Observe(s sim.Step) { m.max = math.Max(m.max, math.Abs(s.CTE)) }

func (m *MaxCTE) Value() float64 { return m.max }

func (m *MaxCTE) Reset() { m.max = 0 }

type MeanSpeed struct {
	sum     float64
	samples int
}

func NewMeanSpeed() *MeanSpeed { return &MeanSpeed{} }

func (m *MeanSpeed) Name() string { return "mean_speed" }

func (m *MeanSpeed) Observe(s sim.Step) {
	m.sum += s.Speed
	m.samples++
}

func (m *MeanSpeed) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanSpeed) Reset() { *m = MeanSpeed{} }
