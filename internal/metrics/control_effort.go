package metrics

import (
	"math"

	"github.com/san-kum/mpctrack/internal/sim"
)

// ControlEffort is the mean of |steer| + |accel| over all cycles.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(s sim.Step) {
	c.sum += math.Abs(s.Command.Steer) + math.Abs(s.Command.Accel)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// SteerJerk is the mean absolute change in steering between consecutive
// cycles, the quantity the steer-rate weight penalises.
type SteerJerk struct {
	prev    float64
	sum     float64
	samples int
}

func NewSteerJerk() *SteerJerk { return &SteerJerk{} }

func (j *SteerJerk) Name() string { return "steer_jerk" }

func (j *SteerJerk) Observe(s sim.Step) {
	if j.samples > 0 {
		j.sum += math.Abs(s.Command.Steer - j.prev)
	}
	j.prev = s.Command.Steer
	j.samples++
}

func (j *SteerJerk) Value() float64 {
	if j.samples < 2 {
		return 0
	}
	return j.sum / float64(j.samples-1)
}

func (j *SteerJerk) Reset() {
	*j = SteerJerk{}
}
