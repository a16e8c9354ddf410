package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Axpy returns s + a*d without modifying either operand.
func (s State) Axpy(a float64, d State) State {
	out := make(State, len(s))
	for i := range s {
		out[i] = s[i]
		if i < len(d) {
			out[i] += a * d[i]
		}
	}
	return out
}

type Control []float64

func (u Control) Clone() Control {
	c := make(Control, len(u))
	copy(c, u)
	return c
}

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t, dt float64) State
}

// Configurable systems expose their physical parameters for inspection and
// live adjustment.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// CheckDims reports ErrDimensionMismatch when x or u do not match dyn.
func CheckDims(dyn System, x State, u Control) error {
	if len(x) != dyn.StateDim() {
		return fmt.Errorf("state has %d components, want %d: %w", len(x), dyn.StateDim(), ErrDimensionMismatch)
	}
	if len(u) != dyn.ControlDim() {
		return fmt.Errorf("control has %d components, want %d: %w", len(u), dyn.ControlDim(), ErrDimensionMismatch)
	}
	return nil
}
