package mpc

import (
	"math"

	"github.com/san-kum/mpctrack/internal/polyfit"
)

// State is the vehicle state in the vehicle-local frame at the moment the
// next command takes effect.
type State struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Psi  float64 `json:"psi"`
	V    float64 `json:"v"`
	CTE  float64 `json:"cte"`
	EPsi float64 `json:"epsi"`
}

// Get returns the component stored in state block b.
func (s State) Get(b Block) float64 {
	switch b {
	case BlockX:
		return s.X
	case BlockY:
		return s.Y
	case BlockPsi:
		return s.Psi
	case BlockV:
		return s.V
	case BlockCTE:
		return s.CTE
	case BlockEPsi:
		return s.EPsi
	}
	return math.NaN()
}

func (s State) Valid() bool {
	for b := BlockX; b < BlockSteer; b++ {
		v := s.Get(b)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// stateAt reads the state at step t from a decision vector.
func (l Layout) stateAt(vars []float64, t int) State {
	return State{
		X:    vars[l.Index(BlockX, t)],
		Y:    vars[l.Index(BlockY, t)],
		Psi:  vars[l.Index(BlockPsi, t)],
		V:    vars[l.Index(BlockV, t)],
		CTE:  vars[l.Index(BlockCTE, t)],
		EPsi: vars[l.Index(BlockEPsi, t)],
	}
}

func (l Layout) putState(vars []float64, t int, s State) {
	for b := BlockX; b < BlockSteer; b++ {
		vars[l.Index(b, t)] = s.Get(b)
	}
}

// InitialState derives cte and heading error for a vehicle sitting at the
// origin of the local frame with heading zero and speed v.
func InitialState(path polyfit.Poly, v float64) State {
	return State{
		V:    v,
		CTE:  path.Eval(0),
		EPsi: -path.Heading(0),
	}
}

// Step advances s by dt holding steer and accel constant:
//
//	x'    = x + v cos ψ dt
//	y'    = y + v sin ψ dt
//	ψ'    = ψ − v/Lf δ dt
//	v'    = v + a dt
//	cte'  = (f(x) − y) + v sin eψ dt
//	eψ'   = (ψ − atan f'(x)) − v/Lf δ dt
func Step(s State, steer, accel, dt, lf float64, path polyfit.Poly) State {
	turn := s.V / lf * steer * dt
	return State{
		X:    s.X + s.V*math.Cos(s.Psi)*dt,
		Y:    s.Y + s.V*math.Sin(s.Psi)*dt,
		Psi:  s.Psi - turn,
		V:    s.V + accel*dt,
		CTE:  (path.Eval(s.X) - s.Y) + s.V*math.Sin(s.EPsi)*dt,
		EPsi: (s.Psi - path.Heading(s.X)) - turn,
	}
}
