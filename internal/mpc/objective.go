package mpc

import (
	"fmt"
	"math"

	"github.com/san-kum/mpctrack/internal/polyfit"
)

// Objective evaluates the tracking cost and the dynamics residuals of a
// decision vector for one path. It holds no per-call state and is safe for
// concurrent use.
type Objective struct {
	params Params
	layout Layout
	path   polyfit.Poly
}

func NewObjective(p Params, path polyfit.Poly) (*Objective, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(path) != 4 || !path.IsFinite() {
		return nil, ErrInvalidCoefficients
	}
	l, err := NewLayout(p.Horizon)
	if err != nil {
		return nil, err
	}
	return &Objective{params: p, layout: l, path: path}, nil
}

func (o *Objective) Layout() Layout     { return o.layout }
func (o *Objective) Path() polyfit.Poly { return o.path }
func (o *Objective) Params() Params     { return o.params }

func (o *Objective) checkVars(vars []float64) {
	if len(vars) != o.layout.NumVars() {
		panic(fmt.Sprintf("mpc: decision vector has %d entries, want %d", len(vars), o.layout.NumVars()))
	}
}

// Eval writes the cost to fg[0] and the constraint vector to fg[1:].
func (o *Objective) Eval(fg, vars []float64) {
	fg[0] = o.Cost(vars)
	o.Constraints(fg[1:], vars)
}

// Cost sums the weighted squared tracking errors over all N steps, the
// weighted squared actuations over N-1 steps and the weighted squared
// actuation changes over N-2 steps.
func (o *Objective) Cost(vars []float64) float64 {
	o.checkVars(vars)
	l, w := o.layout, o.params.Weights

	var cost float64
	for t := 0; t < l.n; t++ {
		cte := vars[l.Index(BlockCTE, t)]
		epsi := vars[l.Index(BlockEPsi, t)]
		dv := vars[l.Index(BlockV, t)] - o.params.RefSpeed
		cost += w.CTE*cte*cte + w.EPsi*epsi*epsi + w.Speed*dv*dv
	}

	steer, accel := l.Slice(vars, BlockSteer), l.Slice(vars, BlockAccel)
	for t := range steer {
		cost += w.Steer*steer[t]*steer[t] + w.Accel*accel[t]*accel[t]
	}
	for t := 0; t+1 < len(steer); t++ {
		ds := steer[t+1] - steer[t]
		da := accel[t+1] - accel[t]
		cost += w.SteerRate*ds*ds + w.AccelRate*da*da
	}
	return cost
}

// Constraints fills g (length 6N). The entry at each state block start is
// the decision value itself and is pinned to the current state by the
// bounds. Every other entry is next − model(prev, actuation) and must be 0.
func (o *Objective) Constraints(g, vars []float64) {
	o.checkVars(vars)
	l, p := o.layout, o.params

	for b := BlockX; b < BlockSteer; b++ {
		g[l.Start(b)] = vars[l.Start(b)]
	}
	for t := 0; t+1 < l.n; t++ {
		prev := l.stateAt(vars, t)
		next := l.stateAt(vars, t+1)
		steer := vars[l.Index(BlockSteer, t)]
		accel := vars[l.Index(BlockAccel, t)]
		model := Step(prev, steer, accel, p.Dt, p.Lf, o.path)
		for b := BlockX; b < BlockSteer; b++ {
			g[l.Index(b, t+1)] = next.Get(b) - model.Get(b)
		}
	}
}

// CostGradient writes ∂cost/∂vars into grad.
func (o *Objective) CostGradient(grad, vars []float64) {
	o.checkVars(vars)
	l, w := o.layout, o.params.Weights
	clear(grad)

	for t := 0; t < l.n; t++ {
		grad[l.Index(BlockCTE, t)] = 2 * w.CTE * vars[l.Index(BlockCTE, t)]
		grad[l.Index(BlockEPsi, t)] = 2 * w.EPsi * vars[l.Index(BlockEPsi, t)]
		grad[l.Index(BlockV, t)] = 2 * w.Speed * (vars[l.Index(BlockV, t)] - o.params.RefSpeed)
	}

	steer, accel := l.Slice(vars, BlockSteer), l.Slice(vars, BlockAccel)
	gs, ga := l.Slice(grad, BlockSteer), l.Slice(grad, BlockAccel)
	for t := range steer {
		gs[t] = 2 * w.Steer * steer[t]
		ga[t] = 2 * w.Accel * accel[t]
	}
	for t := 0; t+1 < len(steer); t++ {
		ds := 2 * w.SteerRate * (steer[t+1] - steer[t])
		da := 2 * w.AccelRate * (accel[t+1] - accel[t])
		gs[t+1] += ds
		gs[t] -= ds
		ga[t+1] += da
		ga[t] -= da
	}
}

// ConstraintsVJP writes Jᵀw into dst, where J is the Jacobian of
// Constraints at vars.
func (o *Objective) ConstraintsVJP(dst, vars, w []float64) {
	o.checkVars(vars)
	l, p := o.layout, o.params
	clear(dst)

	for b := BlockX; b < BlockSteer; b++ {
		dst[l.Start(b)] += w[l.Start(b)]
	}

	dt, lf := p.Dt, p.Lf
	for t := 0; t+1 < l.n; t++ {
		ix, iy := l.Index(BlockX, t), l.Index(BlockY, t)
		ipsi, iv := l.Index(BlockPsi, t), l.Index(BlockV, t)
		iepsi := l.Index(BlockEPsi, t)
		isteer, iaccel := l.Index(BlockSteer, t), l.Index(BlockAccel, t)

		x0, psi0, v0 := vars[ix], vars[ipsi], vars[iv]
		epsi0, steer := vars[iepsi], vars[isteer]

		wx := w[l.Index(BlockX, t+1)]
		wy := w[l.Index(BlockY, t+1)]
		wpsi := w[l.Index(BlockPsi, t+1)]
		wv := w[l.Index(BlockV, t+1)]
		wcte := w[l.Index(BlockCTE, t+1)]
		wepsi := w[l.Index(BlockEPsi, t+1)]

		for b := BlockX; b < BlockSteer; b++ {
			dst[l.Index(b, t+1)] += w[l.Index(b, t+1)]
		}

		sin, cos := math.Sincos(psi0)
		sinE, cosE := math.Sincos(epsi0)
		slope := o.path.Deriv(x0)
		curv := o.path.Deriv2(x0) / (1 + slope*slope)
		turnV := steer * dt / lf
		turnS := v0 * dt / lf

		dst[ix] += -wx - wcte*slope + wepsi*curv
		dst[iy] += -wy + wcte
		dst[ipsi] += wx*v0*sin*dt - wy*v0*cos*dt - wpsi - wepsi
		dst[iv] += -wx*cos*dt - wy*sin*dt + wpsi*turnV - wv - wcte*sinE*dt + wepsi*turnV
		dst[iepsi] += -wcte * v0 * cosE * dt
		dst[isteer] += (wpsi + wepsi) * turnS
		dst[iaccel] += -wv * dt
	}
}
