package integrators

import "github.com/san-kum/mpctrack/internal/dynamo"

// RK4 is the classic fourth-order Runge-Kutta stepper. Stage buffers are
// reused between calls, so an RK4 value must not be shared across goroutines.
type RK4 struct {
	k [4]dynamo.State
	x dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) grow(n int) {
	if len(r.x) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.x = make(dynamo.State, n)
}

func (r *RK4) stage(dst dynamo.State, dyn dynamo.System, x dynamo.State, h float64, prev dynamo.State, u dynamo.Control, t float64) {
	for i := range x {
		r.x[i] = x[i] + h*prev[i]
	}
	copy(dst, dyn.Derive(r.x, u, t))
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.grow(n)

	copy(r.k[0], dyn.Derive(x, u, t))
	r.stage(r.k[1], dyn, x, dt/2, r.k[0], u, t+dt/2)
	r.stage(r.k[2], dyn, x, dt/2, r.k[1], u, t+dt/2)
	r.stage(r.k[3], dyn, x, dt, r.k[2], u, t+dt)

	out := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		out[i] = x[i] + dt/6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return out
}
