package integrators

import "github.com/san-kum/mpctrack/internal/dynamo"

// Euler is the explicit first-order stepper. It matches the discretisation
// the trajectory optimiser uses for its own prediction model.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	return x.Axpy(dt, dyn.Derive(x, u, t))
}
