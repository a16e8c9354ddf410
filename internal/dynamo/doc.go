// Package dynamo provides the primitives shared by the plant simulation and
// the trajectory controller.
//
// The package defines the vectors and interfaces used to integrate a
// continuous-time vehicle model:
//
//   - [State]: vector representing plant state
//   - [Control]: actuator vector applied over one integration step
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//
// # Example
//
//	plant := vehicle.NewBicycle(2.67)
//	integ := integrators.NewRK4()
//	x = integ.Step(plant, x, dynamo.Control{steer, accel}, t, dt)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
// Give every simulated vehicle its own integrator.
package dynamo
