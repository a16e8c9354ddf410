// Package mpc formulates and solves the receding-horizon path-tracking
// problem for a kinematic bicycle.
//
// The decision vector holds N predicted values for each of the six state
// variables followed by N-1 steering and N-1 acceleration values. [Layout]
// computes every block offset from N, and both [Objective] and [Driver] are
// built from the same [Params], so the two always agree on the indexing.
//
//   - [Objective]: cost plus dynamics residuals for a decision vector, with
//     analytic first derivatives
//   - [Driver]: initial guess, bounds, solver call and extraction of the
//     command to apply now
//   - [Step]: the discrete kinematic model, shared with latency compensation
//
// # Example
//
//	drv, _ := mpc.NewDriver(mpc.DefaultParams(), nlp.NewSLSQP(nlp.DefaultOptions(), log))
//	sol, err := drv.Solve(ctx, state, coeffs)
//	if err == nil && sol.Status.Usable() {
//	    apply(sol.Steer, sol.Accel)
//	}
//
// # Sign convention
//
// Positive steering decreases heading: ψ' = ψ − v/Lf·δ·dt. Sinks that expect
// the opposite convention flip the sign at the actuator, never here.
package mpc
