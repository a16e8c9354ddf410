// Package control runs one control cycle: it turns an observation of the
// vehicle and the waypoints ahead into an actuator command.
//
//   - [Tracker]: model predictive control through [mpc.Driver], with
//     latency compensation and a fallback policy for infeasible solves
//   - [PIDTracker]: a PID baseline on the same fitted path, useful for
//     comparison runs and as a solver-free controller in tests
//
// Both implement [Planner]. The cycle is:
//
//	world waypoints → vehicle frame → cubic fit → latency prediction → command
//
// [PID] implements [dynamo.Configurable] for live tuning.
package control
