// Package nlp solves bound-constrained nonlinear programs of the form
//
//	minimize f(x)
//	subject to  gl ≤ g(x) ≤ gu
//	            xl ≤ x    ≤ xu
//
// Callers describe the program through [Problem] and hand it to a [Solver]
// together with [Bounds], an initial point and a context carrying the wall
// clock budget. Bounds at or beyond ±[Infinity] are treated as absent, and a
// constraint whose lower and upper bounds coincide is an equality.
//
// Two engines are bundled and [New] picks one by name:
//
//   - [SLSQP] wraps curioloop's sequential least squares programming, which
//     handles equalities, inequalities and variable bounds natively. The
//     wall clock budget is enforced between function evaluations.
//   - [AugLag] is an augmented-Lagrangian outer loop that updates multipliers
//     and the penalty, with an unconstrained L-BFGS inner solve from
//     gonum/optimize over box-transformed variables.
//
// Both return iterates that satisfy the variable bounds.
//
// # Status
//
// Every solve ends in one of [Converged], [TimeLimit], [IterationLimit] or
// [Infeasible]. Only [Infeasible] means the iterate should not be used; the
// two limit statuses carry an iterate whose constraint violation is within the
// usable tolerance.
package nlp
