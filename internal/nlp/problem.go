package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Infinity is the bound magnitude from which a bound is considered absent.
const Infinity = 1.0e19

var (
	ErrDimension = errors.New("nlp: dimension mismatch")
	ErrBounds    = errors.New("nlp: lower bound exceeds upper bound")
	ErrNoIterate = errors.New("nlp: solver produced no iterate")
)

// Problem is an objective plus constraint evaluator with first derivatives.
type Problem interface {
	// Dims returns the number of variables n and constraints m.
	Dims() (n, m int)
	Objective(x []float64) float64
	ObjectiveGrad(grad, x []float64)
	Constraints(g, x []float64)
	// ConstraintsVJP stores J(x)ᵀw in dst, J being the m×n constraint Jacobian.
	ConstraintsVJP(dst, x, w []float64)
}

type Bounds struct {
	XLower, XUpper []float64
	GLower, GUpper []float64
}

func (b Bounds) Check(n, m int) error {
	if len(b.XLower) != n || len(b.XUpper) != n {
		return fmt.Errorf("variable bounds have %d/%d entries, want %d: %w", len(b.XLower), len(b.XUpper), n, ErrDimension)
	}
	if len(b.GLower) != m || len(b.GUpper) != m {
		return fmt.Errorf("constraint bounds have %d/%d entries, want %d: %w", len(b.GLower), len(b.GUpper), m, ErrDimension)
	}
	for i := range b.XLower {
		if b.XLower[i] > b.XUpper[i] {
			return fmt.Errorf("variable %d: [%g, %g]: %w", i, b.XLower[i], b.XUpper[i], ErrBounds)
		}
	}
	for j := range b.GLower {
		if b.GLower[j] > b.GUpper[j] {
			return fmt.Errorf("constraint %d: [%g, %g]: %w", j, b.GLower[j], b.GUpper[j], ErrBounds)
		}
	}
	return nil
}

// Violation is the largest distance of g from its bounds.
func (b Bounds) Violation(g []float64) float64 {
	v := 0.0
	for j, gj := range g {
		if math.IsNaN(gj) {
			return math.Inf(1)
		}
		v = math.Max(v, math.Abs(gj-project(gj, b.GLower[j], b.GUpper[j])))
	}
	return v
}

func project(v, lo, hi float64) float64 {
	if lo > -Infinity && v < lo {
		return lo
	}
	if hi < Infinity && v > hi {
		return hi
	}
	return v
}

type Status int

const (
	Converged Status = iota
	TimeLimit
	IterationLimit
	Infeasible
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case TimeLimit:
		return "time_limit"
	case IterationLimit:
		return "iteration_limit"
	case Infeasible:
		return "infeasible"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Result struct {
	X           []float64
	F           float64
	G           []float64
	Violation   float64
	Status      Status
	Iterations  int
	Evaluations int
	Penalty     float64
}

// Usable reports whether X may drive an actuator.
func (r *Result) Usable() bool {
	return r != nil && r.Status != Infeasible
}

// Solver is the capability the trajectory driver depends on: return the best
// iterate found before ctx expires together with a status.
type Solver interface {
	Solve(ctx context.Context, p Problem, x0 []float64, b Bounds) (*Result, error)
}
