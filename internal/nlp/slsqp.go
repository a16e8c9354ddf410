package nlp

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/optimizer/slsqp"
	"go.uber.org/zap"
)

// SLSQP runs Kraft's sequential least squares programming method, which
// keeps equality and inequality constraints and variable bounds explicit
// instead of penalising them.
type SLSQP struct {
	opts   Options
	logger *zap.Logger
}

func NewSLSQP(opts Options, logger *zap.Logger) *SLSQP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLSQP{opts: opts, logger: logger}
}

func (s *SLSQP) Options() Options { return s.opts }

// errAborted is panicked from an evaluation once the context expires; the
// optimizer recovers it and stops with its bad-argument mode.
type errAborted struct{}

// sqpEval caches constraint values and the Jacobian at the last point,
// because the optimizer asks for every constraint separately.
type sqpEval struct {
	ctx context.Context
	p   Problem
	n   int

	gx, g   []float64
	hasG    bool
	jx, jac []float64 // jac is m×n, row major
	hasJac  bool
	unit    []float64
	evals   int
	aborted bool
}

func newSQPEval(ctx context.Context, p Problem) *sqpEval {
	n, m := p.Dims()
	return &sqpEval{
		ctx:  ctx,
		p:    p,
		n:    n,
		gx:   make([]float64, n),
		g:    make([]float64, m),
		jx:   make([]float64, n),
		jac:  make([]float64, m*n),
		unit: make([]float64, m),
	}
}

func (e *sqpEval) checkCtx() {
	if e.ctx.Err() != nil {
		e.aborted = true
		panic(errAborted{})
	}
}

func (e *sqpEval) constraints(x []float64) []float64 {
	if !e.hasG || !slices.Equal(x, e.gx) {
		copy(e.gx, x)
		e.p.Constraints(e.g, x)
		e.hasG = true
	}
	return e.g
}

func (e *sqpEval) row(x []float64, j int) []float64 {
	if !e.hasJac || !slices.Equal(x, e.jx) {
		copy(e.jx, x)
		for k := range e.unit {
			e.unit[k] = 1
			e.p.ConstraintsVJP(e.jac[k*e.n:(k+1)*e.n], x, e.unit)
			e.unit[k] = 0
		}
		e.hasJac = true
	}
	return e.jac[j*e.n : (j+1)*e.n]
}

func (e *sqpEval) objective(x, grad []float64) float64 {
	e.checkCtx()
	if grad != nil {
		e.p.ObjectiveGrad(grad, x)
		return 0
	}
	e.evals++
	return e.p.Objective(x)
}

// constraint is sign·(g_j(x) − offset), which the optimizer keeps at zero
// or non-negative.
func (e *sqpEval) constraint(j int, sign, offset float64) slsqp.Evaluation {
	return func(x, grad []float64) float64 {
		e.checkCtx()
		if grad != nil {
			for i, v := range e.row(x, j) {
				grad[i] = sign * v
			}
			return 0
		}
		return sign * (e.constraints(x)[j] - offset)
	}
}

// split turns two-sided constraint bounds into equalities and one-sided
// inequalities.
func (e *sqpEval) split(b Bounds) (eq, neq []slsqp.Evaluation) {
	for j := range b.GLower {
		lo, hi := b.GLower[j], b.GUpper[j]
		hasLo, hasHi := lo > -Infinity, hi < Infinity
		switch {
		case hasLo && hasHi && lo == hi:
			eq = append(eq, e.constraint(j, 1, lo))
			continue
		case hasLo:
			neq = append(neq, e.constraint(j, 1, lo))
		}
		if hasHi {
			neq = append(neq, e.constraint(j, -1, hi))
		}
	}
	return eq, neq
}

func sqpBounds(b Bounds) []slsqp.Bound {
	out := make([]slsqp.Bound, len(b.XLower))
	for i := range out {
		out[i] = slsqp.Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
		if b.XLower[i] > -Infinity {
			out[i].Lower = b.XLower[i]
		}
		if b.XUpper[i] < Infinity {
			out[i].Upper = b.XUpper[i]
		}
	}
	return out
}

func (s *SLSQP) Solve(ctx context.Context, p Problem, x0 []float64, b Bounds) (*Result, error) {
	n, m := p.Dims()
	if len(x0) != n {
		return nil, fmt.Errorf("initial point has %d entries, want %d: %w", len(x0), n, ErrDimension)
	}
	if err := b.Check(n, m); err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return s.result(p, b, slices.Clone(x0), TimeLimit, 0, 0), nil
	}

	ev := newSQPEval(ctx, p)
	eq, neq := ev.split(b)
	if len(eq) > n {
		return nil, fmt.Errorf("%d equality constraints on %d variables: %w", len(eq), n, ErrDimension)
	}
	spec := slsqp.Problem{
		N: n,
		Stop: slsqp.Termination{
			Accuracy:      s.opts.Accuracy,
			MaxIterations: s.opts.MaxIterations,
		},
		Object:  ev.objective,
		EqCons:  eq,
		NeqCons: neq,
		Bounds:  sqpBounds(b),
		BndInf:  Infinity,
	}
	opt, err := spec.New()
	if err != nil {
		return nil, fmt.Errorf("slsqp: %w", err)
	}
	fit := opt.Fit(x0, opt.Init())

	var status Status
	switch {
	case ev.aborted:
		status = TimeLimit
	case fit.Status == slsqp.OK:
		status = Converged
	default:
		// the iteration cap, a stalled line search or an inconsistent
		// subproblem all leave an iterate that is usable only if feasible
		status = IterationLimit
	}

	res := s.result(p, b, fit.X, status, fit.NumIter, ev.evals)
	if res.Status == Converged && res.Violation > s.opts.Tolerance {
		res.Status = IterationLimit
	}

	s.logger.Debug("slsqp finished",
		zap.Int("mode", int(fit.Status)),
		zap.String("status", res.Status.String()),
		zap.Int("iterations", fit.NumIter),
		zap.Int("evaluations", ev.evals),
		zap.Float64("violation", res.Violation),
	)
	return res, nil
}

// result evaluates the final iterate and downgrades it to Infeasible when
// it cannot drive an actuator.
func (s *SLSQP) result(p Problem, b Bounds, x []float64, status Status, iters, evals int) *Result {
	_, m := p.Dims()
	res := &Result{
		X:           x,
		G:           make([]float64, m),
		Status:      status,
		Iterations:  iters,
		Evaluations: evals,
	}
	p.Constraints(res.G, res.X)
	res.F = p.Objective(res.X)
	res.Violation = b.Violation(res.G)

	if !finite(res.X) || math.IsNaN(res.F) || math.IsInf(res.F, 0) || res.Violation > s.opts.UsableTolerance {
		res.Status = Infeasible
	}
	return res
}
