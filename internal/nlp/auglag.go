package nlp

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"
)

// AugLag is a Powell-Hestenes-Rockafellar augmented Lagrangian solver. Each
// outer iteration minimises
//
//	f(x) + Σ ρ/2·dist(gⱼ(x) + λⱼ/ρ, [glⱼ, guⱼ])² − λⱼ²/(2ρ)
//
// with L-BFGS, then sets λⱼ to ρ·(shifted − projected) and grows ρ when the
// violation did not shrink by a quarter.
type AugLag struct {
	opts   Options
	logger *zap.Logger
}

func NewAugLag(opts Options, logger *zap.Logger) *AugLag {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AugLag{opts: opts, logger: logger}
}

func (s *AugLag) Options() Options { return s.opts }

// lagrangian owns the buffers shared by the value and gradient closures.
type lagrangian struct {
	p      Problem
	box    *box
	b      Bounds
	lambda []float64
	rho    float64

	x, g, w, gradF, jtw []float64
	evals               int
}

func newLagrangian(p Problem, b Bounds, rho float64) *lagrangian {
	n, m := p.Dims()
	return &lagrangian{
		p:      p,
		box:    newBox(b.XLower, b.XUpper),
		b:      b,
		lambda: make([]float64, m),
		rho:    rho,
		x:      make([]float64, n),
		g:      make([]float64, m),
		w:      make([]float64, m),
		gradF:  make([]float64, n),
		jtw:    make([]float64, n),
	}
}

// weights stores ρ·(shifted − projected) for every constraint in l.w, which
// is both the multiplier estimate and the gradient weight of the penalty.
func (l *lagrangian) weights() {
	for j, gj := range l.g {
		shifted := gj + l.lambda[j]/l.rho
		l.w[j] = l.rho * (shifted - project(shifted, l.b.GLower[j], l.b.GUpper[j]))
	}
}

func (l *lagrangian) value(z []float64) float64 {
	l.evals++
	l.box.toX(l.x, z)
	l.p.Constraints(l.g, l.x)
	f := l.p.Objective(l.x)
	for j, gj := range l.g {
		shifted := gj + l.lambda[j]/l.rho
		d := shifted - project(shifted, l.b.GLower[j], l.b.GUpper[j])
		f += l.rho/2*d*d - l.lambda[j]*l.lambda[j]/(2*l.rho)
	}
	return f
}

func (l *lagrangian) grad(grad, z []float64) {
	l.box.toX(l.x, z)
	l.p.Constraints(l.g, l.x)
	l.weights()
	l.p.ObjectiveGrad(l.gradF, l.x)
	l.p.ConstraintsVJP(l.jtw, l.x, l.w)
	for i := range grad {
		grad[i] = (l.gradF[i] + l.jtw[i]) * l.box.slope(i, z[i])
	}
}

func innerConverged(st optimize.Status) bool {
	switch st {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence,
		optimize.StepConvergence, optimize.MethodConverge, optimize.FunctionThreshold:
		return true
	}
	return false
}

func (s *AugLag) Solve(ctx context.Context, p Problem, x0 []float64, b Bounds) (*Result, error) {
	n, m := p.Dims()
	if len(x0) != n {
		return nil, fmt.Errorf("initial point has %d entries, want %d: %w", len(x0), n, ErrDimension)
	}
	if err := b.Check(n, m); err != nil {
		return nil, err
	}

	l := newLagrangian(p, b, s.opts.InitialPenalty)
	z := make([]float64, n)
	l.box.fromX(z, x0)

	problem := optimize.Problem{
		Func: l.value,
		Grad: l.grad,
		Status: func() (optimize.Status, error) {
			if ctx.Err() != nil {
				return optimize.RuntimeLimit, nil
			}
			return optimize.NotTerminated, nil
		},
	}

	status := IterationLimit
	prevViolation := math.Inf(1)
	iterations := 0

	for k := 0; k < s.opts.MaxOuter; k++ {
		if ctx.Err() != nil {
			status = TimeLimit
			break
		}
		iterations = k + 1

		settings := &optimize.Settings{
			GradientThreshold: s.opts.GradientTol,
			MajorIterations:   s.opts.MaxInner,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-10,
				Relative:   1e-12,
				Iterations: 25,
			},
		}
		if deadline, ok := ctx.Deadline(); ok {
			settings.Runtime = time.Until(deadline)
		}

		inner, err := optimize.Minimize(problem, z, settings, &optimize.LBFGS{})
		if inner == nil || inner.X == nil {
			s.logger.Debug("inner solve returned no location", zap.Int("outer", k), zap.Error(err))
			break
		}
		copy(z, inner.X)

		l.box.toX(l.x, z)
		p.Constraints(l.g, l.x)
		violation := b.Violation(l.g)

		s.logger.Debug("outer iteration",
			zap.Int("outer", k),
			zap.String("inner_status", inner.Status.String()),
			zap.Float64("violation", violation),
			zap.Float64("penalty", l.rho),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			status = TimeLimit
			break
		}
		// a line search that can no longer make progress counts as done
		if violation <= s.opts.Tolerance && (err != nil || innerConverged(inner.Status)) {
			status = Converged
			break
		}

		l.weights()
		copy(l.lambda, l.w)
		if violation > 0.25*prevViolation {
			l.rho = math.Min(l.rho*s.opts.PenaltyGrowth, s.opts.MaxPenalty)
		}
		prevViolation = violation
	}

	res := &Result{
		X:           make([]float64, n),
		G:           make([]float64, m),
		Status:      status,
		Iterations:  iterations,
		Evaluations: l.evals,
		Penalty:     l.rho,
	}
	l.box.toX(res.X, z)
	p.Constraints(res.G, res.X)
	res.F = p.Objective(res.X)
	res.Violation = b.Violation(res.G)

	if !finite(res.X) || math.IsNaN(res.F) || math.IsInf(res.F, 0) || res.Violation > s.opts.UsableTolerance {
		res.Status = Infeasible
	}
	return res, nil
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
