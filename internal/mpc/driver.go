package mpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/nlp"
	"github.com/san-kum/mpctrack/internal/polyfit"
)

type Status int

const (
	// Converged means the solver met its optimality and feasibility tolerances.
	Converged Status = iota
	// Degraded means the solver stopped on a time or iteration limit with a
	// near-feasible iterate. The commands are still reasonable to apply.
	Degraded
	// Infeasible means the iterate violates the dynamics or is not finite.
	// The commands are reported but callers should fall back.
	Infeasible
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case Degraded:
		return "degraded"
	case Infeasible:
		return "infeasible"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) Usable() bool { return s != Infeasible }

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "converged":
		*s = Converged
	case "degraded":
		*s = Degraded
	case "infeasible":
		*s = Infeasible
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

func statusOf(st nlp.Status) Status {
	switch st {
	case nlp.Converged:
		return Converged
	case nlp.TimeLimit, nlp.IterationLimit:
		return Degraded
	}
	return Infeasible
}

// Solution is the extracted result of one solve.
type Solution struct {
	Steer float64 `json:"steer"`
	Accel float64 `json:"accel"`

	// Predicted holds (x, y) for steps 1..N-1 in the local frame, excluding
	// the pinned current position.
	Predicted  []geom.Point `json:"predicted"`
	// Trajectory holds all N predicted states, step 0 being the pinned one.
	Trajectory []State      `json:"trajectory"`
	Steers     []float64    `json:"steers"`
	Accels     []float64    `json:"accels"`

	Cost       float64       `json:"cost"`
	Violation  float64       `json:"violation"`
	Status     Status        `json:"status"`
	Solver     string        `json:"solver_status"`
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Driver assembles the optimisation problem for each control cycle, runs
// the solver under the time budget and extracts the commands.
type Driver struct {
	params Params
	layout Layout
	solver nlp.Solver
	logger *zap.Logger
}

type Option func(*Driver)

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDriver(p Params, solver nlp.Solver, opts ...Option) (*Driver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if solver == nil {
		return nil, fmt.Errorf("nil solver: %w", ErrInvalidParams)
	}
	l, err := NewLayout(p.Horizon)
	if err != nil {
		return nil, err
	}
	d := &Driver{params: p, layout: l, solver: solver, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Driver) Params() Params { return d.params }
func (d *Driver) Layout() Layout { return d.layout }

// InitialGuess is all zeros except the step-0 state entries.
func (d *Driver) InitialGuess(s State) []float64 {
	vars := make([]float64, d.layout.NumVars())
	d.layout.putState(vars, 0, s)
	return vars
}

// Bounds leaves states unbounded, limits steering and acceleration
// symmetrically, fixes the pin constraints to s and every dynamics
// residual to zero.
func (d *Driver) Bounds(s State) nlp.Bounds {
	l := d.layout
	n, m := l.NumVars(), l.NumConstraints()
	b := nlp.Bounds{
		XLower: make([]float64, n),
		XUpper: make([]float64, n),
		GLower: make([]float64, m),
		GUpper: make([]float64, m),
	}

	steerAt := l.Start(BlockSteer)
	accelAt := l.Start(BlockAccel)
	for i := 0; i < n; i++ {
		switch {
		case i < steerAt:
			b.XLower[i], b.XUpper[i] = -nlp.Infinity, nlp.Infinity
		case i < accelAt:
			b.XLower[i], b.XUpper[i] = -d.params.MaxSteer, d.params.MaxSteer
		default:
			b.XLower[i], b.XUpper[i] = -d.params.MaxAccel, d.params.MaxAccel
		}
	}
	for blk := BlockX; blk < BlockSteer; blk++ {
		v := s.Get(blk)
		b.GLower[l.Start(blk)] = v
		b.GUpper[l.Start(blk)] = v
	}
	return b
}

// problem adapts an Objective to nlp.Problem.
type problem struct {
	obj *Objective
}

func (p problem) Dims() (int, int) {
	return p.obj.layout.NumVars(), p.obj.layout.NumConstraints()
}
func (p problem) Objective(x []float64) float64      { return p.obj.Cost(x) }
func (p problem) ObjectiveGrad(grad, x []float64)    { p.obj.CostGradient(grad, x) }
func (p problem) Constraints(g, x []float64)         { p.obj.Constraints(g, x) }
func (p problem) ConstraintsVJP(dst, x, w []float64) { p.obj.ConstraintsVJP(dst, x, w) }

// Solve computes the actuation to apply now. The error is non-nil only for
// invalid input or a solver that produced no iterate; every other outcome is
// reported through Solution.Status.
func (d *Driver) Solve(ctx context.Context, s State, path polyfit.Poly) (*Solution, error) {
	if !s.Valid() {
		return nil, ErrInvalidState
	}
	obj, err := NewObjective(d.params, path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.params.Budget)
	defer cancel()

	start := time.Now()
	res, err := d.solver.Solve(ctx, problem{obj: obj}, d.InitialGuess(s), d.Bounds(s))
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("mpc: solve: %w", err)
	}
	if res == nil || len(res.X) != d.layout.NumVars() {
		return nil, ErrNoIterate
	}

	sol := d.extract(res.X)
	sol.Cost = res.F
	sol.Violation = res.Violation
	sol.Status = statusOf(res.Status)
	sol.Solver = res.Status.String()
	sol.Iterations = res.Iterations
	sol.Elapsed = elapsed

	fields := []zap.Field{
		zap.Float64("cost", sol.Cost),
		zap.Stringer("status", sol.Status),
		zap.Float64("violation", sol.Violation),
		zap.Int("iterations", sol.Iterations),
		zap.Duration("elapsed", elapsed),
		zap.Float64("steer", sol.Steer),
		zap.Float64("accel", sol.Accel),
	}
	if sol.Status == Infeasible {
		d.logger.Warn("mpc solve infeasible", fields...)
	} else {
		d.logger.Debug("mpc solve", fields...)
	}
	return sol, nil
}

func (d *Driver) extract(x []float64) *Solution {
	l := d.layout
	n := l.Horizon()
	sol := &Solution{
		Steer:      x[l.Start(BlockSteer)],
		Accel:      x[l.Start(BlockAccel)],
		Predicted:  make([]geom.Point, 0, n-1),
		Trajectory: make([]State, n),
		Steers:     append([]float64(nil), l.Slice(x, BlockSteer)...),
		Accels:     append([]float64(nil), l.Slice(x, BlockAccel)...),
	}
	for t := 0; t < n; t++ {
		sol.Trajectory[t] = l.stateAt(x, t)
		if t > 0 {
			sol.Predicted = append(sol.Predicted, geom.Point{
				X: x[l.Index(BlockX, t)],
				Y: x[l.Index(BlockY, t)],
			})
		}
	}
	return sol
}
