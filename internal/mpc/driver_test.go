package mpc_test

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/nlp"
	"github.com/san-kum/mpctrack/internal/polyfit"
)

// scripted returns a fixed iterate and records the context it was given.
type scripted struct {
	status   nlp.Status
	fill     float64
	err      error
	empty    bool
	deadline time.Time
	bounds   nlp.Bounds
	x0       []float64
}

func (s *scripted) Solve(ctx context.Context, p nlp.Problem, x0 []float64, b nlp.Bounds) (*nlp.Result, error) {
	s.deadline, _ = ctx.Deadline()
	s.bounds = b
	s.x0 = append([]float64(nil), x0...)
	if s.err != nil {
		return nil, s.err
	}
	if s.empty {
		return &nlp.Result{}, nil
	}
	n, m := p.Dims()
	x := make([]float64, n)
	for i := range x {
		x[i] = s.fill
	}
	g := make([]float64, m)
	p.Constraints(g, x)
	return &nlp.Result{X: x, G: g, F: p.Objective(x), Status: s.status, Violation: b.Violation(g), Iterations: 3}, nil
}

func testParams() mpc.Params {
	p := mpc.DefaultParams()
	p.Budget = 5 * time.Second
	return p
}

func newDriver(p mpc.Params, engine string) *mpc.Driver {
	opts := nlp.DefaultOptions()
	opts.Engine = engine
	solver, err := nlp.New(opts, nil)
	Expect(err).NotTo(HaveOccurred())
	drv, err := mpc.NewDriver(p, solver)
	Expect(err).NotTo(HaveOccurred())
	return drv
}

func speedError(sol *mpc.Solution, ref float64) float64 {
	var sum float64
	for _, s := range sol.Trajectory[1:] {
		sum += math.Abs(s.V - ref)
	}
	return sum
}

var _ = Describe("Driver", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	for _, engine := range nlp.Engines() {
		Context("solving with "+engine, func() {
			describeSolves(engine)
		})
	}

	Describe("with a scripted solver", func() {
		var (
			p     mpc.Params
			solv  *scripted
			drv   *mpc.Driver
			path  polyfit.Poly
			state mpc.State
		)

		BeforeEach(func() {
			p = mpc.DefaultParams()
			solv = &scripted{status: nlp.Converged, fill: 0.25}
			var err error
			drv, err = mpc.NewDriver(p, solv)
			Expect(err).NotTo(HaveOccurred())
			path = polyfit.Poly{1, 0.1, 0, 0}
			state = mpc.State{V: 10, CTE: 1, EPsi: -0.1}
		})

		It("pins the initial state through the constraint bounds", func() {
			_, err := drv.Solve(ctx, state, path)
			Expect(err).NotTo(HaveOccurred())
			l := drv.Layout()
			for blk := mpc.BlockX; blk < mpc.BlockSteer; blk++ {
				Expect(solv.bounds.GLower[l.Start(blk)]).To(Equal(state.Get(blk)))
				Expect(solv.bounds.GUpper[l.Start(blk)]).To(Equal(state.Get(blk)))
				Expect(solv.x0[l.Start(blk)]).To(Equal(state.Get(blk)))
			}
			Expect(solv.bounds.XUpper[l.Start(mpc.BlockSteer)]).To(Equal(p.MaxSteer))
			Expect(solv.bounds.XLower[l.Start(mpc.BlockAccel)]).To(Equal(-p.MaxAccel))
			Expect(solv.bounds.XUpper[0]).To(Equal(nlp.Infinity))
		})

		It("measures pin violation as the distance from the current state", func() {
			sol, err := drv.Solve(ctx, state, path)
			Expect(err).NotTo(HaveOccurred())
			// every pinned entry is 0.25 while the state has a component at 10
			Expect(sol.Violation).To(BeNumerically(">=", 10-0.25))
		})

		It("applies the solve budget as a deadline", func() {
			before := time.Now()
			_, err := drv.Solve(ctx, state, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(solv.deadline).NotTo(BeZero())
			Expect(solv.deadline).To(BeTemporally("<=", before.Add(p.Budget).Add(50*time.Millisecond)))
		})

		DescribeTable("maps solver outcomes and still extracts commands",
			func(st nlp.Status, want mpc.Status) {
				solv.status = st
				sol, err := drv.Solve(ctx, state, path)
				Expect(err).NotTo(HaveOccurred())
				Expect(sol.Status).To(Equal(want))
				Expect(sol.Solver).To(Equal(st.String()))
				Expect(sol.Steer).To(Equal(0.25))
				Expect(sol.Accel).To(Equal(0.25))
				Expect(sol.Iterations).To(Equal(3))
			},
			Entry("converged", nlp.Converged, mpc.Converged),
			Entry("time limit", nlp.TimeLimit, mpc.Degraded),
			Entry("iteration limit", nlp.IterationLimit, mpc.Degraded),
			Entry("infeasible", nlp.Infeasible, mpc.Infeasible),
		)

		It("wraps solver errors", func() {
			boom := errors.New("boom")
			solv.err = boom
			_, err := drv.Solve(ctx, state, path)
			Expect(err).To(MatchError(boom))
		})

		It("reports a missing iterate", func() {
			solv.empty = true
			_, err := drv.Solve(ctx, state, path)
			Expect(err).To(MatchError(mpc.ErrNoIterate))
		})
	})

	Describe("input validation", func() {
		It("rejects non-finite states", func() {
			drv := newDriver(testParams(), nlp.EngineSLSQP)
			_, err := drv.Solve(ctx, mpc.State{V: math.NaN()}, polyfit.Poly{0, 0, 0, 0})
			Expect(err).To(MatchError(mpc.ErrInvalidState))
		})

		It("rejects paths that are not cubics", func() {
			drv := newDriver(testParams(), nlp.EngineSLSQP)
			_, err := drv.Solve(ctx, mpc.State{}, polyfit.Poly{0, 0})
			Expect(err).To(MatchError(mpc.ErrInvalidCoefficients))
		})

		It("rejects invalid params and a nil solver", func() {
			p := mpc.DefaultParams()
			p.Horizon = 1
			_, err := mpc.NewDriver(p, nlp.NewAugLag(nlp.DefaultOptions(), nil))
			Expect(err).To(MatchError(mpc.ErrInvalidParams))

			_, err = mpc.NewDriver(mpc.DefaultParams(), nil)
			Expect(err).To(MatchError(mpc.ErrInvalidParams))
		})
	})
})

var _ = Describe("Status", func() {
	It("names each outcome", func() {
		Expect(mpc.Converged.String()).To(Equal("converged"))
		Expect(mpc.Degraded.String()).To(Equal("degraded"))
		Expect(mpc.Infeasible.String()).To(Equal("infeasible"))
		Expect(mpc.Infeasible.Usable()).To(BeFalse())
		Expect(mpc.Degraded.Usable()).To(BeTrue())
	})

	It("parses its own text form", func() {
		for _, st := range []mpc.Status{mpc.Converged, mpc.Degraded, mpc.Infeasible} {
			text, err := st.MarshalText()
			Expect(err).NotTo(HaveOccurred())

			var back mpc.Status
			Expect(back.UnmarshalText(text)).To(Succeed())
			Expect(back).To(Equal(st))
		}

		var bad mpc.Status
		Expect(bad.UnmarshalText([]byte("lost"))).NotTo(Succeed())
	})
})

// describeSolves registers the closed-form expectations every engine has to
// meet on real horizons.
func describeSolves(engine string) {
	Describe("straight path from rest", func() {
		var (
			p   mpc.Params
			sol *mpc.Solution
		)

		BeforeEach(func() {
			p = testParams()
			path := polyfit.Poly{0, 0, 0, 0}
			var err error
			sol, err = newDriver(p, engine).Solve(context.Background(), mpc.InitialState(path, 0), path)
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns a usable solution", func() {
			Expect(sol.Status.Usable()).To(BeTrue())
			Expect(sol.Violation).To(BeNumerically("<=", 1e-2))
		})

		It("keeps the wheels straight", func() {
			Expect(sol.Steer).To(BeNumerically("~", 0, 1e-6))
			for _, s := range sol.Steers {
				Expect(s).To(BeNumerically("~", 0, 1e-6))
			}
		})

		It("accelerates towards the reference speed", func() {
			Expect(sol.Accel).To(BeNumerically(">", 0.5))
			Expect(sol.Accel).To(BeNumerically("<=", p.MaxAccel))
		})

		It("predicts N-1 points ahead of the vehicle", func() {
			Expect(sol.Predicted).To(HaveLen(p.Horizon - 1))
			Expect(sol.Trajectory).To(HaveLen(p.Horizon))
			Expect(sol.Trajectory[0].V).To(BeNumerically("~", 0, 1e-3))
			for i := 1; i < len(sol.Predicted); i++ {
				Expect(sol.Predicted[i].X).To(BeNumerically(">=", sol.Predicted[i-1].X-1e-6))
				Expect(sol.Predicted[i].Y).To(BeNumerically("~", 0, 1e-6))
			}
		})
	})

	DescribeTable("actuator bounds hold on curved paths",
		func(path polyfit.Poly, v float64) {
			p := testParams()
			sol, err := newDriver(p, engine).Solve(context.Background(), mpc.InitialState(path, v), path)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Steers).To(HaveLen(p.Horizon - 1))
			for i := range sol.Steers {
				Expect(math.Abs(sol.Steers[i])).To(BeNumerically("<=", p.MaxSteer))
				Expect(math.Abs(sol.Accels[i])).To(BeNumerically("<=", p.MaxAccel))
			}
		},
		Entry("gentle left curve", polyfit.Poly{0.5, 0.05, 0.01, 0}, 20.0),
		Entry("offset line", polyfit.Poly{-2, 0, 0, 0}, 30.0),
		Entry("s-bend", polyfit.Poly{1, -0.2, 0.02, -0.001}, 35.0),
		Entry("sharp curve at speed", polyfit.Poly{0, 0.3, 0.05, 0.002}, 45.0),
	)

	It("tracks speed more tightly when the speed weight doubles", func() {
		path := polyfit.Poly{0, 0, 0, 0}
		light := testParams()
		heavy := testParams()
		heavy.Weights.Speed = 2 * light.Weights.Speed
		start := mpc.InitialState(path, light.RefSpeed-0.1)

		a, err := newDriver(light, engine).Solve(context.Background(), start, path)
		Expect(err).NotTo(HaveOccurred())
		b, err := newDriver(heavy, engine).Solve(context.Background(), start, path)
		Expect(err).NotTo(HaveOccurred())

		Expect(speedError(b, heavy.RefSpeed)).To(BeNumerically("<", speedError(a, light.RefSpeed)-1e-4))
	})
}
