package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solveSQP(t *testing.T, p Problem, x0 []float64, b Bounds) *Result {
	t.Helper()
	res, err := NewSLSQP(DefaultOptions(), nil).Solve(context.Background(), p, x0, b)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestSLSQPEquality(t *testing.T) {
	p := &quadratic{target: []float64{1, 2}, a: [][]float64{{1, 1}}}
	xl, xu := freeBounds(2)
	res := solveSQP(t, p, []float64{0, 0}, Bounds{XLower: xl, XUpper: xu, GLower: []float64{1}, GUpper: []float64{1}})

	assert.Equal(t, Converged, res.Status)
	assert.InDelta(t, 0.0, res.X[0], 1e-5)
	assert.InDelta(t, 1.0, res.X[1], 1e-5)
	assert.LessOrEqual(t, res.Violation, 1e-6)
	assert.Positive(t, res.Iterations)
}

func TestSLSQPInequality(t *testing.T) {
	p := &quadratic{target: []float64{0, 0}, a: [][]float64{{1, 1}}}
	xl, xu := freeBounds(2)
	res := solveSQP(t, p, []float64{3, -1}, Bounds{XLower: xl, XUpper: xu, GLower: []float64{1}, GUpper: []float64{Infinity}})

	assert.True(t, res.Usable())
	assert.InDelta(t, 0.5, res.X[0], 1e-5)
	assert.InDelta(t, 0.5, res.X[1], 1e-5)
}

func TestSLSQPUpperBoundedConstraint(t *testing.T) {
	p := &quadratic{target: []float64{2, 2}, a: [][]float64{{1, 1}}}
	xl, xu := freeBounds(2)
	res := solveSQP(t, p, []float64{0, 0}, Bounds{XLower: xl, XUpper: xu, GLower: []float64{-Infinity}, GUpper: []float64{2}})

	assert.True(t, res.Usable())
	assert.InDelta(t, 1.0, res.X[0], 1e-5)
	assert.InDelta(t, 1.0, res.X[1], 1e-5)
}

func TestSLSQPVariableBounds(t *testing.T) {
	p := &quadratic{target: []float64{3, -5, 0.2}}
	res := solveSQP(t, p, []float64{0, 0, 0}, Bounds{
		XLower: []float64{-1, -2, -Infinity},
		XUpper: []float64{1, Infinity, Infinity},
		GLower: []float64{},
		GUpper: []float64{},
	})

	assert.True(t, res.Usable())
	assert.InDelta(t, 1.0, res.X[0], 1e-9)
	assert.InDelta(t, -2.0, res.X[1], 1e-9)
	assert.InDelta(t, 0.2, res.X[2], 1e-6)
}

func TestSLSQPContradictoryConstraints(t *testing.T) {
	p := &quadratic{target: []float64{0, 0}, a: [][]float64{{1, 1}, {1, 1}}}
	xl, xu := freeBounds(2)
	res, err := NewSLSQP(DefaultOptions(), nil).Solve(context.Background(), p, []float64{0, 0},
		Bounds{XLower: xl, XUpper: xu, GLower: []float64{1, 2}, GUpper: []float64{1, 2}})
	require.NoError(t, err)

	assert.Equal(t, Infeasible, res.Status)
	assert.False(t, res.Usable())
}

func TestSLSQPExpiredContext(t *testing.T) {
	p := &quadratic{target: []float64{1, 2}, a: [][]float64{{1, 1}}}
	xl, xu := freeBounds(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewSLSQP(DefaultOptions(), nil).Solve(ctx, p, []float64{0.5, 0.5},
		Bounds{XLower: xl, XUpper: xu, GLower: []float64{1}, GUpper: []float64{1}})
	require.NoError(t, err)

	assert.Equal(t, TimeLimit, res.Status)
	assert.Equal(t, []float64{0.5, 0.5}, res.X)
}

// cancelAfter cancels its context once the objective has been evaluated
// limit times.
type cancelAfter struct {
	*quadratic
	limit  int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfter) Objective(x []float64) float64 {
	if c.calls++; c.calls == c.limit {
		c.cancel()
	}
	return c.quadratic.Objective(x)
}

func TestSLSQPStopsWhenContextExpires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &cancelAfter{
		quadratic: &quadratic{target: []float64{1, 2, 3}, a: [][]float64{{1, 1, 1}}},
		limit:     2,
		cancel:    cancel,
	}
	xl, xu := freeBounds(3)

	res, err := NewSLSQP(DefaultOptions(), nil).Solve(ctx, p, []float64{1, 0, 0},
		Bounds{XLower: xl, XUpper: xu, GLower: []float64{1}, GUpper: []float64{1}})
	require.NoError(t, err)

	assert.Equal(t, TimeLimit, res.Status)
	assert.InDelta(t, 1.0, res.X[0]+res.X[1]+res.X[2], 1e-6)
}

func TestSLSQPShapeErrors(t *testing.T) {
	s := NewSLSQP(DefaultOptions(), nil)

	p := &quadratic{target: []float64{1, 2}, a: [][]float64{{1, 1}}}
	xl, xu := freeBounds(2)
	_, err := s.Solve(context.Background(), p, []float64{0}, Bounds{XLower: xl, XUpper: xu, GLower: []float64{1}, GUpper: []float64{1}})
	assert.True(t, errors.Is(err, ErrDimension))

	over := &quadratic{target: []float64{0}, a: [][]float64{{1}, {2}}}
	xl, xu = freeBounds(1)
	_, err = s.Solve(context.Background(), over, []float64{0}, Bounds{XLower: xl, XUpper: xu, GLower: []float64{1, 2}, GUpper: []float64{1, 2}})
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestJacobianRowsFromVJP(t *testing.T) {
	p := &quadratic{target: []float64{0, 0, 0}, a: [][]float64{{1, 2, 3}, {0, -1, 4}}}
	ev := newSQPEval(context.Background(), p)
	x := []float64{0.3, -0.2, 1}

	assert.Equal(t, []float64{1, 2, 3}, ev.row(x, 0))
	assert.Equal(t, []float64{0, -1, 4}, ev.row(x, 1))
	assert.InDelta(t, 4.2, ev.constraints(x)[1], 1e-12)
}

func TestNewSelectsEngine(t *testing.T) {
	opts := DefaultOptions()
	for engine, want := range map[string]Solver{
		"":           &SLSQP{},
		EngineSLSQP:  &SLSQP{},
		EngineAugLag: &AugLag{},
	} {
		opts.Engine = engine
		s, err := New(opts, nil)
		require.NoError(t, err, engine)
		assert.IsType(t, want, s, engine)
	}

	opts.Engine = "ipopt"
	_, err := New(opts, nil)
	assert.True(t, errors.Is(err, ErrUnknownEngine))
}

func TestEnginesAgree(t *testing.T) {
	p := &quadratic{target: []float64{0, 0}, a: [][]float64{{1, 1}}}
	xl, xu := freeBounds(2)
	b := Bounds{XLower: xl, XUpper: xu, GLower: []float64{1}, GUpper: []float64{Infinity}}

	for _, engine := range Engines() {
		opts := DefaultOptions()
		opts.Engine = engine
		s, err := New(opts, nil)
		require.NoError(t, err)
		res, err := s.Solve(context.Background(), p, []float64{3, -1}, b)
		require.NoError(t, err, engine)
		assert.True(t, res.Usable(), engine)
		assert.InDelta(t, 0.5, res.X[0], 1e-4, engine)
		assert.InDelta(t, 0.5, res.X[1], 1e-4, engine)
	}
}
