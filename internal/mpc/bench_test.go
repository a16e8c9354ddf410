package mpc

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/san-kum/mpctrack/internal/nlp"
)

func BenchmarkConstraints(b *testing.B) {
	o, _ := NewObjective(DefaultParams(), curvedPath)
	vars := randomVars(rand.New(rand.NewPCG(1, 1)), o.Layout())
	g := make([]float64, o.Layout().NumConstraints())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o.Constraints(g, vars)
	}
}

func BenchmarkConstraintsVJP(b *testing.B) {
	o, _ := NewObjective(DefaultParams(), curvedPath)
	l := o.Layout()
	vars := randomVars(rand.New(rand.NewPCG(1, 1)), l)
	w := make([]float64, l.NumConstraints())
	for i := range w {
		w[i] = 1
	}
	dst := make([]float64, l.NumVars())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o.ConstraintsVJP(dst, vars, w)
	}
}

func benchmarkSolve(b *testing.B, solver nlp.Solver) {
	drv, _ := NewDriver(DefaultParams(), solver)
	s := InitialState(curvedPath, 20)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := drv.Solve(ctx, s, curvedPath); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSolveSLSQP(b *testing.B) {
	benchmarkSolve(b, nlp.NewSLSQP(nlp.DefaultOptions(), nil))
}

func BenchmarkSolveAugLag(b *testing.B) {
	benchmarkSolve(b, nlp.NewAugLag(nlp.DefaultOptions(), nil))
}
