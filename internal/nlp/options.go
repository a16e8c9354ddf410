package nlp

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	EngineSLSQP  = "slsqp"
	EngineAugLag = "auglag"
)

var ErrUnknownEngine = errors.New("nlp: unknown engine")

type Options struct {
	// Engine selects the solver built by New.
	Engine string `yaml:"engine"`
	// Tolerance is the constraint violation below which a converged solve
	// is reported as Converged.
	Tolerance float64 `yaml:"tolerance"`
	// UsableTolerance is the largest violation still returned as usable when
	// a limit stops the run.
	UsableTolerance float64 `yaml:"usable_tolerance"`

	// Accuracy and MaxIterations drive the SLSQP engine.
	Accuracy      float64 `yaml:"accuracy"`
	MaxIterations int     `yaml:"max_iterations"`

	// The remaining fields drive the augmented Lagrangian engine.
	InitialPenalty float64 `yaml:"initial_penalty"`
	PenaltyGrowth  float64 `yaml:"penalty_growth"`
	MaxPenalty     float64 `yaml:"max_penalty"`
	MaxOuter       int     `yaml:"max_outer"`
	MaxInner       int     `yaml:"max_inner"`
	GradientTol    float64 `yaml:"gradient_tol"`
}

func DefaultOptions() Options {
	return Options{
		Engine:          EngineSLSQP,
		Tolerance:       1e-6,
		UsableTolerance: 1e-2,
		Accuracy:        1e-6,
		MaxIterations:   200,
		InitialPenalty:  10,
		PenaltyGrowth:   10,
		MaxPenalty:      1e10,
		MaxOuter:        40,
		MaxInner:        400,
		GradientTol:     1e-6,
	}
}

// Engines lists the names New accepts.
func Engines() []string { return []string{EngineSLSQP, EngineAugLag} }

// New builds the engine named by opts.Engine. An empty name selects SLSQP.
func New(opts Options, logger *zap.Logger) (Solver, error) {
	switch opts.Engine {
	case EngineSLSQP, "":
		return NewSLSQP(opts, logger), nil
	case EngineAugLag:
		return NewAugLag(opts, logger), nil
	}
	return nil, fmt.Errorf("%q (want one of %v): %w", opts.Engine, Engines(), ErrUnknownEngine)
}
