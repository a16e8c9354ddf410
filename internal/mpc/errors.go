package mpc

import "errors"

var (
	// ErrInvalidParams indicates a horizon, timestep, weight or bound outside its valid range.
	ErrInvalidParams = errors.New("mpc: invalid parameters")

	// ErrInvalidState indicates a current state with NaN or Inf components.
	ErrInvalidState = errors.New("mpc: invalid state (NaN or Inf detected)")

	// ErrInvalidCoefficients indicates path coefficients that are not four finite numbers.
	ErrInvalidCoefficients = errors.New("mpc: path must be a cubic with finite coefficients")

	// ErrNoIterate indicates the solver returned nothing to extract commands from.
	ErrNoIterate = errors.New("mpc: solver returned no iterate")
)
