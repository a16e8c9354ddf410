package integrators

import (
	"errors"
	"fmt"

	"github.com/san-kum/mpctrack/internal/dynamo"
)

var ErrUnknown = errors.New("integrators: unknown integrator")

// ByName returns a fresh integrator; RK4 values must not be shared.
func ByName(name string) (dynamo.Integrator, error) {
	switch name {
	case "rk4":
		return NewRK4(), nil
	case "euler":
		return NewEuler(), nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknown)
}
