package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/mpctrack/internal/dynamo"
)

// oscillator is x'' = -x written as a first-order system.
type oscillator struct{}

func (oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (oscillator) StateDim() int   { return 2 }
func (oscillator) ControlDim() int { return 0 }

// unicycle drives in a circle with constant speed and turn rate.
type unicycle struct{}

func (unicycle) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{u[0] * math.Cos(x[2]), u[0] * math.Sin(x[2]), u[1]}
}

func (unicycle) StateDim() int   { return 3 }
func (unicycle) ControlDim() int { return 2 }

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100
	for i := 0; i < steps; i++ {
		x = integ.Step(oscillator{}, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-8 {
		t.Errorf("position error too large: got %.10f, expected %.10f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", x[1], expectedV)
	}
}

func TestRK4Circle(t *testing.T) {
	integ := NewRK4()
	speed, rate := 2.0, 0.5
	u := dynamo.Control{speed, rate}

	x := dynamo.State{0, 0, 0}
	steps := 250
	dt := 2 * math.Pi / rate / float64(steps)
	for i := 0; i < steps; i++ {
		x = integ.Step(unicycle{}, x, u, float64(i)*dt, dt)
	}

	// one full revolution returns to the start
	if math.Hypot(x[0], x[1]) > 1e-5 {
		t.Errorf("expected to return to origin, ended at (%.4f, %.4f)", x[0], x[1])
	}
}

func TestEulerMatchesDefinition(t *testing.T) {
	integ := NewEuler()
	x := integ.Step(oscillator{}, dynamo.State{1, 0}, nil, 0, 0.1)
	if x[0] != 1 || x[1] != -0.1 {
		t.Errorf("unexpected euler step: %v", x)
	}
}

func TestEulerConvergesSlowerThanRK4(t *testing.T) {
	euler, rk4 := NewEuler(), NewRK4()
	xe, xr := dynamo.State{1, 0}, dynamo.State{1, 0}
	dt := 0.01
	for i := 0; i < 200; i++ {
		xe = euler.Step(oscillator{}, xe, nil, 0, dt)
		xr = rk4.Step(oscillator{}, xr, nil, 0, dt)
	}
	want := math.Cos(2.0)
	if math.Abs(xe[0]-want) <= math.Abs(xr[0]-want) {
		t.Errorf("euler error %.3e should exceed rk4 error %.3e", math.Abs(xe[0]-want), math.Abs(xr[0]-want))
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"rk4", "euler"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := ByName("verlet"); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
}
