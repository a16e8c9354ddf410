package control

import (
	"fmt"

	"github.com/san-kum/mpctrack/internal/actuator"
)

// Fallback decides the command when the solver has nothing usable.
type Fallback int

const (
	// Hold keeps the command that is already active.
	Hold Fallback = iota
	// Brake centres the wheel and decelerates at the bound.
	Brake
)

func ParseFallback(s string) (Fallback, error) {
	switch s {
	case "hold", "":
		return Hold, nil
	case "brake":
		return Brake, nil
	}
	return Hold, fmt.Errorf("unknown fallback %q", s)
}

func (f Fallback) String() string {
	if f == Brake {
		return "brake"
	}
	return "hold"
}

func (f Fallback) Command(active actuator.Command, maxAccel float64) actuator.Command {
	if f == Brake {
		return actuator.Command{Steer: 0, Accel: -maxAccel}
	}
	return active
}
