package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/mpc"
)

// Step records one control cycle as the vehicle saw it.
type Step struct {
	Index     int
	Time      float64
	Pose      geom.Pose
	Speed     float64
	CTE       float64
	EPsi      float64
	Command   actuator.Command
	Status    mpc.Status
	Cost      float64
	SolveTime time.Duration
	Fallback  bool
	// Predicted and Reference are world-frame points for display.
	Predicted []geom.Point
	Reference []geom.Point
}

type Metric interface {
	Name() string
	Observe(s Step)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Step)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s Step)

func (f ObserverFunc) OnStep(s Step) { f(s) }

type Config struct {
	// Cycle is the control period; the plant is integrated in Substeps
	// equal slices of it.
	Cycle        time.Duration
	Substeps     int
	Duration     float64
	Latency      time.Duration
	Lookahead    int
	InitialSpeed float64
	Offset       float64
}

func (c Config) validate() error {
	if c.Cycle <= 0 {
		return fmt.Errorf("cycle must be positive, got %v", c.Cycle)
	}
	if c.Substeps < 1 {
		return fmt.Errorf("substeps must be at least 1, got %d", c.Substeps)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", c.Duration)
	}
	if c.Latency < 0 {
		return fmt.Errorf("latency must not be negative, got %v", c.Latency)
	}
	if c.Lookahead < 4 {
		return fmt.Errorf("lookahead must be at least 4, got %d", c.Lookahead)
	}
	return nil
}

type Result struct {
	Steps   []Step
	Metrics map[string]float64
	// Completed is set when an open track ran out ahead of the vehicle.
	Completed bool
	// Errors holds cycles whose planning failed; the vehicle kept its
	// active command through them.
	Errors []error
}
