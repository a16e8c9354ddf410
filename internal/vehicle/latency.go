package vehicle

import (
	"time"

	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/polyfit"
)

// Predict advances a local-frame state over the actuation latency with
// the command that stays active until the new one lands. It reuses the
// predictor's step so the two models cannot diverge.
func Predict(s mpc.State, steer, accel float64, latency time.Duration, lf float64, path polyfit.Poly) mpc.State {
	if latency <= 0 {
		return s
	}
	return mpc.Step(s, steer, accel, latency.Seconds(), lf, path)
}
