package mpc

import "fmt"

// Block names one contiguous run of the decision vector.
type Block int

const (
	BlockX Block = iota
	BlockY
	BlockPsi
	BlockV
	BlockCTE
	BlockEPsi
	BlockSteer
	BlockAccel
)

const (
	NumStates    = 6
	NumActuators = 2
)

var blockNames = [...]string{"x", "y", "psi", "v", "cte", "epsi", "steer", "accel"}

func (b Block) String() string {
	if b < 0 || int(b) >= len(blockNames) {
		return fmt.Sprintf("block(%d)", int(b))
	}
	return blockNames[b]
}

// IsState reports whether b is one of the six state blocks.
func (b Block) IsState() bool { return b >= BlockX && b < BlockSteer }

// Layout maps (block, step) pairs onto decision vector indices for horizon N:
//
//	x:0  y:N  psi:2N  v:3N  cte:4N  epsi:5N  steer:6N  accel:6N+N-1
//
// The constraint vector reuses the state offsets; its entry at each state
// block start pins the initial state.
type Layout struct {
	n int
}

func NewLayout(n int) (Layout, error) {
	if n < 2 {
		return Layout{}, fmt.Errorf("horizon %d: %w", n, ErrInvalidParams)
	}
	return Layout{n: n}, nil
}

func (l Layout) Horizon() int { return l.n }

func (l Layout) Start(b Block) int {
	switch {
	case b.IsState():
		return int(b) * l.n
	case b == BlockSteer:
		return NumStates * l.n
	default:
		return NumStates*l.n + l.n - 1
	}
}

// Len is N for state blocks and N-1 for actuator blocks.
func (l Layout) Len(b Block) int {
	if b.IsState() {
		return l.n
	}
	return l.n - 1
}

func (l Layout) Index(b Block, t int) int { return l.Start(b) + t }

func (l Layout) NumVars() int { return NumStates*l.n + NumActuators*(l.n-1) }

func (l Layout) NumConstraints() int { return NumStates * l.n }

// Slice returns the block b of vars without copying.
func (l Layout) Slice(vars []float64, b Block) []float64 {
	s := l.Start(b)
	return vars[s : s+l.Len(b)]
}
