package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Axpy(t *testing.T) {
	s := State{1, 2, 3}
	got := s.Axpy(0.5, State{2, 4, 6})
	want := State{2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Axpy[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if s[0] != 1 {
		t.Error("Axpy modified receiver")
	}
}

func TestState_Norm(t *testing.T) {
	if got := (State{3, 4}).Norm(); math.Abs(got-5) > 1e-12 {
		t.Errorf("Norm = %v, want 5", got)
	}
}

type fakeSystem struct{}

func (fakeSystem) Derive(x State, u Control, t float64) State { return x }
func (fakeSystem) StateDim() int                              { return 4 }
func (fakeSystem) ControlDim() int                            { return 2 }

func TestCheckDims(t *testing.T) {
	if err := CheckDims(fakeSystem{}, make(State, 4), make(Control, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckDims(fakeSystem{}, make(State, 3), make(Control, 2)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := CheckDims(fakeSystem{}, make(State, 4), make(Control, 1)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
