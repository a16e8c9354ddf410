// Package polyfit fits reference-path polynomials to waypoints expressed in
// the vehicle-local frame and evaluates them and their derivatives.
package polyfit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrDegree         = errors.New("polyfit: degree must be at least 1")
	ErrTooFewPoints   = errors.New("polyfit: not enough points for requested degree")
	ErrLengthMismatch = errors.New("polyfit: xs and ys differ in length")
	ErrSingular       = errors.New("polyfit: ill-conditioned fit (repeated abscissae?)")
)

// Poly holds coefficients lowest order first: p(x) = c0 + c1 x + c2 x² + ...
type Poly []float64

// Fit returns the least-squares polynomial of the given degree through the
// points (xs[i], ys[i]).
func Fit(xs, ys []float64, degree int) (Poly, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%d vs %d: %w", len(xs), len(ys), ErrLengthMismatch)
	}
	if degree < 1 {
		return nil, ErrDegree
	}
	if len(xs) < degree+1 {
		return nil, fmt.Errorf("have %d points, degree %d: %w", len(xs), degree, ErrTooFewPoints)
	}

	a := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= x
		}
	}
	b := mat.NewVecDense(len(ys), append([]float64(nil), ys...))

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: %v", ErrSingular, err)
		}
		return nil, err
	}

	p := make(Poly, degree+1)
	for j := range p {
		p[j] = c.AtVec(j)
		if math.IsNaN(p[j]) || math.IsInf(p[j], 0) {
			return nil, ErrSingular
		}
	}
	return p, nil
}

func (p Poly) Degree() int { return len(p) - 1 }

// Eval evaluates p at x with Horner's rule.
func (p Poly) Eval(x float64) float64 {
	y := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		y = y*x + p[i]
	}
	return y
}

// Deriv evaluates p'(x).
func (p Poly) Deriv(x float64) float64 {
	y := 0.0
	for i := len(p) - 1; i >= 1; i-- {
		y = y*x + float64(i)*p[i]
	}
	return y
}

// Deriv2 evaluates p''(x).
func (p Poly) Deriv2(x float64) float64 {
	y := 0.0
	for i := len(p) - 1; i >= 2; i-- {
		y = y*x + float64(i*(i-1))*p[i]
	}
	return y
}

// Heading is the tangent direction of the curve y = p(x) at x.
func (p Poly) Heading(x float64) float64 {
	return math.Atan(p.Deriv(x))
}

// IsFinite reports whether every coefficient is a finite number.
func (p Poly) IsFinite() bool {
	for _, c := range p {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
