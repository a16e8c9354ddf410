package track

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/san-kum/mpctrack/internal/geom"
)

const DefaultSpacing = 10.0

// Sine is an open track y = amplitude·sin(2πx/wavelength) for x in
// [0, length], sampled every spacing along x.
func Sine(amplitude, wavelength, length, spacing float64) (*Track, error) {
	if spacing <= 0 {
		return nil, ErrBadSpacing
	}
	k := 2 * math.Pi / wavelength
	pts := lo.Times(int(length/spacing)+1, func(i int) geom.Point {
		x := float64(i) * spacing
		return geom.Point{X: x, Y: amplitude * math.Sin(k*x)}
	})
	return New("sine", pts, false)
}

// Circle is a closed counter-clockwise loop of the given radius centred
// on (0, radius) so that it starts at the origin heading along +x.
func Circle(radius, spacing float64) (*Track, error) {
	if spacing <= 0 {
		return nil, ErrBadSpacing
	}
	n := max(int(2*math.Pi*radius/spacing), 4)
	pts := lo.Times(n, func(i int) geom.Point {
		a := 2 * math.Pi * float64(i) / float64(n)
		return geom.Point{X: radius * math.Sin(a), Y: radius * (1 - math.Cos(a))}
	})
	return New("circle", pts, true)
}

// FigureEight is a closed lemniscate of Gerono with lobes of the given
// half-width, crossing itself at the origin.
func FigureEight(radius, spacing float64) (*Track, error) {
	if spacing <= 0 {
		return nil, ErrBadSpacing
	}
	// perimeter of the lemniscate is about 6.1 radius; an even count puts
	// a waypoint exactly on the crossing for both passes
	n := max(int(6.1*radius/spacing), 8)
	n += n % 2
	pts := lo.Times(n, func(i int) geom.Point {
		a := 2 * math.Pi * float64(i) / float64(n)
		return geom.Point{X: radius * math.Sin(a), Y: radius * math.Sin(a) * math.Cos(a)}
	})
	return New("figure8", pts, true)
}

var builtin = map[string]func() (*Track, error){
	"sine":    func() (*Track, error) { return Sine(15, 300, 1500, DefaultSpacing) },
	"circle":  func() (*Track, error) { return Circle(100, DefaultSpacing) },
	"figure8": func() (*Track, error) { return FigureEight(150, DefaultSpacing) },
	"straight": func() (*Track, error) {
		return Sine(0, 1, 1000, DefaultSpacing)
	},
}

func Names() []string {
	return slices.Sorted(maps.Keys(builtin))
}

// ByName builds one of the built-in tracks.
func ByName(name string) (*Track, error) {
	build, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknown)
	}
	t, err := build()
	if err != nil {
		return nil, err
	}
	t.Name = name
	return t, nil
}
