package nlp

import "math"

type boundKind uint8

const (
	free boundKind = iota
	lowerOnly
	upperOnly
	twoSided
)

// interior keeps mapped starting points off the bounds, where the transform
// has zero slope.
const interior = 1e-6

// box maps unconstrained inner variables z onto x within [lo, hi]:
//
//	two-sided:  x = lo + (hi-lo)(1+sin z)/2
//	lower only: x = lo + z²
//	upper only: x = hi - z²
type box struct {
	lo, hi []float64
	kind   []boundKind
}

func newBox(lo, hi []float64) *box {
	b := &box{lo: lo, hi: hi, kind: make([]boundKind, len(lo))}
	for i := range lo {
		hasLo, hasHi := lo[i] > -Infinity, hi[i] < Infinity
		switch {
		case hasLo && hasHi:
			b.kind[i] = twoSided
		case hasLo:
			b.kind[i] = lowerOnly
		case hasHi:
			b.kind[i] = upperOnly
		}
	}
	return b
}

func (b *box) toX(x, z []float64) {
	for i, zi := range z {
		switch b.kind[i] {
		case free:
			x[i] = zi
		case lowerOnly:
			x[i] = b.lo[i] + zi*zi
		case upperOnly:
			x[i] = b.hi[i] - zi*zi
		case twoSided:
			v := b.lo[i] + (b.hi[i]-b.lo[i])*(1+math.Sin(zi))/2
			x[i] = math.Min(math.Max(v, b.lo[i]), b.hi[i])
		}
	}
}

func (b *box) fromX(z, x []float64) {
	for i, xi := range x {
		switch b.kind[i] {
		case free:
			z[i] = xi
		case lowerOnly:
			z[i] = math.Sqrt(math.Max(xi-b.lo[i], interior))
		case upperOnly:
			z[i] = math.Sqrt(math.Max(b.hi[i]-xi, interior))
		case twoSided:
			w := b.hi[i] - b.lo[i]
			if w == 0 {
				z[i] = 0
				continue
			}
			t := math.Min(math.Max((xi-b.lo[i])/w, interior), 1-interior)
			z[i] = math.Asin(2*t - 1)
		}
	}
}

// slope is dx/dz at z for variable i.
func (b *box) slope(i int, z float64) float64 {
	switch b.kind[i] {
	case lowerOnly:
		return 2 * z
	case upperOnly:
		return -2 * z
	case twoSided:
		return (b.hi[i] - b.lo[i]) / 2 * math.Cos(z)
	default:
		return 1
	}
}
