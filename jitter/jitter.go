// package jitter produces smooth pseudo-random variance curves for
// imitating the unevenness of natural handwriting.
//
// A curve is sampled from random knots in [-1, 1] placed every few
// samples and interpolated with a Catmull-Rom spline, so neighbouring
// samples drift gradually instead of flickering. Curves are fully
// determined by their random source, so a fixed seed reproduces the
// same handwriting.
package jitter

import (
	"math/rand"
)

// Curve holds per-sample variance values, nominally within [-1, 1].
// Interpolation overshoot may exceed the nominal range slightly.
type Curve []float32

// New returns a curve of n samples with random knots every spacing
// samples.
func New(rng *rand.Rand, n, spacing int) Curve {
	if n <= 0 {
		return nil
	}
	if spacing < 1 {
		spacing = 1
	}
	// One knot per spacing, plus the phantom knots Catmull-Rom needs
	// on both ends.
	nknots := n/spacing + 3
	knots := make([]float32, nknots)
	for i := range knots {
		knots[i] = float32(rng.Float64()*2 - 1)
	}
	c := make(Curve, n)
	for i := range c {
		seg := i / spacing
		t := float32(i%spacing) / float32(spacing)
		c[i] = catmullRom(
			knots[seg], knots[seg+1], knots[seg+2], knotAt(knots, seg+3),
			t,
		)
	}
	return c
}

// At returns sample i, clamping out-of-range indices to the curve ends.
func (c Curve) At(i int) float32 {
	if len(c) == 0 {
		return 0
	}
	if i < 0 {
		i = 0
	}
	if i >= len(c) {
		i = len(c) - 1
	}
	return c[i]
}

func knotAt(knots []float32, i int) float32 {
	if i >= len(knots) {
		i = len(knots) - 1
	}
	return knots[i]
}

func catmullRom(p0, p1, p2, p3, t float32) float32 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(p2-p0)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(3*p1-3*p2+p3-p0)*t3)
}
