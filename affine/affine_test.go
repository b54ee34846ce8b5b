package affine

import (
	"testing"

	"golang.org/x/image/math/f32"
)

func TestCompose(t *testing.T) {
	// Scale first, then shear, then offset.
	m := Mul(
		Offsetting(f32.Vec2{10, 20}),
		Shearing(0.5),
		Scaling(f32.Vec2{2, 2}),
	)
	got := Transform(m, f32.Vec2{3, 4})
	// (3,4) -> (6,8) -> (6+4, 8) -> (20, 28)
	want := f32.Vec2{20, 28}
	if got != want {
		t.Errorf("Transform = %v, want %v", got, want)
	}
}

func TestShearingKeepsY(t *testing.T) {
	p := Transform(Shearing(0.25), f32.Vec2{1, 8})
	if p[1] != 8 {
		t.Errorf("shear moved y to %v", p[1])
	}
	if p[0] != 3 {
		t.Errorf("shear x = %v, want 3", p[0])
	}
}
