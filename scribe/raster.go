package scribe

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/f32"
	"golang.org/x/image/math/fixed"
)

// Rasterizer strokes a compiled program into an image for previewing a
// print without hardware. Bed y grows upward, image y downward, so the
// projection mirrors vertically.
type Rasterizer struct {
	dasher  *rasterx.Dasher
	p       f32.Vec2
	started bool
	scale   float32
	minX    float32
	maxY    float32
}

// NewRasterizer renders into img over dr at scale pixels per bed
// millimeter with the given pen width in pixels.
func NewRasterizer(img draw.Image, dr image.Rectangle, scale, penWidth float32) *Rasterizer {
	width, height := dr.Dx(), dr.Dy()
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	r := &Rasterizer{
		dasher: rasterx.NewDasher(width, height, scanner),
		scale:  scale,
		minX:   float32(dr.Min.X),
		maxY:   float32(dr.Max.Y),
	}
	stroke := penWidth * 64
	r.dasher.SetStroke(fixed.Int26_6(stroke), 0, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.ArcClip, nil, 0)
	r.dasher.SetColor(color.Black)
	return r
}

func (r *Rasterizer) project(p f32.Vec2) fixed.Point26_6 {
	x := float64(p[0]*r.scale - r.minX)
	y := float64(r.maxY - p[1]*r.scale)
	return rasterx.ToFixedP(x, y)
}

func (r *Rasterizer) move(p f32.Vec2) {
	if r.started {
		r.dasher.Stop(false)
		r.started = false
	}
	r.p = p
}

func (r *Rasterizer) line(p f32.Vec2) {
	if !r.started {
		r.dasher.Start(r.project(r.p))
		r.started = true
	}
	r.dasher.Line(r.project(p))
}

// Render traces the program's drawing moves. Pen and machine state
// commands carry no geometry and are skipped.
func (r *Rasterizer) Render(prog Program) {
	for _, c := range prog {
		switch c.Op {
		case OpTravel:
			r.move(c.Target)
		case OpDraw:
			r.line(c.Target)
		}
	}
}

// Rasterize flushes buffered strokes into the image.
func (r *Rasterizer) Rasterize() {
	if r.started {
		r.dasher.Stop(false)
		r.started = false
	}
	r.dasher.Draw()
}
