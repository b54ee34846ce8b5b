// package layout arranges a requested text into lines of placed
// handwriting strokes on the print bed.
//
// Geometry flows one way: tablet-space glyphs from a font.Face are
// scaled, anchored and positioned into fresh bed-space strokes; the
// face itself is never modified. Bed coordinates are millimeters with
// y growing away from the operator, so successive text lines step
// downward by subtracting the line pitch.
package layout

import (
	"errors"
	"fmt"
	"math/rand"

	"golang.org/x/image/math/f32"
	"scrawl.ink/affine"
	"scrawl.ink/font"
	"scrawl.ink/jitter"
)

// Params configures one layout run. The zero value is invalid; every
// run validates its Params before any work.
type Params struct {
	// Scale converts tablet units to bed millimeters.
	Scale float32
	// Origin is the bed position of the first line's left cell corner.
	Origin f32.Vec2
	// LineHeight is the pitch between successive lines.
	LineHeight float32
	// MaxLineWidth closes a line when the next character would not fit.
	MaxLineWidth float32
	// MinAdvance is the smallest advance width any character may
	// claim, so degenerate glyphs such as dots still reserve room.
	MinAdvance float32
	// CharSpacing is added to every character's advance width.
	CharSpacing float32
	// SpaceWidth is the advance of a whitespace character.
	SpaceWidth float32
	// PageHeight limits the writable height below Origin; zero
	// disables paging.
	PageHeight float32
	// Variance, when non-nil, perturbs character placement for a more
	// natural look. Placement only: advance widths and line breaks
	// stay deterministic regardless of seed.
	Variance *Variance
}

// Variance configures seeded handwriting wobble.
type Variance struct {
	Seed int64
	// MaxX and MaxY bound per-character offsets in millimeters.
	MaxX, MaxY float32
	// MaxHeight bounds the relative character height wobble.
	MaxHeight float32
	// MinSkew and MaxSkew bound the per-character slant.
	MinSkew, MaxSkew float32
	// Spacing is the variance curve knot spacing in characters.
	Spacing int
}

// Validate rejects configurations that cannot produce a meaningful
// layout. It is run at pipeline start, before any compilation work.
func (p *Params) Validate() error {
	switch {
	case p.Scale <= 0:
		return errors.New("layout: scale must be positive")
	case p.LineHeight <= 0:
		return errors.New("layout: line height must be positive")
	case p.MaxLineWidth <= 0:
		return errors.New("layout: max line width must be positive")
	case p.MinAdvance <= 0:
		return errors.New("layout: min advance width must be positive")
	case p.CharSpacing < 0:
		return errors.New("layout: character spacing must not be negative")
	case p.SpaceWidth < 0:
		return errors.New("layout: space width must not be negative")
	case p.PageHeight != 0 && p.PageHeight < p.LineHeight:
		return errors.New("layout: page height must fit at least one line")
	}
	return nil
}

// UnknownCharError reports a requested character that is absent from
// the character set, with its rune position in the input text.
type UnknownCharError struct {
	Char rune
	Pos  int
}

func (e *UnknownCharError) Error() string {
	return fmt.Sprintf("layout: unknown character %q at position %d", e.Char, e.Pos)
}

// Stroke is one continuous pen-down path in bed space.
type Stroke []f32.Vec2

// Char is one placed character: its bed-space strokes plus the cell it
// occupies.
type Char struct {
	Rune rune
	// Pos is the rune position in the input text.
	Pos int
	// Origin is the bottom-left corner of the character cell.
	Origin f32.Vec2
	// Advance is the width reserved for the character.
	Advance float32
	Strokes []Stroke
}

// Line is an ordered run of placed characters sharing a baseline.
// Characters appear in reading order with strictly increasing x.
type Line struct {
	// Index is the line's position in reading order.
	Index int
	// Page is the page the line lands on; pages are written in order
	// with an operator pause between them.
	Page int
	// Y is the bed y of the line's cell bottom.
	Y float32
	Chars []Char
}

// Result is the laid-out text, lines in reading order.
type Result struct {
	Lines []Line
	Pages int
}

// Advance returns the bed-space width to reserve for g: its scaled
// width plus inter-character spacing, at least MinAdvance.
func Advance(g font.Glyph, p *Params) float32 {
	w := g.Bounds.Dx()*p.Scale + p.CharSpacing
	if w < p.MinAdvance {
		w = p.MinAdvance
	}
	return w
}

// Transform maps g into bed space with a uniform scale, anchoring the
// bottom-left corner of its bounding box at origin. Tablet y grows
// toward the writer, bed y away, so the glyph is mirrored upright.
func Transform(g font.Glyph, scale float32, origin f32.Vec2) []Stroke {
	m := affine.Mul(
		affine.Offsetting(origin),
		affine.Scaling(f32.Vec2{scale, scale}),
	)
	return transform(g, m)
}

func transform(g font.Glyph, m f32.Aff3) []Stroke {
	strokes := make([]Stroke, len(g.Strokes))
	for i, s := range g.Strokes {
		out := make(Stroke, len(s))
		for j, pt := range s {
			local := f32.Vec2{
				pt[0] - g.Bounds.Min[0],
				g.Bounds.Max[1] - pt[1],
			}
			out[j] = affine.Transform(m, local)
		}
		strokes[i] = out
	}
	return strokes
}

// cell is a measured character before its line and y are known.
type cell struct {
	r   rune
	pos int
	g   font.Glyph
	adv float32
	x   float32
}

// Layout arranges text into placed lines. Lines fill greedily and wrap
// preferring the last whitespace boundary; a single word wider than the
// line is placed alone and may overflow. A '\n' forces a line break and
// a blank line skips one line pitch.
func Layout(face *font.Face, text string, p *Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	lines, nrunes, err := measure(face, text, p)
	if err != nil {
		return nil, err
	}
	return place(lines, nrunes, p), nil
}

func measure(face *font.Face, text string, p *Params) ([][]cell, int, error) {
	var (
		lines [][]cell
		cur   []cell
		width float32
		// wordStart is the index in cur where the current word began,
		// or -1 when no whitespace has occurred on this line.
		wordStart = -1
	)
	flush := func() {
		lines = append(lines, cur)
		cur = nil
		width = 0
		wordStart = -1
	}
	nrunes := 0
	for pos, r := range []rune(text) {
		nrunes++
		switch r {
		case '\n':
			flush()
			continue
		case ' ', '\t':
			width += p.SpaceWidth
			wordStart = len(cur)
			continue
		}
		g, ok := face.Decode(r)
		if !ok {
			return nil, 0, &UnknownCharError{Char: r, Pos: pos}
		}
		adv := Advance(g, p)
		if width+adv > p.MaxLineWidth && len(cur) > 0 {
			if wordStart > 0 && wordStart < len(cur) {
				// Carry the unfinished word to the next line.
				carry := cur[wordStart:]
				cur = cur[:wordStart]
				flush()
				for _, c := range carry {
					c.x = width
					cur = append(cur, c)
					width += c.adv
				}
			} else {
				flush()
			}
			// The carried word plus this character may still
			// overflow; break mid-word then.
			if width+adv > p.MaxLineWidth && len(cur) > 0 {
				flush()
			}
		}
		cur = append(cur, cell{r: r, pos: pos, g: g, adv: adv, x: width})
		width += adv
	}
	if len(cur) > 0 {
		flush()
	}
	return lines, nrunes, nil
}

func place(lines [][]cell, nrunes int, p *Params) *Result {
	perPage := len(lines)
	if perPage == 0 {
		perPage = 1
	}
	if p.PageHeight > 0 {
		perPage = int(p.PageHeight / p.LineHeight)
	}
	var v *varianceCurves
	if p.Variance != nil {
		v = newVarianceCurves(p.Variance, nrunes)
	}
	res := &Result{}
	for i, cells := range lines {
		page := i / perPage
		row := i % perPage
		line := Line{
			Index: i,
			Page:  page,
			Y:     p.Origin[1] - float32(row)*p.LineHeight,
		}
		for _, c := range cells {
			origin := f32.Vec2{p.Origin[0] + c.x, line.Y}
			pc := Char{
				Rune:    c.r,
				Pos:     c.pos,
				Origin:  origin,
				Advance: c.adv,
			}
			if v == nil {
				pc.Strokes = Transform(c.g, p.Scale, origin)
			} else {
				pc.Strokes = transform(c.g, v.transform(c.pos, p, origin))
			}
			line.Chars = append(line.Chars, pc)
		}
		res.Lines = append(res.Lines, line)
		res.Pages = page + 1
	}
	return res
}

type varianceCurves struct {
	v              *Variance
	dx, dy, dh, sk jitter.Curve
}

func newVarianceCurves(v *Variance, nrunes int) *varianceCurves {
	spacing := v.Spacing
	if spacing < 1 {
		spacing = 4
	}
	rng := rand.New(rand.NewSource(v.Seed))
	return &varianceCurves{
		v:  v,
		dx: jitter.New(rng, nrunes, spacing),
		dy: jitter.New(rng, nrunes, spacing),
		dh: jitter.New(rng, nrunes, spacing),
		sk: jitter.New(rng, nrunes, spacing),
	}
}

func (c *varianceCurves) transform(pos int, p *Params, origin f32.Vec2) f32.Aff3 {
	off := f32.Vec2{
		origin[0] + c.v.MaxX*c.dx.At(pos),
		origin[1] + c.v.MaxY*c.dy.At(pos),
	}
	scale := p.Scale * (1 + c.v.MaxHeight*c.dh.At(pos))
	skew := c.v.MinSkew + (c.sk.At(pos)+1)*(c.v.MaxSkew-c.v.MinSkew)/2
	return affine.Mul(
		affine.Offsetting(off),
		affine.Shearing(skew),
		affine.Scaling(f32.Vec2{scale, scale}),
	)
}
