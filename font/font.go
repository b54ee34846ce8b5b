// package font loads a tablet-recorded handwriting character set and
// exposes it as a validated, read-only face.
//
// The wire document maps each character to an ordered list of strokes,
// where a stroke is one continuous pen-down motion recorded as an
// ordered list of [x y] coordinate pairs. Both JSON and CBOR encodings
// of that shape are accepted.
package font

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/image/math/f32"
)

// ErrMalformed is wrapped by every DatasetError.
var ErrMalformed = errors.New("font: malformed dataset")

// DatasetError describes why a character set document was rejected.
type DatasetError struct {
	// Char is the offending dataset key, or "" when the document
	// itself is unusable.
	Char string
	// Stroke is the offending stroke index, or -1.
	Stroke int
	Reason string
}

func (e *DatasetError) Error() string {
	switch {
	case e.Char == "":
		return fmt.Sprintf("font: %s", e.Reason)
	case e.Stroke == -1:
		return fmt.Sprintf("font: character %q: %s", e.Char, e.Reason)
	default:
		return fmt.Sprintf("font: character %q stroke %d: %s", e.Char, e.Stroke, e.Reason)
	}
}

func (e *DatasetError) Unwrap() error {
	return ErrMalformed
}

// Stroke is one continuous pen-down path in tablet space.
type Stroke []f32.Vec2

// Bounds is an axis-aligned tablet-space bounding box.
type Bounds struct {
	Min, Max f32.Vec2
}

func (b Bounds) Dx() float32 {
	return b.Max[0] - b.Min[0]
}

func (b Bounds) Dy() float32 {
	return b.Max[1] - b.Min[1]
}

// Glyph is the recorded drawing of one character. It is never mutated
// after Parse returns.
type Glyph struct {
	Strokes []Stroke
	// Bounds encloses every stroke point, declared at load time and
	// used for scaling and advance width computation.
	Bounds Bounds
}

// Face is a character set: an immutable mapping from character to its
// recorded glyph.
type Face struct {
	glyphs map[rune]Glyph
}

// Decode returns the glyph for ch, reporting whether the face
// contains it.
func (f *Face) Decode(ch rune) (Glyph, bool) {
	g, ok := f.glyphs[ch]
	return g, ok
}

// Len reports the number of characters in the face.
func (f *Face) Len() int {
	return len(f.glyphs)
}

type document struct {
	Characters map[string][][][]float64 `json:"characters" cbor:"characters"`
}

// Parse builds a Face from an encoded character set document. The
// encoding is sniffed: documents starting with '{' are JSON, anything
// else is CBOR.
func Parse(data []byte) (*Face, error) {
	var doc document
	if sniffJSON(data) {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &DatasetError{Stroke: -1, Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
	} else {
		if err := cbor.Unmarshal(data, &doc); err != nil {
			return nil, &DatasetError{Stroke: -1, Reason: fmt.Sprintf("invalid CBOR: %v", err)}
		}
	}
	if len(doc.Characters) == 0 {
		return nil, &DatasetError{Stroke: -1, Reason: "no characters"}
	}
	glyphs := make(map[rune]Glyph, len(doc.Characters))
	for key, strokes := range doc.Characters {
		ch, size := utf8.DecodeRuneInString(key)
		if ch == utf8.RuneError || size != len(key) {
			return nil, &DatasetError{Char: key, Stroke: -1, Reason: "key is not a single character"}
		}
		g, err := makeGlyph(key, strokes)
		if err != nil {
			return nil, err
		}
		if _, dup := glyphs[ch]; dup {
			return nil, &DatasetError{Char: key, Stroke: -1, Reason: "duplicate character"}
		}
		glyphs[ch] = g
	}
	return &Face{glyphs: glyphs}, nil
}

func sniffJSON(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b == '{'
	}
	return false
}

func makeGlyph(key string, strokes [][][]float64) (Glyph, error) {
	if len(strokes) == 0 {
		return Glyph{}, &DatasetError{Char: key, Stroke: -1, Reason: "no strokes"}
	}
	g := Glyph{Strokes: make([]Stroke, 0, len(strokes))}
	first := true
	for i, points := range strokes {
		if len(points) == 0 {
			return Glyph{}, &DatasetError{Char: key, Stroke: i, Reason: "empty stroke"}
		}
		stroke := make(Stroke, 0, len(points))
		for _, pt := range points {
			if len(pt) != 2 {
				return Glyph{}, &DatasetError{Char: key, Stroke: i, Reason: fmt.Sprintf("point has %d coordinates", len(pt))}
			}
			p := f32.Vec2{float32(pt[0]), float32(pt[1])}
			// Zero-length segments are meaningless; collapse them.
			if n := len(stroke); n > 0 && stroke[n-1] == p {
				continue
			}
			stroke = append(stroke, p)
			if first {
				g.Bounds = Bounds{Min: p, Max: p}
				first = false
				continue
			}
			g.Bounds.Min[0] = min(g.Bounds.Min[0], p[0])
			g.Bounds.Min[1] = min(g.Bounds.Min[1], p[1])
			g.Bounds.Max[0] = max(g.Bounds.Max[0], p[0])
			g.Bounds.Max[1] = max(g.Bounds.Max[1], p[1])
		}
		g.Strokes = append(g.Strokes, stroke)
	}
	return g, nil
}
