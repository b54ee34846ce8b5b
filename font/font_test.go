package font

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"
)

const sample = `{
	"characters": {
		"A": [[[0, 0], [5, 10], [10, 0]], [[2.5, 5], [7.5, 5]]],
		".": [[[1, 1]]]
	}
}`

func TestParseJSON(t *testing.T) {
	face, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, face.Len())

	g, ok := face.Decode('A')
	require.True(t, ok, "face must contain 'A'")
	require.Len(t, g.Strokes, 2)
	assert.Equal(t, Stroke{{0, 0}, {5, 10}, {10, 0}}, g.Strokes[0])
	assert.Equal(t, Bounds{Min: f32.Vec2{0, 0}, Max: f32.Vec2{10, 10}}, g.Bounds)
	assert.Equal(t, float32(10), g.Bounds.Dx())

	dot, ok := face.Decode('.')
	require.True(t, ok)
	assert.Zero(t, dot.Bounds.Dx(), "single point has a zero-area bounding box")
	assert.Zero(t, dot.Bounds.Dy())

	_, ok = face.Decode('Z')
	assert.False(t, ok, "'Z' is not in the set")
}

func TestParseCBOR(t *testing.T) {
	doc := map[string]any{
		"characters": map[string]any{
			"B": [][][]float64{{{0, 0}, {3, 4}}},
		},
	}
	data, err := cbor.Marshal(doc)
	require.NoError(t, err)
	face, err := Parse(data)
	require.NoError(t, err)
	g, ok := face.Decode('B')
	require.True(t, ok)
	assert.Equal(t, Stroke{{0, 0}, {3, 4}}, g.Strokes[0])
}

func TestParseCollapsesDuplicatePoints(t *testing.T) {
	face, err := Parse([]byte(`{"characters": {"I": [[[1, 1], [1, 1], [1, 5], [1, 5], [1, 9]]]}}`))
	require.NoError(t, err)
	g, _ := face.Decode('I')
	assert.Equal(t, Stroke{{1, 1}, {1, 5}, {1, 9}}, g.Strokes[0],
		"consecutive identical points must collapse")
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		char string
	}{
		{"empty document", `{}`, ""},
		{"no characters", `{"characters": {}}`, ""},
		{"invalid JSON", `{"characters": `, ""},
		{"non-numeric coordinate", `{"characters": {"A": [[["x", 1]]]}}`, ""},
		{"zero strokes", `{"characters": {"A": []}}`, "A"},
		{"empty stroke", `{"characters": {"A": [[]]}}`, "A"},
		{"one coordinate", `{"characters": {"A": [[[1]]]}}`, "A"},
		{"three coordinates", `{"characters": {"A": [[[1, 2, 3]]]}}`, "A"},
		{"multi-rune key", `{"characters": {"ab": [[[1, 2]]]}}`, "ab"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			face, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.Nil(t, face)
			assert.ErrorIs(t, err, ErrMalformed)
			var derr *DatasetError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, tc.char, derr.Char)
		})
	}
}

func FuzzParse(f *testing.F) {
	f.Add([]byte(sample))
	f.Add([]byte(`{"characters": {"A": [[]]}}`))
	f.Add([]byte{0xa1, 0x61, 0x41})
	f.Fuzz(func(t *testing.T, data []byte) {
		face, err := Parse(data)
		if err == nil && face.Len() == 0 {
			t.Error("parse succeeded with an empty face")
		}
	})
}
