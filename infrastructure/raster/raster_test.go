package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_DecomposeRoundTrip(t *testing.T) {
	m := Identity().Translate(10, 5).Scale(2, 3).Rotate(math.Pi / 2)

	c := m.Decompose()
	assert.InDelta(t, 3, c.SX, 1e-9)
	assert.InDelta(t, 2, c.SY, 1e-9)
	assert.InDelta(t, math.Pi/2, c.Angle, 1e-9)

	got := Compose(c)
	assert.True(t, got.Equal(m, 1e-4), "got %+v want %+v", got, m)
}

func TestTransform_Compositions(t *testing.T) {
	tests := []struct {
		name string
		m    Transform
	}{
		{"identity", Identity()},
		{"translate", Identity().Translate(-4, 7.5)},
		{"scale", Identity().Scale(0.5, 4)},
		{"rotate", Identity().Rotate(-1.2)},
		{"rotate scale translate", Identity().Rotate(0.3).Scale(1.5, 2).Translate(3, -9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Compose(tt.m.Decompose()).Equal(tt.m, 1e-4))
		})
	}
}

func TestTransform_Apply(t *testing.T) {
	m := Identity().Translate(10, 0).Rotate(math.Pi / 2)
	x, y := m.Apply(1, 0)
	assert.InDelta(t, 10, x, 1e-9)
	assert.InDelta(t, 1, y, 1e-9)
}

func TestPathFromValue(t *testing.T) {
	p, err := PathFromValue([]any{
		[]any{"move", int64(0), int64(0)},
		[]any{int64(OpLine), 10.5, int64(0)},
		[]any{"quad", 1.0, 2.0, 3.0, 4.0},
		[]any{"cubic", 1.0, 2.0, 3.0, 4.0, 5.0, 6.0},
		[]any{"arc", 5.0, 5.0, 2.0, 0.0, math.Pi, true},
		[]any{"close"},
	})
	require.NoError(t, err)

	segs := p.Segments()
	require.Len(t, segs, 6)
	assert.Equal(t, OpLine, segs[1].Op)
	assert.Equal(t, []float64{10.5, 0}, segs[1].Args)
	assert.True(t, segs[4].CCW)

	bad := []any{
		"not an array",
		[]any{[]any{}},
		[]any{[]any{"warp", 1.0}},
		[]any{[]any{"move", 1.0}},
		[]any{[]any{"line", "x", 1.0}},
		[]any{[]any{"line", math.NaN(), 1.0}},
		[]any{[]any{"arc", 1.0, 1.0, 1.0, 0.0, 1.0, "ccw"}},
		[]any{[]any{int64(9)}},
	}
	for _, v := range bad {
		_, err := PathFromValue(v)
		assert.ErrorIs(t, err, ErrInvalidPath, "%v", v)
	}
}

func TestStyleFromValue(t *testing.T) {
	s, err := StyleFromValue(map[string]any{
		"width": 2.5,
		"cap":   "round",
		"join":  "bevel",
		"dash":  []any{int64(4), 2.0},
		"color": []any{int64(255), int64(0), int64(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2.5, s.Width)
	assert.Equal(t, CapRound, s.Cap)
	assert.Equal(t, []float64{4, 2}, s.Dash)
	assert.Equal(t, Color{R: 255, A: 1}, s.Color)

	for _, v := range []any{
		nil,
		map[string]any{"width": -1.0},
		map[string]any{"cap": "pointy"},
		map[string]any{"join": int64(1)},
		map[string]any{"dash": []any{-1.0}},
		map[string]any{"color": []any{1.0}},
	} {
		_, err := StyleFromValue(v)
		assert.ErrorIs(t, err, ErrInvalidStyle, "%v", v)
	}
}

func TestRotateDash(t *testing.T) {
	assert.Equal(t, []float64{4, 2}, rotateDash([]float64{4, 2}, 0))
	assert.Equal(t, []float64{3, 2, 1, 0}, rotateDash([]float64{4, 2}, 1))
	assert.Equal(t, []float64{0, 1, 4, 1}, rotateDash([]float64{4, 2}, 5))
	assert.Equal(t, []float64{3, 2, 1, 0}, rotateDash([]float64{4, 2}, 7))
}

func TestNewCanvas_Bounds(t *testing.T) {
	for _, dims := range [][2]float64{{0, 10}, {10, -1}, {8193, 1}, {math.NaN(), 1}} {
		_, err := NewCanvas(dims[0], dims[1])
		assert.ErrorIs(t, err, ErrInvalidBounds)
	}
	c, err := NewCanvas(8192, 1)
	require.NoError(t, err)
	assert.Equal(t, 8192, c.Width())
}

func TestCanvas_FillAndSnapshot(t *testing.T) {
	c, err := NewCanvas(10, 10)
	require.NoError(t, err)

	square, err := PathFromValue([]any{
		[]any{"move", 0.0, 0.0}, []any{"line", 10.0, 0.0},
		[]any{"line", 10.0, 10.0}, []any{"line", 0.0, 10.0}, []any{"close"},
	})
	require.NoError(t, err)
	c.Fill(square, Color{R: 255, A: 1})

	img := c.Image()
	r, g, b, a := img.Image().At(5, 5).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)
	assert.Equal(t, uint32(0xffff), a)

	// later drawing must not change the snapshot
	c.Fill(square, Color{B: 255, A: 1})
	r, _, _, _ = img.Image().At(5, 5).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestCanvas_SetTransform(t *testing.T) {
	c, err := NewCanvas(20, 20)
	require.NoError(t, err)

	comps := Components{TX: 2, TY: 3, SX: 2, SY: 2}
	c.SetTransform(comps)
	assert.True(t, c.Transform().Equal(Compose(comps), 1e-9))

	unit, err := PathFromValue([]any{
		[]any{"move", 0.0, 0.0}, []any{"line", 1.0, 0.0},
		[]any{"line", 1.0, 1.0}, []any{"line", 0.0, 1.0}, []any{"close"},
	})
	require.NoError(t, err)
	c.Fill(unit, Color{G: 255, A: 1})

	// scale(2)·translate(2,3) maps the unit square to (4,6)-(6,8)
	_, g, _, _ := c.Image().Image().At(5, 7).RGBA()
	assert.Equal(t, uint32(0xffff), g)
	_, g, _, _ = c.Image().Image().At(1, 1).RGBA()
	assert.Zero(t, g)
}

func pngBytes(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImages(t *testing.T) {
	img, err := DecodeImage(pngBytes(t, 4, 3, color.RGBA{B: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width())
	assert.Equal(t, 3, img.Height())
	assert.Equal(t, "png", img.Format)

	_, err = DecodeImage([]byte("not an image"))
	assert.ErrorIs(t, err, ErrInvalidImage)

	c, err := NewCanvas(8, 8)
	require.NoError(t, err)
	require.NoError(t, c.DrawImage(img, 0, 0, 8, 8))
	_, _, b, _ := c.Image().Image().At(4, 4).RGBA()
	assert.Equal(t, uint32(0xffff), b)

	assert.ErrorIs(t, c.CopyImage(img, 2, 2, 4, 4, 0, 0, 1, 1), ErrInvalidSrcRect)
	assert.ErrorIs(t, c.CopyImage(img, -1, 0, 1, 1, 0, 0, 1, 1), ErrInvalidSrcRect)
	require.NoError(t, c.CopyImage(img, 1, 1, 2, 2, 0, 0, 2, 2))

	data, err := c.Image().EncodePNG()
	require.NoError(t, err)
	round, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, 8, round.Width())
}

func TestFonts(t *testing.T) {
	f, err := NewFont("Helvetica")
	require.NoError(t, err)
	assert.Equal(t, "Go Regular", f.Name)

	f, err = NewFont("Comic Sans")
	require.NoError(t, err)
	assert.Equal(t, "Go Regular", f.Name)

	bold, err := SystemFont(WeightBlack)
	require.NoError(t, err)
	assert.Equal(t, "Go Bold", bold.Name)

	medium, err := SystemFont(WeightSemibold)
	require.NoError(t, err)
	assert.Equal(t, "Go Medium", medium.Name)

	_, err = SystemFont(Weight(9))
	assert.ErrorIs(t, err, ErrInvalidFont)

	_, err = LoadFont("https://fonts.example/x.ttf")
	assert.ErrorIs(t, err, ErrFontLoadFailed)

	face, err := f.Face(12)
	require.NoError(t, err)
	again, err := f.Face(12)
	require.NoError(t, err)
	assert.Same(t, face, again)
	_, err = f.Face(0)
	assert.ErrorIs(t, err, ErrInvalidFont)

	c, err := NewCanvas(50, 20)
	require.NoError(t, err)
	require.NoError(t, c.DrawText("Hi", 12, 2, 15, f, Color{A: 1}))
	f.Drop()
}
