package hostfuncs

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(size int64) []any {
	return []any{
		[]any{"move", int64(0), int64(0)},
		[]any{"line", size, int64(0)},
		[]any{"line", size, size},
		[]any{"line", int64(0), size},
		[]any{"close"},
	}
}

func (h *harness) newCanvas(w, ht float32) int32 {
	h.t.Helper()
	return h.handle(NamespaceCanvas, "new_context", f32arg(w), f32arg(ht))
}

func (h *harness) snapshot(cv int32) image.Image {
	h.t.Helper()
	img := h.handle(NamespaceCanvas, "get_image", i32arg(cv))
	data := h.readBack(h.handle(NamespaceCanvas, "get_image_data", i32arg(img)))
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(h.t, err)
	return decoded
}

func TestCanvas_FillAndSnapshot(t *testing.T) {
	h := newHarness(t)
	cv := h.newCanvas(8, 4)

	fill := h.i32(NamespaceCanvas, "fill", i32arg(cv), h.mem.value(t, square(8)),
		f32arg(255), f32arg(0), f32arg(0), f32arg(1))
	require.Equal(t, int32(0), fill)

	img := h.handle(NamespaceCanvas, "get_image", i32arg(cv))
	assert.Equal(t, int32(8), h.i32(NamespaceCanvas, "get_image_width", i32arg(img)))
	assert.Equal(t, int32(4), h.i32(NamespaceCanvas, "get_image_height", i32arg(img)))

	r, g, b, a := h.snapshot(cv).At(2, 2).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a})
}

func TestCanvas_DrawImageRoundTrip(t *testing.T) {
	h := newHarness(t)

	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for x := range 2 {
		for y := range 2 {
			src.Set(x, y, color.RGBA{B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	ptr := h.mem.alloc(buf.Bytes())
	img := h.handle(NamespaceCanvas, "new_image", i32arg(ptr), i32arg(int32(buf.Len())))

	cv := h.newCanvas(4, 4)
	require.Equal(t, int32(0), h.i32(NamespaceCanvas, "draw_image", i32arg(cv), i32arg(img),
		f32arg(0), f32arg(0), f32arg(4), f32arg(4)))
	_, _, b, _ := h.snapshot(cv).At(2, 2).RGBA()
	assert.Equal(t, uint32(0xffff), b)

	copyArgs := func(sx, sy, sw, sh float32) []uint64 {
		return []uint64{
			i32arg(cv), i32arg(img),
			f32arg(sx), f32arg(sy), f32arg(sw), f32arg(sh),
			f32arg(0), f32arg(0), f32arg(2), f32arg(2),
		}
	}
	assert.Equal(t, int32(0), h.i32(NamespaceCanvas, "copy_image", copyArgs(0, 0, 1, 1)...))
	assert.Equal(t, CanvasInvalidSrcRect, h.i32(NamespaceCanvas, "copy_image", copyArgs(1, 1, 5, 5)...))
}

func TestCanvas_Text(t *testing.T) {
	h := newHarness(t)
	cv := h.newCanvas(64, 32)

	fp, fn := h.mem.str("sans-serif")
	font := h.handle(NamespaceCanvas, "new_font", fp, fn)
	bold := h.handle(NamespaceCanvas, "system_font", i32arg(6))
	assert.NotEqual(t, font, bold)

	draw := func(f int32, size float32) int32 {
		tp, tn := h.mem.str("Hi")
		return h.i32(NamespaceCanvas, "draw_text", i32arg(cv), tp, tn,
			f32arg(size), f32arg(2), f32arg(20), i32arg(f),
			f32arg(0), f32arg(0), f32arg(0), f32arg(1))
	}
	assert.Equal(t, int32(0), draw(font, 16))
	assert.Equal(t, CanvasInvalidFont, draw(font, 0))
	assert.Equal(t, CanvasInvalidFont, draw(cv, 16))

	assert.Equal(t, CanvasInvalidFont, h.i32(NamespaceCanvas, "system_font", i32arg(42)))
	up, un := h.mem.str("https://example.com/font.ttf")
	assert.Equal(t, CanvasFontLoadFailed, h.i32(NamespaceCanvas, "load_font", up, un))
}

func TestCanvas_Errors(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, CanvasInvalidBounds, h.i32(NamespaceCanvas, "new_context", f32arg(0), f32arg(10)))
	assert.Equal(t, CanvasInvalidBounds, h.i32(NamespaceCanvas, "new_context", f32arg(10), f32arg(-1)))

	cv := h.newCanvas(4, 4)
	path := h.mem.value(t, square(4))

	tests := []struct {
		name string
		fn   string
		args []uint64
		want int32
	}{
		{"fill unknown canvas", "fill", []uint64{i32arg(77), path, 0, 0, 0, 0}, CanvasInvalidContext},
		{"fill bad path", "fill", []uint64{i32arg(cv), h.mem.value(t, "circle"), 0, 0, 0, 0}, CanvasInvalidPath},
		{"stroke bad style", "stroke", []uint64{i32arg(cv), path, h.mem.value(t, map[string]any{"cap": "pointy"})}, CanvasInvalidStyle},
		{"stroke ok", "stroke", []uint64{i32arg(cv), path, h.mem.value(t, map[string]any{"width": 2.5})}, 0},
		{"transform unknown canvas", "set_transform", []uint64{i32arg(77), 0, 0, f32arg(1), f32arg(1), 0}, CanvasInvalidContext},
		{"garbage image", "new_image", []uint64{i32arg(h.mem.alloc([]byte("nope"))), i32arg(4)}, CanvasInvalidImage},
		{"image out of memory", "new_image", []uint64{i32arg(1 << 20), i32arg(16)}, CanvasInvalidImagePointer},
		{"width of canvas handle", "get_image_width", []uint64{i32arg(cv)}, CanvasInvalidImagePointer},
		{"draw unknown image", "draw_image", []uint64{i32arg(cv), i32arg(77), 0, 0, f32arg(1), f32arg(1)}, CanvasInvalidImagePointer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.i32(NamespaceCanvas, tt.fn, tt.args...))
		})
	}
}

func TestCanvas_SetTransform(t *testing.T) {
	h := newHarness(t)
	cv := h.newCanvas(8, 8)

	require.Equal(t, int32(0), h.i32(NamespaceCanvas, "set_transform", i32arg(cv),
		f32arg(4), f32arg(4), f32arg(1), f32arg(1), f32arg(0)))
	require.Equal(t, int32(0), h.i32(NamespaceCanvas, "fill", i32arg(cv), h.mem.value(t, square(4)),
		f32arg(0), f32arg(255), f32arg(0), f32arg(1)))

	img := h.snapshot(cv)
	_, g, _, _ := img.At(6, 6).RGBA()
	assert.Equal(t, uint32(0xffff), g)
	_, _, _, a := img.At(1, 1).RGBA()
	assert.Zero(t, a, "the untranslated corner stays transparent")
}
