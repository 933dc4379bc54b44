package hostfuncs

import (
	"context"
	"errors"

	"github.com/reglet-dev/sourcehost/infrastructure/raster"
	"github.com/reglet-dev/sourcehost/resource"
)

func sig(types ...ValueType) []ValueType { return types }

// NewCanvasBundle returns the canvas namespace over the raster adapter.
func NewCanvasBundle(s *Session) HostFuncBundle {
	c := &canvasFuncs{s: s}
	return NewBundle(NamespaceCanvas,
		fn("new_context", sig(F32, F32), i32, c.newContext),
		fn("set_transform", sig(I32, F32, F32, F32, F32, F32), i32, c.setTransform),
		fn("fill", sig(I32, I32, F32, F32, F32, F32), i32, c.fill),
		fn("stroke", i32x3, i32, c.stroke),
		fn("draw_text", sig(I32, I32, I32, F32, F32, F32, I32, F32, F32, F32, F32), i32, c.drawText),
		fn("draw_image", sig(I32, I32, F32, F32, F32, F32), i32, c.drawImage),
		fn("copy_image", sig(I32, I32, F32, F32, F32, F32, F32, F32, F32, F32), i32, c.copyImage),
		fn("get_image", i32, i32, c.getImage),
		fn("new_font", i32x2, i32, c.newFont),
		fn("system_font", i32, i32, c.systemFont),
		fn("load_font", i32x2, i32, c.loadFont),
		fn("new_image", i32x2, i32, c.newImage),
		fn("get_image_data", i32, i32, c.imageData),
		fn("get_image_width", i32, i32, c.imageWidth),
		fn("get_image_height", i32, i32, c.imageHeight),
	)
}

type canvasFuncs struct {
	s *Session
}

func f32(stack []uint64, i int) float64 { return float64(argF32(stack, i)) }

func (c *canvasFuncs) canvas(h int32) (*raster.Canvas, bool) {
	v, ok := c.s.Resources.GetKind(h, resource.KindCanvas)
	if !ok {
		return nil, false
	}
	cv, ok := v.(*raster.Canvas)
	return cv, ok
}

func (c *canvasFuncs) image(h int32) (*raster.Image, bool) {
	v, ok := c.s.Resources.GetKind(h, resource.KindImage)
	if !ok {
		return nil, false
	}
	img, ok := v.(*raster.Image)
	return img, ok
}

func (c *canvasFuncs) font(h int32) (*raster.Font, bool) {
	v, ok := c.s.Resources.GetKind(h, resource.KindFont)
	if !ok {
		return nil, false
	}
	f, ok := v.(*raster.Font)
	return f, ok
}

func canvasCode(err error) int32 {
	switch {
	case errors.Is(err, raster.ErrInvalidBounds):
		return CanvasInvalidBounds
	case errors.Is(err, raster.ErrInvalidSrcRect):
		return CanvasInvalidSrcRect
	case errors.Is(err, raster.ErrInvalidImage):
		return CanvasInvalidImage
	case errors.Is(err, raster.ErrInvalidPath):
		return CanvasInvalidPath
	case errors.Is(err, raster.ErrInvalidStyle):
		return CanvasInvalidStyle
	case errors.Is(err, raster.ErrFontLoadFailed):
		return CanvasFontLoadFailed
	case errors.Is(err, raster.ErrInvalidFont):
		return CanvasInvalidFont
	default:
		return CanvasInvalidResult
	}
}

func canvasResult(stack []uint64, err error) {
	if err != nil {
		retI32(stack, canvasCode(err))
		return
	}
	retI32(stack, 0)
}

func (c *canvasFuncs) newContext(_ context.Context, _ Memory, stack []uint64) {
	cv, err := raster.NewCanvas(f32(stack, 0), f32(stack, 1))
	if err != nil {
		retI32(stack, canvasCode(err))
		return
	}
	retI32(stack, c.s.store(NamespaceCanvas, resource.KindCanvas, cv))
}

func (c *canvasFuncs) setTransform(_ context.Context, _ Memory, stack []uint64) {
	cv, ok := c.canvas(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidContext)
		return
	}
	cv.SetTransform(raster.Components{
		TX:    f32(stack, 1),
		TY:    f32(stack, 2),
		SX:    f32(stack, 3),
		SY:    f32(stack, 4),
		Angle: f32(stack, 5),
	})
	retI32(stack, 0)
}

// path decodes the path value whose Encoded Buffer starts at ptr.
func readPath(mem Memory, ptr int32) (raster.Path, error) {
	v, err := readValue(mem, ptr)
	if err != nil {
		return raster.Path{}, errors.Join(raster.ErrInvalidPath, err)
	}
	return raster.PathFromValue(v)
}

func (c *canvasFuncs) fill(_ context.Context, mem Memory, stack []uint64) {
	cv, ok := c.canvas(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidContext)
		return
	}
	p, err := readPath(mem, argI32(stack, 1))
	if err != nil {
		retI32(stack, CanvasInvalidPath)
		return
	}
	cv.Fill(p, raster.Color{R: f32(stack, 2), G: f32(stack, 3), B: f32(stack, 4), A: f32(stack, 5)})
	retI32(stack, 0)
}

func (c *canvasFuncs) stroke(_ context.Context, mem Memory, stack []uint64) {
	cv, ok := c.canvas(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidContext)
		return
	}
	p, err := readPath(mem, argI32(stack, 1))
	if err != nil {
		retI32(stack, CanvasInvalidPath)
		return
	}
	v, err := readValue(mem, argI32(stack, 2))
	if err != nil {
		retI32(stack, CanvasInvalidStyle)
		return
	}
	style, err := raster.StyleFromValue(v)
	if err != nil {
		retI32(stack, CanvasInvalidStyle)
		return
	}
	cv.Stroke(p, style)
	retI32(stack, 0)
}

func (c *canvasFuncs) drawText(_ context.Context, mem Memory, stack []uint64) {
	cv, ok := c.canvas(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidContext)
		return
	}
	text, ok := readString(mem, argI32(stack, 1), argI32(stack, 2))
	if !ok {
		retI32(stack, CanvasInvalidString)
		return
	}
	f, ok := c.font(argI32(stack, 6))
	if !ok {
		retI32(stack, CanvasInvalidFont)
		return
	}
	color := raster.Color{R: f32(stack, 7), G: f32(stack, 8), B: f32(stack, 9), A: f32(stack, 10)}
	canvasResult(stack, cv.DrawText(text, f32(stack, 3), f32(stack, 4), f32(stack, 5), f, color))
}

func (c *canvasFuncs) drawImage(_ context.Context, _ Memory, stack []uint64) {
	cv, ok := c.canvas(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidContext)
		return
	}
	img, ok := c.image(argI32(stack, 1))
	if !ok {
		retI32(stack, CanvasInvalidImagePointer)
		return
	}
	canvasResult(stack, cv.DrawImage(img, f32(stack, 2), f32(stack, 3), f32(stack, 4), f32(stack, 5)))
}

func (c *canvasFuncs) copyImage(_ context.Context, _ Memory, stack []uint64) {
	cv, ok := c.canvas(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidContext)
		return
	}
	img, ok := c.image(argI32(stack, 1))
	if !ok {
		retI32(stack, CanvasInvalidImagePointer)
		return
	}
	canvasResult(stack, cv.CopyImage(img,
		f32(stack, 2), f32(stack, 3), f32(stack, 4), f32(stack, 5),
		f32(stack, 6), f32(stack, 7), f32(stack, 8), f32(stack, 9)))
}

func (c *canvasFuncs) getImage(_ context.Context, _ Memory, stack []uint64) {
	cv, ok := c.canvas(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidContext)
		return
	}
	retI32(stack, c.s.store(NamespaceCanvas, resource.KindImage, cv.Image()))
}

func (c *canvasFuncs) storeFont(stack []uint64, f *raster.Font, err error) {
	if err != nil {
		retI32(stack, canvasCode(err))
		return
	}
	retI32(stack, c.s.store(NamespaceCanvas, resource.KindFont, f))
}

func (c *canvasFuncs) newFont(_ context.Context, mem Memory, stack []uint64) {
	family, ok := readString(mem, argI32(stack, 0), argI32(stack, 1))
	if !ok {
		retI32(stack, CanvasInvalidString)
		return
	}
	f, err := raster.NewFont(family)
	c.storeFont(stack, f, err)
}

func (c *canvasFuncs) systemFont(_ context.Context, _ Memory, stack []uint64) {
	f, err := raster.SystemFont(raster.Weight(argI32(stack, 0)))
	c.storeFont(stack, f, err)
}

func (c *canvasFuncs) loadFont(_ context.Context, mem Memory, stack []uint64) {
	url, ok := readString(mem, argI32(stack, 0), argI32(stack, 1))
	if !ok {
		retI32(stack, CanvasInvalidString)
		return
	}
	f, err := raster.LoadFont(url)
	c.storeFont(stack, f, err)
}

func (c *canvasFuncs) newImage(_ context.Context, mem Memory, stack []uint64) {
	data, ok := readBytes(mem, argI32(stack, 0), argI32(stack, 1))
	if !ok {
		retI32(stack, CanvasInvalidImagePointer)
		return
	}
	img, err := raster.DecodeImage(data)
	if err != nil {
		retI32(stack, CanvasInvalidImage)
		return
	}
	retI32(stack, c.s.store(NamespaceCanvas, resource.KindImage, img))
}

func (c *canvasFuncs) imageData(_ context.Context, _ Memory, stack []uint64) {
	img, ok := c.image(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidImagePointer)
		return
	}
	data, err := img.EncodePNG()
	if err != nil {
		retI32(stack, CanvasInvalidResult)
		return
	}
	retI32(stack, c.s.store(NamespaceCanvas, resource.KindBuffer, data))
}

func (c *canvasFuncs) imageWidth(_ context.Context, _ Memory, stack []uint64) {
	img, ok := c.image(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidImagePointer)
		return
	}
	retI32(stack, int32(img.Width())) //nolint:gosec // G115: bounded by MaxDimension or the decoder
}

func (c *canvasFuncs) imageHeight(_ context.Context, _ Memory, stack []uint64) {
	img, ok := c.image(argI32(stack, 0))
	if !ok {
		retI32(stack, CanvasInvalidImagePointer)
		return
	}
	retI32(stack, int32(img.Height())) //nolint:gosec // G115: bounded by MaxDimension or the decoder
}
