// Package raster is the 2D drawing adapter. Canvases, fonts and images are
// built on fogleman/gg and golang.org/x/image; paths and stroke styles arrive
// as decoded values and are immutable.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/fogleman/gg"
)

// MaxDimension bounds canvas width and height.
const MaxDimension = 8192

// ErrInvalidBounds is returned for a canvas size outside (0, MaxDimension].
var ErrInvalidBounds = errors.New("raster: invalid canvas bounds")

// Canvas is a drawing surface with a current transform.
type Canvas struct {
	dc        *gg.Context
	transform Components
}

// NewCanvas creates a transparent canvas of w by h pixels.
func NewCanvas(w, h float64) (*Canvas, error) {
	if !validDimension(w) || !validDimension(h) {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidBounds, w, h)
	}
	c := &Canvas{
		dc:        gg.NewContext(int(math.Ceil(w)), int(math.Ceil(h))),
		transform: Identity().Decompose(),
	}
	return c, nil
}

func validDimension(v float64) bool {
	return v > 0 && v <= MaxDimension && !math.IsNaN(v)
}

// Width returns the width in pixels.
func (c *Canvas) Width() int { return c.dc.Width() }

// Height returns the height in pixels.
func (c *Canvas) Height() int { return c.dc.Height() }

// SetTransform replaces the current transform with Compose(t).
func (c *Canvas) SetTransform(t Components) {
	c.transform = t
	c.dc.Identity()
	c.dc.Rotate(t.Angle)
	c.dc.Scale(t.SX, t.SY)
	c.dc.Translate(t.TX, t.TY)
}

// Transform returns the current transform.
func (c *Canvas) Transform() Transform {
	return Compose(c.transform)
}

// Fill fills path with color using the non-zero winding rule.
func (c *Canvas) Fill(p Path, color Color) {
	p.trace(c.dc)
	color.apply(c.dc)
	c.dc.SetFillRuleWinding()
	c.dc.Fill()
}

// Stroke strokes path with style.
func (c *Canvas) Stroke(p Path, style StrokeStyle) {
	p.trace(c.dc)
	style.apply(c.dc)
	c.dc.Stroke()
}

// DrawText draws text with its baseline starting at (x, y).
func (c *Canvas) DrawText(text string, size, x, y float64, f *Font, color Color) error {
	face, err := f.Face(size)
	if err != nil {
		return err
	}
	c.dc.SetFontFace(face)
	color.apply(c.dc)
	c.dc.DrawString(text, x, y)
	return nil
}

// DrawImage draws img scaled into the rectangle (dx, dy, dw, dh).
func (c *Canvas) DrawImage(img *Image, dx, dy, dw, dh float64) error {
	return c.drawScaled(img.img, dx, dy, dw, dh)
}

// CopyImage draws the source rectangle (sx, sy, sw, sh) of img scaled into
// the rectangle (dx, dy, dw, dh).
func (c *Canvas) CopyImage(img *Image, sx, sy, sw, sh, dx, dy, dw, dh float64) error {
	src, err := img.crop(sx, sy, sw, sh)
	if err != nil {
		return err
	}
	return c.drawScaled(src, dx, dy, dw, dh)
}

func (c *Canvas) drawScaled(src image.Image, dx, dy, dw, dh float64) error {
	b := src.Bounds()
	if b.Empty() || dw <= 0 || dh <= 0 {
		return fmt.Errorf("%w: %vx%v", ErrInvalidBounds, dw, dh)
	}
	c.dc.Push()
	defer c.dc.Pop()
	c.dc.Translate(dx, dy)
	c.dc.Scale(dw/float64(b.Dx()), dh/float64(b.Dy()))
	c.dc.DrawImage(src, -b.Min.X, -b.Min.Y)
	return nil
}

// Image snapshots the canvas.
func (c *Canvas) Image() *Image {
	src := c.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return NewImage(dst)
}
