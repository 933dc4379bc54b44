package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/gg"
)

// ErrInvalidStyle is returned for a malformed stroke style value.
var ErrInvalidStyle = errors.New("raster: invalid stroke style")

// Color is a CSS style colour: channels 0-255, alpha 0-1.
type Color struct {
	R, G, B, A float64
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func (c Color) apply(dc *gg.Context) {
	dc.SetRGBA(clamp(c.R, 0, 255)/255, clamp(c.G, 0, 255)/255, clamp(c.B, 0, 255)/255, clamp(c.A, 0, 1))
}

// LineCap and LineJoin mirror the canvas names.
const (
	CapButt   = "butt"
	CapRound  = "round"
	CapSquare = "square"

	JoinMiter = "miter"
	JoinRound = "round"
	JoinBevel = "bevel"
)

// StrokeStyle describes how a path is stroked.
type StrokeStyle struct {
	Cap        string
	Join       string
	Dash       []float64
	Color      Color
	Width      float64
	MiterLimit float64
	DashOffset float64
}

// DefaultStrokeStyle matches a fresh canvas context.
func DefaultStrokeStyle() StrokeStyle {
	return StrokeStyle{
		Cap:        CapButt,
		Join:       JoinMiter,
		Color:      Color{A: 1},
		Width:      1,
		MiterLimit: 10,
	}
}

// StyleFromValue decodes an object with the optional keys width, cap, join,
// miter_limit, dash, dash_offset and color ([r, g, b, a]).
func StyleFromValue(v any) (StrokeStyle, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return StrokeStyle{}, fmt.Errorf("%w: expected object, got %T", ErrInvalidStyle, v)
	}
	s := DefaultStrokeStyle()

	floatField := func(key string, dst *float64, min float64) error {
		raw, ok := obj[key]
		if !ok {
			return nil
		}
		f, ok := number(raw)
		if !ok || f < min {
			return fmt.Errorf("%w: %s", ErrInvalidStyle, key)
		}
		*dst = f
		return nil
	}
	if err := floatField("width", &s.Width, 0); err != nil {
		return s, err
	}
	if err := floatField("miter_limit", &s.MiterLimit, 0); err != nil {
		return s, err
	}
	if err := floatField("dash_offset", &s.DashOffset, math.Inf(-1)); err != nil {
		return s, err
	}

	if raw, ok := obj["cap"]; ok {
		c, _ := raw.(string)
		if c != CapButt && c != CapRound && c != CapSquare {
			return s, fmt.Errorf("%w: cap %v", ErrInvalidStyle, raw)
		}
		s.Cap = c
	}
	if raw, ok := obj["join"]; ok {
		j, _ := raw.(string)
		if j != JoinMiter && j != JoinRound && j != JoinBevel {
			return s, fmt.Errorf("%w: join %v", ErrInvalidStyle, raw)
		}
		s.Join = j
	}
	if raw, ok := obj["dash"]; ok {
		items, ok := raw.([]any)
		if !ok {
			return s, fmt.Errorf("%w: dash", ErrInvalidStyle)
		}
		for _, item := range items {
			f, ok := number(item)
			if !ok || f < 0 {
				return s, fmt.Errorf("%w: dash", ErrInvalidStyle)
			}
			s.Dash = append(s.Dash, f)
		}
	}
	if raw, ok := obj["color"]; ok {
		c, err := colorFromValue(raw)
		if err != nil {
			return s, err
		}
		s.Color = c
	}
	return s, nil
}

func colorFromValue(v any) (Color, error) {
	items, ok := v.([]any)
	if !ok || (len(items) != 3 && len(items) != 4) {
		return Color{}, fmt.Errorf("%w: color", ErrInvalidStyle)
	}
	ch := []float64{0, 0, 0, 1}
	for i, item := range items {
		f, ok := number(item)
		if !ok {
			return Color{}, fmt.Errorf("%w: color", ErrInvalidStyle)
		}
		ch[i] = f
	}
	return Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// apply configures dc. gg has no miter joins, so miter falls back to bevel.
func (s StrokeStyle) apply(dc *gg.Context) {
	dc.SetLineWidth(s.Width)
	switch s.Cap {
	case CapRound:
		dc.SetLineCap(gg.LineCapRound)
	case CapSquare:
		dc.SetLineCap(gg.LineCapSquare)
	default:
		dc.SetLineCap(gg.LineCapButt)
	}
	if s.Join == JoinRound {
		dc.SetLineJoin(gg.LineJoinRound)
	} else {
		dc.SetLineJoin(gg.LineJoinBevel)
	}
	dc.SetDash(rotateDash(s.Dash, s.DashOffset)...)
	s.Color.apply(dc)
}

// rotateDash folds a dash offset into the pattern by starting it offset
// units in.
func rotateDash(dash []float64, offset float64) []float64 {
	var total float64
	for _, d := range dash {
		total += d
	}
	if len(dash) == 0 || total == 0 || offset == 0 {
		return dash
	}
	if len(dash)%2 == 1 {
		dash = append(append([]float64(nil), dash...), dash...)
		total *= 2
	}
	offset = math.Mod(offset, total)
	if offset < 0 {
		offset += total
	}
	for i, d := range dash {
		if offset < d {
			out := []float64{d - offset}
			out = append(out, dash[i+1:]...)
			out = append(out, dash[:i]...)
			if i%2 == 0 {
				// the split dash continues after the tail, then a zero gap
				return append(out, offset, 0)
			}
			// starting inside a gap: lead with a zero dash
			return append(append([]float64{0}, out...), offset)
		}
		offset -= d
	}
	return dash
}
