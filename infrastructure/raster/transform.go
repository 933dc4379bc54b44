package raster

import "math"

// Transform is a 2D affine matrix in canvas order:
//
//	| A C E |
//	| B D F |
//	| 0 0 1 |
type Transform struct {
	A, B, C, D, E, F float64
}

// Components is a transform split into rotation, scale and translation.
// Compose(c) equals Rotate(Angle)·Scale(SX, SY)·Translate(TX, TY).
type Components struct {
	TX, TY float64
	SX, SY float64
	Angle  float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{A: 1, D: 1}
}

// Multiply returns t·o, so o is applied to points first.
func (t Transform) Multiply(o Transform) Transform {
	return Transform{
		A: t.A*o.A + t.C*o.B,
		B: t.B*o.A + t.D*o.B,
		C: t.A*o.C + t.C*o.D,
		D: t.B*o.C + t.D*o.D,
		E: t.A*o.E + t.C*o.F + t.E,
		F: t.B*o.E + t.D*o.F + t.F,
	}
}

// Translate appends a translation, like CanvasRenderingContext2D.translate.
func (t Transform) Translate(x, y float64) Transform {
	return t.Multiply(Transform{A: 1, D: 1, E: x, F: y})
}

// Scale appends a scale.
func (t Transform) Scale(sx, sy float64) Transform {
	return t.Multiply(Transform{A: sx, D: sy})
}

// Rotate appends a rotation by angle radians.
func (t Transform) Rotate(angle float64) Transform {
	sin, cos := math.Sincos(angle)
	return t.Multiply(Transform{A: cos, B: sin, C: -sin, D: cos})
}

// Apply maps a point.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.C*y + t.E, t.B*x + t.D*y + t.F
}

// Decompose splits t. The scale factors are the column norms, the angle is
// the direction of the first column, and the translation is (E, F) rotated
// by -Angle and divided by the scale factors.
func (t Transform) Decompose() Components {
	sx := math.Hypot(t.A, t.B)
	sy := math.Hypot(t.C, t.D)
	angle := math.Atan2(t.B, t.A)

	sin, cos := math.Sincos(-angle)
	tx := cos*t.E - sin*t.F
	ty := sin*t.E + cos*t.F
	if sx != 0 {
		tx /= sx
	}
	if sy != 0 {
		ty /= sy
	}
	return Components{TX: tx, TY: ty, SX: sx, SY: sy, Angle: angle}
}

// Compose rebuilds the transform described by c.
func Compose(c Components) Transform {
	return Identity().Rotate(c.Angle).Scale(c.SX, c.SY).Translate(c.TX, c.TY)
}

// Equal reports whether every coefficient differs by at most tol.
func (t Transform) Equal(o Transform, tol float64) bool {
	return math.Abs(t.A-o.A) <= tol && math.Abs(t.B-o.B) <= tol &&
		math.Abs(t.C-o.C) <= tol && math.Abs(t.D-o.D) <= tol &&
		math.Abs(t.E-o.E) <= tol && math.Abs(t.F-o.F) <= tol
}
