package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/gg"
)

// ErrInvalidPath is returned for a malformed path value.
var ErrInvalidPath = errors.New("raster: invalid path")

// Op is a path operation.
type Op uint8

const (
	OpMove Op = iota
	OpLine
	OpQuad
	OpCubic
	OpArc
	OpClose
)

var opNames = map[string]Op{
	"move": OpMove, "line": OpLine, "quad": OpQuad,
	"cubic": OpCubic, "arc": OpArc, "close": OpClose,
}

// arity is the number of float arguments; arcs take an optional sixth
// counter-clockwise flag.
var arity = [...]int{OpMove: 2, OpLine: 2, OpQuad: 4, OpCubic: 6, OpArc: 5, OpClose: 0}

// Segment is one path operation with its arguments.
type Segment struct {
	Args []float64
	Op   Op
	CCW  bool
}

// Path is an immutable sequence of segments.
type Path struct {
	segments []Segment
}

// NewPath builds a path from segments.
func NewPath(segments ...Segment) Path {
	return Path{segments: append([]Segment(nil), segments...)}
}

// Segments returns a copy of the segments.
func (p Path) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// PathFromValue decodes the value form [[op, args...], ...] where op is an
// operation name or its numeric code.
func PathFromValue(v any) (Path, error) {
	items, ok := v.([]any)
	if !ok {
		return Path{}, fmt.Errorf("%w: expected array, got %T", ErrInvalidPath, v)
	}
	segments := make([]Segment, 0, len(items))
	for i, item := range items {
		seg, err := segmentFromValue(item)
		if err != nil {
			return Path{}, fmt.Errorf("%w: segment %d: %v", ErrInvalidPath, i, err)
		}
		segments = append(segments, seg)
	}
	return Path{segments: segments}, nil
}

func segmentFromValue(v any) (Segment, error) {
	parts, ok := v.([]any)
	if !ok || len(parts) == 0 {
		return Segment{}, errors.New("expected non-empty array")
	}
	var op Op
	switch o := parts[0].(type) {
	case string:
		if op, ok = opNames[o]; !ok {
			return Segment{}, fmt.Errorf("unknown op %q", o)
		}
	case int64:
		if o < 0 || o > int64(OpClose) {
			return Segment{}, fmt.Errorf("unknown op %d", o)
		}
		op = Op(o)
	default:
		return Segment{}, fmt.Errorf("op must be string or int, got %T", parts[0])
	}

	args := parts[1:]
	seg := Segment{Op: op}
	n := arity[op]
	if op == OpArc && len(args) == n+1 {
		ccw, ok := args[n].(bool)
		if !ok {
			return Segment{}, errors.New("arc direction must be bool")
		}
		seg.CCW = ccw
		args = args[:n]
	}
	if len(args) != n {
		return Segment{}, fmt.Errorf("op %d takes %d arguments, got %d", op, n, len(args))
	}
	for _, a := range args {
		f, ok := number(a)
		if !ok {
			return Segment{}, fmt.Errorf("argument %v is not a finite number", a)
		}
		seg.Args = append(seg.Args, f)
	}
	return seg, nil
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, false
	}
	return f, !math.IsNaN(f) && !math.IsInf(f, 0)
}

// trace replays the path into dc.
func (p Path) trace(dc *gg.Context) {
	dc.ClearPath()
	for _, s := range p.segments {
		a := s.Args
		switch s.Op {
		case OpMove:
			dc.MoveTo(a[0], a[1])
		case OpLine:
			dc.LineTo(a[0], a[1])
		case OpQuad:
			dc.QuadraticTo(a[0], a[1], a[2], a[3])
		case OpCubic:
			dc.CubicTo(a[0], a[1], a[2], a[3], a[4], a[5])
		case OpArc:
			start, end := a[3], a[4]
			if s.CCW && end > start {
				end -= 2 * math.Pi * math.Ceil((end-start)/(2*math.Pi))
			} else if !s.CCW && end < start {
				end += 2 * math.Pi * math.Ceil((start-end)/(2*math.Pi))
			}
			dc.DrawArc(a[0], a[1], a[2], start, end)
		case OpClose:
			dc.ClosePath()
		}
	}
}
