package wireformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"
)

// MaxDepth bounds the nesting of arrays and objects accepted by the decoder.
const MaxDepth = 128

// MarshalValue encodes v as a bare payload (no envelope). A nil value encodes
// to an empty payload.
func MarshalValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return appendValue(nil, v, "$")
}

// AppendValue appends the payload encoding of v to dst. Unlike MarshalValue a
// nil value is written as an explicit null tag.
func AppendValue(dst []byte, v any) ([]byte, error) {
	return appendValue(dst, v, "$")
}

func appendValue(dst []byte, v any, path string) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(dst, byte(KindNull)), nil
	case int:
		return appendInt(dst, int64(x)), nil
	case int8:
		return appendInt(dst, int64(x)), nil
	case int16:
		return appendInt(dst, int64(x)), nil
	case int32:
		return appendInt(dst, int64(x)), nil
	case int64:
		return appendInt(dst, x), nil
	case uint8:
		return appendInt(dst, int64(x)), nil
	case uint16:
		return appendInt(dst, int64(x)), nil
	case uint32:
		return appendInt(dst, int64(x)), nil
	case float32:
		return appendFloat(append(dst, byte(KindFloat)), float64(x)), nil
	case float64:
		return appendFloat(append(dst, byte(KindFloat)), x), nil
	case string:
		return appendString(append(dst, byte(KindString)), x, path)
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		return append(dst, byte(KindBool), b), nil
	case []any:
		dst = binary.AppendUvarint(append(dst, byte(KindArray)), uint64(len(x)))
		var err error
		for i, item := range x {
			if dst, err = appendValue(dst, item, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case []string:
		dst = binary.AppendUvarint(append(dst, byte(KindArray)), uint64(len(x)))
		var err error
		for i, item := range x {
			if dst, err = appendString(append(dst, byte(KindString)), item, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case map[string]any:
		dst = binary.AppendUvarint(append(dst, byte(KindObject)), uint64(len(x)))
		var err error
		for _, k := range sortedKeys(x) {
			if dst, err = appendString(dst, k, path+"."+k); err != nil {
				return nil, err
			}
			if dst, err = appendValue(dst, x[k], path+"."+k); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case map[string]string:
		dst = binary.AppendUvarint(append(dst, byte(KindObject)), uint64(len(x)))
		var err error
		for _, k := range sortedKeys(x) {
			if dst, err = appendString(dst, k, path+"."+k); err != nil {
				return nil, err
			}
			if dst, err = appendString(append(dst, byte(KindString)), x[k], path+"."+k); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case time.Time:
		secs := float64(x.UnixNano()) / float64(time.Second)
		return appendFloat(append(dst, byte(KindDate)), secs), nil
	case Node:
		return binary.AppendVarint(append(dst, byte(KindNode)), int64(x)), nil
	}
	return nil, &ValueError{Value: v, Path: path}
}

func appendInt(dst []byte, v int64) []byte {
	return binary.AppendVarint(append(dst, byte(KindInt)), v)
}

func appendFloat(dst []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
}

// appendString rejects invalid UTF-8, which the decoder would refuse.
func appendString(dst []byte, s, path string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, &ValueError{Value: s, Path: path, Reason: "invalid UTF-8"}
	}
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...), nil
}

// UnmarshalValue decodes a bare payload produced by MarshalValue. An empty
// payload decodes to nil. Trailing bytes after the value are rejected.
func UnmarshalValue(p []byte) (any, error) {
	if len(p) == 0 {
		return nil, nil
	}
	d := decoder{buf: p}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.buf) {
		return nil, d.fail(fmt.Errorf("%d trailing bytes", len(d.buf)-d.off))
	}
	return v, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) fail(err error) error {
	return &DecodeError{Err: err, Offset: d.off}
}

func (d *decoder) byte() (byte, error) {
	if d.off >= len(d.buf) {
		return 0, d.fail(ErrTruncated)
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		if n == 0 {
			return 0, d.fail(ErrTruncated)
		}
		return 0, d.fail(errors.New("uvarint overflows 64 bits"))
	}
	d.off += n
	return v, nil
}

func (d *decoder) varint() (int64, error) {
	v, n := binary.Varint(d.buf[d.off:])
	if n <= 0 {
		if n == 0 {
			return 0, d.fail(ErrTruncated)
		}
		return 0, d.fail(errors.New("varint overflows 64 bits"))
	}
	d.off += n
	return v, nil
}

func (d *decoder) float() (float64, error) {
	if len(d.buf)-d.off < 8 {
		return 0, d.fail(ErrTruncated)
	}
	bits := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return math.Float64frombits(bits), nil
}

// count reads a length prefix and checks it against the bytes that remain, so
// that a forged count cannot drive a huge allocation.
func (d *decoder) count() (int, error) {
	n, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(d.buf)-d.off) {
		return 0, d.fail(ErrTruncated)
	}
	return int(n), nil
}

func (d *decoder) string() (string, error) {
	n, err := d.count()
	if err != nil {
		return "", err
	}
	raw := d.buf[d.off : d.off+n]
	if !utf8.Valid(raw) {
		return "", d.fail(errors.New("string is not valid utf-8"))
	}
	d.off += n
	return string(raw), nil
}

func (d *decoder) value(depth int) (any, error) {
	if depth > MaxDepth {
		return nil, d.fail(fmt.Errorf("nesting exceeds %d levels", MaxDepth))
	}
	tag, err := d.byte()
	if err != nil {
		return nil, err
	}
	switch Kind(tag) {
	case KindNull:
		return nil, nil
	case KindInt:
		return d.varint()
	case KindFloat:
		return d.float()
	case KindString:
		return d.string()
	case KindBool:
		b, err := d.byte()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, d.fail(fmt.Errorf("invalid bool byte %d", b))
		}
		return b == 1, nil
	case KindArray:
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		arr := make([]any, 0, n)
		for i := 0; i < n; i++ {
			item, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		return arr, nil
	case KindObject:
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		obj := make(map[string]any, n)
		for i := 0; i < n; i++ {
			k, err := d.string()
			if err != nil {
				return nil, err
			}
			v, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			obj[k] = v
		}
		return obj, nil
	case KindDate:
		secs, err := d.float()
		if err != nil {
			return nil, err
		}
		return dateFromSeconds(secs), nil
	case KindNode:
		h, err := d.varint()
		if err != nil {
			return nil, err
		}
		if h < math.MinInt32 || h > math.MaxInt32 {
			return nil, d.fail(fmt.Errorf("node handle %d out of range", h))
		}
		return Node(h), nil
	}
	d.off--
	return nil, d.fail(fmt.Errorf("unknown tag %d", tag))
}

func dateFromSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second)))).UTC()
}
