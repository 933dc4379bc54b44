package wireformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// HeaderSize is the size of the [length][capacity] prefix.
const HeaderSize = 8

// ErrorLength is the length sentinel that marks the error branch.
const ErrorLength int32 = -1

// MaxPayload bounds a single payload so that 8+length always fits in int32.
const MaxPayload = math.MaxInt32 - HeaderSize

// Header is the fixed prefix of an Encoded Buffer.
type Header struct {
	Length   int32
	Capacity uint32
}

// IsError reports whether the header announces the error branch.
func (h Header) IsError() bool {
	return h.Length == ErrorLength
}

// IsNull reports whether the buffer carries the null (unit) value.
func (h Header) IsNull() bool {
	return h.Length == 0
}

// Total returns the number of bytes the header and its payload occupy. It is
// only meaningful on the success branch; error-branch sizes depend on the
// nested header and are returned by Span.
func (h Header) Total() int {
	if h.Length < 0 {
		return HeaderSize
	}
	return HeaderSize + int(h.Length)
}

// ReadHeader parses the first HeaderSize bytes of b.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &DecodeError{Err: ErrTruncated, Offset: len(b)}
	}
	h := Header{
		Length:   int32(binary.LittleEndian.Uint32(b[0:4])), //nolint:gosec // G115: reinterpreting the signed length field
		Capacity: binary.LittleEndian.Uint32(b[4:8]),
	}
	if h.Length < ErrorLength {
		return Header{}, &DecodeError{Err: fmt.Errorf("%w: length %d", ErrBadHeader, h.Length), Offset: 0}
	}
	return h, nil
}

// PutHeader writes h into the first HeaderSize bytes of dst.
func PutHeader(dst []byte, h Header) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(h.Length)) //nolint:gosec // G115: reinterpreting the signed length field
	binary.LittleEndian.PutUint32(dst[4:8], h.Capacity)
}

// Span returns the total number of bytes the envelope at the start of b
// occupies, following the nested triple on the error branch. Readers that only
// have a pointer into foreign memory use it to learn how much to copy.
func Span(b []byte) (int, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return 0, err
	}
	if !h.IsError() {
		return h.Total(), nil
	}
	inner, err := ReadHeader(b[HeaderSize:])
	if err != nil {
		return 0, offsetBy(err, HeaderSize)
	}
	if inner.Length < 0 {
		return 0, &DecodeError{Err: fmt.Errorf("%w: nested error length %d", ErrBadHeader, inner.Length), Offset: HeaderSize}
	}
	return HeaderSize + inner.Total(), nil
}

// Encode serializes v into a complete success envelope. The capacity field is
// set to the exact size of the returned slice.
func Encode(v any) ([]byte, error) {
	var payload []byte
	if v != nil {
		var err error
		if payload, err = appendValue(make([]byte, HeaderSize, HeaderSize+64), v, "$"); err != nil {
			return nil, err
		}
	} else {
		payload = make([]byte, HeaderSize)
	}
	return seal(payload)
}

// EncodeRaw wraps already-encoded payload bytes in a success envelope.
func EncodeRaw(payload []byte) ([]byte, error) {
	buf := make([]byte, HeaderSize, HeaderSize+len(payload))
	return seal(append(buf, payload...))
}

func seal(buf []byte) ([]byte, error) {
	n := len(buf) - HeaderSize
	if n > MaxPayload {
		return nil, &ValueError{Value: n, Path: "$"}
	}
	PutHeader(buf, Header{Length: int32(n), Capacity: uint32(len(buf))}) //nolint:gosec // G115: bounded by MaxPayload
	return buf, nil
}

// EncodeError builds an error-branch envelope carrying msg. Invalid UTF-8 is
// replaced so that the message always decodes.
func EncodeError(msg string) []byte {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) > MaxPayload-HeaderSize {
		msg = msg[:MaxPayload-HeaderSize]
	}
	total := 2*HeaderSize + len(msg)
	buf := make([]byte, total)
	//nolint:gosec // G115: bounded above
	PutHeader(buf, Header{Length: ErrorLength, Capacity: uint32(total)})
	//nolint:gosec // G115: bounded above
	PutHeader(buf[HeaderSize:], Header{Length: int32(len(msg)), Capacity: uint32(HeaderSize + len(msg))})
	copy(buf[2*HeaderSize:], msg)
	return buf
}

// EncodeResult encodes either err as the error branch or v as a success.
func EncodeResult(v any, err error) []byte {
	if err != nil {
		return EncodeError(err.Error())
	}
	buf, encErr := Encode(v)
	if encErr != nil {
		return EncodeError(encErr.Error())
	}
	return buf
}

// Decode reads an envelope. A success envelope yields its value; the error
// branch yields a *GuestError. Malformed input yields a *DecodeError and never
// a partial value. Bytes past the envelope are ignored, since the envelope
// may sit at the start of a larger allocation.
func Decode(b []byte) (any, error) {
	payload, err := Payload(b)
	if err != nil {
		return nil, err
	}
	v, err := UnmarshalValue(payload)
	if err != nil {
		return nil, offsetBy(err, HeaderSize)
	}
	return v, nil
}

// Payload returns the payload slice of a success envelope without decoding it.
// The error branch is reported as a *GuestError.
func Payload(b []byte) ([]byte, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return nil, err
	}
	if h.IsError() {
		return nil, decodeErrorBranch(b[HeaderSize:])
	}
	if h.Total() > len(b) {
		return nil, &DecodeError{Err: fmt.Errorf("%w: length %d exceeds buffer of %d bytes", ErrTruncated, h.Length, len(b)-HeaderSize), Offset: 0}
	}
	return b[HeaderSize:h.Total()], nil
}

func decodeErrorBranch(b []byte) error {
	inner, err := ReadHeader(b)
	if err != nil {
		return offsetBy(err, HeaderSize)
	}
	if inner.Length < 0 {
		return &DecodeError{Err: fmt.Errorf("%w: nested error length %d", ErrBadHeader, inner.Length), Offset: HeaderSize}
	}
	if inner.Total() > len(b) {
		return &DecodeError{Err: ErrTruncated, Offset: HeaderSize}
	}
	msg := b[HeaderSize:inner.Total()]
	if !utf8.Valid(msg) {
		return &DecodeError{Err: errors.New("error message is not valid utf-8"), Offset: 2 * HeaderSize}
	}
	return &GuestError{Message: string(msg)}
}

func offsetBy(err error, n int) error {
	if de, ok := err.(*DecodeError); ok {
		return &DecodeError{Err: de.Err, Offset: de.Offset + n}
	}
	return err
}
