package hostfuncs

import (
	"unicode/utf8"

	"github.com/reglet-dev/sourcehost/wireformat"
)

// MaxGuestInput bounds a single (ptr, len) argument read from guest memory.
const MaxGuestInput = 16 * 1024 * 1024

// Memory is the view of guest linear memory a host function gets. wazero's
// api.Memory satisfies it.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
	ReadUint32Le(offset uint32) (uint32, bool)
	WriteUint32Le(offset, v uint32) bool
}

// readBytes copies n bytes at ptr out of guest memory.
func readBytes(mem Memory, ptr, n int32) ([]byte, bool) {
	if ptr < 0 || n < 0 || n > MaxGuestInput {
		return nil, false
	}
	if n == 0 {
		return []byte{}, true
	}
	view, ok := mem.Read(uint32(ptr), uint32(n))
	if !ok {
		return nil, false
	}
	return append([]byte(nil), view...), true
}

// readString reads a UTF-8 string argument.
func readString(mem Memory, ptr, n int32) (string, bool) {
	b, ok := readBytes(mem, ptr, n)
	if !ok || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// readOptionalString treats a zero length as "absent" regardless of ptr.
func readOptionalString(mem Memory, ptr, n int32) (string, bool) {
	if n == 0 {
		return "", true
	}
	return readString(mem, ptr, n)
}

// writeBytes copies b into guest memory at ptr, failing when the guest
// buffer of size bytes is too small.
func writeBytes(mem Memory, ptr, size int32, b []byte) bool {
	if ptr < 0 || size < 0 || len(b) > int(size) {
		return false
	}
	if len(b) == 0 {
		return true
	}
	return mem.Write(uint32(ptr), b)
}

// readEnvelope copies the Encoded Buffer starting at ptr out of guest memory.
// The header tells how many bytes follow, so only that much is read.
func readEnvelope(mem Memory, ptr int32) ([]byte, error) {
	if ptr < 0 {
		return nil, &wireformat.DecodeError{Err: wireformat.ErrBadHeader}
	}
	head, ok := mem.Read(uint32(ptr), 2*wireformat.HeaderSize)
	if !ok {
		// an error branch needs 16 bytes, a bare success header only 8
		head, ok = mem.Read(uint32(ptr), wireformat.HeaderSize)
		if !ok {
			return nil, &wireformat.DecodeError{Err: wireformat.ErrTruncated}
		}
	}
	span, err := wireformat.Span(head)
	if err != nil {
		return nil, err
	}
	if span > MaxGuestInput {
		return nil, &wireformat.DecodeError{Err: wireformat.ErrBadHeader}
	}
	buf, ok := mem.Read(uint32(ptr), uint32(span)) //nolint:gosec // G115: bounded by MaxGuestInput
	if !ok {
		return nil, &wireformat.DecodeError{Err: wireformat.ErrTruncated}
	}
	return append([]byte(nil), buf...), nil
}

// readValue decodes the Encoded Buffer at ptr into a value.
func readValue(mem Memory, ptr int32) (any, error) {
	buf, err := readEnvelope(mem, ptr)
	if err != nil {
		return nil, err
	}
	return wireformat.Decode(buf)
}
