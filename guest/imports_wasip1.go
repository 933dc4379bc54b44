//go:build wasip1

package guest

import (
	"time"

	"github.com/reglet-dev/sourcehost/wireformat"
)

//go:wasmimport std buffer_len
func hostBufferLen(handle int32) int32

//go:wasmimport std read_buffer
func hostReadBuffer(handle int32, ptr uint32, size int32) int32

//go:wasmimport std destroy
func hostDestroy(handle int32)

//go:wasmimport env print
func hostPrint(ptr uint32, size int32)

//go:wasmimport env sleep
func hostSleep(seconds int32)

//go:wasmimport env send_partial_result
func hostSendPartialResult(ptr uint32) int32

// ReadValue decodes the Buffer behind handle. A negative handle is an absent
// argument and reads as nil.
func ReadValue(handle int32) (any, error) {
	if handle < 0 {
		return nil, nil
	}
	n := hostBufferLen(handle)
	if n < 0 {
		return nil, &HostError{Func: "std.buffer_len", Code: n}
	}
	buf := make([]byte, n)
	if n > 0 {
		if code := hostReadBuffer(handle, addr(buf), n); code < 0 {
			return nil, &HostError{Func: "std.read_buffer", Code: code}
		}
	}
	return wireformat.Decode(buf)
}

// Destroy releases a host resource.
func Destroy(handle int32) {
	hostDestroy(handle)
}

// Print writes msg to the host log.
func Print(msg string) {
	b := []byte(msg)
	hostPrint(addr(b), int32(len(b))) //nolint:gosec // G115: messages are far below 2 GiB
}

// Sleep blocks for d, rounded down to whole seconds.
func Sleep(d time.Duration) {
	hostSleep(int32(d / time.Second)) //nolint:gosec // G115: bounded by caller
}

// SendPartial streams v to the host before the current call returns.
func SendPartial(v any) error {
	buf, err := wireformat.Encode(v)
	if err != nil {
		return err
	}
	if code := hostSendPartialResult(addr(buf)); code < 0 {
		return &HostError{Func: "env.send_partial_result", Code: code}
	}
	return nil
}
