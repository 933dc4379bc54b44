//go:build wasip1

package guest

import (
	"sync"
	"unsafe"

	"github.com/reglet-dev/sourcehost/wireformat"
)

// pinned keeps leaked results reachable until the host frees them, so the
// Go GC does not collect memory the host is still reading.
var pinned = struct {
	sync.Mutex
	bufs  map[uint32][]byte
	bytes int
}{
	bufs: make(map[uint32][]byte),
}

// leak pins buf and returns its address for the host.
func leak(buf []byte) int32 {
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))

	pinned.Lock()
	pinned.bufs[ptr] = buf
	pinned.bytes += len(buf)
	pinned.Unlock()

	return int32(ptr) //nolint:gosec // G115: wasm32 addresses fit in int32
}

// freeResult releases a result the host has copied. The allocation size is
// read back from the envelope's capacity field.
//
//go:wasmexport free_result
func freeResult(ptr int32) {
	p := uint32(ptr) //nolint:gosec // G115: reinterpreting a wasm32 address

	pinned.Lock()
	defer pinned.Unlock()

	buf, ok := pinned.bufs[p]
	if !ok {
		return
	}
	size := len(buf)
	if h, err := wireformat.ReadHeader(buf); err == nil && int(h.Capacity) <= len(buf) {
		size = int(h.Capacity)
	}
	delete(pinned.bufs, p)
	pinned.bytes -= size
	if pinned.bytes < 0 {
		pinned.bytes = 0
	}
}

// PinnedBytes returns the size of results the host has not freed yet.
func PinnedBytes() int {
	pinned.Lock()
	defer pinned.Unlock()
	return pinned.bytes
}

func addr(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}
