package guest

import (
	"errors"
	"fmt"
)

// ErrNotGuest is returned by host calls made outside a wasm guest.
var ErrNotGuest = errors.New("not running inside a wasm guest")

// HostError carries the negative code a host import returned.
type HostError struct {
	Func string
	Code int32
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s failed with code %d", e.Func, e.Code)
}
