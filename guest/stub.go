//go:build !wasip1

package guest

import (
	"fmt"
	"os"
	"time"
)

// ReadValue is only available inside a wasm guest.
func ReadValue(int32) (any, error) {
	return nil, ErrNotGuest
}

// Destroy is a no-op outside a wasm guest.
func Destroy(int32) {}

// Print writes msg to stderr outside a wasm guest.
func Print(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// Sleep sleeps for d outside a wasm guest.
func Sleep(d time.Duration) {
	time.Sleep(d)
}

// SendPartial discards v outside a wasm guest.
func SendPartial(any) error {
	return nil
}
