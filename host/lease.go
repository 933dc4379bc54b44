package host

import (
	"context"

	"github.com/reglet-dev/sourcehost/wireformat"
)

// Lease is a host-side copy of a result the guest leaked for the host. The
// guest keeps the original allocation until Release hands its pointer to
// free_result. A nil *Lease is a null result and is safe to use.
type Lease struct {
	plugin   *Plugin
	export   string
	data     []byte
	ptr      uint32
	released bool
}

// Export returns the name of the export that produced the result.
func (l *Lease) Export() string {
	if l == nil {
		return ""
	}
	return l.export
}

// Bytes returns the copied Encoded Buffer, header included.
func (l *Lease) Bytes() []byte {
	if l == nil {
		return nil
	}
	return l.data
}

// Value decodes the result. The error branch is returned as a
// *wireformat.GuestError.
func (l *Lease) Value() (any, error) {
	if l == nil {
		return nil, nil
	}
	return wireformat.Decode(l.data)
}

// Released reports whether the guest allocation was handed back.
func (l *Lease) Released() bool {
	if l == nil {
		return true
	}
	l.plugin.mu.Lock()
	defer l.plugin.mu.Unlock()
	return l.released
}

// Release calls the guest's free_result with the original pointer. Only the
// first call reaches the guest. The copied bytes stay readable.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.plugin.mu.Lock()
	defer l.plugin.mu.Unlock()
	return l.plugin.release(ctx, l)
}
