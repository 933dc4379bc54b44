package resource

import (
	"errors"
	"sync"

	"github.com/willf/bitset"
)

const (
	slotBits = 22
	genBits  = 9

	slotMask = 1<<slotBits - 1
	genMask  = 1<<genBits - 1

	// MaxLive is the largest number of resources a table can hold at once.
	MaxLive = 1 << slotBits
)

// ErrTableFull is returned by Insert when every slot is occupied.
var ErrTableFull = errors.New("resource table full")

type entry struct {
	value any
	gen   uint16
	kind  Kind
}

// Table maps handles to host values. The zero value is not usable; call
// NewTable.
type Table struct {
	entries []entry
	live    *bitset.BitSet
	// free is a FIFO of vacated slots; head indexes the next one to reuse.
	free      []uint32
	head      int
	limit     int
	observers []Observer
	mu        sync.RWMutex
}

// Option configures a Table.
type Option func(*Table)

// WithCapacity preallocates room for n resources.
func WithCapacity(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.entries = make([]entry, 0, n)
		}
	}
}

// WithLimit caps the number of live resources below MaxLive.
func WithLimit(n int) Option {
	return func(t *Table) {
		if n > 0 && n < MaxLive {
			t.limit = n
		}
	}
}

// WithObserver registers fn to receive lifecycle events.
func WithObserver(fn Observer) Option {
	return func(t *Table) {
		if fn != nil {
			t.observers = append(t.observers, fn)
		}
	}
}

// NewTable creates an empty table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		entries: make([]entry, 0, 64),
		live:    bitset.New(64),
		limit:   MaxLive,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func pack(slot uint32, gen uint16) Handle {
	return Handle(uint32(gen)<<slotBits | slot) //nolint:gosec // G115: 9+22 bits always fit in int32
}

func unpack(h Handle) (slot uint32, gen uint16, ok bool) {
	if h < 0 {
		return 0, 0, false
	}
	u := uint32(h)
	return u & slotMask, uint16(u >> slotBits & genMask), true //nolint:gosec // G115: masked to 9 bits
}

// Insert stores v and returns a fresh handle for it.
func (t *Table) Insert(kind Kind, v any) (Handle, error) {
	t.mu.Lock()
	if int(t.live.Count()) >= t.limit {
		t.mu.Unlock()
		return -1, ErrTableFull
	}

	var slot uint32
	if t.head < len(t.free) {
		slot = t.free[t.head]
		t.head++
		if t.head == len(t.free) {
			t.free, t.head = t.free[:0], 0
		}
	} else {
		slot = uint32(len(t.entries)) //nolint:gosec // G115: bounded by limit
		t.entries = append(t.entries, entry{})
	}

	e := &t.entries[slot]
	e.value, e.kind = v, kind
	t.live.Set(uint(slot))
	h := pack(slot, e.gen)
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Kind: kind, Value: v})
	return h, nil
}

// resolve returns the entry behind h. The caller holds the lock.
func (t *Table) resolve(h Handle) (*entry, uint32, bool) {
	slot, gen, ok := unpack(h)
	if !ok || int(slot) >= len(t.entries) || !t.live.Test(uint(slot)) {
		return nil, 0, false
	}
	e := &t.entries[slot]
	if e.gen != gen {
		return nil, 0, false
	}
	return e, slot, true
}

// Get returns the value behind h.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, _, ok := t.resolve(h)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Kind returns the kind of the resource behind h.
func (t *Table) Kind(h Handle) (Kind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, _, ok := t.resolve(h)
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// GetKind returns the value behind h only if it was stored with kind.
func (t *Table) GetKind(h Handle, kind Kind) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, _, ok := t.resolve(h)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

// Lookup returns the value behind h as a T. A value of another type reports
// not found.
func Lookup[T any](t *Table, h Handle) (T, bool) {
	v, ok := t.Get(h)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Replace swaps the value behind a live handle, keeping its kind.
func (t *Table) Replace(h Handle, v any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, _, ok := t.resolve(h)
	if !ok {
		return false
	}
	e.value = v
	return true
}

// Remove releases h. Removing an unknown or already removed handle is a
// no-op and reports false.
func (t *Table) Remove(h Handle) bool {
	t.mu.Lock()
	e, slot, ok := t.resolve(h)
	if !ok {
		t.mu.Unlock()
		return false
	}
	v, kind := e.value, e.kind
	t.vacate(e, slot)
	t.mu.Unlock()

	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Kind: kind, Value: v})
	return true
}

func (t *Table) vacate(e *entry, slot uint32) {
	e.value, e.kind = nil, 0
	e.gen = (e.gen + 1) & genMask
	t.live.Clear(uint(slot))
	t.free = append(t.free, slot)
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(t.live.Count())
}

// Each calls fn for every live resource in slot order until fn returns false.
// fn must not modify the table.
func (t *Table) Each(fn func(h Handle, kind Kind, v any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, ok := t.live.NextSet(0); ok; i, ok = t.live.NextSet(i + 1) {
		e := &t.entries[i]
		if !fn(pack(uint32(i), e.gen), e.kind, e.value) { //nolint:gosec // G115: slot index
			return
		}
	}
}

// Clear removes every live resource, dropping values that implement Dropper.
func (t *Table) Clear() {
	type removed struct {
		value any
		h     Handle
		kind  Kind
	}

	t.mu.Lock()
	var out []removed
	for i, ok := t.live.NextSet(0); ok; i, ok = t.live.NextSet(i + 1) {
		e := &t.entries[i]
		out = append(out, removed{value: e.value, h: pack(uint32(i), e.gen), kind: e.kind}) //nolint:gosec // G115: slot index
		t.vacate(e, uint32(i))                                                              //nolint:gosec // G115: slot index
	}
	t.mu.Unlock()

	for _, r := range out {
		if d, ok := r.value.(Dropper); ok {
			d.Drop()
		}
		t.notify(Event{Type: EventDropped, Handle: r.h, Kind: r.kind, Value: r.value})
	}
}

func (t *Table) notify(ev Event) {
	for _, fn := range t.observers {
		fn(ev)
	}
}
