// Package resource implements the host-owned handle table that backs every
// resource a guest can refer to.
//
// A guest never sees a Go value. It sees an int32 handle:
//
//	table := resource.NewTable()
//
//	h, err := table.Insert(resource.KindDocument, doc)
//	doc, ok := resource.Lookup[*dom.Document](table, h)
//	table.Remove(h)
//
// # Handle layout
//
// A handle packs a slot index and a generation counter:
//
//	bit 31      always 0, so handles are never negative
//	bits 22..30 generation (9 bits)
//	bits 0..21  slot index (22 bits)
//
// Removing a resource bumps the generation of its slot before the slot is
// reused, so a stale handle resolves to "not found" instead of to the new
// occupant. Negative int32 values are reserved for error codes and never
// name a resource.
//
// # Ownership
//
// The table is the single owner of every value it holds. There is no
// reference counting: a value is released by exactly one Remove. Values that
// implement Dropper are notified when they leave the table.
package resource
