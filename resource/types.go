package resource

import "fmt"

// Handle is an opaque reference to a resource in a Table.
type Handle = int32

// Kind tags the resource stored behind a handle.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindValue
	KindBuffer
	KindDocument
	KindElement
	KindElementList
	KindRequest
	KindScriptContext
	KindCanvas
	KindFont
	KindImage
)

var kindNames = map[Kind]string{
	KindString:        "string",
	KindValue:         "value",
	KindBuffer:        "buffer",
	KindDocument:      "document",
	KindElement:       "element",
	KindElementList:   "element_list",
	KindRequest:       "request",
	KindScriptContext: "script_context",
	KindCanvas:        "canvas",
	KindFont:          "font",
	KindImage:         "image",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Dropper is implemented by values that hold resources of their own and want
// to release them when removed from the table.
type Dropper interface {
	Drop()
}

// EventType identifies a lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event describes a resource entering or leaving the table.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives lifecycle events. It is called outside the table lock.
type Observer func(Event)
