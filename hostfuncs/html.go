package hostfuncs

import (
	"context"
	"errors"

	"golang.org/x/net/html"

	"github.com/reglet-dev/sourcehost/infrastructure/dom"
	"github.com/reglet-dev/sourcehost/resource"
)

// NewHTMLBundle returns the html namespace over the DOM adapter. Every
// accessor accepts a Document, Element or ElementList handle.
func NewHTMLBundle(s *Session) HostFuncBundle {
	h := &htmlFuncs{s: s}
	return NewBundle(NamespaceHTML,
		fn("parse", i32x4, i32, h.parse(dom.Parse)),
		fn("parse_fragment", i32x4, i32, h.parse(dom.ParseFragment)),
		fn("escape", i32x2, i32, h.transform(html.EscapeString)),
		fn("unescape", i32x2, i32, h.transform(html.UnescapeString)),
		fn("select", i32x3, i32, h.selectAll),
		fn("select_first", i32x3, i32, h.selectFirst),
		fn("attr", i32x3, i32, h.attr),
		fn("has_attr", i32x3, i32, h.hasAttr),
		fn("text", i32, i32, h.text((*dom.Selection).Text)),
		fn("untrimmed_text", i32, i32, h.text((*dom.Selection).UntrimmedText)),
		fn("own_text", i32, i32, h.text((*dom.Selection).OwnText)),
		fn("data", i32, i32, h.text((*dom.Selection).Data)),
		fn("html", i32, i32, h.markup((*dom.Selection).HTML)),
		fn("outer_html", i32, i32, h.markup((*dom.Selection).OuterHTML)),
		fn("id", i32, i32, h.text((*dom.Selection).ID)),
		fn("tag_name", i32, i32, h.text((*dom.Selection).TagName)),
		fn("class_name", i32, i32, h.text((*dom.Selection).ClassName)),
		fn("base_uri", i32, i32, h.text((*dom.Selection).BaseURI)),
		fn("has_class", i32x3, i32, h.hasClass),
		fn("add_class", i32x3, i32, h.mutate((*dom.Selection).AddClass)),
		fn("remove_class", i32x3, i32, h.mutate((*dom.Selection).RemoveClass)),
		fn("set_text", i32x3, i32, h.mutate((*dom.Selection).SetText)),
		fn("set_html", i32x3, i32, h.mutate((*dom.Selection).SetHTML)),
		fn("prepend", i32x3, i32, h.mutate((*dom.Selection).Prepend)),
		fn("append", i32x3, i32, h.mutate((*dom.Selection).Append)),
		fn("remove", i32, i32, h.remove),
		fn("first", i32, i32, h.element((*dom.ElementList).First)),
		fn("last", i32, i32, h.element((*dom.ElementList).Last)),
		fn("get", i32x2, i32, h.get),
		fn("size", i32, i32, h.size),
		fn("parent", i32, i32, h.navigate((*dom.Selection).Parent)),
		fn("next", i32, i32, h.navigate((*dom.Selection).Next)),
		fn("previous", i32, i32, h.navigate((*dom.Selection).Previous)),
		fn("children", i32, i32, h.navigateList((*dom.Selection).Children)),
		fn("siblings", i32, i32, h.navigateList((*dom.Selection).Siblings)),
	)
}

type htmlFuncs struct {
	s *Session
}

// selection resolves a DOM handle of any kind.
func (h *htmlFuncs) selection(rid int32) (*dom.Selection, bool) {
	v, ok := h.s.Resources.Get(rid)
	if !ok {
		return nil, false
	}
	switch x := v.(type) {
	case *dom.Document:
		return &x.Selection, true
	case *dom.Element:
		return &x.Selection, true
	case *dom.ElementList:
		return &x.Selection, true
	}
	return nil, false
}

// list resolves a DOM handle as an element list. A document or element is a
// list of one.
func (h *htmlFuncs) list(rid int32) (*dom.ElementList, bool) {
	v, ok := h.s.Resources.Get(rid)
	if !ok {
		return nil, false
	}
	if l, ok := v.(*dom.ElementList); ok {
		return l, true
	}
	sel, ok := h.selection(rid)
	if !ok {
		return nil, false
	}
	return sel.List(), true
}

func htmlCode(err error) int32 {
	switch {
	case errors.Is(err, dom.ErrNoResult):
		return HTMLNoResult
	case errors.Is(err, dom.ErrInvalidQuery):
		return HTMLInvalidQuery
	case errors.Is(err, dom.ErrInvalidHTML):
		return HTMLInvalidHTML
	default:
		return HTMLGenericError
	}
}

func (h *htmlFuncs) storeString(str string) int32 {
	return h.s.store(NamespaceHTML, resource.KindString, str)
}

func (h *htmlFuncs) storeElement(el *dom.Element, err error) int32 {
	if err != nil {
		return htmlCode(err)
	}
	return h.s.store(NamespaceHTML, resource.KindElement, el)
}

func (h *htmlFuncs) storeList(l *dom.ElementList, err error) int32 {
	if err != nil {
		return htmlCode(err)
	}
	return h.s.store(NamespaceHTML, resource.KindElementList, l)
}

func (h *htmlFuncs) parse(parse func([]byte, string) (*dom.Document, error)) Func {
	return func(_ context.Context, mem Memory, stack []uint64) {
		data, ok := readBytes(mem, argI32(stack, 0), argI32(stack, 1))
		if !ok {
			retI32(stack, HTMLInvalidString)
			return
		}
		base, ok := readOptionalString(mem, argI32(stack, 2), argI32(stack, 3))
		if !ok {
			retI32(stack, HTMLInvalidString)
			return
		}
		doc, err := parse(data, base)
		if err != nil {
			retI32(stack, HTMLInvalidHTML)
			return
		}
		retI32(stack, h.s.store(NamespaceHTML, resource.KindDocument, doc))
	}
}

func (h *htmlFuncs) transform(f func(string) string) Func {
	return func(_ context.Context, mem Memory, stack []uint64) {
		str, ok := readString(mem, argI32(stack, 0), argI32(stack, 1))
		if !ok {
			retI32(stack, HTMLInvalidString)
			return
		}
		retI32(stack, h.storeString(f(str)))
	}
}

// withString resolves (rid, ptr, len) arguments in order.
func (h *htmlFuncs) withString(mem Memory, stack []uint64) (*dom.Selection, string, int32) {
	sel, ok := h.selection(argI32(stack, 0))
	if !ok {
		return nil, "", HTMLInvalidDescriptor
	}
	str, ok := readString(mem, argI32(stack, 1), argI32(stack, 2))
	if !ok {
		return nil, "", HTMLInvalidString
	}
	return sel, str, 0
}

func (h *htmlFuncs) selectAll(_ context.Context, mem Memory, stack []uint64) {
	sel, query, code := h.withString(mem, stack)
	if code != 0 {
		retI32(stack, code)
		return
	}
	retI32(stack, h.storeList(sel.Select(query)))
}

func (h *htmlFuncs) selectFirst(_ context.Context, mem Memory, stack []uint64) {
	sel, query, code := h.withString(mem, stack)
	if code != 0 {
		retI32(stack, code)
		return
	}
	retI32(stack, h.storeElement(sel.SelectFirst(query)))
}

func (h *htmlFuncs) attr(_ context.Context, mem Memory, stack []uint64) {
	sel, key, code := h.withString(mem, stack)
	if code != 0 {
		retI32(stack, code)
		return
	}
	v, ok := sel.Attr(key)
	if !ok {
		retI32(stack, HTMLNoResult)
		return
	}
	retI32(stack, h.storeString(v))
}

func (h *htmlFuncs) hasAttr(_ context.Context, mem Memory, stack []uint64) {
	sel, key, code := h.withString(mem, stack)
	if code != 0 {
		retI32(stack, code)
		return
	}
	retBool(stack, sel.HasAttr(key))
}

func (h *htmlFuncs) hasClass(_ context.Context, mem Memory, stack []uint64) {
	sel, class, code := h.withString(mem, stack)
	if code != 0 {
		retI32(stack, code)
		return
	}
	retBool(stack, sel.HasClass(class))
}

func (h *htmlFuncs) text(get func(*dom.Selection) string) Func {
	return func(_ context.Context, _ Memory, stack []uint64) {
		sel, ok := h.selection(argI32(stack, 0))
		if !ok {
			retI32(stack, HTMLInvalidDescriptor)
			return
		}
		retI32(stack, h.storeString(get(sel)))
	}
}

func (h *htmlFuncs) markup(get func(*dom.Selection) (string, error)) Func {
	return func(_ context.Context, _ Memory, stack []uint64) {
		sel, ok := h.selection(argI32(stack, 0))
		if !ok {
			retI32(stack, HTMLInvalidDescriptor)
			return
		}
		out, err := get(sel)
		if err != nil {
			retI32(stack, HTMLGenericError)
			return
		}
		retI32(stack, h.storeString(out))
	}
}

func (h *htmlFuncs) mutate(apply func(*dom.Selection, string)) Func {
	return func(_ context.Context, mem Memory, stack []uint64) {
		sel, str, code := h.withString(mem, stack)
		if code != 0 {
			retI32(stack, code)
			return
		}
		apply(sel, str)
		retI32(stack, 0)
	}
}

func (h *htmlFuncs) remove(_ context.Context, _ Memory, stack []uint64) {
	sel, ok := h.selection(argI32(stack, 0))
	if !ok {
		retI32(stack, HTMLInvalidDescriptor)
		return
	}
	sel.Remove()
	retI32(stack, 0)
}

func (h *htmlFuncs) element(get func(*dom.ElementList) (*dom.Element, error)) Func {
	return func(_ context.Context, _ Memory, stack []uint64) {
		l, ok := h.list(argI32(stack, 0))
		if !ok {
			retI32(stack, HTMLInvalidDescriptor)
			return
		}
		retI32(stack, h.storeElement(get(l)))
	}
}

func (h *htmlFuncs) get(_ context.Context, _ Memory, stack []uint64) {
	l, ok := h.list(argI32(stack, 0))
	if !ok {
		retI32(stack, HTMLInvalidDescriptor)
		return
	}
	retI32(stack, h.storeElement(l.Get(int(argI32(stack, 1)))))
}

func (h *htmlFuncs) size(_ context.Context, _ Memory, stack []uint64) {
	l, ok := h.list(argI32(stack, 0))
	if !ok {
		retI32(stack, HTMLInvalidDescriptor)
		return
	}
	retI32(stack, int32(l.Size())) //nolint:gosec // G115: bounded by document size
}

func (h *htmlFuncs) navigate(move func(*dom.Selection) (*dom.Element, error)) Func {
	return func(_ context.Context, _ Memory, stack []uint64) {
		sel, ok := h.selection(argI32(stack, 0))
		if !ok {
			retI32(stack, HTMLInvalidDescriptor)
			return
		}
		retI32(stack, h.storeElement(move(sel)))
	}
}

func (h *htmlFuncs) navigateList(move func(*dom.Selection) *dom.ElementList) Func {
	return func(_ context.Context, _ Memory, stack []uint64) {
		sel, ok := h.selection(argI32(stack, 0))
		if !ok {
			retI32(stack, HTMLInvalidDescriptor)
			return
		}
		retI32(stack, h.storeList(move(sel), nil))
	}
}
