package dom

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Selection holds the nodes shared by Document, Element and ElementList.
type Selection struct {
	sel *goquery.Selection
	doc *Document
}

// Element is a single element node.
type Element struct {
	Selection
}

// ElementList is an ordered set of element nodes.
type ElementList struct {
	Selection
}

// Document returns the document the selection was derived from.
func (s *Selection) Document() *Document { return s.doc }

// Nodes returns the underlying nodes.
func (s *Selection) Nodes() []*html.Node { return s.sel.Nodes }

func (s *Selection) element(sel *goquery.Selection) (*Element, error) {
	if sel.Length() == 0 {
		return nil, ErrNoResult
	}
	return &Element{Selection{sel: sel.First(), doc: s.doc}}, nil
}

func (s *Selection) list(sel *goquery.Selection) *ElementList {
	return &ElementList{Selection{sel: sel, doc: s.doc}}
}

// List views the selection as an element list.
func (s *Selection) List() *ElementList { return s.list(s.sel) }

// Select returns every element matching query within the selection. A
// selected node matches itself, and the result is de-duplicated and in
// document order.
func (s *Selection) Select(query string) (*ElementList, error) {
	m, err := Compile(query)
	if err != nil {
		return nil, err
	}
	return s.list(s.fresh(matchAll(s.sel.Nodes, m))), nil
}

// fresh wraps nodes in a new selection of the same document. The result never
// shares the receiver's node slice.
func (s *Selection) fresh(nodes []*html.Node) *goquery.Selection {
	return s.sel.Eq(s.sel.Length()).AddNodes(nodes...)
}

// SelectFirst returns the first match of query, or ErrNoResult.
func (s *Selection) SelectFirst(query string) (*Element, error) {
	list, err := s.Select(query)
	if err != nil {
		return nil, err
	}
	return s.element(list.sel)
}

func matchAll(roots []*html.Node, m cascadia.Matcher) []*html.Node {
	seen := make(map[*html.Node]bool)
	var out []*html.Node
	for _, root := range roots {
		if m.Match(root) && !seen[root] {
			seen[root] = true
			out = append(out, root)
		}
		for _, n := range cascadia.QueryAll(root, m) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sortDocumentOrder(out)
	return out
}

func sortDocumentOrder(nodes []*html.Node) {
	if len(nodes) < 2 {
		return
	}
	pos := make(map[*html.Node]int)
	next := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		pos[n] = next
		next++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		if _, ok := pos[n]; ok {
			continue
		}
		top := n
		for top.Parent != nil {
			top = top.Parent
		}
		walk(top)
	}
	sort.SliceStable(nodes, func(i, j int) bool { return pos[nodes[i]] < pos[nodes[j]] })
}

// Attr returns the value of key on the first node that has it. A key of the
// form "abs:name" returns the attribute resolved against the document base.
func (s *Selection) Attr(key string) (string, bool) {
	abs := false
	if k, ok := strings.CutPrefix(key, "abs:"); ok {
		key, abs = k, true
	}
	for _, n := range s.sel.Nodes {
		if v, ok := attr(n, key); ok {
			if abs {
				return s.doc.resolve(v), true
			}
			return v, true
		}
	}
	return "", false
}

// HasAttr reports whether any node carries key.
func (s *Selection) HasAttr(key string) bool {
	key = strings.TrimPrefix(key, "abs:")
	for _, n := range s.sel.Nodes {
		if _, ok := attr(n, key); ok {
			return true
		}
	}
	return false
}

// Text returns the whitespace-normalised text of the selection. Script and
// style bodies and comments are excluded.
func (s *Selection) Text() string {
	parts := make([]string, 0, len(s.sel.Nodes))
	for _, n := range s.sel.Nodes {
		var b strings.Builder
		collectText(&b, n, true)
		if t := normalize(b.String()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// UntrimmedText returns the raw text of the selection.
func (s *Selection) UntrimmedText() string {
	var b strings.Builder
	for _, n := range s.sel.Nodes {
		collectText(&b, n, true)
	}
	return b.String()
}

// OwnText returns the normalised text of the direct text children only.
func (s *Selection) OwnText() string {
	var b strings.Builder
	for _, n := range s.sel.Nodes {
		collectText(&b, n, false)
	}
	return normalize(b.String())
}

// Data returns the bodies of script and style elements and comments.
func (s *Selection) Data() string {
	var b strings.Builder
	for _, n := range s.sel.Nodes {
		collectData(&b, n)
	}
	return b.String()
}

func collectText(b *strings.Builder, n *html.Node, deep bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if !isDataElement(n) {
				b.WriteString(c.Data)
			}
		case html.ElementNode:
			if deep && !isDataElement(c) {
				collectText(b, c, true)
			}
		}
	}
}

func collectData(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.CommentNode:
			b.WriteString(c.Data)
		case html.TextNode:
			if isDataElement(n) {
				b.WriteString(c.Data)
			}
		case html.ElementNode:
			collectData(b, c)
		}
	}
}

func isDataElement(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTML returns the inner HTML of each node, one per line.
func (s *Selection) HTML() (string, error) {
	parts := make([]string, 0, len(s.sel.Nodes))
	var err error
	s.sel.EachWithBreak(func(_ int, one *goquery.Selection) bool {
		var h string
		h, err = one.Html()
		parts = append(parts, h)
		return err == nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// OuterHTML returns the outer HTML of each node, one per line.
func (s *Selection) OuterHTML() (string, error) {
	parts := make([]string, 0, len(s.sel.Nodes))
	for i := range s.sel.Nodes {
		h, err := goquery.OuterHtml(s.sel.Eq(i))
		if err != nil {
			return "", err
		}
		parts = append(parts, h)
	}
	return strings.Join(parts, "\n"), nil
}

// ID returns the id attribute of the first node.
func (s *Selection) ID() string {
	if len(s.sel.Nodes) == 0 {
		return ""
	}
	v, _ := attr(s.sel.Nodes[0], "id")
	return v
}

// TagName returns the lower-case tag name of the first node. The document
// itself reports "#root".
func (s *Selection) TagName() string {
	if len(s.sel.Nodes) == 0 {
		return ""
	}
	n := s.sel.Nodes[0]
	if n.Type == html.DocumentNode {
		return "#root"
	}
	return n.Data
}

// ClassName returns the class attribute of the first node.
func (s *Selection) ClassName() string {
	if len(s.sel.Nodes) == 0 {
		return ""
	}
	v, _ := attr(s.sel.Nodes[0], "class")
	return strings.TrimSpace(v)
}

// HasClass reports whether any node has class.
func (s *Selection) HasClass(class string) bool {
	return s.sel.HasClass(class)
}

// AddClass adds class to every node.
func (s *Selection) AddClass(class string) { s.sel.AddClass(class) }

// RemoveClass removes class from every node.
func (s *Selection) RemoveClass(class string) { s.sel.RemoveClass(class) }

// SetText replaces the children of every node with text.
func (s *Selection) SetText(text string) { s.sel.SetText(text) }

// SetHTML replaces the children of every node with parsed markup.
func (s *Selection) SetHTML(markup string) { s.sel.SetHtml(markup) }

// Prepend inserts parsed markup as the first children of every node.
func (s *Selection) Prepend(markup string) { s.sel.PrependHtml(markup) }

// Append inserts parsed markup as the last children of every node.
func (s *Selection) Append(markup string) { s.sel.AppendHtml(markup) }

// Remove detaches every node from the tree.
func (s *Selection) Remove() { s.sel.Remove() }

// BaseURI returns the base of the owning document.
func (s *Selection) BaseURI() string { return s.doc.BaseURI() }

// Parent returns the parent element of the first node.
func (s *Selection) Parent() (*Element, error) {
	return s.element(s.sel.First().Parent())
}

// Children returns the child elements of every node.
func (s *Selection) Children() *ElementList {
	return s.list(s.sel.Children())
}

// Siblings returns the sibling elements of every node, excluding themselves.
func (s *Selection) Siblings() *ElementList {
	return s.list(s.sel.Siblings())
}

// Next returns the next sibling element of the first node.
func (s *Selection) Next() (*Element, error) {
	return s.element(s.sel.First().Next())
}

// Previous returns the previous sibling element of the first node.
func (s *Selection) Previous() (*Element, error) {
	return s.element(s.sel.First().Prev())
}

// Size returns the number of elements in the list.
func (l *ElementList) Size() int { return l.sel.Length() }

// First returns the first element.
func (l *ElementList) First() (*Element, error) { return l.element(l.sel.First()) }

// Last returns the last element.
func (l *ElementList) Last() (*Element, error) { return l.element(l.sel.Last()) }

// Get returns the element at index i.
func (l *ElementList) Get(i int) (*Element, error) {
	if i < 0 || i >= l.sel.Length() {
		return nil, ErrNoResult
	}
	return l.element(l.sel.Eq(i))
}
