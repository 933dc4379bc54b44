package dom

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sentinel errors reported by the adapter.
var (
	ErrInvalidHTML  = errors.New("dom: invalid html")
	ErrInvalidQuery = errors.New("dom: invalid selector")
	ErrNoResult     = errors.New("dom: no result")
)

// Document is a parsed HTML tree.
type Document struct {
	Selection
	base *url.URL
}

// Parse parses a complete HTML document. baseURI may be empty.
func Parse(data []byte, baseURI string) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Join(ErrInvalidHTML, err)
	}
	return newDocument(root, baseURI), nil
}

// ParseFragment parses data as the content of a body element and wraps it in
// an otherwise empty document.
func ParseFragment(data []byte, baseURI string) (*Document, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(data), context)
	if err != nil {
		return nil, errors.Join(ErrInvalidHTML, err)
	}
	root, err := html.Parse(strings.NewReader(""))
	if err != nil {
		return nil, errors.Join(ErrInvalidHTML, err)
	}
	body := findElement(root, atom.Body)
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return newDocument(root, baseURI), nil
}

func newDocument(root *html.Node, baseURI string) *Document {
	d := &Document{}
	d.sel = goquery.NewDocumentFromNode(root).Selection
	d.doc = d
	d.base = effectiveBase(root, baseURI)
	return d
}

// effectiveBase resolves the first <base href> against the explicit base. A
// <base> element wins over the explicit base; either may be absent.
func effectiveBase(root *html.Node, baseURI string) *url.URL {
	var explicit *url.URL
	if baseURI != "" {
		if u, err := url.Parse(baseURI); err == nil && u.IsAbs() {
			explicit = u
		}
	}
	if n := findElement(root, atom.Base); n != nil {
		if href, ok := attr(n, "href"); ok {
			if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
				if explicit != nil {
					u = explicit.ResolveReference(u)
				}
				if u.IsAbs() {
					return u
				}
			}
		}
	}
	return explicit
}

// BaseURI returns the URI relative attribute values resolve against.
func (d *Document) BaseURI() string {
	if d.base == nil {
		return ""
	}
	return d.base.String()
}

// Root returns the document element as an Element.
func (d *Document) Root() *Element {
	return &Element{Selection{sel: d.sel.Children().First(), doc: d}}
}

// resolve makes ref absolute against the document base. Absolute values are
// returned unchanged; anything that cannot be resolved yields "".
func (d *Document) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return ref
	}
	if d.base == nil {
		return ""
	}
	return d.base.ResolveReference(u).String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
