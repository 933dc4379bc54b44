// Package dom is the HTML adapter: parsing, CSS selection, text extraction and
// mutation on top of goquery, cascadia and golang.org/x/net/html.
//
// A Document owns the parsed tree. Elements and ElementLists derived from it
// keep a back-reference to their Document, so they stay valid after the
// Document handle itself is destroyed.
package dom
