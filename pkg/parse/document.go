// Package parse is a typed query layer over goquery.
// Callers get values and presence flags instead of walking the DOM by hand.
package parse

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

// Document is a parsed HTML page
type Document struct {
	doc *goquery.Document
}

// Node is a single element of a Document
type Node struct {
	sel *goquery.Selection
}

// NewDocument parses an HTML body
func NewDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML: %w", utils.ErrParsing, err)
	}
	return &Document{doc: doc}, nil
}

// FindAll returns every element matching selector in document order
func (d *Document) FindAll(selector string) []Node {
	return nodes(d.doc.Find(selector))
}

// FindOne returns the first element matching selector
func (d *Document) FindOne(selector string) (Node, bool) {
	return first(d.doc.Find(selector))
}

// FindAll returns every descendant of n matching selector
func (n Node) FindAll(selector string) []Node {
	return nodes(n.sel.Find(selector))
}

// FindOne returns the first descendant of n matching selector
func (n Node) FindOne(selector string) (Node, bool) {
	return first(n.sel.Find(selector))
}

// Attr returns the value of the named attribute and whether it is present
func (n Node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

// FirstText returns the first direct text child of n, verbatim.
// Text inside nested elements does not count.
func (n Node) FirstText() (string, bool) {
	for _, el := range n.sel.Nodes {
		for c := el.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				return c.Data, true
			}
		}
	}
	return "", false
}

func nodes(sel *goquery.Selection) []Node {
	out := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Node{sel: s})
	})
	return out
}

func first(sel *goquery.Selection) (Node, bool) {
	if sel.Length() == 0 {
		return Node{}, false
	}
	return Node{sel: sel.First()}, true
}
