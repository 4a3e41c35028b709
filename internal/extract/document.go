// Package extract turns raw markup into typed values: a minimal document
// model over goquery, body anchors, and embedded JSON-LD job data.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed HTML page.
type Document struct {
	doc *goquery.Document
}

// Element is a single node of a Document.
type Element struct {
	sel *goquery.Selection
}

// Parse builds a Document from markup.
func Parse(markup string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ElementsInBody returns the elements with the given tag inside <body>, in
// document order.
func (d *Document) ElementsInBody(tag string) []Element {
	return collect(d.doc.Find("body").Find(tag))
}

// Elements returns every element matching selector anywhere in the document.
func (d *Document) Elements(selector string) []Element {
	return collect(d.doc.Find(selector))
}

// Attr returns the named attribute and whether it is present.
func (e Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Text returns the combined text of the element and its descendants.
func (e Element) Text() string {
	return e.sel.Text()
}

func collect(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Element{sel: s})
	})
	return out
}
