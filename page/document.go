// Package page implements extract.PageReader over a static HTML document.
package page

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/leadscout/extract"
)

// Document is an already-rendered page, such as an archived listing snapshot.
type Document struct {
	url     string
	doc     *goquery.Document
	scrolls atomic.Int32
}

// Parse reads an HTML body fetched from url.
func Parse(url string, body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", url, err)
	}
	return &Document{url: url, doc: doc}, nil
}

// FromString is Parse for in-memory markup.
func FromString(url, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", url, err)
	}
	return &Document{url: url, doc: doc}, nil
}

// Query returns every element matching selector.
func (d *Document) Query(ctx context.Context, selector string) ([]extract.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wrap(d.doc.Find(selector)), nil
}

// Scroll is a no-op: a static document has nothing left to load.
// The call is still counted so callers can observe it.
func (d *Document) Scroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.scrolls.Add(1)
	return nil
}

// Scrolls reports how many times Scroll was called.
func (d *Document) Scrolls() int {
	return int(d.scrolls.Load())
}

// URL returns the address the document was loaded from.
func (d *Document) URL() string {
	return d.url
}

// Selection exposes the underlying goquery document.
func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

type element struct {
	sel *goquery.Selection
}

func wrap(sel *goquery.Selection) []extract.Element {
	out := make([]extract.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, element{sel: s})
	})
	return out
}

func (e element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e element) Attr(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	value, ok := e.sel.Attr(name)
	return value, ok, nil
}

func (e element) Query(ctx context.Context, selector string) ([]extract.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wrap(e.sel.Find(selector)), nil
}
