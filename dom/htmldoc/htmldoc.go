// Package htmldoc is an in-memory dom.Document over a parsed HTML page.
//
// It backs offline scans of saved chat pages and deterministic tests. The
// document can be mutated (Append, Remove, SetText) and navigated, and it
// notifies observers the same way a live page's MutationObserver would.
// There is no layout engine: bounding boxes default to a synthetic vertical
// flow (one row per element in document order) unless set with SetRect.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/promptnav/dom"
)

// Synthetic layout metrics.
const (
	rowHeight   = 24
	indentWidth = 8
	flowWidth   = 640
)

// Document is a mutable parsed HTML page. It is safe for concurrent use.
type Document struct {
	mu  sync.Mutex
	doc *goquery.Document
	loc dom.Location

	keys    map[*html.Node]int
	nextKey int
	rects   map[*html.Node]dom.Rect
	// marks holds the ids placed with Mark. Mutations inside them are not
	// reported to observers.
	marks map[string]bool

	observers   map[int]*observer
	locWatchers map[int]func(dom.Location)
	nextSub     int

	scrolled []string
}

// Parse reads an HTML page served at href.
func Parse(r io.Reader, href string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	loc, err := location(href)
	if err != nil {
		return nil, err
	}
	return &Document{
		doc:         doc,
		loc:         loc,
		keys:        make(map[*html.Node]int),
		rects:       make(map[*html.Node]dom.Rect),
		marks:       make(map[string]bool),
		observers:   make(map[int]*observer),
		locWatchers: make(map[int]func(dom.Location)),
	}, nil
}

// ParseString is Parse over a string.
func ParseString(page, href string) (*Document, error) {
	return Parse(strings.NewReader(page), href)
}

func location(href string) (dom.Location, error) {
	u, err := url.Parse(href)
	if err != nil {
		return dom.Location{}, fmt.Errorf("htmldoc: location %q: %w", href, err)
	}
	return dom.Location{Href: href, Hostname: u.Hostname()}, nil
}

// Location implements dom.Document.
func (d *Document) Location(_ context.Context) (dom.Location, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loc, nil
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	m, err := compile(selector)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.FindMatcher(m)
	out := make([]dom.Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, d.element(n))
	}
	return out, nil
}

func compile(selector string) (cascadia.Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: selector %q: %w", selector, err)
	}
	return m, nil
}

// element must be called with d.mu held.
func (d *Document) element(n *html.Node) *Element {
	if _, ok := d.keys[n]; !ok {
		d.nextKey++
		d.keys[n] = d.nextKey
	}
	return &Element{d: d, n: n}
}

// Mark implements dom.Document. The marker is an empty div with the given id
// appended to body.
func (d *Document) Mark(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.marks[id] = true
	if d.findByID(id) != nil {
		return true, nil
	}
	body := d.body()
	body.AppendChild(&html.Node{
		Type: html.ElementNode,
		Data: "div",
		Attr: []html.Attribute{{Key: "id", Val: id}},
	})
	return false, nil
}

// Unmark implements dom.Document.
func (d *Document) Unmark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.marks, id)
	if n := d.findByID(id); n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return nil
}

func (d *Document) findByID(id string) *html.Node {
	var found *html.Node
	walk(d.root(), func(n *html.Node) bool {
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

func (d *Document) root() *html.Node { return d.doc.Nodes[0] }

func (d *Document) body() *html.Node {
	if b := d.doc.Find("body"); b.Length() > 0 {
		return b.Nodes[0]
	}
	return d.root()
}

// HTML serialises the current document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if err := html.Render(&b, d.root()); err != nil {
		return "", fmt.Errorf("htmldoc: render: %w", err)
	}
	return b.String(), nil
}

// SetRect overrides the bounding box reported for el.
func (d *Document) SetRect(el dom.Element, r dom.Rect) {
	e, ok := el.(*Element)
	if !ok || e.d != d {
		return
	}
	d.mu.Lock()
	d.rects[e.n] = r
	d.mu.Unlock()
}

// Scrolled returns the keys of elements scrolled into view, oldest first.
func (d *Document) Scrolled() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.scrolled...)
}

// walk visits n and its descendants in document order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			if val == "" {
				n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			} else {
				n.Attr[i].Val = val
			}
			return
		}
	}
	if val != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
}
