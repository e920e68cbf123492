package htmldoc

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/promptnav/dom"
)

// Element is a node of a Document.
type Element struct {
	d *Document
	n *html.Node
}

// Key implements dom.Element.
func (e *Element) Key() string {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return "n" + strconv.Itoa(e.d.keys[e.n])
}

// attached must be called with e.d.mu held.
func (e *Element) attached() bool {
	root := e.d.root()
	for p := e.n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// Text implements dom.Element. Script, style and template content is not
// visible and is skipped.
func (e *Element) Text(_ context.Context) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.attached() {
		return "", dom.ErrDetached
	}
	var b strings.Builder
	visibleText(e.n, &b)
	return b.String(), nil
}

func visibleText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Template, atom.Noscript:
			return
		}
		if _, hidden := lookupAttr(n, "hidden"); hidden {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, b)
	}
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// ImageCount implements dom.Element.
func (e *Element) ImageCount(_ context.Context) (int, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.attached() {
		return 0, dom.ErrDetached
	}
	count := 0
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && n.DataAtom == atom.Img {
				count++
			}
			return true
		})
	}
	return count, nil
}

// Rect implements dom.Element.
func (e *Element) Rect(_ context.Context) (dom.Rect, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.attached() {
		return dom.Rect{}, dom.ErrDetached
	}
	if r, ok := e.d.rects[e.n]; ok {
		return r, nil
	}

	row := 0
	walk(e.d.root(), func(n *html.Node) bool {
		if n == e.n {
			return false
		}
		if n.Type == html.ElementNode {
			row++
		}
		return true
	})
	depth := 0
	for p := e.n.Parent; p != nil; p = p.Parent {
		depth++
	}
	return dom.Rect{
		Top:    float64(row * rowHeight),
		Left:   float64(depth * indentWidth),
		Width:  float64(flowWidth - depth*indentWidth),
		Height: rowHeight,
	}, nil
}

// ScrollIntoView implements dom.Element by recording the request.
func (e *Element) ScrollIntoView(_ context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.attached() {
		return dom.ErrDetached
	}
	e.d.scrolled = append(e.d.scrolled, "n"+strconv.Itoa(e.d.keys[e.n]))
	return nil
}

// Style implements dom.Element over the style attribute.
func (e *Element) Style(_ context.Context, props ...string) (map[string]string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.attached() {
		return nil, dom.ErrDetached
	}
	decls := parseStyle(attr(e.n, "style"))
	out := make(map[string]string, len(props))
	for _, p := range props {
		out[p] = decls.get(p)
	}
	return out, nil
}

// SetStyle implements dom.Element over the style attribute.
func (e *Element) SetStyle(_ context.Context, values map[string]string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.attached() {
		return dom.ErrDetached
	}
	decls := parseStyle(attr(e.n, "style"))
	for p, v := range values {
		decls = decls.set(p, v)
	}
	setAttr(e.n, "style", decls.String())
	return nil
}

type declaration struct{ prop, value string }

// declarations keeps inline style order so untouched properties serialise
// back unchanged.
type declarations []declaration

func parseStyle(s string) declarations {
	var out declarations
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		out = append(out, declaration{prop: prop, value: strings.TrimSpace(value)})
	}
	return out
}

func (ds declarations) get(prop string) string {
	for _, d := range ds {
		if d.prop == prop {
			return d.value
		}
	}
	return ""
}

func (ds declarations) set(prop, value string) declarations {
	for i, d := range ds {
		if d.prop == prop {
			if value == "" {
				return append(ds[:i], ds[i+1:]...)
			}
			ds[i].value = value
			return ds
		}
	}
	if value == "" {
		return ds
	}
	return append(ds, declaration{prop: prop, value: value})
}

func (ds declarations) String() string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.prop + ": " + d.value
	}
	return strings.Join(parts, "; ")
}
