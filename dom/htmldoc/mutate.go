package htmldoc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/promptnav/dom"
)

type observer struct {
	container string
	fn        func(dom.Change)
}

// subscription removes its entry from the document on Close.
type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Observe implements dom.Document. Changes are delivered synchronously on
// the goroutine that mutated the document, after the document lock is
// released.
func (d *Document) Observe(_ context.Context, container string, fn func(dom.Change)) (dom.Subscription, error) {
	if container != "" {
		if _, err := cascadia.Compile(container); err != nil {
			return nil, fmt.Errorf("htmldoc: container %q: %w", container, err)
		}
	}
	d.mu.Lock()
	d.nextSub++
	id := d.nextSub
	d.observers[id] = &observer{container: container, fn: fn}
	d.mu.Unlock()

	return &subscription{cancel: func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}}, nil
}

// WatchLocation implements dom.Document.
func (d *Document) WatchLocation(_ context.Context, fn func(dom.Location)) (dom.Subscription, error) {
	d.mu.Lock()
	d.nextSub++
	id := d.nextSub
	d.locWatchers[id] = fn
	d.mu.Unlock()

	return &subscription{cancel: func() {
		d.mu.Lock()
		delete(d.locWatchers, id)
		d.mu.Unlock()
	}}, nil
}

// Observers returns the number of live change subscriptions.
func (d *Document) Observers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// LocationWatchers returns the number of live location subscriptions.
func (d *Document) LocationWatchers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locWatchers)
}

// Append parses fragment and appends it to the first element matching
// parent.
func (d *Document) Append(parent, fragment string) error {
	m, err := compile(parent)
	if err != nil {
		return err
	}

	d.mu.Lock()
	sel := d.doc.FindMatcher(m)
	if sel.Length() == 0 {
		d.mu.Unlock()
		return fmt.Errorf("htmldoc: append: no element matches %q", parent)
	}
	p := sel.Nodes[0]
	nodes, err := html.ParseFragment(strings.NewReader(fragment), p)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("htmldoc: append: %w", err)
	}
	for _, n := range nodes {
		p.AppendChild(n)
	}
	fns := make(map[int]func(dom.Change))
	d.collect(p, fns)
	d.mu.Unlock()

	notify(fns, dom.Change{Kind: dom.ChangeChildList})
	return nil
}

// Remove detaches every element matching selector. It returns the number
// of removed elements.
func (d *Document) Remove(selector string) (int, error) {
	m, err := compile(selector)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	sel := d.doc.FindMatcher(m)
	fns := make(map[int]func(dom.Change))
	for _, n := range sel.Nodes {
		p := n.Parent
		if p == nil {
			continue
		}
		d.collect(p, fns)
		p.RemoveChild(n)
	}
	d.mu.Unlock()

	notify(fns, dom.Change{Kind: dom.ChangeChildList})
	return len(sel.Nodes), nil
}

// SetText replaces the children of every element matching selector with a
// single text node.
func (d *Document) SetText(selector, text string) error {
	m, err := compile(selector)
	if err != nil {
		return err
	}

	d.mu.Lock()
	sel := d.doc.FindMatcher(m)
	fns := make(map[int]func(dom.Change))
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		d.collect(n, fns)
	}
	d.mu.Unlock()

	notify(fns, dom.Change{Kind: dom.ChangeText})
	return nil
}

// Navigate changes the location without reloading the document, the way
// history.pushState does, and notifies location watchers.
func (d *Document) Navigate(href string) error {
	loc, err := location(href)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.loc = loc
	fns := make([]func(dom.Location), 0, len(d.locWatchers))
	for _, fn := range d.locWatchers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(loc)
	}
	return nil
}

// collect adds the observers whose container encloses n to fns. Changes
// inside a marked node are the navigator's own and are not collected. It
// must be called with d.mu held.
func (d *Document) collect(n *html.Node, fns map[int]func(dom.Change)) {
	if d.marked(n) {
		return
	}
	for id, o := range d.observers {
		if d.encloses(o.container, n) {
			fns[id] = o.fn
		}
	}
}

// marked reports whether n is inside, or is, a node placed with Mark.
func (d *Document) marked(n *html.Node) bool {
	if len(d.marks) == 0 {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && d.marks[attr(p, "id")] {
			return true
		}
	}
	return false
}

func (d *Document) encloses(container string, n *html.Node) bool {
	if container == "" {
		return true
	}
	m, err := cascadia.Compile(container)
	if err != nil {
		return false
	}
	sel := d.doc.FindMatcher(m)
	if sel.Length() == 0 {
		// Observation falls back to the whole body.
		return true
	}
	c := sel.Nodes[0]
	for p := n; p != nil; p = p.Parent {
		if p == c {
			return true
		}
	}
	return false
}

func notify(fns map[int]func(dom.Change), c dom.Change) {
	for _, fn := range fns {
		fn(c)
	}
}
