// Package dom defines the host environment contract the navigator core runs
// against: a document that can be queried by selector and observed for
// changes, and elements that can be measured, styled and scrolled to.
//
// Two backends implement it: dom/rodpage drives a live Chrome tab over CDP,
// dom/htmldoc holds a parsed HTML document in memory.
package dom

import (
	"context"
	"errors"
)

var (
	// ErrDetached is returned by Element methods when the referenced node is
	// no longer part of its document. Callers skip the element.
	ErrDetached = errors.New("dom: element detached")

	// ErrUnsupported is returned when a backend cannot perform an operation.
	ErrUnsupported = errors.New("dom: unsupported")
)

// Location is the current page address.
type Location struct {
	Href     string `json:"href"`
	Hostname string `json:"hostname"`
}

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ChangeKind classifies a document change.
type ChangeKind string

const (
	ChangeChildList ChangeKind = "childList"
	ChangeText      ChangeKind = "characterData"
)

// Change is one observed document mutation.
type Change struct {
	Kind ChangeKind
}

// Subscription is an owned handle on a live observation. Close releases it
// and is safe to call more than once.
type Subscription interface {
	Close() error
}

// Document is a page context.
type Document interface {
	// Location returns the current address of the page.
	Location(ctx context.Context) (Location, error)

	// QueryAll returns elements matching selector in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// Observe subscribes fn to added/removed nodes and text changes under
	// the first element matching container, or the whole body when
	// container is empty or matches nothing.
	Observe(ctx context.Context, container string, fn func(Change)) (Subscription, error)

	// WatchLocation subscribes fn to URL changes made without a full
	// document load (history navigation, pushState, replaceState).
	WatchLocation(ctx context.Context, fn func(Location)) (Subscription, error)

	// Mark places a root marker with the given id. It reports whether the
	// marker was already present.
	Mark(ctx context.Context, id string) (existed bool, err error)

	// Unmark removes the root marker.
	Unmark(ctx context.Context, id string) error
}

// Element is a non-owning reference to a node. The page owns the node's
// lifetime: any method may return ErrDetached.
type Element interface {
	// Key identifies the node within its document for as long as it lives.
	Key() string

	// Text returns the visible text content.
	Text(ctx context.Context) (string, error)

	// ImageCount returns the number of embedded <img> descendants.
	ImageCount(ctx context.Context) (int, error)

	// Rect returns the bounding box.
	Rect(ctx context.Context) (Rect, error)

	// ScrollIntoView smooth-scrolls the element to the viewport centre.
	ScrollIntoView(ctx context.Context) error

	// Style reads inline style values. Absent properties map to "".
	Style(ctx context.Context, props ...string) (map[string]string, error)

	// SetStyle writes inline style values. An empty value removes the property.
	SetStyle(ctx context.Context, values map[string]string) error
}
