package panel

import "math"

// GestureKind distinguishes drag from resize gestures.
type GestureKind string

const (
	GestureDrag   GestureKind = "drag"
	GestureResize GestureKind = "resize"
)

// Gesture is a live pointer gesture. Move and End are no-ops once the
// gesture has ended or been replaced by a newer one.
type Gesture struct {
	c    *Controller
	kind GestureKind

	// drag: cursor offset from the panel position at pointer-down.
	offset Point
	// resize: cursor and size at pointer-down.
	start     Point
	startSize Size
}

// Kind returns the gesture kind.
func (g *Gesture) Kind() GestureKind { return g.kind }

// BeginDrag starts dragging the panel (from the header) or the collapsed
// icon with the pointer at p.
func (c *Controller) BeginDrag(p Point) *Gesture {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release()
	g := &Gesture{
		c:      c,
		kind:   GestureDrag,
		offset: Point{X: p.X - c.state.Position.X, Y: p.Y - c.state.Position.Y},
	}
	c.live = g
	c.moved = false
	return g
}

// BeginResize starts resizing from the handle with the pointer at p. It
// returns false while collapsed.
func (c *Controller) BeginResize(p Point) (*Gesture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != Expanded {
		return nil, false
	}
	c.release()
	g := &Gesture{
		c:         c,
		kind:      GestureResize,
		start:     p,
		startSize: c.state.Size,
	}
	c.live = g
	c.moved = false
	return g, true
}

// Live returns the gesture in progress, or nil.
func (c *Controller) Live() *Gesture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// release drops the live gesture. It must be called with c.mu held.
func (c *Controller) release() {
	c.live = nil
}

// Move applies a pointer-move to p.
func (g *Gesture) Move(p Point) {
	c := g.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != g {
		return
	}
	c.moved = true

	switch g.kind {
	case GestureDrag:
		c.state.Position = Point{X: p.X - g.offset.X, Y: p.Y - g.offset.Y}
		c.clamp()
	case GestureResize:
		// No maximum: Reflow deals with overflow when the window shrinks.
		c.state.Size = Size{
			Width:  math.Max(g.startSize.Width+p.X-g.start.X, c.cfg.MinSize.Width),
			Height: math.Max(g.startSize.Height+p.Y-g.start.Y, c.cfg.MinSize.Height),
		}
	}
}

// End finishes the gesture on pointer-up. It reports whether the pointer
// moved during the gesture.
func (g *Gesture) End() bool {
	c := g.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != g {
		return false
	}
	c.live = nil
	return c.moved
}
