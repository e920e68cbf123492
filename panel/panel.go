// Package panel is the geometry state machine of the floating prompt panel.
//
// The Controller owns the panel's mode, position and size and keeps them
// inside the viewport. Pointer gestures are owned handles: BeginDrag and
// BeginResize return a *Gesture that receives the global pointer-move and
// pointer-up events until End. Beginning a new gesture releases the previous
// one, so a stale handle can never move the panel.
package panel

import (
	"log/slog"
	"math"
	"sync"
)

// Mode is the display mode of the panel.
type Mode string

const (
	Expanded  Mode = "expanded"
	Collapsed Mode = "collapsed"
)

// Point is a position in viewport pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a width and height in pixels.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// State is a snapshot of the panel geometry.
type State struct {
	Mode     Mode  `json:"mode"`
	Position Point `json:"position"`
	// Size is the expanded size. It is kept while collapsed.
	Size     Size `json:"size"`
	Viewport Size `json:"viewport"`
}

// Config holds the panel geometry defaults.
type Config struct {
	// Position is the initial top-left corner. Default: (20, 100).
	Position Point `yaml:"position"`
	// Size is the initial expanded size. Default: 320x400.
	Size Size `yaml:"size"`
	// MinSize bounds resizing. Default: 200x150.
	MinSize Size `yaml:"min_size"`
	// CollapsedSize is the footprint of the collapsed icon. Default: 48x48.
	CollapsedSize Size `yaml:"collapsed_size"`
	// Padding is the gap kept between a collapsed icon and the viewport
	// edges. Default: 10.
	Padding float64 `yaml:"padding"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Position == (Point{}) {
		c.Position = Point{X: 20, Y: 100}
	}
	if c.Size.Width <= 0 || c.Size.Height <= 0 {
		c.Size = Size{Width: 320, Height: 400}
	}
	if c.MinSize.Width <= 0 || c.MinSize.Height <= 0 {
		c.MinSize = Size{Width: 200, Height: 150}
	}
	if c.CollapsedSize.Width <= 0 || c.CollapsedSize.Height <= 0 {
		c.CollapsedSize = Size{Width: 48, Height: 48}
	}
	if c.Padding <= 0 {
		c.Padding = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller is safe for concurrent use.
type Controller struct {
	cfg Config

	mu    sync.Mutex
	state State
	live  *Gesture
	// moved reports whether the last gesture moved the pointer. It gates
	// ClickIcon.
	moved bool
}

// New creates a Controller in expanded mode at the configured position,
// clamped into viewport.
func New(cfg Config, viewport Size) *Controller {
	cfg.defaults()
	c := &Controller{
		cfg: cfg,
		state: State{
			Mode:     Expanded,
			Position: cfg.Position,
			Size:     cfg.Size,
			Viewport: viewport,
		},
	}
	c.clamp()
	return c
}

// State returns the current geometry.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Footprint returns the size the panel currently occupies on screen.
func (c *Controller) Footprint() Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.footprint()
}

func (c *Controller) footprint() Size {
	if c.state.Mode == Collapsed {
		return c.cfg.CollapsedSize
	}
	return c.state.Size
}

// clamp keeps the position inside the viewport for the current footprint.
// It must be called with c.mu held or before c is shared.
func (c *Controller) clamp() {
	fp := c.footprint()
	c.state.Position = Point{
		X: clampAxis(c.state.Position.X, c.state.Viewport.Width-fp.Width),
		Y: clampAxis(c.state.Position.Y, c.state.Viewport.Height-fp.Height),
	}
}

func clampAxis(v, limit float64) float64 {
	return math.Min(math.Max(v, 0), math.Max(limit, 0))
}

// Collapse snaps the panel to the viewport edge nearest its centre and
// shows the collapsed icon there. It returns false if already collapsed.
func (c *Controller) Collapse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode == Collapsed {
		return false
	}
	c.release()
	c.moved = false

	fp := c.state.Size
	vp := c.state.Viewport
	cx := c.state.Position.X + fp.Width/2
	cy := c.state.Position.Y + fp.Height/2

	icon := c.cfg.CollapsedSize
	pad := c.cfg.Padding
	// Along the edge, the icon stays centred on the old panel centre.
	x := clampRange(cx-icon.Width/2, pad, vp.Width-icon.Width-pad)
	y := clampRange(cy-icon.Height/2, pad, vp.Height-icon.Height-pad)

	edge := nearestEdge(cx, cy, vp)
	switch edge {
	case EdgeLeft:
		x = pad
	case EdgeRight:
		x = vp.Width - icon.Width - pad
	case EdgeTop:
		y = pad
	case EdgeBottom:
		y = vp.Height - icon.Height - pad
	}

	c.state.Mode = Collapsed
	c.state.Position = Point{X: x, Y: y}
	c.clamp()
	c.cfg.Logger.Debug("panel: collapsed", "edge", edge, "x", c.state.Position.X, "y", c.state.Position.Y)
	return true
}

func clampRange(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// Edge names a viewport edge.
type Edge string

const (
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

// nearestEdge compares distances in the order left, right, top, bottom and
// only replaces the candidate on a strictly smaller distance, so ties go to
// the earlier edge.
func nearestEdge(cx, cy float64, vp Size) Edge {
	candidates := []struct {
		edge Edge
		dist float64
	}{
		{EdgeLeft, cx},
		{EdgeRight, vp.Width - cx},
		{EdgeTop, cy},
		{EdgeBottom, vp.Height - cy},
	}
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.dist < best.dist {
			best = cand
		}
	}
	return best.edge
}

// ClickIcon handles a click on the collapsed icon. The panel expands only
// if the gesture that preceded the click did not move the pointer. It
// reports whether the panel expanded.
func (c *Controller) ClickIcon() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != Collapsed || c.live != nil || c.moved {
		return false
	}
	c.expand()
	return true
}

// Expand restores the panel at its last position regardless of the click
// gesture. It returns false if already expanded.
func (c *Controller) Expand() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode == Expanded {
		return false
	}
	c.release()
	c.expand()
	return true
}

func (c *Controller) expand() {
	c.state.Mode = Expanded
	c.clamp()
	c.cfg.Logger.Debug("panel: expanded", "x", c.state.Position.X, "y", c.state.Position.Y)
}

// Reflow applies a new viewport size and re-clamps the position. The mode
// is unchanged.
func (c *Controller) Reflow(viewport Size) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Viewport = viewport
	c.clamp()
}
