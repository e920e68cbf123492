package panel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew_Defaults(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})
	want := State{
		Mode:     Expanded,
		Position: Point{X: 20, Y: 100},
		Size:     Size{Width: 320, Height: 400},
		Viewport: Size{Width: 1200, Height: 800},
	}
	if diff := cmp.Diff(want, c.State()); diff != "" {
		t.Errorf("initial state (-want +got):\n%s", diff)
	}
}

func TestNew_ClampsIntoSmallViewport(t *testing.T) {
	c := New(Config{}, Size{Width: 200, Height: 200})
	if got := c.State().Position; got != (Point{}) {
		t.Errorf("position: got %+v, want (0,0)", got)
	}
}

func TestDrag_ClampsToViewport(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})

	g := c.BeginDrag(Point{X: 30, Y: 110})
	g.Move(Point{X: -50, Y: -50})
	if got := c.State().Position; got != (Point{X: 0, Y: 0}) {
		t.Errorf("drag to (-50,-50): got %+v, want (0,0)", got)
	}

	g.Move(Point{X: 5000, Y: 5000})
	if got := c.State().Position; got != (Point{X: 880, Y: 400}) {
		t.Errorf("drag past bottom-right: got %+v, want (880,400)", got)
	}

	g.Move(Point{X: 110, Y: 210})
	if got := c.State().Position; got != (Point{X: 100, Y: 200}) {
		t.Errorf("drag keeps cursor offset: got %+v, want (100,200)", got)
	}
	if !g.End() {
		t.Error("End: want moved")
	}
	if c.State().Mode != Expanded {
		t.Error("drag changed mode")
	}
}

func TestDrag_CollapsedUsesIconFootprint(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})
	c.Collapse()

	pos := c.State().Position
	g := c.BeginDrag(pos)
	g.Move(Point{X: 5000, Y: 5000})
	g.End()
	if got := c.State().Position; got != (Point{X: 1152, Y: 752}) {
		t.Errorf("collapsed drag clamp: got %+v, want (1152,752)", got)
	}
}

func TestGesture_StaleHandleIgnored(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})

	g1 := c.BeginDrag(Point{X: 20, Y: 100})
	g2 := c.BeginDrag(Point{X: 20, Y: 100})

	g1.Move(Point{X: 500, Y: 500})
	if got := c.State().Position; got != (Point{X: 20, Y: 100}) {
		t.Errorf("stale gesture moved panel to %+v", got)
	}
	if g1.End() {
		t.Error("stale End reported movement")
	}
	if c.Live() != g2 {
		t.Error("stale End released the live gesture")
	}
	g2.End()
	if c.Live() != nil {
		t.Error("gesture still live after End")
	}
}

func TestResize_MinimumOnly(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})

	g, ok := c.BeginResize(Point{X: 340, Y: 500})
	if !ok {
		t.Fatal("BeginResize refused while expanded")
	}
	g.Move(Point{X: 440, Y: 550})
	if got := c.State().Size; got != (Size{Width: 420, Height: 450}) {
		t.Errorf("grow: got %+v", got)
	}

	g.Move(Point{X: 0, Y: 0})
	if got := c.State().Size; got != (Size{Width: 200, Height: 150}) {
		t.Errorf("shrink clamps to minimum: got %+v", got)
	}

	g.Move(Point{X: 3000, Y: 3000})
	if got := c.State().Size; got != (Size{Width: 2980, Height: 2900}) {
		t.Errorf("no maximum clamp: got %+v", got)
	}
	g.End()
}

func TestResize_RefusedWhenCollapsed(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})
	c.Collapse()
	if _, ok := c.BeginResize(Point{}); ok {
		t.Error("BeginResize accepted while collapsed")
	}
}

func TestCollapse_NearestEdge(t *testing.T) {
	tests := []struct {
		name     string
		viewport Size
		pos      Point // panel is 320x400
		wantEdge Edge
		want     Point
	}{
		// Centre (500,500): every distance is 500.
		{"four-way tie goes left", Size{Width: 1000, Height: 1000}, Point{X: 340, Y: 300}, EdgeLeft, Point{X: 10, Y: 476}},
		// Centre (600,400): right, top and bottom are 400.
		{"right beats top and bottom", Size{Width: 1000, Height: 800}, Point{X: 440, Y: 200}, EdgeRight, Point{X: 942, Y: 376}},
		// Centre (500,400): top and bottom are 400.
		{"top beats bottom", Size{Width: 1200, Height: 800}, Point{X: 340, Y: 200}, EdgeTop, Point{X: 476, Y: 10}},
		// Centre (700,600).
		{"bottom", Size{Width: 1400, Height: 800}, Point{X: 540, Y: 400}, EdgeBottom, Point{X: 676, Y: 742}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Config{Position: tt.pos}, tt.viewport)
			if c.State().Position != tt.pos {
				t.Fatalf("setup clamped position to %+v", c.State().Position)
			}
			st := c.State()
			cx, cy := st.Position.X+st.Size.Width/2, st.Position.Y+st.Size.Height/2
			if got := nearestEdge(cx, cy, tt.viewport); got != tt.wantEdge {
				t.Errorf("nearestEdge: got %s, want %s", got, tt.wantEdge)
			}

			if !c.Collapse() {
				t.Fatal("Collapse returned false")
			}
			st = c.State()
			if st.Mode != Collapsed {
				t.Errorf("mode: got %s", st.Mode)
			}
			if st.Position != tt.want {
				t.Errorf("position: got %+v, want %+v", st.Position, tt.want)
			}
			if st.Size != (Size{Width: 320, Height: 400}) {
				t.Errorf("expanded size lost: %+v", st.Size)
			}
		})
	}
}

func TestCollapse_PerpendicularAxisPadded(t *testing.T) {
	// Centre (31,10) sits closest to the top; the icon cannot be centred
	// that close to the left edge and is clamped to the padding.
	c := New(Config{Position: Point{X: 1, Y: 0}, Size: Size{Width: 60, Height: 20}}, Size{Width: 1200, Height: 800})
	c.Collapse()
	if got := c.State().Position; got != (Point{X: 10, Y: 10}) {
		t.Errorf("got %+v, want (10,10)", got)
	}

	c2 := New(Config{Position: Point{X: 1, Y: 0}, Size: Size{Width: 20, Height: 300}}, Size{Width: 1200, Height: 800})
	c2.Collapse()
	if got := c2.State().Position; got != (Point{X: 10, Y: 126}) {
		t.Errorf("got %+v, want (10,126)", got)
	}
}

func TestCollapse_Idempotent(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})
	c.Collapse()
	before := c.State()
	if c.Collapse() {
		t.Error("second Collapse reported a transition")
	}
	if diff := cmp.Diff(before, c.State()); diff != "" {
		t.Errorf("second Collapse changed state:\n%s", diff)
	}
}

func TestClickIcon_DragDoesNotExpand(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})
	c.Collapse()
	pos := c.State().Position

	g := c.BeginDrag(Point{X: pos.X + 5, Y: pos.Y + 5})
	g.Move(Point{X: pos.X + 15, Y: pos.Y + 5})
	g.End()
	if c.ClickIcon() {
		t.Fatal("click after moving drag expanded the panel")
	}
	if c.State().Mode != Collapsed {
		t.Fatal("mode changed")
	}

	g = c.BeginDrag(Point{X: pos.X + 5, Y: pos.Y + 5})
	g.End()
	if !c.ClickIcon() {
		t.Fatal("plain click did not expand")
	}
	if c.State().Mode != Expanded {
		t.Error("mode: want expanded")
	}
}

func TestExpand_ReclampsLastPosition(t *testing.T) {
	c := New(Config{}, Size{Width: 1200, Height: 800})
	c.Collapse() // nearest edge is left: icon at (10, 276)

	g := c.BeginDrag(Point{X: 20, Y: 290})
	g.Move(Point{X: 1190, Y: 790})
	g.End()
	if got := c.State().Position; got != (Point{X: 1152, Y: 752}) {
		t.Fatalf("icon position: got %+v", got)
	}

	if !c.Expand() {
		t.Fatal("Expand returned false")
	}
	if got := c.State().Position; got != (Point{X: 880, Y: 400}) {
		t.Errorf("expanded position: got %+v, want (880,400)", got)
	}
	if c.Expand() {
		t.Error("Expand while expanded reported a transition")
	}
}

func TestReflow_KeepsMode(t *testing.T) {
	c := New(Config{Position: Point{X: 800, Y: 300}}, Size{Width: 1200, Height: 800})

	c.Reflow(Size{Width: 900, Height: 600})
	st := c.State()
	if st.Mode != Expanded || st.Position != (Point{X: 580, Y: 200}) {
		t.Errorf("expanded reflow: got %+v", st)
	}

	c.Collapse()
	c.Reflow(Size{Width: 300, Height: 200})
	st = c.State()
	if st.Mode != Collapsed {
		t.Errorf("reflow changed mode to %s", st.Mode)
	}
	if st.Position.X > 300-48 || st.Position.Y > 200-48 || st.Position.X < 0 || st.Position.Y < 0 {
		t.Errorf("collapsed reflow out of bounds: %+v", st.Position)
	}
}
