// Package tui is a terminal front end for a navigator session. The floating
// panel is drawn at its controller position in terminal cells and driven by
// mouse presses, drags and releases, exactly like the in-page overlay.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/overlay"
	"github.com/hazyhaar/promptnav/panel"
)

// CellPanel is the panel geometry in terminal cells.
var CellPanel = panel.Config{
	Position:      panel.Point{X: 2, Y: 1},
	Size:          panel.Size{Width: 48, Height: 16},
	MinSize:       panel.Size{Width: 24, Height: 6},
	CollapsedSize: panel.Size{Width: 7, Height: 3},
	Padding:       1,
}

// channelRenderer hands views to the bubbletea loop, keeping only the
// newest one when the loop falls behind.
type channelRenderer chan overlay.View

func (c channelRenderer) Render(_ context.Context, v overlay.View) error {
	select {
	case <-c:
	default:
	}
	select {
	case c <- v:
	default:
	}
	return nil
}

type viewMsg overlay.View

type resultMsg struct {
	status string
	err    error
}

type model struct {
	ctx   context.Context
	s     *overlay.Session
	views channelRenderer
	th    theme

	view          overlay.View
	width, height int
	selected      int
	offset        int
	status        string

	// iconPressed is set between a press and a release on the collapsed
	// icon; the release is then followed by a click.
	iconPressed bool
	dragging    bool
}

func newModel(ctx context.Context, s *overlay.Session, views channelRenderer) *model {
	return &model{
		ctx:   ctx,
		s:     s,
		views: views,
		th:    defaultTheme(),
		view:  s.View(),
	}
}

func (m *model) waitView() tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-m.views:
			return viewMsg(v)
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func (m *model) Init() tea.Cmd {
	return m.waitView()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch t := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = t.Width, t.Height
		// The last row is the status line.
		m.apply(dom.UIEvent{Type: dom.EventResize, Width: float64(t.Width), Height: float64(t.Height - 1)})
		return m, nil

	case viewMsg:
		m.view = overlay.View(t)
		m.clampSelection()
		return m, m.waitView()

	case resultMsg:
		m.status = t.status
		if t.err != nil {
			m.status = t.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.key(t)

	case tea.MouseMsg:
		return m, m.mouse(t)
	}
	return m, nil
}

func (m *model) key(k tea.KeyMsg) tea.Cmd {
	switch k.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "up", "k":
		m.selected = max(m.selected-1, 0)
		m.clampSelection()
	case "down", "j":
		m.selected++
		m.clampSelection()
	case "enter":
		return m.navigate(m.selected + 1)
	case "c":
		m.apply(dom.UIEvent{Type: dom.EventCollapse})
	case "e":
		m.s.Panel().Expand()
		m.s.Refresh(m.ctx)
	case "r":
		return m.rescan()
	}
	return nil
}

func (m *model) mouse(ev tea.MouseMsg) tea.Cmd {
	pt := dom.UIEvent{X: float64(ev.X), Y: float64(ev.Y)}

	switch ev.Action {
	case tea.MouseActionPress:
		if ev.Button != tea.MouseButtonLeft {
			return nil
		}
		h := hitTest(m.view.Panel, m.view.Footprint, ev.X, ev.Y)
		switch h.kind {
		case hitIcon, hitHeader, hitHandle:
			pt.Type, pt.Target = dom.EventPointerDown, h.pointerTarget()
			m.apply(pt)
			m.dragging = true
			m.iconPressed = h.kind == hitIcon
		case hitCollapse:
			m.apply(dom.UIEvent{Type: dom.EventCollapse})
		case hitRescan:
			return m.rescan()
		case hitItem:
			index := m.offset + h.row
			if index < len(m.view.Prompts) {
				m.selected = index
				return m.navigate(index + 1)
			}
		}

	case tea.MouseActionMotion:
		if m.dragging {
			pt.Type = dom.EventPointerMove
			m.apply(pt)
		}

	case tea.MouseActionRelease:
		if !m.dragging {
			return nil
		}
		m.dragging = false
		pt.Type = dom.EventPointerUp
		m.apply(pt)
		if m.iconPressed {
			m.iconPressed = false
			m.apply(dom.UIEvent{Type: dom.EventClickIcon})
		}
	}
	return nil
}

// apply handles geometry events inline: they only touch the controller.
func (m *model) apply(ev dom.UIEvent) {
	if err := m.s.HandleEvent(m.ctx, ev); err != nil {
		m.status = err.Error()
	}
	m.view.Panel = m.s.Panel().State()
	m.view.Footprint = m.s.Panel().Footprint()
}

func (m *model) navigate(index int) tea.Cmd {
	return func() tea.Msg {
		err := m.s.HandleEvent(m.ctx, dom.UIEvent{Type: dom.EventSelect, Index: index})
		return resultMsg{status: fmt.Sprintf("→ prompt %d", index), err: err}
	}
}

func (m *model) rescan() tea.Cmd {
	return func() tea.Msg {
		v, err := m.s.Rescan(m.ctx)
		return resultMsg{status: fmt.Sprintf("rescanned: %d prompts", len(v.Prompts)), err: err}
	}
}

// clampSelection keeps the selection inside the list and visible.
func (m *model) clampSelection() {
	n := len(m.view.Prompts)
	m.selected = min(m.selected, max(n-1, 0))
	rows := cellBox(m.view.Panel, m.view.Footprint).listRows()
	if rows <= 0 {
		return
	}
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+rows {
		m.offset = m.selected - rows + 1
	}
}

func (m *model) View() string {
	return renderScreen(m.th, m.view, m.width, m.height, m.selected, m.offset, m.status)
}

// Run attaches a session to doc and runs the terminal UI until the user
// quits or ctx is cancelled. A zero opts.Panel uses CellPanel.
func Run(ctx context.Context, doc dom.Document, opts overlay.Options) error {
	if opts.Panel == (panel.Config{}) {
		opts.Panel = CellPanel
	}
	if opts.Viewport == (panel.Size{}) {
		opts.Viewport = panel.Size{Width: 80, Height: 23}
	}

	views := make(channelRenderer, 1)
	s, err := overlay.Attach(ctx, doc, views, opts)
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	defer s.Close(context.WithoutCancel(ctx))

	p := tea.NewProgram(newModel(ctx, s, views),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
