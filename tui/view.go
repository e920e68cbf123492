package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hazyhaar/promptnav/overlay"
	"github.com/hazyhaar/promptnav/panel"
)

type theme struct {
	Frame    lipgloss.Style
	Icon     lipgloss.Style
	Title    lipgloss.Style
	Button   lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Status   lipgloss.Style
}

func defaultTheme() theme {
	accent := lipgloss.Color("#3B82F6")
	muted := lipgloss.Color("#7D7D7D")

	frame := lipgloss.RoundedBorder()
	frame.BottomRight = "◢"

	return theme{
		Frame: lipgloss.NewStyle().
			Border(frame).
			BorderForeground(accent),
		Icon: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Foreground(accent).
			Bold(true).
			Align(lipgloss.Center),
		Title:    lipgloss.NewStyle().Bold(true),
		Button:   lipgloss.NewStyle().Foreground(accent),
		Item:     lipgloss.NewStyle(),
		Selected: lipgloss.NewStyle().Reverse(true),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Status:   lipgloss.NewStyle().Foreground(muted),
	}
}

// truncate cuts s to width cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// oneLine flattens a multi-line prompt for a single list row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func renderPanel(th theme, v overlay.View, selected, offset int) string {
	b := cellBox(v.Panel, v.Footprint)
	if v.Panel.Mode == panel.Collapsed {
		return th.Icon.
			Width(max(b.w-2, 1)).
			Height(max(b.h-2, 1)).
			Render(fmt.Sprint(len(v.Prompts)))
	}

	inner := max(b.w-2, 1)
	title := fmt.Sprintf("Prompts (%d)", len(v.Prompts))
	if v.Scanning {
		title += " …"
	}
	titleWidth := max(inner-buttonsWidth, 0)
	header := th.Title.Render(truncate(title, titleWidth)) +
		strings.Repeat(" ", max(titleWidth-lipgloss.Width(truncate(title, titleWidth)), 0)) +
		th.Button.Render(truncate("[r] [-] ", inner-titleWidth))

	lines := []string{header}
	rows := b.listRows()
	if len(v.Prompts) == 0 && rows > 0 {
		lines = append(lines, th.Muted.Render(truncate("No prompts found", inner)))
	}
	for i := offset; i < len(v.Prompts) && i < offset+rows; i++ {
		p := v.Prompts[i]
		line := truncate(fmt.Sprintf("%d. %s", p.Index, oneLine(p.Text)), inner)
		if i == selected {
			lines = append(lines, th.Selected.Render(line))
		} else {
			lines = append(lines, th.Item.Render(line))
		}
	}

	return th.Frame.
		Width(inner).
		Height(max(b.h-2, 1)).
		MaxHeight(b.h).
		Render(strings.Join(lines, "\n"))
}

// renderScreen places the panel at its position on a blank screen with a
// status line at the bottom.
func renderScreen(th theme, v overlay.View, width, height, selected, offset int, status string) string {
	if width <= 0 || height <= 1 {
		return ""
	}
	b := cellBox(v.Panel, v.Footprint)
	body := lipgloss.NewStyle().
		MarginLeft(b.x).
		MarginTop(b.y).
		Render(renderPanel(th, v, selected, offset))
	body = lipgloss.Place(width, height-1, lipgloss.Left, lipgloss.Top, body)

	line := fmt.Sprintf("promptnav · %s · %d prompts · gen %d", v.Platform, len(v.Prompts), v.Generation)
	if status != "" {
		line += " · " + status
	}
	line += " · ↑↓ enter c e r q"
	return lipgloss.JoinVertical(lipgloss.Left, body, th.Status.Render(truncate(line, width)))
}
