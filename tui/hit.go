package tui

import (
	"math"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/panel"
)

type hitKind int

const (
	hitNone hitKind = iota
	hitIcon
	hitHeader
	hitHandle
	hitCollapse
	hitRescan
	hitItem
)

// hit is what a mouse press landed on. Row is the list row for hitItem.
type hit struct {
	kind hitKind
	row  int
}

// box is the panel's rectangle in terminal cells.
type box struct {
	x, y, w, h int
}

func cellBox(st panel.State, fp panel.Size) box {
	return box{
		x: int(math.Round(st.Position.X)),
		y: int(math.Round(st.Position.Y)),
		w: int(math.Round(fp.Width)),
		h: int(math.Round(fp.Height)),
	}
}

// Layout of the expanded panel, border included:
//
//	╭──────────────────╮  row 0: header (drag)
//	│title     [r] [-] │  row 1: header with buttons
//	│1. first prompt   │  rows 2..h-2: list
//	╰─────────────────◢╯  row h-1: bottom border, handle in the corner
const (
	listTop      = 2
	buttonsWidth = 8 // "[r] [-] "
)

func (b box) listRows() int { return max(b.h-3, 0) }

func hitTest(st panel.State, fp panel.Size, x, y int) hit {
	b := cellBox(st, fp)
	if x < b.x || y < b.y || x >= b.x+b.w || y >= b.y+b.h {
		return hit{}
	}
	if st.Mode == panel.Collapsed {
		return hit{kind: hitIcon}
	}

	dx, dy := x-b.x, y-b.y
	switch {
	case dx >= b.w-2 && dy == b.h-1:
		return hit{kind: hitHandle}
	case dy == 0:
		return hit{kind: hitHeader}
	case dy == 1:
		// Buttons sit at the right end of the content row.
		right := b.w - 1
		switch {
		case dx >= right-buttonsWidth && dx < right-buttonsWidth+3:
			return hit{kind: hitRescan}
		case dx >= right-buttonsWidth+4 && dx < right-buttonsWidth+7:
			return hit{kind: hitCollapse}
		}
		return hit{kind: hitHeader}
	case dy >= listTop && dy < listTop+b.listRows() && dx > 0 && dx < b.w-1:
		return hit{kind: hitItem, row: dy - listTop}
	}
	return hit{}
}

// pointerTarget maps a hit to the render-layer target name.
func (h hit) pointerTarget() string {
	switch h.kind {
	case hitIcon:
		return dom.TargetIcon
	case hitHeader:
		return dom.TargetHeader
	case hitHandle:
		return dom.TargetHandle
	}
	return ""
}
