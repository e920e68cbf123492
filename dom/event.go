package dom

// UIEventType enumerates the events the render layer forwards to the core.
type UIEventType string

const (
	EventPointerDown UIEventType = "pointerdown"
	EventPointerMove UIEventType = "pointermove"
	EventPointerUp   UIEventType = "pointerup"
	EventClickIcon   UIEventType = "click_icon"
	EventCollapse    UIEventType = "collapse"
	EventRescan      UIEventType = "rescan"
	EventSelect      UIEventType = "select"
	EventResize      UIEventType = "resize"
)

// Pointer targets.
const (
	TargetHeader = "header"
	TargetIcon   = "icon"
	TargetHandle = "handle"
)

// UIEvent is a pointer, window or control event from the render layer.
type UIEvent struct {
	Type   UIEventType `json:"type"`
	Target string      `json:"target,omitempty"`
	X      float64     `json:"x,omitempty"`
	Y      float64     `json:"y,omitempty"`
	Width  float64     `json:"width,omitempty"`
	Height float64     `json:"height,omitempty"`
	Index  int         `json:"index,omitempty"`
}
