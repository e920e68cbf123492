package rodpage

import (
	"context"
	"fmt"

	"github.com/hazyhaar/promptnav/overlay"
)

// Render implements overlay.Renderer by drawing v into the root marker.
// Events from the drawn panel arrive through OnUIEvent.
func (p *Page) Render(ctx context.Context, v overlay.View) error {
	res, err := p.page.Context(ctx).Eval(
		`(id, view) => window.__promptnavOverlay ? window.__promptnavOverlay.render(id, view) : false`,
		overlay.RootID, v)
	if err != nil {
		return fmt.Errorf("rodpage: render: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("rodpage: render: root %q missing", overlay.RootID)
	}
	return nil
}
