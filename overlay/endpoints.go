package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/promptnav/kit"
	"github.com/hazyhaar/promptnav/panel"
)

// Panel actions accepted by the panel endpoint.
const (
	PanelState    = "state"
	PanelCollapse = "collapse"
	PanelExpand   = "expand"
	PanelViewport = "viewport"
)

type ListRequest struct{}

type RescanRequest struct{}

type NavigateRequest struct {
	Index int `json:"index"`
}

type NavigateResponse struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
}

type PanelRequest struct {
	Action string  `json:"action"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Endpoints are the transport-neutral operations on a Session.
type Endpoints struct {
	List     kit.Endpoint
	Rescan   kit.Endpoint
	Navigate kit.Endpoint
	Panel    kit.Endpoint
}

// MakeEndpoints builds the endpoints of s. Each one is logged and then
// wrapped in mws.
func MakeEndpoints(s *Session, mws ...kit.Middleware) Endpoints {
	wrap := func(op string, ep kit.Endpoint) kit.Endpoint {
		chain := append([]kit.Middleware{sessionMiddleware(s.id), LoggingMiddleware(s.logger, op)}, mws...)
		return kit.Chain(chain...)(ep)
	}
	return Endpoints{
		List:     wrap("list", listEndpoint(s)),
		Rescan:   wrap("rescan", rescanEndpoint(s)),
		Navigate: wrap("navigate", navigateEndpoint(s)),
		Panel:    wrap("panel", panelEndpoint(s)),
	}
}

func sessionMiddleware(id string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			return next(kit.WithSessionID(ctx, id), req)
		}
	}
}

func listEndpoint(s *Session) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return s.View(), nil
	}
}

func rescanEndpoint(s *Session) kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		return s.Rescan(ctx)
	}
}

func navigateEndpoint(s *Session) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r, ok := req.(*NavigateRequest)
		if !ok {
			return nil, fmt.Errorf("overlay: navigate: unexpected request %T", req)
		}
		if err := s.Navigate(ctx, r.Index); err != nil {
			return nil, err
		}
		p, _ := s.scanner.Prompt(r.Index)
		return NavigateResponse{Index: r.Index, ID: p.ID}, nil
	}
}

func panelEndpoint(s *Session) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r, ok := req.(*PanelRequest)
		if !ok {
			return nil, fmt.Errorf("overlay: panel: unexpected request %T", req)
		}
		switch r.Action {
		case PanelState, "":
		case PanelCollapse:
			s.panel.Collapse()
		case PanelExpand:
			s.panel.Expand()
		case PanelViewport:
			if r.Width <= 0 || r.Height <= 0 {
				return nil, fmt.Errorf("%w: viewport %vx%v", ErrBadRequest, r.Width, r.Height)
			}
			s.panel.Reflow(panel.Size{Width: r.Width, Height: r.Height})
		default:
			return nil, fmt.Errorf("%w: panel action %q", ErrBadRequest, r.Action)
		}
		s.render(ctx)
		return s.panel.State(), nil
	}
}

// LoggingMiddleware tags each call with a request ID and logs its outcome.
func LoggingMiddleware(logger *slog.Logger, op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			id := kit.GetRequestID(ctx)
			if id == "" {
				id = newRequestID()
				ctx = kit.WithRequestID(ctx, id)
			}
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"op", op,
				"transport", kit.GetTransport(ctx),
				"request_id", id,
				"session", kit.GetSessionID(ctx),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Warn("overlay: request failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("overlay: request", attrs...)
			}
			return resp, err
		}
	}
}
