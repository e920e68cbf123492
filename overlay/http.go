package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/kit"
	"github.com/hazyhaar/promptnav/scanner"
)

// Routes mounts the HTTP control surface:
//
//	GET  /state
//	POST /rescan
//	POST /prompts/{index}/navigate
//	POST /panel/collapse
//	POST /panel/expand
//	POST /panel/viewport   {"width":..,"height":..}
func Routes(r chi.Router, eps Endpoints) {
	r.Use(guard, requestID)

	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		serve(w, r, eps.List, &ListRequest{})
	})

	r.Post("/rescan", func(w http.ResponseWriter, r *http.Request) {
		serve(w, r, eps.Rescan, &RescanRequest{})
	})

	r.Post("/prompts/{index}/navigate", func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
			return
		}
		serve(w, r, eps.Navigate, &NavigateRequest{Index: index})
	})

	r.Route("/panel", func(r chi.Router) {
		r.Post("/collapse", func(w http.ResponseWriter, r *http.Request) {
			serve(w, r, eps.Panel, &PanelRequest{Action: PanelCollapse})
		})
		r.Post("/expand", func(w http.ResponseWriter, r *http.Request) {
			serve(w, r, eps.Panel, &PanelRequest{Action: PanelExpand})
		})
		r.Post("/viewport", func(w http.ResponseWriter, r *http.Request) {
			req := PanelRequest{Action: PanelViewport}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
				return
			}
			req.Action = PanelViewport
			serve(w, r, eps.Panel, &req)
		})
	})
}

// NewHandler returns a chi router serving the routes of s.
func NewHandler(s *Session) http.Handler {
	r := chi.NewRouter()
	Routes(r, MakeEndpoints(s))
	return r
}

func serve(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, req any) {
	ctx := kit.WithTransport(r.Context(), "http")
	resp, err := ep(ctx, req)
	if err != nil {
		writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNoPrompt):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, dom.ErrDetached), errors.Is(err, scanner.ErrStopped):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
