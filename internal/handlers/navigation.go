package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Darkdragonzxs/Proxy/internal/navigator"
	"github.com/Darkdragonzxs/Proxy/internal/web"
)

type barRequest struct {
	Value string `json:"value"`
}

type navigateRequest struct {
	URL  string `json:"url"`
	Push *bool  `json:"push"`
}

// navContext bounds a navigation by the configured timeout and the client
// staying connected.
func (h *Handlers) navContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Config.NavigateTimeout
	if timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (h *Handlers) HandleBarInput(w http.ResponseWriter, r *http.Request) {
	var req barRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	h.Nav.HandleInput(req.Value)
	web.JSON(w, 200, h.Shell.Snapshot())
}

func (h *Handlers) HandleBarSubmit(w http.ResponseWriter, r *http.Request) {
	var req barRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	ctx, cancel := h.navContext(r)
	defer cancel()

	started, err := h.Nav.HandleSubmit(ctx, req.Value)
	if err != nil {
		navigationError(w, err)
		return
	}
	web.JSON(w, 200, map[string]any{"started": started, "state": h.Nav.State()})
}

// HandleNavigate loads an already formatted URL. push defaults to true.
func (h *Handlers) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	if req.URL == "" {
		web.Error(w, 400, fmt.Errorf("url required"))
		return
	}
	push := req.Push == nil || *req.Push

	ctx, cancel := h.navContext(r)
	defer cancel()

	started, err := h.Nav.Navigate(ctx, req.URL, push)
	if err != nil {
		navigationError(w, err)
		return
	}
	web.JSON(w, 200, map[string]any{"started": started, "state": h.Nav.State()})
}

func (h *Handlers) HandleBack(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, map[string]any{"moved": h.Nav.Back(), "state": h.Nav.State()})
}

func (h *Handlers) HandleForward(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, map[string]any{"moved": h.Nav.Forward(), "state": h.Nav.State()})
}

func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.navContext(r)
	defer cancel()

	started, err := h.Nav.HandleReload(ctx)
	if err != nil {
		navigationError(w, err)
		return
	}
	web.JSON(w, 200, map[string]any{"started": started, "state": h.Nav.State()})
}

func (h *Handlers) HandleFrameHover(w http.ResponseWriter, r *http.Request) {
	h.Nav.HandleFrameHover()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleFrameMessage(w http.ResponseWriter, r *http.Request) {
	var msg navigator.Message
	if err := web.DecodeJSON(r, &msg); err != nil {
		web.Error(w, 400, err)
		return
	}
	if err := h.Nav.HandleMessage(msg); err != nil {
		web.Error(w, 500, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func navigationError(w http.ResponseWriter, err error) {
	var setupErr *navigator.NavigationSetupError
	if errors.As(err, &setupErr) {
		web.ErrorCode(w, 502, "navigation_failed", err.Error(), true, map[string]any{"url": setupErr.URL})
		return
	}
	formatError(w, err)
}
