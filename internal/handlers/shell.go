package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Darkdragonzxs/Proxy/internal/assets"
	"github.com/Darkdragonzxs/Proxy/internal/history"
	"github.com/Darkdragonzxs/Proxy/internal/urlbar"
	"github.com/Darkdragonzxs/Proxy/internal/web"
)

// HandleShell serves the shell page. Opening it with ?url= restores that
// page into the frame, the same as a browser reload of the shell.
func (h *Handlers) HandleShell(w http.ResponseWriter, r *http.Request) {
	if u := r.URL.Query().Get(history.Param); u != "" && h.History != nil {
		loc, err := history.WithParam(h.History.Location(), u)
		if err == nil {
			h.History.Replace(history.State{URL: u}, loc)
			if _, err := h.Nav.HandleInitialLoad(r.Context()); err != nil {
				slog.Warn("initial load", "url", u, "err", err)
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	_, _ = w.Write([]byte(assets.ShellHTML))
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, map[string]any{
		"status":      "ok",
		"subscribers": h.Shell.Subscribers(),
		"screencast":  h.Screen != nil,
		"navigation":  h.Nav.State(),
	})
}

func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	state := map[string]any{
		"shell":     h.Shell.Snapshot(),
		"navigator": h.Nav.State(),
	}
	if h.History != nil {
		entries, index := h.History.Entries()
		state["history"] = map[string]any{"entries": entries, "index": index}
	}
	web.Respond(w, r, 200, state)
}

// HandleFormat shows what the address bar would do with ?input= without
// navigating.
func (h *Handlers) HandleFormat(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("input")
	if input == "" {
		web.ErrorCode(w, 400, "missing_input", "input required", false, nil)
		return
	}
	u, err := h.Formatter.Format(input)
	if err != nil {
		formatError(w, err)
		return
	}
	web.JSON(w, 200, map[string]string{"input": input, "url": u})
}

func formatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, urlbar.ErrUnsupportedScheme):
		web.ErrorCode(w, 400, "unsupported_scheme", err.Error(), false, nil)
	case errors.Is(err, urlbar.ErrInvalidURL):
		web.ErrorCode(w, 400, "invalid_url", err.Error(), false, nil)
	default:
		web.Error(w, 400, err)
	}
}
