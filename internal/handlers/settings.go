package handlers

import (
	"net/http"

	"github.com/Darkdragonzxs/Proxy/internal/settings"
	"github.com/Darkdragonzxs/Proxy/internal/web"
)

func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	web.Respond(w, r, 200, h.Settings.Current())
}

// HandleSaveSettings applies the non-empty fields. Empty fields keep the
// saved value.
func (h *Handlers) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Preference
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	if err := h.Settings.Apply(req.Title, req.FaviconURL); err != nil {
		web.ErrorCode(w, 500, "storage_failed", err.Error(), true, nil)
		return
	}
	web.JSON(w, 200, h.Settings.Current())
}

func (h *Handlers) HandleResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.Reset(); err != nil {
		web.ErrorCode(w, 500, "storage_failed", err.Error(), true, nil)
		return
	}
	web.JSON(w, 200, h.Settings.Current())
}
