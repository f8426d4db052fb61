// Package handlers exposes the shell page and its controls over HTTP.
package handlers

import (
	"context"
	"net/http"

	"github.com/Darkdragonzxs/Proxy/internal/config"
	"github.com/Darkdragonzxs/Proxy/internal/history"
	"github.com/Darkdragonzxs/Proxy/internal/navigator"
	"github.com/Darkdragonzxs/Proxy/internal/settings"
	"github.com/Darkdragonzxs/Proxy/internal/urlbar"
	"github.com/Darkdragonzxs/Proxy/internal/view"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Navigator is the part of navigator.Manager the HTTP surface drives.
type Navigator interface {
	HandleInput(value string)
	HandleSubmit(ctx context.Context, value string) (bool, error)
	Navigate(ctx context.Context, rawURL string, pushHistory bool) (bool, error)
	Back() bool
	Forward() bool
	HandleReload(ctx context.Context) (bool, error)
	HandleInitialLoad(ctx context.Context) (bool, error)
	HandleFrameHover()
	HandleMessage(msg navigator.Message) error
	State() navigator.State
}

type Settings interface {
	Current() settings.Preference
	Apply(title, faviconURL string) error
	Reset() error
}

// History is written when a shell page is opened with a url parameter and
// reported on /state.
type History interface {
	Location() string
	Replace(state history.State, location string)
	Entries() ([]history.Entry, int)
}

// Screen gives the screencast the frame's tab context.
type Screen interface {
	Context() context.Context
}

type Handlers struct {
	Nav       Navigator
	Settings  Settings
	Shell     *view.Shell
	History   History
	Screen    Screen
	Config    *config.RuntimeConfig
	Formatter urlbar.Formatter
	Gatherer  prometheus.Gatherer

	casts screencasts
}

func New(nav Navigator, s Settings, shell *view.Shell, hist History, cfg *config.RuntimeConfig) *Handlers {
	return &Handlers{
		Nav:       nav,
		Settings:  s,
		Shell:     shell,
		History:   hist,
		Config:    cfg,
		Formatter: urlbar.Formatter{SearchURL: cfg.SearchURL},
		Gatherer:  prometheus.DefaultGatherer,
	}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux, doShutdown func()) {
	mux.HandleFunc("GET /{$}", h.HandleShell)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("GET /format", h.HandleFormat)
	mux.HandleFunc("POST /bar/input", h.HandleBarInput)
	mux.HandleFunc("POST /bar/submit", h.HandleBarSubmit)
	mux.HandleFunc("POST /navigate", h.HandleNavigate)
	mux.HandleFunc("POST /back", h.HandleBack)
	mux.HandleFunc("POST /forward", h.HandleForward)
	mux.HandleFunc("POST /reload", h.HandleReload)
	mux.HandleFunc("POST /frame/hover", h.HandleFrameHover)
	mux.HandleFunc("POST /frame/message", h.HandleFrameMessage)
	mux.HandleFunc("GET /settings", h.HandleGetSettings)
	mux.HandleFunc("POST /settings", h.HandleSaveSettings)
	mux.HandleFunc("DELETE /settings", h.HandleResetSettings)
	mux.HandleFunc("GET /events", h.HandleEvents)
	mux.HandleFunc("GET /events/stream", h.HandleEventStream)
	mux.HandleFunc("GET /frame/screencast", h.HandleScreencast)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /help", h.HandleHelp)

	if doShutdown != nil {
		mux.HandleFunc("POST /shutdown", h.HandleShutdown(doShutdown))
	}
}
