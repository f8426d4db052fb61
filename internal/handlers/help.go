package handlers

import (
	"net/http"

	"github.com/Darkdragonzxs/Proxy/internal/web"
)

func (h *Handlers) HandleHelp(wr http.ResponseWriter, _ *http.Request) {
	web.JSON(wr, 200, map[string]any{
		"name": "latte",
		"endpoints": map[string]any{
			"GET /":                     "shell page (?url= restores a page and needs the token when auth is enabled)",
			"GET /health":               "health status",
			"GET /state":                "shell, navigation and history state (format=yaml supported)",
			"GET /format":               "format address bar input without navigating (input=<text>)",
			"POST /bar/input":           "address bar edit: clears the error, validates",
			"POST /bar/submit":          "address bar submit: format and navigate with a new history entry",
			"POST /navigate":            "navigate to a formatted URL (push defaults to true)",
			"POST /back":                "history back",
			"POST /forward":             "history forward",
			"POST /reload":              "reload the page recorded in history",
			"POST /frame/hover":         "pointer entered the frame",
			"POST /frame/message":       "window message from the proxied page",
			"GET|POST|DELETE /settings": "custom title and favicon (format=yaml supported)",
			"GET /events":               "WebSocket stream of shell events",
			"GET /events/stream":        "server-sent events stream of shell events",
			"GET /frame/screencast":     "WebSocket JPEG frames of the proxy tab",
			"GET /metrics":              "Prometheus metrics",
			"GET /help":                 "this help payload",
			"POST /shutdown":            "stop the server",
		},
		"notes": []string{
			"Use Authorization: Bearer <token> when auth is enabled; stream endpoints also accept ?token=.",
		},
	})
}
