package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Darkdragonzxs/Proxy/internal/view"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const keepaliveInterval = 30 * time.Second

func (h *Handlers) initialEvent() view.Event {
	return view.Event{Kind: view.EventState, Snapshot: h.Shell.Snapshot(), At: time.Now()}
}

// HandleEvents streams shell events over a WebSocket, starting with the
// current state.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	events, unsubscribe := h.Shell.Subscribe()
	defer unsubscribe()

	var once sync.Once
	done := make(chan struct{})
	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				once.Do(func() { close(done) })
				return
			}
		}
	}()

	write := func(evt view.Event) error {
		data, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		return wsutil.WriteServerText(conn, data)
	}
	if err := write(h.initialEvent()); err != nil {
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case evt := <-events:
			if err := write(evt); err != nil {
				return
			}
		case <-keepalive.C:
			if err := wsutil.WriteServerMessage(conn, ws.OpPing, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// HandleEventStream is the server-sent events variant of HandleEvents.
func (h *Handlers) HandleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, unsubscribe := h.Shell.Subscribe()
	defer unsubscribe()

	send := func(evt view.Event) {
		data, _ := json.Marshal(evt)
		_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
		flusher.Flush()
	}
	send(h.initialEvent())

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case evt := <-events:
			send(evt)
		case <-keepalive.C:
			_, _ = fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
