package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Darkdragonzxs/Proxy/internal/web"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// HandleScreencast upgrades to WebSocket and streams JPEG frames of the
// proxy tab. Query params: quality (1-100, default 40), maxWidth (default
// 1280), fps (1-30, default 10).
func (h *Handlers) HandleScreencast(w http.ResponseWriter, r *http.Request) {
	if h.Screen == nil {
		web.ErrorCode(w, 503, "no_frame", "frame tab not available", true, nil)
		return
	}

	quality := queryParamInt(r, "quality", 40)
	if quality > 100 {
		quality = 100
	}
	maxWidth := queryParamInt(r, "maxWidth", 1280)
	fps := queryParamInt(r, "fps", 10)
	if fps > 30 {
		fps = 30
	}
	minFrameInterval := time.Second / time.Duration(fps)

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(h.Screen.Context())
	defer cancel()
	go web.CancelOnClientDone(r.Context(), cancel)

	frameCh := make(chan []byte, 3)
	var once sync.Once
	done := make(chan struct{})

	var lastFrame time.Time
	chromedp.ListenTarget(ctx, func(ev any) {
		e, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		go func() {
			_ = chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
				return page.ScreencastFrameAck(e.SessionID).Do(c)
			}))
		}()

		now := time.Now()
		if now.Sub(lastFrame) < minFrameInterval {
			return
		}
		lastFrame = now

		data, err := base64.StdEncoding.DecodeString(e.Data)
		if err != nil {
			return
		}
		select {
		case frameCh <- data:
		default:
		}
	})

	err = h.casts.start(func() error {
		return chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
			return page.StartScreencast().
				WithFormat(page.ScreencastFormatJpeg).
				WithQuality(int64(quality)).
				WithMaxWidth(int64(maxWidth)).
				WithMaxHeight(int64(maxWidth * 3 / 4)).
				Do(c)
		}))
	})
	if err != nil {
		slog.Error("start screencast failed", "err", err)
		return
	}

	defer func() {
		once.Do(func() { close(done) })
		h.casts.stop(func() {
			_ = chromedp.Run(h.Screen.Context(), chromedp.ActionFunc(func(c context.Context) error {
				return page.StopScreencast().Do(c)
			}))
		})
	}()

	slog.Info("screencast started", "quality", quality, "maxWidth", maxWidth, "fps", fps)

	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				once.Do(func() { close(done) })
				return
			}
		}
	}()

	for {
		select {
		case frame := <-frameCh:
			if err := wsutil.WriteServerBinary(conn, frame); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
			if err := wsutil.WriteServerMessage(conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

// screencasts counts the clients sharing the frame tab's screencast. The
// tab has one stream, so it is stopped only when the last client leaves.
type screencasts struct {
	mu     sync.Mutex
	active int
}

// start runs startFn and counts the client if it succeeded.
func (s *screencasts) start(startFn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := startFn(); err != nil {
		return err
	}
	s.active++
	return nil
}

// stop forgets a client and runs stopFn if it was the last one.
func (s *screencasts) stop(stopFn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	if s.active == 0 {
		stopFn()
	}
}

func queryParamInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return def
	}
	return n
}
