package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Darkdragonzxs/Proxy/internal/config"
	"github.com/Darkdragonzxs/Proxy/internal/history"
	"github.com/Darkdragonzxs/Proxy/internal/web"
	"golang.org/x/time/rate"
)

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &web.StatusWriter{ResponseWriter: w, Code: 200}
		next.ServeHTTP(sw, r)
		slog.Info("request",
			"requestId", w.Header().Get("X-Request-Id"),
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.Code,
			"ms", time.Since(start).Milliseconds(),
		)
	})
}

// AuthMiddleware requires the bearer token when one is configured. The
// bare shell page and health check stay open so a browser can load the UI;
// the page then sends the token itself.
func AuthMiddleware(cfg *config.RuntimeConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Token != "" && !openRoute(r) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				auth = bearerFromQuery(r)
			}
			if auth == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="latte", error="missing_token"`)
				web.ErrorCode(w, 401, "missing_token", "unauthorized", false, nil)
				return
			}
			if auth != "Bearer "+cfg.Token {
				w.Header().Set("WWW-Authenticate", `Bearer realm="latte", error="bad_token"`)
				web.ErrorCode(w, 401, "bad_token", "unauthorized", false, nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// openRoute reports whether r may skip auth. Opening the shell with a url
// parameter navigates the frame, so only the bare page is open.
func openRoute(r *http.Request) bool {
	switch r.URL.Path {
	case "/health":
		return true
	case "/":
		return r.URL.Query().Get(history.Param) == ""
	}
	return false
}

// bearerFromQuery reads ?token= for WebSocket and EventSource clients,
// which cannot set headers.
func bearerFromQuery(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return "Bearer " + t
	}
	return ""
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			b := make([]byte, 8)
			_, _ = rand.Read(b)
			rid = hex.EncodeToString(b)
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r)
	})
}

// RateLimiter is a per-client token bucket that refills Max requests per
// Window. Health, metrics and the event streams are exempt.
type RateLimiter struct {
	Window time.Duration
	Max    int

	// OnLimited is called for each rejected request.
	OnLimited func(r *http.Request)

	mu        sync.Mutex
	clients   map[string]*rateClient
	lastSweep time.Time
}

type rateClient struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{Window: window, Max: max, clients: make(map[string]*rateClient)}
}

func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimSpace(r.URL.Path)
		if p == "/health" || p == "/metrics" || strings.HasPrefix(p, "/events") || p == "/frame/screencast" {
			next.ServeHTTP(w, r)
			return
		}
		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		if host == "" {
			host = r.RemoteAddr
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			host = strings.TrimSpace(strings.Split(xff, ",")[0])
		}

		if !rl.allow(host, time.Now()) {
			if rl.OnLimited != nil {
				rl.OnLimited(r)
			}
			web.ErrorCode(w, 429, "rate_limited", "too many requests", true, map[string]any{"windowSec": int(rl.Window.Seconds()), "max": rl.Max})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(host string, now time.Time) bool {
	if rl.Max <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if now.Sub(rl.lastSweep) >= rl.Window {
		rl.sweep(now)
		rl.lastSweep = now
	}
	c, ok := rl.clients[host]
	if !ok {
		c = &rateClient{lim: rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.Max)), rl.Max)}
		rl.clients[host] = c
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

// sweep drops clients idle for a whole window; their buckets are full again
// so nothing is lost. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for host, c := range rl.clients {
		if now.Sub(c.seen) >= rl.Window {
			delete(rl.clients, host)
		}
	}
}
