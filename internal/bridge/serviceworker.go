package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var ErrInsecureOrigin = errors.New("Service workers cannot be registered without https.")

// ServiceWorkerProbe checks that the proxy origin can host the service
// worker and that its script is being served. A successful probe is
// remembered for the life of the process.
type ServiceWorkerProbe struct {
	origin string
	path   string
	client *retryablehttp.Client
	ready  atomic.Bool
}

func NewServiceWorkerProbe(origin, path string, retries int) *ServiceWorkerProbe {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.Logger = nil
	return &ServiceWorkerProbe{
		origin: strings.TrimRight(origin, "/"),
		path:   path,
		client: c,
	}
}

func (p *ServiceWorkerProbe) Ready(ctx context.Context) error {
	if p.ready.Load() {
		return nil
	}
	if !secureOrigin(p.origin) {
		return ErrInsecureOrigin
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.origin+p.path, nil)
	if err != nil {
		return fmt.Errorf("service worker: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("service worker: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service worker: %s returned %d", p.path, resp.StatusCode)
	}
	p.ready.Store(true)
	slog.Info("service worker ready", "origin", p.origin, "path", p.path)
	return nil
}

// CloseIdleConnections releases pooled connections held by the probe.
func (p *ServiceWorkerProbe) CloseIdleConnections() {
	p.client.HTTPClient.CloseIdleConnections()
}

// secureOrigin follows the browser rule: https, or plain http on a loopback
// host.
func secureOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme == "https" {
		return true
	}
	if u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
