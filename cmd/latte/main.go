package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Darkdragonzxs/Proxy/internal/assets"
	"github.com/Darkdragonzxs/Proxy/internal/bridge"
	"github.com/Darkdragonzxs/Proxy/internal/config"
	"github.com/Darkdragonzxs/Proxy/internal/handlers"
	"github.com/Darkdragonzxs/Proxy/internal/history"
	"github.com/Darkdragonzxs/Proxy/internal/kvstore"
	"github.com/Darkdragonzxs/Proxy/internal/navigator"
	"github.com/Darkdragonzxs/Proxy/internal/proxycodec"
	"github.com/Darkdragonzxs/Proxy/internal/settings"
	"github.com/Darkdragonzxs/Proxy/internal/urlbar"
	"github.com/Darkdragonzxs/Proxy/internal/view"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var version = "dev"

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v":
			fmt.Printf("latte %s\n", version)
			return
		case "config":
			config.HandleConfigCommand(cfg, os.Args[2:])
			return
		case "format":
			os.Exit(runFormat(cfg, os.Args[2:], os.Stdout, os.Stderr))
		case "serve":
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
			os.Exit(2)
		}
	}

	if err := serve(cfg); err != nil {
		slog.Error("server", "err", err)
		os.Exit(1)
	}
}

// runFormat prints what the address bar would load for the input.
func runFormat(cfg *config.RuntimeConfig, args []string, stdout, stderr io.Writer) int {
	input := strings.TrimSpace(strings.Join(args, " "))
	if input == "" {
		fmt.Fprintln(stderr, "Usage: latte format <input>")
		return 2
	}
	u, err := urlbar.Formatter{SearchURL: cfg.SearchURL}.Format(input)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, u)
	return 0
}

// newCodec builds the configured codec. A codec script file implies the
// script codec; the script codec without a file runs the stock config.
func newCodec(cfg *config.RuntimeConfig) (proxycodec.Codec, error) {
	kind := cfg.Codec
	src := ""
	if cfg.CodecScript != "" {
		data, err := os.ReadFile(cfg.CodecScript)
		if err != nil {
			return nil, fmt.Errorf("codec script: %w", err)
		}
		kind, src = "script", string(data)
	} else if kind == "script" {
		src = assets.UVConfig
	}
	return proxycodec.New(kind, proxycodec.DefaultPrefix, src, cfg.ProxyOrigin)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// buildHandler wraps the mux in the middleware chain. Metrics sit closest
// to the mux so they see the matched route.
func buildHandler(cfg *config.RuntimeConfig, mux *http.ServeMux, reg prometheus.Registerer) http.Handler {
	prom := handlers.NewPrometheus(reg, "latte")
	rl := handlers.NewRateLimiter(10*time.Second, 600)
	rl.OnLimited = prom.RateLimited
	return handlers.RequestIDMiddleware(
		handlers.LoggingMiddleware(
			handlers.CorsMiddleware(
				handlers.AuthMiddleware(cfg, rl.Wrap(prom.Wrap(mux))))))
}

func serve(cfg *config.RuntimeConfig) error {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return fmt.Errorf("cannot create state dir: %w", err)
	}
	store, err := kvstore.OpenFile(cfg.StateDir)
	if err != nil {
		return err
	}

	shell := view.NewShell(cfg.DefaultTitle, "")
	panel := settings.NewPanel(store, shell, shell, cfg.DefaultTitle)
	panel.LoadSaved()
	session := history.NewSession(cfg.ShellURL())

	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}

	browserCtx, browserCancel, err := bridge.InitChrome(cfg)
	if err != nil {
		return err
	}
	frame, err := bridge.NewFrame(browserCtx, assets.FrameScript)
	if err != nil {
		browserCancel()
		return err
	}
	probe := bridge.NewServiceWorkerProbe(cfg.ProxyOrigin, cfg.ServiceWorkerPath, 2)

	appCtx, appCancel := context.WithCancel(context.Background())
	reg := newRegistry()

	var mgr *navigator.Manager
	mgr = navigator.New(navigator.Options{
		Frame:         frame,
		ServiceWorker: probe,
		History:       session,
		Bar:           shell,
		Errors:        shell,
		Document:      shell,
		Reloader: navigator.ReloaderFunc(func() {
			shell.Reload()
			_, _ = mgr.HandleReload(appCtx)
		}),
		Codec:           codec,
		ProxyOrigin:     cfg.ProxyOrigin,
		Formatter:       urlbar.Formatter{SearchURL: cfg.SearchURL},
		AppName:         cfg.DefaultTitle,
		ErrorClearDelay: cfg.ErrorClearDelay,
		CorsReloadDelay: cfg.CorsReloadDelay,
		Registerer:      reg,
	})

	session.OnPopState(func(history.Entry) { mgr.HandlePopState(appCtx) })
	frame.Listen(bridge.Events{
		Load:  func() { mgr.HandleFrameLoad(appCtx) },
		Error: mgr.HandleFrameError,
		Rejection: func(reason string) {
			if mgr.HandleUnhandledRejection(reason) {
				slog.Warn("cors failure, reloading shell", "reason", reason)
			}
		},
		Message: func(kind, u string) {
			if err := mgr.HandleMessage(navigator.Message{Type: kind, URL: u}); err != nil {
				slog.Warn("frame message", "type", kind, "err", err)
			}
		},
	})

	h := handlers.New(mgr, panel, shell, session, cfg)
	h.Screen = frame
	h.Gatherer = reg

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	shutdownOnce := &sync.Once{}
	doShutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("server shutdown", "err", err)
			}
			appCancel()
			probe.CloseIdleConnections()
			frame.Close()
			browserCancel()
			slog.Info("chrome closed")
			close(stopped)
		})
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux, doShutdown)
	srv.Handler = buildHandler(cfg, mux, reg)

	setupSignalHandler(doShutdown, func() {
		appCancel()
		browserCancel()
	})

	slog.Info("latte listening", "addr", cfg.ListenAddr(), "shell", cfg.ShellURL(), "proxy", cfg.ProxyOrigin, "codec", cfg.Codec)
	if cfg.Token != "" {
		slog.Info("auth enabled")
	} else {
		slog.Info("auth disabled (set LATTE_TOKEN to enable)")
	}

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		doShutdown()
		return err
	}
	<-stopped
	return nil
}

func setupSignalHandler(shutdownFn func(), forceFn func()) {
	go func() {
		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		go shutdownFn()
		<-sig
		slog.Warn("force shutdown requested")
		forceFn()
		os.Exit(130)
	}()
}
