package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Darkdragonzxs/Proxy/internal/config"
	"github.com/chromedp/chromedp"
)

// InitChrome attaches to CdpURL when set, otherwise launches Chrome with the
// configured binary, profile and flags. The returned cancel tears down both
// the browser and its allocator.
func InitChrome(cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, error) {
	slog.Info("starting chrome", "headless", cfg.Headless, "profile", cfg.ProfileDir, "remote", cfg.CdpURL != "")

	allocCtx, allocCancel := setupAllocator(cfg)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		slog.Error("chrome initialization failed", "err", err)
		return nil, nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	slog.Info("chrome initialized", "headless", cfg.Headless)
	return browserCtx, func() {
		browserCancel()
		allocCancel()
	}, nil
}

func setupAllocator(cfg *config.RuntimeConfig) (context.Context, context.CancelFunc) {
	if cfg.CdpURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), cfg.CdpURL)
	}
	return chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
}

func allocatorOptions(cfg *config.RuntimeConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ChromeBinary != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinary))
	}
	if cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}

	opts = append(opts,
		chromedp.WindowSize(1280, 800),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	for name, value := range parseFlags(cfg.ChromeExtraFlags) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseFlags turns "--a --b=c" into {"a": true, "b": "c"}.
func parseFlags(s string) map[string]any {
	flags := make(map[string]any)
	for _, f := range strings.Fields(s) {
		f = strings.TrimLeft(f, "-")
		if f == "" {
			continue
		}
		if name, value, ok := strings.Cut(f, "="); ok {
			flags[name] = value
		} else {
			flags[f] = true
		}
	}
	return flags
}
