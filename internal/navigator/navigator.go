// Package navigator drives the proxied content frame from the address bar
// and keeps the address bar, session history and document title in step
// with what the frame shows.
package navigator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Darkdragonzxs/Proxy/internal/history"
	"github.com/Darkdragonzxs/Proxy/internal/proxycodec"
	"github.com/Darkdragonzxs/Proxy/internal/urlbar"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MsgFrameLoadFailed = "Failed to load content"
	MsgCORS            = "CORS Error - Reconnecting..."

	// MessageTypeUpdate is posted by the proxied page when it navigates
	// itself.
	MessageTypeUpdate = "uv_update"

	DefaultErrorClearDelay = 3 * time.Second
	DefaultCorsReloadDelay = 2 * time.Second
)

// Frame is the embedded content frame.
type Frame interface {
	// SetSource starts navigating the frame; it does not wait for load.
	SetSource(ctx context.Context, src string) error
	Source(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

// ServiceWorker reports whether the proxy's worker is registered and able
// to serve prefixed requests.
type ServiceWorker interface {
	Ready(ctx context.Context) error
}

type History interface {
	Location() string
	Push(state history.State, location string)
	Replace(state history.State, location string)
	Back() bool
	Forward() bool
}

type AddressBar interface {
	AddressBar() string
	SetAddressBar(value string)
	SetInvalid(invalid bool)
}

type ErrorDisplay interface {
	ShowError(msg string)
	ClearError()
}

type Document interface {
	SetTitle(title string)
}

// Reloader performs a full reload of the shell page.
type Reloader interface {
	Reload()
}

type ReloaderFunc func()

func (f ReloaderFunc) Reload() { f() }

// AfterFunc schedules f after d. Scheduled calls are never cancelled.
type AfterFunc func(d time.Duration, f func())

func timeAfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Message is a window message from the proxied page.
type Message struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// NavigationSetupError covers everything that can fail before the frame
// source is assigned: worker readiness, encoding, the assignment itself.
type NavigationSetupError struct {
	URL string
	Err error
}

func (e *NavigationSetupError) Error() string { return e.Err.Error() }

func (e *NavigationSetupError) Unwrap() error { return e.Err }

type State struct {
	CurrentURL           string `json:"currentUrl"`
	NavigationInProgress bool   `json:"navigationInProgress"`
}

type Options struct {
	Frame         Frame
	ServiceWorker ServiceWorker
	History       History
	Bar           AddressBar
	Errors        ErrorDisplay
	Document      Document
	Reloader      Reloader
	Codec         proxycodec.Codec

	// ProxyOrigin prefixes relative codec prefixes.
	ProxyOrigin string
	Formatter   urlbar.Formatter
	// AppName is appended to the frame's title on load.
	AppName string

	ErrorClearDelay time.Duration
	CorsReloadDelay time.Duration
	AfterFunc       AfterFunc
	Registerer      prometheus.Registerer
}

type Manager struct {
	frame     Frame
	sw        ServiceWorker
	history   History
	bar       AddressBar
	errors    ErrorDisplay
	doc       Document
	reloader  Reloader
	codec     proxycodec.Codec
	origin    string
	formatter urlbar.Formatter
	appName   string

	errorClearDelay time.Duration
	corsReloadDelay time.Duration
	afterFunc       AfterFunc

	inProgress   atomic.Bool
	mu           sync.Mutex
	lastKnownURL string

	navigations *prometheus.CounterVec
}

func New(o Options) *Manager {
	m := &Manager{
		frame:           o.Frame,
		sw:              o.ServiceWorker,
		history:         o.History,
		bar:             o.Bar,
		errors:          o.Errors,
		doc:             o.Document,
		reloader:        o.Reloader,
		codec:           o.Codec,
		origin:          o.ProxyOrigin,
		formatter:       o.Formatter,
		appName:         o.AppName,
		errorClearDelay: o.ErrorClearDelay,
		corsReloadDelay: o.CorsReloadDelay,
		afterFunc:       o.AfterFunc,
	}
	if m.codec == nil {
		m.codec = proxycodec.XOR(proxycodec.DefaultPrefix)
	}
	if m.appName == "" {
		m.appName = "latte"
	}
	if m.errorClearDelay <= 0 {
		m.errorClearDelay = DefaultErrorClearDelay
	}
	if m.corsReloadDelay <= 0 {
		m.corsReloadDelay = DefaultCorsReloadDelay
	}
	if m.afterFunc == nil {
		m.afterFunc = timeAfterFunc
	}

	r := o.Registerer
	if r == nil {
		r = prometheus.NewRegistry()
	}
	m.navigations = promauto.With(r).NewCounterVec(prometheus.CounterOpts{
		Namespace: "latte",
		Name:      "navigations_total",
		Help:      "Navigation requests by outcome: ok, failed or dropped.",
	}, []string{"result"})
	return m
}

func (m *Manager) State() State {
	return State{
		CurrentURL:           m.LastKnownURL(),
		NavigationInProgress: m.inProgress.Load(),
	}
}

func (m *Manager) LastKnownURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastKnownURL
}

// HandleInput runs on every edit of the address bar.
func (m *Manager) HandleInput(value string) {
	m.ClearError()
	m.Validate(value)
}

// Validate flags the address bar invalid when value would not format.
// Empty input is left alone.
func (m *Manager) Validate(value string) {
	if value == "" {
		return
	}
	m.bar.SetInvalid(!m.formatter.Valid(value))
}

// HandleSubmit formats the address bar input and navigates to it with a
// new history entry.
func (m *Manager) HandleSubmit(ctx context.Context, value string) (bool, error) {
	input := strings.TrimSpace(value)
	if input == "" {
		return false, nil
	}
	target, err := m.formatter.Format(input)
	if err != nil {
		m.ShowError(err.Error())
		return false, err
	}
	return m.Navigate(ctx, target, true)
}

// Navigate points the frame at the proxied form of rawURL. While another
// navigation is being set up the call returns (false, nil) and does
// nothing. The guard only covers setup, not the page load.
func (m *Manager) Navigate(ctx context.Context, rawURL string, pushHistory bool) (bool, error) {
	if !m.inProgress.CompareAndSwap(false, true) {
		m.navigations.WithLabelValues("dropped").Inc()
		slog.Debug("navigation dropped", "url", rawURL)
		return false, nil
	}
	defer m.inProgress.Store(false)

	if err := m.setup(ctx, rawURL, pushHistory); err != nil {
		setupErr := &NavigationSetupError{URL: rawURL, Err: err}
		m.ShowError(setupErr.Error())
		m.navigations.WithLabelValues("failed").Inc()
		slog.Error("navigation failed", "url", rawURL, "err", err)
		return true, setupErr
	}

	m.ClearError()
	m.navigations.WithLabelValues("ok").Inc()
	slog.Info("navigate", "url", rawURL, "push", pushHistory)
	return true, nil
}

func (m *Manager) setup(ctx context.Context, rawURL string, pushHistory bool) error {
	if m.sw != nil {
		if err := m.sw.Ready(ctx); err != nil {
			return err
		}
	}

	target, err := proxycodec.Target(m.codec, m.origin, rawURL)
	if err != nil {
		return err
	}
	if err := m.frame.SetSource(ctx, target); err != nil {
		return fmt.Errorf("frame: %w", err)
	}

	if rawURL != m.LastKnownURL() {
		return m.updateURLDisplay(rawURL, pushHistory)
	}
	return nil
}

// updateURLDisplay shows u in the address bar and records it on the
// history entry, both as state and as the url query parameter.
func (m *Manager) updateURLDisplay(u string, pushHistory bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u == m.lastKnownURL {
		return nil
	}

	loc, err := history.WithParam(m.history.Location(), u)
	if err != nil {
		return fmt.Errorf("history location: %w", err)
	}

	m.lastKnownURL = u
	m.bar.SetAddressBar(u)
	if pushHistory {
		m.history.Push(history.State{URL: u}, loc)
	} else {
		m.history.Replace(history.State{URL: u}, loc)
	}
	return nil
}

// ShowError displays msg and clears it after the error delay. The clear is
// not tied to msg: an older timer can clear a newer message early.
func (m *Manager) ShowError(msg string) {
	m.errors.ShowError(msg)
	m.afterFunc(m.errorClearDelay, m.ClearError)
}

func (m *Manager) ClearError() {
	m.errors.ClearError()
}

// HandleFrameLoad reflects a finished frame load back into the address bar
// (without a new history entry) and the document title.
func (m *Manager) HandleFrameLoad(ctx context.Context) {
	m.ClearError()

	src, err := m.frame.Source(ctx)
	if err == nil && src != "" && !strings.HasPrefix(src, "about:") {
		if decoded := proxycodec.Original(m.codec, src); decoded != "" {
			if err := m.updateURLDisplay(decoded, false); err != nil {
				slog.Warn("frame load: update display", "url", decoded, "err", err)
			}
		}
	}

	// Cross-origin frames may refuse; the title is cosmetic.
	if title, err := m.frame.Title(ctx); err == nil && title != "" {
		m.doc.SetTitle(title + " - " + m.appName)
	}
}

func (m *Manager) HandleFrameError() {
	m.ShowError(MsgFrameLoadFailed)
}

// HandleFrameHover empties the address bar unless a navigation is being
// set up.
func (m *Manager) HandleFrameHover() {
	if !m.inProgress.Load() {
		m.bar.SetAddressBar("")
	}
}

// HandleMessage applies uv_update messages from the proxied page as a new
// history entry. Other messages are ignored.
func (m *Manager) HandleMessage(msg Message) error {
	if msg.Type != MessageTypeUpdate || msg.URL == "" {
		return nil
	}
	return m.updateURLDisplay(msg.URL, true)
}

// Back steps the session history back; the history's popstate listener
// does the re-navigation.
func (m *Manager) Back() bool {
	return m.history.Back()
}

func (m *Manager) Forward() bool {
	return m.history.Forward()
}

// HandlePopState re-navigates to the url recorded on the current history
// entry without adding an entry.
func (m *Manager) HandlePopState(ctx context.Context) {
	if u := history.ParamOf(m.history.Location()); u != "" {
		_, _ = m.Navigate(ctx, u, false)
	}
}

// HandleUnhandledRejection recovers from CORS failures by reloading the
// whole shell after a delay. It reports whether a reload was scheduled.
func (m *Manager) HandleUnhandledRejection(reason string) bool {
	if !strings.Contains(reason, "CORS") {
		return false
	}
	m.ShowError(MsgCORS)
	if m.reloader != nil {
		m.afterFunc(m.corsReloadDelay, m.reloader.Reload)
	}
	return true
}

// HandleInitialLoad restores the page recorded in the shell address.
func (m *Manager) HandleInitialLoad(ctx context.Context) (bool, error) {
	u := history.ParamOf(m.history.Location())
	if u == "" {
		return false, nil
	}
	m.bar.SetAddressBar(u)
	return m.Navigate(ctx, u, false)
}

// HandleReload re-navigates to the page recorded in the shell address.
func (m *Manager) HandleReload(ctx context.Context) (bool, error) {
	u := history.ParamOf(m.history.Location())
	if u == "" {
		return false, nil
	}
	return m.Navigate(ctx, u, false)
}
