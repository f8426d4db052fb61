package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// BindingName is the page function the frame script posts through.
const BindingName = "__latte_post"

// Events receives what happens inside the frame. Uncaught exceptions,
// including unhandled promise rejections, arrive as Rejection. Callbacks run on their own
// goroutine and may call back into the Frame. Nil callbacks are skipped.
type Events struct {
	Load      func()
	Error     func()
	Rejection func(reason string)
	Message   func(kind, url string)
}

// Frame is the browser tab the proxied pages load into.
type Frame struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewFrame opens a tab in the browser and installs script into every
// document it loads.
func NewFrame(browserCtx context.Context, script string) (*Frame, error) {
	ctx, cancel := chromedp.NewContext(browserCtx)
	err := chromedp.Run(ctx,
		network.Enable(),
		runtime.AddBinding(BindingName),
		chromedp.ActionFunc(func(c context.Context) error {
			if script == "" {
				return nil
			}
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(c)
			return err
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open frame tab: %w", err)
	}
	return &Frame{ctx: ctx, cancel: cancel}, nil
}

// Context is the tab context, for callers that drive CDP directly.
func (f *Frame) Context() context.Context { return f.ctx }

func (f *Frame) Close() { f.cancel() }

// run executes actions on the tab, aborting when ctx is done.
func (f *Frame) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// SetSource starts navigation and returns once Chrome accepted it, without
// waiting for the load event.
func (f *Frame) SetSource(ctx context.Context, src string) error {
	return f.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(c, page.CommandNavigate, page.Navigate(src), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return errors.New(res.ErrorText)
		}
		return nil
	}))
}

func (f *Frame) Source(ctx context.Context) (string, error) {
	var loc string
	err := f.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (f *Frame) Title(ctx context.Context) (string, error) {
	var title string
	err := f.run(ctx, chromedp.Title(&title))
	return title, err
}

// Listen forwards tab events to ev until the tab closes.
func (f *Frame) Listen(ev Events) {
	chromedp.ListenTarget(f.ctx, func(e any) {
		switch e := e.(type) {
		case *page.EventLoadEventFired:
			dispatch(ev.Load)
		case *network.EventLoadingFailed:
			if e.Type == network.ResourceTypeDocument && !e.Canceled {
				slog.Warn("frame load failed", "err", e.ErrorText)
				dispatch(ev.Error)
			}
		case *runtime.EventExceptionThrown:
			if ev.Rejection != nil && e.ExceptionDetails != nil {
				go ev.Rejection(exceptionText(e.ExceptionDetails))
			}
		case *runtime.EventBindingCalled:
			if e.Name != BindingName {
				return
			}
			msg, err := parseBinding(e.Payload)
			if err != nil {
				slog.Debug("frame binding payload", "err", err)
				return
			}
			if ev.Message != nil {
				go ev.Message(msg.Type, msg.URL)
			}
		}
	})
}

func dispatch(fn func()) {
	if fn != nil {
		go fn()
	}
}

func exceptionText(d *runtime.ExceptionDetails) string {
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Text + " " + d.Exception.Description
	}
	return d.Text
}

type bindingMessage struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

func parseBinding(payload string) (bindingMessage, error) {
	var msg bindingMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, err
	}
	if msg.Type == "" {
		return msg, errors.New("missing message type")
	}
	return msg, nil
}
