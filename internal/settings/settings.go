// Package settings persists a custom tab title and favicon and applies them
// to the shell document.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	KeyTitle   = "customTitle"
	KeyFavicon = "customFavicon"

	DefaultTitle = "latte"
)

type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Document is what the settings apply to.
type Document interface {
	SetTitle(title string)
	SetFavicon(href string)
}

// Form mirrors the two settings inputs.
type Form interface {
	SetTitleInput(value string)
	SetFaviconInput(value string)
}

// Preference is the persisted pair; empty means unset.
type Preference struct {
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	FaviconURL string `json:"faviconUrl,omitempty" yaml:"faviconUrl,omitempty"`
}

type Panel struct {
	store        Store
	doc          Document
	form         Form
	defaultTitle string
}

func NewPanel(store Store, doc Document, form Form, defaultTitle string) *Panel {
	if defaultTitle == "" {
		defaultTitle = DefaultTitle
	}
	return &Panel{store: store, doc: doc, form: form, defaultTitle: defaultTitle}
}

func (p *Panel) DefaultTitle() string { return p.defaultTitle }

// LoadSaved applies whatever is persisted. A missing value leaves the
// document and the input alone.
func (p *Panel) LoadSaved() {
	if title, ok := p.store.Get(KeyTitle); ok && title != "" {
		p.doc.SetTitle(title)
		p.form.SetTitleInput(title)
	}
	if favicon, ok := p.store.Get(KeyFavicon); ok && favicon != "" {
		p.doc.SetFavicon(favicon)
		p.form.SetFaviconInput(favicon)
	}
}

// Apply applies and persists each non-empty value. An empty value keeps the
// current setting; use Reset to clear.
func (p *Panel) Apply(title, faviconURL string) error {
	var errs []error
	if title != "" {
		p.doc.SetTitle(title)
		if err := p.store.Set(KeyTitle, title); err != nil {
			errs = append(errs, fmt.Errorf("save title: %w", err))
		}
	}
	if faviconURL != "" {
		p.doc.SetFavicon(faviconURL)
		if err := p.store.Set(KeyFavicon, faviconURL); err != nil {
			errs = append(errs, fmt.Errorf("save favicon: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		slog.Error("settings apply", "err", err)
	}
	return err
}

// Reset restores the default title and forgets both values. The favicon
// href is left as it is.
func (p *Panel) Reset() error {
	p.doc.SetTitle(p.defaultTitle)
	err := errors.Join(p.store.Delete(KeyTitle), p.store.Delete(KeyFavicon))
	p.form.SetTitleInput("")
	p.form.SetFaviconInput("")
	if err != nil {
		slog.Error("settings reset", "err", err)
	}
	return err
}

func (p *Panel) Current() Preference {
	var pref Preference
	pref.Title, _ = p.store.Get(KeyTitle)
	pref.FaviconURL, _ = p.store.Get(KeyFavicon)
	return pref
}
