package settings

import (
	"errors"
	"testing"

	"github.com/Darkdragonzxs/Proxy/internal/kvstore"
)

type fakeDoc struct {
	title, favicon       string
	titleSet, iconSet    int
	titleInput, favInput string
}

func (d *fakeDoc) SetTitle(t string)        { d.title = t; d.titleSet++ }
func (d *fakeDoc) SetFavicon(h string)      { d.favicon = h; d.iconSet++ }
func (d *fakeDoc) SetTitleInput(v string)   { d.titleInput = v }
func (d *fakeDoc) SetFaviconInput(v string) { d.favInput = v }

type failingStore struct{ *kvstore.Memory }

func (failingStore) Set(string, string) error { return errors.New("disk full") }
func (failingStore) Delete(string) error      { return errors.New("disk full") }

func newPanel(s Store) (*Panel, *fakeDoc) {
	d := &fakeDoc{}
	return NewPanel(s, d, d, ""), d
}

func TestLoadSaved_Empty(t *testing.T) {
	p, d := newPanel(kvstore.NewMemory())
	p.LoadSaved()
	if d.titleSet != 0 || d.iconSet != 0 {
		t.Errorf("nothing should be applied, got title=%d icon=%d", d.titleSet, d.iconSet)
	}
}

func TestLoadSaved_Present(t *testing.T) {
	s := kvstore.NewMemory()
	_ = s.Set(KeyTitle, "Classes")
	_ = s.Set(KeyFavicon, "https://x.test/c.ico")

	p, d := newPanel(s)
	p.LoadSaved()
	if d.title != "Classes" || d.titleInput != "Classes" {
		t.Errorf("title not applied: %+v", d)
	}
	if d.favicon != "https://x.test/c.ico" || d.favInput != "https://x.test/c.ico" {
		t.Errorf("favicon not applied: %+v", d)
	}
}

func TestLoadSaved_OnlyFavicon(t *testing.T) {
	s := kvstore.NewMemory()
	_ = s.Set(KeyFavicon, "https://x.test/c.ico")
	p, d := newPanel(s)
	p.LoadSaved()
	if d.titleSet != 0 {
		t.Error("title should be untouched")
	}
	if d.favicon != "https://x.test/c.ico" {
		t.Errorf("favicon = %q", d.favicon)
	}
}

func TestApply(t *testing.T) {
	s := kvstore.NewMemory()
	p, d := newPanel(s)
	if err := p.Apply("Docs", "https://x.test/d.ico"); err != nil {
		t.Fatal(err)
	}
	if d.title != "Docs" || d.favicon != "https://x.test/d.ico" {
		t.Errorf("not applied live: %+v", d)
	}
	if got := p.Current(); got != (Preference{Title: "Docs", FaviconURL: "https://x.test/d.ico"}) {
		t.Errorf("Current() = %+v", got)
	}
}

func TestApply_EmptyKeepsExisting(t *testing.T) {
	s := kvstore.NewMemory()
	_ = s.Set(KeyTitle, "Old")
	_ = s.Set(KeyFavicon, "https://x.test/old.ico")
	p, d := newPanel(s)

	if err := p.Apply("", ""); err != nil {
		t.Fatal(err)
	}
	if d.titleSet != 0 || d.iconSet != 0 {
		t.Error("empty inputs must not change the document")
	}
	if v, _ := s.Get(KeyTitle); v != "Old" {
		t.Errorf("title cleared by empty save: %q", v)
	}

	if err := p.Apply("", "https://x.test/new.ico"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Get(KeyTitle); v != "Old" {
		t.Errorf("title changed by favicon-only save: %q", v)
	}
	if v, _ := s.Get(KeyFavicon); v != "https://x.test/new.ico" {
		t.Errorf("favicon = %q", v)
	}
}

func TestApply_StoreFailure(t *testing.T) {
	p, d := newPanel(failingStore{kvstore.NewMemory()})
	err := p.Apply("Docs", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if d.title != "Docs" {
		t.Error("live change should still be applied")
	}
}

func TestReset(t *testing.T) {
	for _, seed := range []map[string]string{
		{},
		{KeyTitle: "A"},
		{KeyTitle: "A", KeyFavicon: "https://x.test/a.ico"},
	} {
		s := kvstore.NewMemory()
		for k, v := range seed {
			_ = s.Set(k, v)
		}
		p, d := newPanel(s)
		d.favicon = "https://x.test/current.ico"
		d.titleInput, d.favInput = "typed", "typed"

		if err := p.Reset(); err != nil {
			t.Fatal(err)
		}
		if d.title != DefaultTitle {
			t.Errorf("title = %q, want %q", d.title, DefaultTitle)
		}
		if _, ok := s.Get(KeyTitle); ok {
			t.Error("title key survived reset")
		}
		if _, ok := s.Get(KeyFavicon); ok {
			t.Error("favicon key survived reset")
		}
		if d.titleInput != "" || d.favInput != "" {
			t.Error("inputs not cleared")
		}
		if d.favicon != "https://x.test/current.ico" {
			t.Error("reset must not touch the favicon href")
		}
	}
}

func TestReset_CustomDefault(t *testing.T) {
	d := &fakeDoc{}
	p := NewPanel(kvstore.NewMemory(), d, d, "mocha")
	_ = p.Reset()
	if d.title != "mocha" || p.DefaultTitle() != "mocha" {
		t.Errorf("title = %q", d.title)
	}
}
