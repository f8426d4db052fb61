// Package view holds the outer shell document: address bar, error tooltip,
// title, favicon and the settings inputs. Every change is broadcast to
// subscribers so connected shell pages can re-render.
package view

import (
	"sync"
	"time"
)

const (
	EventState  = "state"
	EventReload = "reload"
)

type Snapshot struct {
	AddressBar   string `json:"addressBar"`
	Invalid      bool   `json:"invalid"`
	Error        bool   `json:"error"`
	Tooltip      string `json:"tooltip"`
	Title        string `json:"title"`
	Favicon      string `json:"favicon"`
	TitleInput   string `json:"titleInput"`
	FaviconInput string `json:"faviconInput"`
}

type Event struct {
	Kind     string    `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
	At       time.Time `json:"at"`
}

type Shell struct {
	// sendMu orders broadcasts the same way as the changes they carry.
	sendMu  sync.Mutex
	mu      sync.RWMutex
	snap    Snapshot
	subs    map[chan Event]struct{}
	bufSize int
}

// NewShell starts with the given document title and favicon href.
func NewShell(title, favicon string) *Shell {
	return &Shell{
		snap:    Snapshot{Title: title, Favicon: favicon},
		subs:    make(map[chan Event]struct{}),
		bufSize: 64,
	}
}

func (s *Shell) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe returns a channel of events and a func that unsubscribes. Slow
// subscribers miss events rather than block the shell.
func (s *Shell) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, s.bufSize)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Shell) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Reload asks every connected page to reload itself.
func (s *Shell) Reload() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.mu.RLock()
	evt := Event{Kind: EventReload, Snapshot: s.snap, At: time.Now()}
	s.mu.RUnlock()
	s.broadcast(evt)
}

func (s *Shell) update(fn func(*Snapshot)) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.mu.Lock()
	before := s.snap
	fn(&s.snap)
	if s.snap == before {
		s.mu.Unlock()
		return
	}
	evt := Event{Kind: EventState, Snapshot: s.snap, At: time.Now()}
	s.mu.Unlock()
	s.broadcast(evt)
}

func (s *Shell) broadcast(evt Event) {
	s.mu.RLock()
	chans := make([]chan Event, 0, len(s.subs))
	for ch := range s.subs {
		chans = append(chans, ch)
	}
	s.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (s *Shell) AddressBar() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.AddressBar
}

func (s *Shell) SetAddressBar(v string) {
	s.update(func(sn *Snapshot) { sn.AddressBar = v })
}

func (s *Shell) SetInvalid(invalid bool) {
	s.update(func(sn *Snapshot) { sn.Invalid = invalid })
}

// ShowError flags the address bar and fills the tooltip.
func (s *Shell) ShowError(msg string) {
	s.update(func(sn *Snapshot) {
		sn.Error = true
		sn.Tooltip = msg
	})
}

func (s *Shell) ClearError() {
	s.update(func(sn *Snapshot) {
		sn.Error = false
		sn.Tooltip = ""
	})
}

func (s *Shell) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Title
}

func (s *Shell) SetTitle(title string) {
	s.update(func(sn *Snapshot) { sn.Title = title })
}

func (s *Shell) SetFavicon(href string) {
	s.update(func(sn *Snapshot) { sn.Favicon = href })
}

func (s *Shell) SetTitleInput(v string) {
	s.update(func(sn *Snapshot) { sn.TitleInput = v })
}

func (s *Shell) SetFaviconInput(v string) {
	s.update(func(sn *Snapshot) { sn.FaviconInput = v })
}
