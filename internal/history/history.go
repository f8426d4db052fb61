// Package history is a session-history stack for the shell page: entries
// carry the outer page address and a state object, and moving through the
// stack fires popstate listeners.
package history

import (
	"net/url"
	"sync"
)

// Param is the query parameter on the outer address that records the page
// being shown, so a reload or back/forward can recover it.
const Param = "url"

type State struct {
	URL string `json:"url"`
}

type Entry struct {
	Location string `json:"location"`
	State    State  `json:"state"`
}

type PopStateFunc func(Entry)

type Session struct {
	mu        sync.Mutex
	entries   []Entry
	index     int
	listeners []PopStateFunc
}

func NewSession(initial string) *Session {
	return &Session{entries: []Entry{{Location: initial}}}
}

// OnPopState registers fn to run after Back or Forward moves the cursor.
func (s *Session) OnPopState(fn PopStateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[s.index].Location
}

// Push drops any forward entries and appends a new current entry.
func (s *Session) Push(state State, location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries[:s.index+1], Entry{Location: location, State: state})
	s.index = len(s.entries) - 1
}

func (s *Session) Replace(state State, location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[s.index] = Entry{Location: location, State: state}
}

// Back reports whether there was an entry to go back to.
func (s *Session) Back() bool {
	return s.move(-1)
}

// Forward reports whether there was an entry to go forward to.
func (s *Session) Forward() bool {
	return s.move(1)
}

func (s *Session) move(delta int) bool {
	s.mu.Lock()
	next := s.index + delta
	if next < 0 || next >= len(s.entries) {
		s.mu.Unlock()
		return false
	}
	s.index = next
	e := s.entries[next]
	listeners := append([]PopStateFunc(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
	return true
}

// Entries returns a copy of the stack and the cursor position.
func (s *Session) Entries() ([]Entry, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...), s.index
}

// WithParam returns location with the url query parameter set to target.
func WithParam(location, target string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(Param, target)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParamOf returns the url query parameter of location, or "".
func ParamOf(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get(Param)
}
