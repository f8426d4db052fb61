package history

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const shell = "http://localhost:9870/"

func stackLen(s *Session) int {
	entries, _ := s.Entries()
	return len(entries)
}

func currentEntry(s *Session) Entry {
	entries, i := s.Entries()
	return entries[i]
}

func TestPushReplace(t *testing.T) {
	s := NewSession(shell)
	if s.Location() != shell || stackLen(s) != 1 {
		t.Fatalf("unexpected initial state %q %d", s.Location(), stackLen(s))
	}

	s.Push(State{URL: "https://a.test/"}, shell+"?url=a")
	s.Push(State{URL: "https://b.test/"}, shell+"?url=b")
	if stackLen(s) != 3 || currentEntry(s).State.URL != "https://b.test/" {
		t.Fatalf("push failed: %+v", currentEntry(s))
	}

	s.Replace(State{URL: "https://c.test/"}, shell+"?url=c")
	if stackLen(s) != 3 {
		t.Errorf("replace must not grow the stack, len=%d", stackLen(s))
	}
	if s.Location() != shell+"?url=c" {
		t.Errorf("location = %q", s.Location())
	}
}

func TestBackForwardFirePopState(t *testing.T) {
	s := NewSession(shell)
	var popped []Entry
	s.OnPopState(func(e Entry) { popped = append(popped, e) })

	if s.Back() {
		t.Error("back at the start of history should report false")
	}
	s.Push(State{URL: "https://a.test/"}, shell+"?url=a")
	s.Push(State{URL: "https://b.test/"}, shell+"?url=b")

	if !s.Back() {
		t.Fatal("back should succeed")
	}
	if !s.Forward() {
		t.Fatal("forward should succeed")
	}
	if s.Forward() {
		t.Error("forward at the end should report false")
	}

	want := []Entry{
		{Location: shell + "?url=a", State: State{URL: "https://a.test/"}},
		{Location: shell + "?url=b", State: State{URL: "https://b.test/"}},
	}
	if diff := cmp.Diff(want, popped); diff != "" {
		t.Errorf("popstate events (-want +got):\n%s", diff)
	}
}

func TestPushTruncatesForward(t *testing.T) {
	s := NewSession(shell)
	s.Push(State{URL: "a"}, shell+"?url=a")
	s.Push(State{URL: "b"}, shell+"?url=b")
	s.Back()
	s.Push(State{URL: "c"}, shell+"?url=c")

	entries, idx := s.Entries()
	if len(entries) != 3 || idx != 2 {
		t.Fatalf("entries=%d idx=%d", len(entries), idx)
	}
	if entries[2].State.URL != "c" || entries[1].State.URL != "a" {
		t.Errorf("unexpected stack %+v", entries)
	}
}

func TestListenerMayUseSession(t *testing.T) {
	s := NewSession(shell)
	s.Push(State{URL: "a"}, shell+"?url=a")
	s.Push(State{URL: "b"}, shell+"?url=b")
	s.OnPopState(func(e Entry) {
		s.Replace(e.State, e.Location+"&seen=1")
	})
	s.Back()
	if s.Location() != shell+"?url=a&seen=1" {
		t.Errorf("location = %q", s.Location())
	}
}

func TestParams(t *testing.T) {
	loc, err := WithParam(shell, "https://example.com/a?b=c d")
	if err != nil {
		t.Fatal(err)
	}
	if loc != shell+"?url=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc+d" {
		t.Errorf("WithParam = %q", loc)
	}
	if got := ParamOf(loc); got != "https://example.com/a?b=c d" {
		t.Errorf("ParamOf = %q", got)
	}

	loc, _ = WithParam(shell+"?url=old&x=1", "new")
	if ParamOf(loc) != "new" {
		t.Errorf("param not overwritten: %q", loc)
	}
	if ParamOf(shell) != "" || ParamOf("%zz://") != "" {
		t.Error("expected empty param")
	}
}
