package view

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestSettersBroadcast(t *testing.T) {
	s := NewShell("latte", "")
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SetAddressBar("https://example.com/")
	evt := recv(t, ch)
	if evt.Kind != EventState || evt.Snapshot.AddressBar != "https://example.com/" {
		t.Errorf("unexpected event %+v", evt)
	}

	s.ShowError("Invalid URL format")
	evt = recv(t, ch)
	if !evt.Snapshot.Error || evt.Snapshot.Tooltip != "Invalid URL format" {
		t.Errorf("unexpected error event %+v", evt)
	}

	s.ClearError()
	evt = recv(t, ch)
	if evt.Snapshot.Error || evt.Snapshot.Tooltip != "" {
		t.Errorf("error not cleared %+v", evt)
	}
}

func TestNoEventWithoutChange(t *testing.T) {
	s := NewShell("latte", "")
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SetTitle("latte")
	s.ClearError()
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %+v", evt)
	default:
	}
}

func TestSnapshot(t *testing.T) {
	s := NewShell("latte", "/favicon.ico")
	s.SetAddressBar("a")
	s.SetInvalid(true)
	s.SetTitle("Docs")
	s.SetFavicon("/d.ico")
	s.SetTitleInput("Docs")
	s.SetFaviconInput("/d.ico")

	want := Snapshot{
		AddressBar:   "a",
		Invalid:      true,
		Title:        "Docs",
		Favicon:      "/d.ico",
		TitleInput:   "Docs",
		FaviconInput: "/d.ico",
	}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}
	if s.AddressBar() != "a" || s.Title() != "Docs" {
		t.Error("accessors disagree with snapshot")
	}
}

func TestReloadAndUnsubscribe(t *testing.T) {
	s := NewShell("latte", "")
	ch, cancel := s.Subscribe()
	if s.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", s.Subscribers())
	}

	s.Reload()
	if evt := recv(t, ch); evt.Kind != EventReload {
		t.Errorf("kind = %s", evt.Kind)
	}

	cancel()
	cancel()
	if s.Subscribers() != 0 {
		t.Errorf("subscribers after cancel = %d", s.Subscribers())
	}
}

func TestConcurrentUpdatesArriveInOrder(t *testing.T) {
	s := NewShell("latte", "")
	s.bufSize = 1024
	ch, cancel := s.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.ShowError("err " + strconv.Itoa(i) + "/" + strconv.Itoa(j))
				s.ClearError()
			}
		}(i)
	}
	wg.Wait()

	var last Event
drain:
	for {
		select {
		case evt := <-ch:
			last = evt
		default:
			break drain
		}
	}
	if diff := cmp.Diff(s.Snapshot(), last.Snapshot); diff != "" {
		t.Errorf("last event is stale (-want +got):\n%s", diff)
	}
	if last.Snapshot.Error {
		t.Error("tooltip reappeared after the final clear")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewShell("latte", "")
	s.bufSize = 1
	_, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.SetAddressBar(string(rune('a' + i)))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
}
