package notify

import (
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
	shown  []Notification
}

func (s *recordingSink) Show(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "show:"+n.Message)
	s.shown = append(s.shown, n)
}

func (s *recordingSink) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "hide")
}

func (s *recordingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "clear")
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func equalEvents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNotify_TwoPhaseExpiry(t *testing.T) {
	sink := &recordingSink{}
	n := New(sink, WithDurations(20*time.Millisecond, 10*time.Millisecond))
	defer n.Close()

	n.Notify("saved", KindSuccess)

	got, visible := n.Current()
	if !visible || got.Message != "saved" || got.Kind != KindSuccess {
		t.Fatalf("expected visible success notification, got %+v visible=%v", got, visible)
	}

	waitFor(t, func() bool { return len(sink.Events()) == 3 })

	want := []string{"show:saved", "hide", "clear"}
	if events := sink.Events(); !equalEvents(events, want) {
		t.Errorf("expected %v, got %v", want, events)
	}
	if got, visible := n.Current(); visible || got != (Notification{}) {
		t.Errorf("expected cleared slot, got %+v visible=%v", got, visible)
	}
}

func TestNotify_LatestWins(t *testing.T) {
	sink := &recordingSink{}
	n := New(sink, WithDurations(50*time.Millisecond, 10*time.Millisecond))
	defer n.Close()

	n.Notify("first", KindInfo)
	n.Notify("second", KindWarning)

	got, _ := n.Current()
	if got.Message != "second" {
		t.Errorf("expected newest notification, got %q", got.Message)
	}

	waitFor(t, func() bool {
		e := sink.Events()
		return len(e) > 0 && e[len(e)-1] == "clear"
	})

	// The first notification's timers were cancelled: one hide, one clear.
	want := []string{"show:first", "show:second", "hide", "clear"}
	if events := sink.Events(); !equalEvents(events, want) {
		t.Errorf("expected %v, got %v", want, events)
	}
}

func TestNotify_DefaultKindIsInfo(t *testing.T) {
	n := New(nil)
	defer n.Close()

	n.Notify("hello", "")
	got, _ := n.Current()
	if got.Kind != KindInfo {
		t.Errorf("expected info kind, got %q", got.Kind)
	}
}

func TestDismiss_Idempotent(t *testing.T) {
	sink := &recordingSink{}
	n := New(sink, WithDurations(time.Hour, time.Hour))
	defer n.Close()

	n.Notify("bye", KindInfo)
	n.Dismiss()
	n.Dismiss()

	want := []string{"show:bye", "hide", "clear"}
	if events := sink.Events(); !equalEvents(events, want) {
		t.Errorf("expected %v, got %v", want, events)
	}
}

func TestClose_CancelsTimers(t *testing.T) {
	sink := &recordingSink{}
	n := New(sink, WithDurations(10*time.Millisecond, 10*time.Millisecond))

	n.Notify("pending", KindInfo)
	n.Close()
	n.Close()

	time.Sleep(50 * time.Millisecond)

	want := []string{"show:pending"}
	if events := sink.Events(); !equalEvents(events, want) {
		t.Errorf("expected timers cancelled, got %v", events)
	}

	n.Notify("after close", KindInfo)
	if events := sink.Events(); len(events) != 1 {
		t.Errorf("expected notify after close to be ignored, got %v", events)
	}
}
