// Package notify implements a single-slot, auto-expiring notification
// channel (toasts).
package notify

import (
	"sync"
	"time"
)

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

const (
	// DefaultDisplayDuration is how long a notification stays visible.
	DefaultDisplayDuration = 3000 * time.Millisecond

	// DefaultExitDuration is the gap between hiding and clearing content.
	DefaultExitDuration = 300 * time.Millisecond
)

// Notification is one toast.
type Notification struct {
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// Sink renders notifications. Calls for a single Notifier are serialized
// and made while the Notifier is locked, so a Sink must not call back into it.
type Sink interface {
	// Show displays n, replacing anything currently displayed.
	Show(n Notification)
	// Hide starts the exit phase of the displayed notification.
	Hide()
	// Clear removes the notification content.
	Clear()
}

// Notifier holds at most one notification. A new notification replaces
// the current one; there is no backlog.
type Notifier struct {
	mu      sync.Mutex
	sink    Sink
	display time.Duration
	exit    time.Duration

	current Notification
	visible bool
	gen     uint64
	timer   *time.Timer
	closed  bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithDurations overrides the display and exit durations.
func WithDurations(display, exit time.Duration) Option {
	return func(n *Notifier) {
		n.display = display
		n.exit = exit
	}
}

// New creates a Notifier rendering to sink. A nil sink discards output.
func New(sink Sink, opts ...Option) *Notifier {
	if sink == nil {
		sink = discardSink{}
	}
	n := &Notifier{
		sink:    sink,
		display: DefaultDisplayDuration,
		exit:    DefaultExitDuration,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify shows a notification, replacing the current one and restarting
// the display timer. Notify on a closed Notifier is a no-op.
func (n *Notifier) Notify(message string, kind Kind) {
	if kind == "" {
		kind = KindInfo
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.stopTimerLocked()
	n.gen++
	gen := n.gen
	n.current = Notification{Message: message, Kind: kind}
	n.visible = true
	n.sink.Show(n.current)
	n.timer = time.AfterFunc(n.display, func() { n.hide(gen) })
}

// hide ends the display phase and schedules the clear phase.
func (n *Notifier) hide(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || gen != n.gen || !n.visible {
		return
	}
	n.visible = false
	n.sink.Hide()
	n.timer = time.AfterFunc(n.exit, func() { n.clear(gen) })
}

func (n *Notifier) clear(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || gen != n.gen {
		return
	}
	n.clearLocked()
}

func (n *Notifier) clearLocked() {
	if n.current == (Notification{}) {
		return
	}
	n.current = Notification{}
	n.visible = false
	n.sink.Clear()
}

// Dismiss hides and clears the current notification immediately.
// It is idempotent.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.stopTimerLocked()
	n.gen++
	if n.visible {
		n.visible = false
		n.sink.Hide()
	}
	n.clearLocked()
}

// Current returns the notification content and whether it is visible.
// Content may be non-empty while hidden during the exit phase.
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.visible
}

// Close cancels pending timers. Later calls to Notify are ignored.
// It is idempotent.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.stopTimerLocked()
	n.closed = true
}

func (n *Notifier) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

type discardSink struct{}

func (discardSink) Show(Notification) {}
func (discardSink) Hide()             {}
func (discardSink) Clear()            {}
