package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"taskman/internal/notify"
)

var (
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#F87171")
	warningColor = lipgloss.Color("#F59E0B")
	infoColor    = lipgloss.Color("#60A5FA")
)

var notificationIcons = map[notify.Kind]string{
	notify.KindSuccess: "✓",
	notify.KindError:   "✗",
	notify.KindWarning: "!",
	notify.KindInfo:    "•",
}

// NotificationSink prints notifications as single styled lines. Colors
// are only emitted when w is a terminal. In quiet mode success and info
// notifications are suppressed.
type NotificationSink struct {
	mu     sync.Mutex
	w      io.Writer
	quiet  bool
	styles map[notify.Kind]lipgloss.Style
}

var _ notify.Sink = (*NotificationSink)(nil)

// NewNotificationSink creates a sink writing to w.
func NewNotificationSink(w io.Writer, quiet bool) *NotificationSink {
	r := lipgloss.NewRenderer(w)
	return &NotificationSink{
		w:     w,
		quiet: quiet,
		styles: map[notify.Kind]lipgloss.Style{
			notify.KindSuccess: r.NewStyle().Foreground(successColor),
			notify.KindError:   r.NewStyle().Foreground(errorColor).Bold(true),
			notify.KindWarning: r.NewStyle().Foreground(warningColor),
			notify.KindInfo:    r.NewStyle().Foreground(infoColor),
		},
	}
}

// Show implements notify.Sink.
func (s *NotificationSink) Show(n notify.Notification) {
	if s.quiet && (n.Kind == notify.KindSuccess || n.Kind == notify.KindInfo) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	icon := notificationIcons[n.Kind]
	if icon == "" {
		icon = notificationIcons[notify.KindInfo]
	}
	style, ok := s.styles[n.Kind]
	if !ok {
		style = s.styles[notify.KindInfo]
	}
	fmt.Fprintln(s.w, style.Render(icon+" "+n.Message))
}

// Hide implements notify.Sink. A printed line cannot be hidden.
func (s *NotificationSink) Hide() {}

// Clear implements notify.Sink.
func (s *NotificationSink) Clear() {}
