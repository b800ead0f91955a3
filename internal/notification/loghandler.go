package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// sendTimeout bounds how long a logged error may block on notifiers
const sendTimeout = 30 * time.Second

type handledKey struct{}

// MarkHandled returns a context whose error records are not forwarded.
// Callers that send their own event for a failure log with it.
func MarkHandled(ctx context.Context) context.Context {
	return context.WithValue(ctx, handledKey{}, true)
}

func handled(ctx context.Context) bool {
	v, _ := ctx.Value(handledKey{}).(bool)
	return v
}

// LogHandler is a slog.Handler that forwards every error record to the
// configured notification providers before passing it on to next.
// Records below error level are only passed on.
type LogHandler struct {
	next      slog.Handler
	mgr       *Manager
	providers []string
	attrs     []slog.Attr
}

// NewLogHandler wraps next. Passing no providers forwards to every
// notifier registered with mgr at the time of the record.
func NewLogHandler(next slog.Handler, mgr *Manager, providers []string) *LogHandler {
	return &LogHandler{next: next, mgr: mgr, providers: providers}
}

// Enabled reports whether next handles records at level
func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle notifies on error records and passes every record on to next
func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError && h.mgr != nil && !handled(ctx) {
		h.notify(ctx, r)
	}
	return h.next.Handle(ctx, r)
}

func (h *LogHandler) notify(ctx context.Context, r slog.Record) {
	providers := h.providers
	if len(providers) == 0 {
		providers = h.mgr.Names()
	}
	if len(providers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	h.mgr.Notify(ctx, Event{
		Type:      EventErrorLogged,
		Message:   h.format(r),
		Timestamp: r.Time,
	}, providers)
}

// format renders the message followed by key=value attributes
func (h *LogHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)

	write := func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	return b.String()
}

// WithAttrs returns a handler whose notifications include attrs
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler that groups subsequent attributes in next
func (h *LogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}
