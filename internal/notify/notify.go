// Package notify holds the notification sinks the marketplace hands its
// user-facing notices to. Delivery is fire-and-forget: a failing sink never
// affects the command that produced the notice.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type Notification struct {
	// Recipient is the user the notice is addressed to. It may be uuid.Nil
	// when the addressee could not be resolved.
	Recipient uuid.UUID `json:"recipient"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Discard drops every notification.
var Discard Notifier = Func(func(context.Context, Notification) error { return nil })

type Logger struct {
	logger *slog.Logger
}

// NewLogger returns a sink that writes each notification as a structured log record.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"recipient", n.Recipient.String(),
		"title", n.Title,
		"body", n.Body,
	)
	return nil
}

// Recorder keeps every notification in memory. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// Multi delivers to every sink in order. All sinks are tried; their errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
