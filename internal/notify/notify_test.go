package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()

	concurrency := 10
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.Notify(ctx, Notification{Recipient: uuid.New(), Title: "t"}); err != nil {
				t.Errorf("Notify: %v", err)
			}
		}()
	}
	wg.Wait()

	sent := rec.Sent()
	if len(sent) != concurrency {
		t.Fatalf("Expected %d notifications, got %d", concurrency, len(sent))
	}

	sent[0].Title = "changed"
	if rec.Sent()[0].Title != "t" {
		t.Error("Sent should return a copy")
	}

	rec.Reset()
	if len(rec.Sent()) != 0 {
		t.Error("Expected no notifications after reset")
	}
}

func TestMultiTriesEverySink(t *testing.T) {
	first := &Recorder{}
	last := &Recorder{}
	errDown := errors.New("sink down")

	multi := Multi{
		first,
		Func(func(context.Context, Notification) error { return errDown }),
		last,
	}

	err := multi.Notify(context.Background(), Notification{Title: "Welcome"})
	if !errors.Is(err, errDown) {
		t.Errorf("Expected joined sink error, got: %v", err)
	}
	if len(first.Sent()) != 1 || len(last.Sent()) != 1 {
		t.Error("Every sink should receive the notification")
	}

	if err := (Multi{Discard}).Notify(context.Background(), Notification{}); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

func TestLoggerWritesRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	recipient := uuid.New()

	if err := sink.Notify(context.Background(), Notification{
		Recipient: recipient,
		Title:     "New Message",
		Body:      "You have a new message from Ann",
	}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"notification", recipient.String(), `title="New Message"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %q, got %q", want, out)
		}
	}
}
