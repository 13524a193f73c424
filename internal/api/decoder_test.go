package api

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeSSEIgnoresNonDataLines(t *testing.T) {
	body := strings.NewReader(": keepalive\n\nevent: message\ndata: {\"content\":\"x\"}\n\ndata: [DONE]\n\n")
	events := make(chan Event, 8)

	if err := decodeSSE(context.Background(), body, events, discardLogger()); err != nil {
		t.Fatalf("decodeSSE failed: %v", err)
	}
	close(events)

	var deltas []string
	done := false
	for event := range events {
		switch event.Type {
		case EventDelta:
			deltas = append(deltas, event.Text)
		case EventDone:
			done = true
		}
	}
	if len(deltas) != 1 || deltas[0] != "x" {
		t.Errorf("expected one delta \"x\", got %q", deltas)
	}
	if !done {
		t.Error("expected done event")
	}
}

func TestDecodeSSEEmptyContentSkipped(t *testing.T) {
	body := strings.NewReader("data: {\"content\":\"\"}\n\ndata: {}\n\ndata: [DONE]\n\n")
	events := make(chan Event, 8)

	if err := decodeSSE(context.Background(), body, events, discardLogger()); err != nil {
		t.Fatalf("decodeSSE failed: %v", err)
	}
	close(events)

	for event := range events {
		if event.Type == EventDelta {
			t.Errorf("expected no deltas for empty content, got %q", event.Text)
		}
	}
}

func TestDecodeSSETooManyParseErrors(t *testing.T) {
	var b strings.Builder
	for range 12 {
		b.WriteString("data: {broken\n\n")
	}
	events := make(chan Event, 32)

	err := decodeSSE(context.Background(), strings.NewReader(b.String()), events, discardLogger())
	if err == nil {
		t.Fatal("expected an error once the malformed-record cap is exceeded")
	}
}

func TestDecodeJSONBodyInvalid(t *testing.T) {
	events := make(chan Event, 2)
	if err := decodeJSONBody(strings.NewReader("not json"), events); err == nil {
		t.Fatal("expected a decode error")
	}
}
