package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// collectEvents drains a stream into deltas and reports whether done was
// seen, failing the test on any error.
func collectEvents(t *testing.T, s Stream) (deltas []string, done bool) {
	t.Helper()
	for {
		event, err := s.Recv()
		if err == io.EOF {
			return deltas, done
		}
		if err != nil {
			t.Fatalf("unexpected recv error: %v", err)
		}
		switch event.Type {
		case EventDelta:
			deltas = append(deltas, event.Text)
		case EventDone:
			done = true
		case EventError:
			t.Fatalf("unexpected error event: %v", event.Err)
		}
	}
}

func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
}

func TestStreamChatSSE(t *testing.T) {
	server := sseServer(t,
		"data: {\"content\":\" Hel\"}\n\n",
		"data: {\"content\":\"lo\"}\n\n",
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	stream, err := client.StreamChat(context.Background(), "t1", "Hi", "gemini-2.0-flash")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	deltas, done := collectEvents(t, stream)
	if len(deltas) != 2 || deltas[0] != " Hel" || deltas[1] != "lo" {
		t.Errorf("expected deltas [\" Hel\" \"lo\"], got %q", deltas)
	}
	if !done {
		t.Error("expected a done event")
	}
}

func TestStreamChatFrameSplitAcrossWrites(t *testing.T) {
	// One record delivered in two flushes; the decoder must buffer until
	// the record is complete.
	server := sseServer(t,
		"data: {\"con",
		"tent\":\"hello\"}\n\n",
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	stream, err := client.StreamChat(context.Background(), "t1", "Hi", "m")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	deltas, done := collectEvents(t, stream)
	if len(deltas) != 1 || deltas[0] != "hello" {
		t.Errorf("expected single delta \"hello\", got %q", deltas)
	}
	if !done {
		t.Error("expected a done event")
	}
}

func TestStreamChatMalformedRecordDropped(t *testing.T) {
	server := sseServer(t,
		"data: {\"content\":\"a\"}\n\n",
		"data: {not json}\n\n",
		"data: {\"content\":\"b\"}\n\n",
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	stream, err := client.StreamChat(context.Background(), "t1", "Hi", "m")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	deltas, done := collectEvents(t, stream)
	if len(deltas) != 2 || deltas[0] != "a" || deltas[1] != "b" {
		t.Errorf("expected deltas [a b] around the dropped record, got %q", deltas)
	}
	if !done {
		t.Error("expected a done event")
	}
}

func TestStreamChatMissingSentinelStillFinishes(t *testing.T) {
	server := sseServer(t, "data: {\"content\":\"x\"}\n\n")
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	stream, err := client.StreamChat(context.Background(), "t1", "Hi", "m")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	deltas, done := collectEvents(t, stream)
	if len(deltas) != 1 || deltas[0] != "x" {
		t.Errorf("expected single delta, got %q", deltas)
	}
	if !done {
		t.Error("expected a synthesized done event when the source closes")
	}
}

func TestStreamChatNonStreamingFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"role":"model","content":"hello"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	stream, err := client.StreamChat(context.Background(), "t1", "Hi", "m")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	deltas, done := collectEvents(t, stream)
	if len(deltas) != 1 || deltas[0] != "hello" {
		t.Errorf("expected exactly one delta \"hello\", got %q", deltas)
	}
	if !done {
		t.Error("expected a done event after the fallback delta")
	}
}

func TestStreamChatUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	stream, err := client.StreamChat(context.Background(), "t1", "Hi", "m")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	event, err := stream.Recv()
	if err != nil {
		t.Fatalf("expected an error event, got recv error: %v", err)
	}
	if event.Type != EventError || !errors.Is(event.Err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized event, got %+v", event)
	}
}

func TestStreamChatStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	stream, err := client.StreamChat(context.Background(), "t1", "Hi", "m")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	event, err := stream.Recv()
	if err != nil {
		t.Fatalf("expected an error event, got recv error: %v", err)
	}
	var statusErr *StatusError
	if event.Type != EventError || !errors.As(event.Err, &statusErr) {
		t.Fatalf("expected StatusError event, got %+v", event)
	}
	if statusErr.Code != http.StatusInternalServerError {
		t.Errorf("expected code 500, got %d", statusErr.Code)
	}
}

func TestStreamChatCloseCancelsRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"content\":\"first\"}\n\n")
		flusher.Flush()
		// Hold the stream open until the client aborts.
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	stream, err := client.StreamChat(context.Background(), "t1", "Hi", "m")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}

	event, err := stream.Recv()
	if err != nil || event.Type != EventDelta || event.Text != "first" {
		t.Fatalf("expected first delta, got event=%+v err=%v", event, err)
	}

	stream.Close()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("stream never reported cancellation")
		default:
		}
		event, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
			return
		}
		if event.Type == EventError {
			if !errors.Is(event.Err, context.Canceled) {
				t.Fatalf("expected context.Canceled event, got %v", event.Err)
			}
			return
		}
	}
}

func TestModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("expected /models, got %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"gemini-2.0-flash":{"name":"Gemini 2.0 Flash","description":"Fast"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	models, err := client.Models(context.Background())
	if err != nil {
		t.Fatalf("Models failed: %v", err)
	}
	info, ok := models["gemini-2.0-flash"]
	if !ok || info.Name != "Gemini 2.0 Flash" {
		t.Errorf("unexpected models payload: %+v", models)
	}
}

func TestThreadPreviews(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/previews" {
			t.Errorf("expected /threads/previews, got %s", r.URL.Path)
		}
		fmt.Fprint(w, `[{"thread_id":"t1","title":"hello","message_count":4,"last_message_preview":"hi"}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	previews, err := client.ThreadPreviews(context.Background())
	if err != nil {
		t.Fatalf("ThreadPreviews failed: %v", err)
	}
	if len(previews) != 1 || previews[0].ThreadID != "t1" || previews[0].MessageCount != 4 {
		t.Errorf("unexpected previews: %+v", previews)
	}
}

func TestThreadPreviewsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-token")
	_, err := client.ThreadPreviews(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
