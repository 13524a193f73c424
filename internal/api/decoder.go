package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// doneSentinel terminates a streamed response.
const doneSentinel = "[DONE]"

// maxParseErrors bounds how many malformed data records are tolerated before
// the stream is abandoned. Keepalives and comment lines never count.
const maxParseErrors = 10

// decodeSSE reads `data: <json>` records from body and emits one EventDelta
// per non-empty content field, then EventDone. Records arrive framed as
// `data: ...\n\n`; bufio's line scanning buffers a record split across read
// boundaries until its terminating newline shows up. Malformed JSON payloads
// are dropped with a warning rather than failing the generation.
func decodeSSE(ctx context.Context, body io.Reader, events chan<- Event, logger *slog.Logger) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	parseErrors := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == doneSentinel {
			events <- Event{Type: EventDone}
			return nil
		}

		var frame chatFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			parseErrors++
			logger.Warn("dropping malformed stream record", "error", err, "record", data)
			if parseErrors > maxParseErrors {
				return fmt.Errorf("too many malformed stream records, last: %w", err)
			}
			continue
		}
		if frame.Content == "" {
			continue
		}

		select {
		case events <- Event{Type: EventDelta, Text: frame.Content}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		// An aborted read must stay distinguishable from a network fault so
		// the caller can route it to the stopped path.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}

	// Source closed without the sentinel; the stream is still finite.
	events <- Event{Type: EventDone}
	return nil
}

// decodeJSONBody handles the non-streaming fallback: the entire body is one
// JSON object whose content field becomes a single delta followed by done.
func decodeJSONBody(body io.Reader, events chan<- Event) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var frame chatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if frame.Content != "" {
		events <- Event{Type: EventDelta, Text: frame.Content}
	}
	events <- Event{Type: EventDone}
	return nil
}
