package api

// EventType identifies what a stream event carries.
type EventType int

const (
	// EventDelta carries an incremental chunk of assistant text.
	EventDelta EventType = iota
	// EventDone marks the end of a generation. Text, when non-empty, is the
	// backend's authoritative final content and supersedes accumulated deltas.
	EventDone
	// EventError carries a terminal error; no further events follow.
	EventError
)

// Event is one semantic event decoded from a chat response.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream is a finite, single-pass sequence of events for one generation.
// Recv returns io.EOF after the last event. Close aborts the underlying
// request; a subsequent Recv reports context.Canceled.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// ChatRequest is the body of POST /chat/{threadID}.
type ChatRequest struct {
	Model    string `json:"model"`
	Question string `json:"question"`
}

// chatFrame is the JSON payload of one SSE data record, and also the shape
// of the whole body when the backend answers without streaming.
type chatFrame struct {
	Content string `json:"content"`
}

// ThreadPreview is one entry from GET /threads/previews.
type ThreadPreview struct {
	ThreadID           string `json:"thread_id"`
	Title              string `json:"title"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
	MessageCount       int    `json:"message_count"`
	LastMessagePreview string `json:"last_message_preview"`
}

// ModelInfo describes one entry from GET /models.
type ModelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
