package chat

import (
	"strings"
	"sync"
	"time"
)

// StoppedMarker is appended to an assistant message when its generation is
// cancelled, so an interrupted reply stays visibly interrupted.
const StoppedMarker = "\n\n*(stopped)*"

// Accumulator owns the ordered, per-thread message lists and is the only
// writer of message state. At most one message per thread is partial, and it
// is always the trailing element.
type Accumulator struct {
	mu      sync.Mutex
	threads map[string]*threadMessages
}

type threadMessages struct {
	messages []Message
	// pending accumulates streamed deltas for the trailing partial message.
	// strings.Builder keeps repeated appends linear.
	pending strings.Builder
	partial bool
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{threads: make(map[string]*threadMessages)}
}

// Register makes a thread id known. Threads come from the backend (via the
// thread cache); the streaming subsystem never creates one.
func (a *Accumulator) Register(threadID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.threads[threadID]; !ok {
		a.threads[threadID] = &threadMessages{}
	}
}

// Known reports whether a thread id has been registered.
func (a *Accumulator) Known(threadID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.threads[threadID]
	return ok
}

// AppendUserMessage appends a finalized user message.
func (a *Accumulator) AppendUserMessage(threadID, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	t.messages = append(t.messages, NewUserMessage(text))
	return nil
}

// BeginAssistantMessage appends a new empty partial assistant message. It is
// the only way a message becomes partial.
func (a *Accumulator) BeginAssistantMessage(threadID, modelID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	if t.partial {
		return ErrAlreadyPartial
	}
	t.messages = append(t.messages, Message{
		Role:      RoleAssistant,
		Model:     modelID,
		CreatedAt: time.Now(),
		Partial:   true,
	})
	t.partial = true
	t.pending.Reset()
	return nil
}

// AppendDelta concatenates text onto the current partial assistant message.
// Without a partial message it is a no-op: a delta that was already in
// flight when the generation ended must not fail anything.
func (a *Accumulator) AppendDelta(threadID, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	if !t.partial {
		return nil
	}
	t.pending.WriteString(text)
	t.messages[len(t.messages)-1].Content = t.pending.String()
	return nil
}

// Finalize seals the partial assistant message. A non-empty finalText is the
// backend's authoritative content and replaces whatever was accumulated.
// Safe no-op when no partial message exists.
func (a *Accumulator) Finalize(threadID, finalText string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	if !t.partial {
		return nil
	}
	last := &t.messages[len(t.messages)-1]
	if finalText != "" {
		last.Content = finalText
	}
	last.Partial = false
	t.partial = false
	t.pending.Reset()
	return nil
}

// MarkStopped seals the partial assistant message as interrupted and appends
// the visible stop marker. Safe no-op when no partial message exists.
func (a *Accumulator) MarkStopped(threadID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	if !t.partial {
		return nil
	}
	last := &t.messages[len(t.messages)-1]
	last.Content += StoppedMarker
	last.Partial = false
	last.Stopped = true
	t.partial = false
	t.pending.Reset()
	return nil
}

// DiscardPartial removes the trailing partial message entirely, leaving no
// half-written reply behind after a transport failure. Safe no-op when no
// partial message exists.
func (a *Accumulator) DiscardPartial(threadID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	if !t.partial {
		return nil
	}
	t.messages = t.messages[:len(t.messages)-1]
	t.partial = false
	t.pending.Reset()
	return nil
}

// Clear empties the thread's message list. Idempotent.
func (a *Accumulator) Clear(threadID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	t.messages = nil
	t.partial = false
	t.pending.Reset()
	return nil
}

// Messages returns a copy of the thread's message list in order.
func (a *Accumulator) Messages(threadID string) ([]Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok {
		return nil, ErrUnknownThread
	}
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out, nil
}

// LastMessage returns the trailing message, if any.
func (a *Accumulator) LastMessage(threadID string) (Message, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[threadID]
	if !ok || len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Reset drops all threads and messages. Invoked explicitly on logout by the
// owning coordinator.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threads = make(map[string]*threadMessages)
}
