package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/avlane/chatterm/internal/api"
)

// State is the externally visible generation state.
type State int

const (
	// StateIdle means no session exists; Start is the only valid entry.
	StateIdle State = iota
	// StateSending means the transport request is issued but no delta has
	// arrived yet.
	StateSending
	// StateStreaming means the assistant message is materialized and deltas
	// are being applied.
	StateStreaming
	// StateStopping means cancellation was raised and the transport is
	// unwinding. Always resolves to StateIdle.
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// Transport issues one chat generation. Satisfied by *api.Client.
type Transport interface {
	StreamChat(ctx context.Context, threadID, question, model string) (api.Stream, error)
}

// Recorder persists finalized messages. Satisfied by *history.Store; nil
// disables recording.
type Recorder interface {
	RecordMessage(ctx context.Context, threadID string, msg Message) error
}

// session is the single in-flight generation. Exactly zero or one exists at
// a time; it is an explicit object rather than package state so independent
// controllers never interfere.
type session struct {
	id       uuid.UUID
	threadID string
	ctx      context.Context
	cancel   context.CancelFunc
}

// Controller is the only place allowed to start or stop a generation. It
// mediates between UI actions and the accumulator, and owns the cancellation
// handle for the active session.
type Controller struct {
	mu        sync.Mutex
	acc       *Accumulator
	transport Transport
	history   Recorder
	logger    *slog.Logger
	onDelta   func(threadID, text string)
	state     State
	sess      *session
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithRecorder persists finalized messages to the given recorder.
func WithRecorder(r Recorder) ControllerOption {
	return func(c *Controller) { c.history = r }
}

// WithDeltaHook calls fn for every applied delta, for streaming UIs.
func WithDeltaHook(fn func(threadID, text string)) ControllerOption {
	return func(c *Controller) { c.onDelta = fn }
}

// WithControllerLogger overrides the diagnostic logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller over the given transport and
// accumulator.
func NewController(transport Transport, acc *Accumulator, opts ...ControllerOption) *Controller {
	c := &Controller{
		acc:       acc,
		transport: transport,
		logger:    slog.Default(),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs one full generation: append the user message, stream the
// response, and settle the assistant message. It blocks until the generation
// completes, fails, or is stopped. Cancellation is not an error; the reply is
// sealed with the stop marker instead.
func (c *Controller) Start(ctx context.Context, threadID, text, modelID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyGenerating
	}
	if !c.acc.Known(threadID) {
		c.mu.Unlock()
		return ErrUnknownThread
	}
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &session{id: uuid.New(), threadID: threadID, ctx: sessCtx, cancel: cancel}
	c.sess = sess
	c.state = StateSending
	c.mu.Unlock()

	defer c.settle(sess)

	// The user message lands before any transport work so it is visible
	// before the first delta regardless of how the stream goes.
	if err := c.acc.AppendUserMessage(threadID, text); err != nil {
		return err
	}
	c.recordLast(ctx, threadID)

	stream, err := c.transport.StreamChat(sessCtx, threadID, text, modelID)
	if err != nil {
		return err
	}
	defer stream.Close()

	began := false
	finalText := ""

drain:
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return c.unwind(ctx, sess, err)
		}

		switch event.Type {
		case api.EventDelta:
			// A delta already buffered when Stop took effect must not be
			// applied.
			if sessCtx.Err() != nil {
				return c.unwind(ctx, sess, sessCtx.Err())
			}
			if !began {
				if err := c.acc.BeginAssistantMessage(threadID, modelID); err != nil {
					return err
				}
				began = true
				c.enterStreaming(sess)
			}
			if err := c.acc.AppendDelta(threadID, event.Text); err != nil {
				return err
			}
			if c.onDelta != nil {
				c.onDelta(threadID, event.Text)
			}
		case api.EventDone:
			finalText = event.Text
			break drain
		case api.EventError:
			return c.unwind(ctx, sess, event.Err)
		}
	}

	// Natural completion. A generation that produced no deltas still needs
	// its assistant message before finalization when the backend supplied
	// authoritative text.
	if !began && finalText != "" {
		if err := c.acc.BeginAssistantMessage(threadID, modelID); err != nil {
			return err
		}
		began = true
	}
	if began {
		if err := c.acc.Finalize(threadID, finalText); err != nil {
			return err
		}
		c.recordLast(ctx, threadID)
	}
	return nil
}

// unwind routes a failed or cancelled generation. Cancellation seals the
// partial reply as stopped and reports success; everything else discards the
// partial reply and surfaces the error (Unauthorized included, unchanged).
func (c *Controller) unwind(ctx context.Context, sess *session, err error) error {
	if errors.Is(err, context.Canceled) {
		if markErr := c.acc.MarkStopped(sess.threadID); markErr != nil && !errors.Is(markErr, ErrUnknownThread) {
			return markErr
		}
		c.recordLast(ctx, sess.threadID)
		return nil
	}
	if discardErr := c.acc.DiscardPartial(sess.threadID); discardErr != nil && !errors.Is(discardErr, ErrUnknownThread) {
		c.logger.Warn("discarding partial reply failed", "thread", sess.threadID, "error", discardErr)
	}
	return err
}

// Stop triggers cancellation of the active session. Valid while sending or
// streaming; a no-op otherwise, since the UI may race a stop click against
// natural completion.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateSending, StateStreaming:
		c.state = StateStopping
		c.sess.cancel()
	}
}

// Regenerate is deliberately unsupported for thread-scoped conversations.
// The restriction is a product decision surfaced as a named error rather
// than a silent no-op.
func (c *Controller) Regenerate(threadID string) error {
	return ErrRegenerateUnsupported
}

// IsGenerating reports whether a session is active.
func (c *Controller) IsGenerating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateIdle
}

// State returns the current generation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages exposes the thread's message list for rendering.
func (c *Controller) Messages(threadID string) ([]Message, error) {
	return c.acc.Messages(threadID)
}

// Clear empties a thread's conversation. Rejected while a session for that
// thread is active; the accumulator has exactly one writer at a time.
func (c *Controller) Clear(threadID string) error {
	c.mu.Lock()
	if c.sess != nil && c.sess.threadID == threadID {
		c.mu.Unlock()
		return ErrAlreadyGenerating
	}
	c.mu.Unlock()
	return c.acc.Clear(threadID)
}

// Reset cancels any active session and drops all accumulated state. Invoked
// explicitly on logout by the owning coordinator.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.sess != nil {
		c.sess.cancel()
	}
	c.mu.Unlock()
	c.acc.Reset()
}

// enterStreaming moves Sending to Streaming for the given session. A session
// already marked Stopping stays Stopping.
func (c *Controller) enterStreaming(sess *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == sess && c.state == StateSending {
		c.state = StateStreaming
	}
}

// settle destroys the session once the transport unwinds, whatever the
// outcome.
func (c *Controller) settle(sess *session) {
	sess.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == sess {
		c.sess = nil
		c.state = StateIdle
	}
}

// recordLast persists the thread's trailing message when history is enabled.
// Recording failures never fail a generation.
func (c *Controller) recordLast(ctx context.Context, threadID string) {
	if c.history == nil {
		return
	}
	msg, ok := c.acc.LastMessage(threadID)
	if !ok || msg.Partial {
		return
	}
	// The session context may already be cancelled; recording still runs.
	if err := c.history.RecordMessage(context.WithoutCancel(ctx), threadID, msg); err != nil {
		c.logger.Warn("recording message failed", "thread", threadID, "error", err)
	}
}
