package chat

import "errors"

var (
	// ErrUnknownThread reports an operation against a thread id that was
	// never registered. This is a caller bug, not a recoverable condition.
	ErrUnknownThread = errors.New("unknown thread")

	// ErrAlreadyPartial reports a second BeginAssistantMessage while a
	// partial assistant message already exists for the thread.
	ErrAlreadyPartial = errors.New("assistant message already in progress")

	// ErrAlreadyGenerating reports a Start while a generation session is
	// active. The UI disables send while generating; the controller
	// re-asserts the invariant rather than trusting it.
	ErrAlreadyGenerating = errors.New("a generation is already in progress")

	// ErrRegenerateUnsupported reports the deliberate product restriction
	// that thread-scoped conversations cannot regenerate a response.
	ErrRegenerateUnsupported = errors.New("regenerate is not supported for thread conversations")
)
