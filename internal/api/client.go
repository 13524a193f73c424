package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized reports a 401 from the backend. It is propagated unchanged
// so the caller can force a re-login; nothing in this package handles it.
var ErrUnauthorized = errors.New("unauthorized: bearer token rejected")

// StatusError reports a non-2xx response other than 401.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// Client talks to the chat backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger overrides the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a backend client. The token is sent as a bearer
// Authorization header on every request.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// No overall timeout: streamed responses stay open as long as the
		// model generates. Callers bound requests through ctx.
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamChat sends question to the given thread and returns the response as
// a Stream. The request itself is issued on the stream's goroutine so that
// Close (or ctx cancellation) aborts it at any phase, headers included.
// Transport and status failures surface as an EventError from Recv.
func (c *Client) StreamChat(ctx context.Context, threadID, question, model string) (Stream, error) {
	if threadID == "" {
		return nil, errors.New("thread id is required")
	}

	body, err := json.Marshal(ChatRequest{Model: model, Question: question})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	endpoint := c.baseURL + "/chat/" + url.PathEscape(threadID)

	return newEventStream(ctx, func(streamCtx context.Context, events chan<- Event) error {
		req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if streamCtx.Err() != nil {
				return streamCtx.Err()
			}
			return fmt.Errorf("chat request: %w", err)
		}
		defer resp.Body.Close()

		if err := c.checkStatus(resp); err != nil {
			return err
		}

		if !isEventStream(resp.Header.Get("Content-Type")) {
			return decodeJSONBody(resp.Body, events)
		}
		return decodeSSE(streamCtx, resp.Body, events, c.logger)
	}), nil
}

// Models returns the backend's available models keyed by model id.
func (c *Client) Models(ctx context.Context) (map[string]ModelInfo, error) {
	var models map[string]ModelInfo
	if err := c.getJSON(ctx, "/models", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// ThreadPreviews returns the caller's threads with last-message previews.
func (c *Client) ThreadPreviews(ctx context.Context) ([]ThreadPreview, error) {
	var previews []ThreadPreview
	if err := c.getJSON(ctx, "/threads/previews", &previews); err != nil {
		return nil, err
	}
	return previews, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	c.logger.Debug("backend request", "path", path, "elapsed", time.Since(start))

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}

func isEventStream(contentType string) bool {
	return strings.HasPrefix(contentType, "text/event-stream")
}
