package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avlane/chatterm/internal/api"
)

// ThreadLister fetches thread previews from the backend. Satisfied by
// *api.Client.
type ThreadLister interface {
	ThreadPreviews(ctx context.Context) ([]api.ThreadPreview, error)
}

// ThreadCache is a read-through cache of backend threads keyed by id. It is
// the component that registers threads with the accumulator; the streaming
// subsystem itself never creates one.
type ThreadCache struct {
	mu      sync.Mutex
	lister  ThreadLister
	acc     *Accumulator
	threads map[string]Thread
}

// NewThreadCache creates an empty cache over the given lister.
func NewThreadCache(lister ThreadLister, acc *Accumulator) *ThreadCache {
	return &ThreadCache{
		lister:  lister,
		acc:     acc,
		threads: make(map[string]Thread),
	}
}

// Refresh replaces the cache contents from the backend and registers every
// thread with the accumulator.
func (c *ThreadCache) Refresh(ctx context.Context) error {
	previews, err := c.lister.ThreadPreviews(ctx)
	if err != nil {
		return err
	}

	threads := make(map[string]Thread, len(previews))
	for _, p := range previews {
		threads[p.ThreadID] = Thread{
			ID:                 p.ThreadID,
			Title:              p.Title,
			CreatedAt:          parseBackendTime(p.CreatedAt),
			UpdatedAt:          parseBackendTime(p.UpdatedAt),
			MessageCount:       p.MessageCount,
			LastMessagePreview: p.LastMessagePreview,
		}
		c.acc.Register(p.ThreadID)
	}

	c.mu.Lock()
	c.threads = threads
	c.mu.Unlock()
	return nil
}

// Get returns the thread with the given id, refreshing once on a miss.
func (c *ThreadCache) Get(ctx context.Context, threadID string) (Thread, error) {
	c.mu.Lock()
	t, ok := c.threads[threadID]
	c.mu.Unlock()
	if ok {
		return t, nil
	}

	if err := c.Refresh(ctx); err != nil {
		return Thread{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok = c.threads[threadID]
	if !ok {
		return Thread{}, ErrUnknownThread
	}
	return t, nil
}

// List returns cached threads ordered by most recent activity.
func (c *ThreadCache) List() []Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Thread, 0, len(c.threads))
	for _, t := range c.threads {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Reset empties the cache.
func (c *ThreadCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads = make(map[string]Thread)
}

// parseBackendTime accepts the timestamp formats the backend emits. An
// unparseable value degrades to the zero time rather than failing a refresh.
func parseBackendTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
