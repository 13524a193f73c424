package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/avlane/chatterm/internal/api"
	"github.com/avlane/chatterm/internal/chat"
	"github.com/avlane/chatterm/internal/config"
	"github.com/avlane/chatterm/internal/history"
)

// app bundles the pieces every command needs.
type app struct {
	cfg     *config.Config
	client  *api.Client
	acc     *chat.Accumulator
	cache   *chat.ThreadCache
	store   *history.Store // nil when history is disabled
	closers []func() error
}

// newApp loads config and wires the client, accumulator, thread cache and
// (when enabled) the local history store.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errors.New("no token configured: set `token` in the config file or the CHATTERM_TOKEN environment variable")
	}

	a := &app{
		cfg:    cfg,
		client: api.NewClient(cfg.ServerURL, cfg.Token),
		acc:    chat.NewAccumulator(),
	}
	a.cache = chat.NewThreadCache(a.client, a.acc)

	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path, err = history.DefaultPath()
			if err != nil {
				return nil, err
			}
		}
		store, err := history.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	return a, nil
}

// controller builds a generation controller with the app's wiring plus any
// extra options.
func (a *app) controller(opts ...chat.ControllerOption) *chat.Controller {
	if a.store != nil {
		opts = append([]chat.ControllerOption{chat.WithRecorder(a.store)}, opts...)
	}
	return chat.NewController(a.client, a.acc, opts...)
}

// resolveThread refreshes the thread cache and returns the requested thread,
// or the most recently active one when threadID is empty.
func (a *app) resolveThread(ctx context.Context, threadID string) (chat.Thread, error) {
	if err := a.cache.Refresh(ctx); err != nil {
		return chat.Thread{}, err
	}
	if threadID != "" {
		return a.cache.Get(ctx, threadID)
	}
	threads := a.cache.List()
	if len(threads) == 0 {
		return chat.Thread{}, errors.New("no threads exist yet; create one in the web client first")
	}
	return threads[0], nil
}

func (a *app) close() {
	for _, fn := range a.closers {
		fn()
	}
}

// model returns the model id to use, preferring the flag over config.
func (a *app) model(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return a.cfg.DefaultModel
}
