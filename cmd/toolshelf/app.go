package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/toolshelf/cache"
	"github.com/jonwraymond/toolshelf/catalog"
	"github.com/jonwraymond/toolshelf/config"
	"github.com/jonwraymond/toolshelf/kv"
	"github.com/jonwraymond/toolshelf/observe"
	"github.com/jonwraymond/toolshelf/offline"
)

// app holds everything one command invocation opens.
type app struct {
	cfg     *config.Config
	obs     observe.Observer
	mw      *observe.Middleware
	logger  observe.Logger
	store   kv.Store
	storage cache.Storage
	reg     *offline.Registration

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig(version))
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	a = &app{cfg: cfg, obs: obs, logger: obs.Logger()}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	a.mw, err = observe.MiddlewareFromObserver(obs)
	if err != nil {
		return a, fmt.Errorf("observe: %w", err)
	}

	a.store, err = kv.Open(cfg.Favorites.Backend, cfg.Favorites.Path)
	if err != nil {
		return a, fmt.Errorf("open favorites store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	switch cfg.Offline.Storage {
	case "bolt":
		bs, err := cache.OpenBoltStorage(cfg.Offline.StoragePath)
		if err != nil {
			return a, fmt.Errorf("open cache storage: %w", err)
		}
		a.storage = bs
		a.closers = append(a.closers, bs.Close)
	default:
		a.storage = cache.NewMemoryStorage()
	}

	a.reg = offline.NewRegistration(a.storage, a.store, offline.WithLogger(a.logger))
	return a, nil
}

// Close waits for background revalidations, closes stores in reverse
// order and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	if a.reg != nil {
		a.reg.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (a *app) newWorker() (*offline.Worker, error) {
	return offline.NewWorker(a.cfg.Offline.WorkerConfig(), a.storage, offline.WithMiddleware(a.mw))
}

// restoreWorker re-adopts the last activated cache version when it matches
// the configuration. It reports whether a worker is active afterwards.
func (a *app) restoreWorker(ctx context.Context) (bool, error) {
	if a.reg.Active() != nil {
		return true, nil
	}
	w, err := a.newWorker()
	if err != nil {
		return false, err
	}
	return a.reg.Restore(ctx, w)
}

// source builds the catalog source. Remote catalogs go through the offline
// registration when catalog.offline is set.
func (a *app) source(ctx context.Context) catalog.Source {
	c := a.cfg.Catalog
	if !c.IsRemote() {
		return catalog.FileSource{Path: c.Source}
	}

	client := &http.Client{}
	if c.Offline {
		if _, err := a.restoreWorker(ctx); err != nil {
			a.logger.Warn(ctx, "offline cache unavailable", observe.F("error", err))
		}
		client.Transport = a.reg
	}
	return catalog.NewHTTPSource(c.Source, client, c.Timeout())
}

// controller creates and loads a catalog controller.
func (a *app) controller(ctx context.Context, surface catalog.Surface, opts ...catalog.Option) (*catalog.Controller, error) {
	opts = append([]catalog.Option{catalog.WithMiddleware(a.mw)}, opts...)
	ctrl, err := catalog.New(ctx, a.source(ctx), surface, a.store, opts...)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Load(ctx); err != nil {
		return nil, err
	}
	return ctrl, nil
}
