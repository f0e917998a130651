package offline

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolshelf/cache"
	"github.com/jonwraymond/toolshelf/observe"
	"github.com/jonwraymond/toolshelf/resilience"
)

// Option configures a Worker.
type Option func(*Worker)

// WithTransport sets the network transport. Default: http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(w *Worker) {
		if rt != nil {
			w.transport = rt
		}
	}
}

// WithMiddleware instruments install, activate and fetch.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(w *Worker) {
		if mw != nil {
			w.mw = mw
		}
	}
}

// WithKeyer sets how requests map to cache keys. Default: cache.DefaultKeyer.
func WithKeyer(k cache.Keyer) Option {
	return func(w *Worker) {
		if k != nil {
			w.keyer = k
		}
	}
}

// Worker is one cache version.
//
// Contract:
//   - Concurrency: Fetch and RoundTrip are safe for concurrent use once the
//     worker is activated. Install and Activate must not run concurrently
//     with each other.
//   - Background work: stale-while-revalidate fetches outlive the request
//     that started them; Wait blocks until they finish.
type Worker struct {
	cfg       Config
	storage   cache.Storage
	transport http.RoundTripper
	keyer     cache.Keyer
	policy    cache.Policy
	timeout   *resilience.Timeout
	mw        *observe.Middleware
	logger    observe.Logger

	mu    sync.RWMutex
	state State
	// activated stays set after the worker is retired, so requests routed to
	// it before a swap still complete.
	activated bool

	revalidating sync.WaitGroup
}

// NewWorker validates cfg and returns a worker in StateNew.
func NewWorker(cfg Config, storage cache.Storage, opts ...Option) (*Worker, error) {
	if storage == nil {
		return nil, cache.ErrNilStorage
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Worker{
		cfg:       cfg,
		storage:   storage,
		transport: http.DefaultTransport,
		keyer:     cache.NewDefaultKeyer(),
		policy:    cache.Policy{DynamicSuffixes: cfg.DynamicSuffixes},
		timeout:   resilience.NewTimeout(resilience.TimeoutConfig{Timeout: cfg.FetchTimeout}),
		mw:        observe.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.mw.Logger().With(observe.Meta{Component: "offline", Version: cfg.Version})
	return w, nil
}

// Config returns the worker's configuration with defaults applied.
func (w *Worker) Config() Config { return w.cfg }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.activated = w.activated || s == StateActivated
	w.mu.Unlock()
}

func (w *Worker) transition(from, to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != from {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, w.state, from)
	}
	w.state = to
	w.activated = w.activated || to == StateActivated
	return nil
}

// adopt marks a new worker activated without installing, for a version
// whose caches are already in storage.
func (w *Worker) adopt() error {
	return w.transition(StateNew, StateActivated)
}

// precached reports whether the static cache holds every manifest asset.
func (w *Worker) precached(ctx context.Context) (bool, error) {
	has, err := w.storage.Has(ctx, w.cfg.StaticCache())
	if err != nil || !has {
		return false, err
	}
	static, err := w.storage.Open(ctx, w.cfg.StaticCache())
	if err != nil {
		return false, err
	}

	urls, err := w.cfg.resolveManifest()
	if err != nil {
		return false, err
	}
	for _, u := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return false, err
		}
		key, err := w.keyer.Key(req)
		if err != nil {
			return false, err
		}
		if _, ok, err := static.Match(ctx, key); err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (w *Worker) markRedundant() { w.setState(StateRedundant) }

func (w *Worker) meta(op string) observe.Meta {
	return observe.Meta{Component: "offline", Operation: op, Version: w.cfg.Version}
}

// Install downloads every manifest asset and stores them in the static
// cache. Either every asset is stored or none is; on any failure the worker
// becomes redundant and the error wraps ErrInstallFailed.
func (w *Worker) Install(ctx context.Context) error {
	if err := w.transition(StateNew, StateInstalling); err != nil {
		return err
	}

	var stored int
	err := w.mw.Run(ctx, w.meta("install"), func(ctx context.Context) error {
		var err error
		stored, err = w.install(ctx)
		return err
	})
	if err != nil {
		w.markRedundant()
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	w.setState(StateInstalled)
	w.logger.Info(ctx, "static cache populated",
		observe.F("cache", w.cfg.StaticCache()),
		observe.F("assets", stored),
	)
	return nil
}

func (w *Worker) install(ctx context.Context) (int, error) {
	urls, err := w.cfg.resolveManifest()
	if err != nil {
		return 0, err
	}

	static, err := w.storage.Open(ctx, w.cfg.StaticCache())
	if err != nil {
		return 0, fmt.Errorf("open static cache: %w", err)
	}

	records := make([]cache.Record, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.InstallConcurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			rec, err := w.precache(gctx, u)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := static.PutAll(ctx, records); err != nil {
		return 0, fmt.Errorf("store static cache: %w", err)
	}
	return len(records), nil
}

func (w *Worker) precache(ctx context.Context, rawURL string) (cache.Record, error) {
	var rec cache.Record
	err := w.timeout.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("build request %s: %w", rawURL, err)
		}
		key, err := w.keyer.Key(req)
		if err != nil {
			return fmt.Errorf("key %s: %w", rawURL, err)
		}

		resp, err := w.transport.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		entry, err := cache.ReadEntry(resp)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		if !entry.OK() {
			return fmt.Errorf("%w: %s returned %d", ErrAssetStatus, rawURL, entry.Status)
		}

		rec = cache.Record{Key: key, Entry: entry}
		return nil
	})
	return rec, err
}

// Activate deletes every cache in storage that is not this version's static
// or dynamic cache. On error the worker stays installed and Activate may be
// called again.
func (w *Worker) Activate(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case StateInstalled:
		w.state = StateActivating
	case StateNew, StateInstalling:
		w.mu.Unlock()
		return ErrNotInstalled
	default:
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	w.mu.Unlock()

	err := w.mw.Run(ctx, w.meta("activate"), w.purge)
	if err != nil {
		w.setState(StateInstalled)
		return err
	}
	w.setState(StateActivated)
	return nil
}

func (w *Worker) purge(ctx context.Context) error {
	keep := make(map[string]bool, 2)
	for _, name := range w.cfg.Whitelist() {
		keep[name] = true
	}

	names, err := w.storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("list caches: %w", err)
	}
	for _, name := range names {
		if keep[name] {
			continue
		}
		deleted, err := w.storage.Delete(ctx, name)
		if err != nil {
			return fmt.Errorf("delete cache %s: %w", name, err)
		}
		if deleted {
			w.logger.Info(ctx, "deleted old cache", observe.F("cache", name))
		}
	}
	return nil
}

// RoundTrip implements http.RoundTripper.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	return w.Fetch(req.Context(), req)
}

// serving reports whether w may answer requests, and whether it has been
// retired by a newer worker since it was activated.
func (w *Worker) serving() (ok, retired bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	switch {
	case w.state == StateActivated:
		return true, false
	case w.state == StateRedundant && w.activated:
		return true, true
	default:
		return false, false
	}
}

// Fetch answers req from the caches or the network according to the cache
// policy. Requests other than GET always go to the network. A worker
// retired after activation still answers requests routed to it before the
// swap, cache-first only, so it never recreates its purged caches.
func (w *Worker) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	ok, retired := w.serving()
	if !ok {
		return nil, ErrNotActive
	}
	if !cache.Cacheable(req) {
		return w.transport.RoundTrip(req.WithContext(ctx))
	}

	strategy := w.policy.StrategyFor(req)
	if retired {
		strategy = cache.CacheFirst
	}
	meta := w.meta("fetch")
	meta.Attrs = map[string]string{"strategy": strategy.String()}

	var resp *http.Response
	err := w.mw.Run(ctx, meta, func(ctx context.Context) error {
		var err error
		req := req.WithContext(ctx)
		if strategy == cache.StaleWhileRevalidate {
			resp, err = w.staleWhileRevalidate(ctx, req)
		} else {
			resp, err = w.cacheFirst(ctx, req)
		}
		return err
	})
	return resp, err
}

func (w *Worker) cacheFirst(ctx context.Context, req *http.Request) (*http.Response, error) {
	key, err := w.keyer.Key(req)
	if err != nil {
		return w.transport.RoundTrip(req)
	}

	entry, hit, err := w.storage.Match(ctx, key)
	if err != nil {
		w.logger.Warn(ctx, "cache lookup failed", observe.F("key", key), observe.F("error", err))
		hit = false
	}
	w.mw.Metrics().RecordCacheLookup(ctx, "any", hit)

	if hit {
		return entry.Response(req), nil
	}
	return w.transport.RoundTrip(req)
}

type fetchResult struct {
	resp *http.Response
	err  error
}

func (w *Worker) staleWhileRevalidate(ctx context.Context, req *http.Request) (*http.Response, error) {
	dynamic, err := w.storage.Open(ctx, w.cfg.DynamicCache())
	if err != nil {
		return nil, fmt.Errorf("open dynamic cache: %w", err)
	}
	key, err := w.keyer.Key(req)
	if err != nil {
		return nil, err
	}

	cached, hit, err := dynamic.Match(ctx, key)
	if err != nil {
		w.logger.Warn(ctx, "cache lookup failed", observe.F("key", key), observe.F("error", err))
		hit = false
	}
	w.mw.Metrics().RecordCacheLookup(ctx, dynamic.Name(), hit)

	network := w.revalidate(ctx, req, dynamic, key)
	if hit {
		return cached.Response(req), nil
	}

	select {
	case r := <-network:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// revalidate fetches req in the background and stores 2xx responses in
// dynamic. The fetch is detached from ctx's cancellation and always runs
// to completion or FetchTimeout.
func (w *Worker) revalidate(ctx context.Context, req *http.Request, dynamic cache.Cache, key string) <-chan fetchResult {
	out := make(chan fetchResult, 1)
	bg := context.WithoutCancel(ctx)
	outReq := req.Clone(bg)

	w.revalidating.Add(1)
	go func() {
		defer w.revalidating.Done()

		var entry cache.Entry
		err := w.timeout.Execute(bg, func(ctx context.Context) error {
			resp, err := w.transport.RoundTrip(outReq.WithContext(ctx))
			if err != nil {
				return err
			}
			entry, err = cache.ReadEntry(resp)
			return err
		})
		if err != nil {
			w.logger.Warn(bg, "revalidation failed",
				observe.F("url", outReq.URL.String()),
				observe.F("error", err),
			)
			out <- fetchResult{err: fmt.Errorf("fetch %s: %w", outReq.URL, err)}
			return
		}

		if entry.OK() {
			if err := dynamic.Put(bg, key, entry); err != nil {
				w.logger.Warn(bg, "store revalidated response failed",
					observe.F("cache", dynamic.Name()),
					observe.F("error", err),
				)
			}
		}
		out <- fetchResult{resp: entry.Response(req)}
	}()
	return out
}

// Wait blocks until every background revalidation has finished.
func (w *Worker) Wait() {
	w.revalidating.Wait()
}

var _ http.RoundTripper = (*Worker)(nil)
