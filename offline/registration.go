package offline

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/jonwraymond/toolshelf/cache"
	"github.com/jonwraymond/toolshelf/kv"
	"github.com/jonwraymond/toolshelf/observe"
)

// ActiveVersionKey is the kv key recording the activated cache version.
const ActiveVersionKey = "offline.activeVersion"

type activeRecord struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RegistrationOption configures a Registration.
type RegistrationOption func(*Registration)

// WithFallbackTransport sets the transport used while no worker is active.
// Default: http.DefaultTransport.
func WithFallbackTransport(rt http.RoundTripper) RegistrationOption {
	return func(r *Registration) {
		if rt != nil {
			r.fallback = rt
		}
	}
}

// WithLogger sets the registration logger.
func WithLogger(l observe.Logger) RegistrationOption {
	return func(r *Registration) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registration holds at most one active worker and routes requests to it.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use. Updates are
//     serialized; RoundTrip never waits for an install.
type Registration struct {
	storage  cache.Storage
	store    kv.Store
	fallback http.RoundTripper
	logger   observe.Logger

	updateMu sync.Mutex

	mu      sync.RWMutex
	active  *Worker
	workers []*Worker
}

// NewRegistration creates an empty registration. store records the active
// version for Restore; it may be nil.
func NewRegistration(storage cache.Storage, store kv.Store, opts ...RegistrationOption) *Registration {
	r := &Registration{
		storage:  storage,
		store:    store,
		fallback: http.DefaultTransport,
		logger:   observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(observe.Meta{Component: "offline"})
	return r
}

// Active returns the active worker, or nil.
func (r *Registration) Active() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Update installs w while the current worker keeps serving. When the
// install succeeds, w is activated and replaces the current worker, which
// becomes redundant. When install or activation fails, the current worker
// stays active and w is redundant.
func (r *Registration) Update(ctx context.Context, w *Worker) error {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	if err := w.Install(ctx); err != nil {
		r.logger.Warn(ctx, "update failed, keeping current worker",
			observe.F("version", w.cfg.Version),
			observe.F("error", err),
		)
		return err
	}
	return r.activate(ctx, w)
}

// Activate makes w active without downloading, when its static cache already
// holds every manifest asset from an earlier Install, possibly in another
// process. It returns ErrNotInstalled otherwise.
func (r *Registration) Activate(ctx context.Context, w *Worker) error {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	ok, err := w.precached(ctx)
	if err != nil {
		return fmt.Errorf("offline: check static cache: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is missing assets", ErrNotInstalled, w.cfg.StaticCache())
	}
	if err := w.transition(StateNew, StateInstalled); err != nil {
		return err
	}
	return r.activate(ctx, w)
}

func (r *Registration) activate(ctx context.Context, w *Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := w.Activate(ctx); err != nil {
		w.markRedundant()
		return fmt.Errorf("offline: activate %s: %w", w.cfg.Version, err)
	}
	previous := r.swap(w)

	if err := r.record(ctx, w); err != nil {
		r.logger.Warn(ctx, "record active version failed", observe.F("error", err))
	}
	r.logger.Info(ctx, "worker activated",
		observe.F("version", w.cfg.Version),
		observe.F("previous", previous),
	)
	return nil
}

// swap makes w active and retires the previous worker. Callers hold r.mu.
func (r *Registration) swap(w *Worker) (previous string) {
	prev := r.active
	r.active = w
	if !slices.Contains(r.workers, w) {
		r.workers = append(r.workers, w)
	}
	if prev != nil && prev != w {
		prev.markRedundant()
		return prev.cfg.Version
	}
	return ""
}

func (r *Registration) record(ctx context.Context, w *Worker) error {
	if r.store == nil {
		return nil
	}
	return kv.SetJSON(ctx, r.store, ActiveVersionKey, activeRecord{Name: w.cfg.Name, Version: w.cfg.Version})
}

// Restore makes w active without installing it when w's version is the one
// last activated and its static cache still holds every manifest asset. It
// reports whether w was adopted; when it was not, the caller should Update.
func (r *Registration) Restore(ctx context.Context, w *Worker) (bool, error) {
	if r.store == nil {
		return false, nil
	}

	var rec activeRecord
	ok, err := kv.GetJSON(ctx, r.store, ActiveVersionKey, &rec)
	if err != nil {
		return false, fmt.Errorf("offline: read active version: %w", err)
	}
	if !ok || rec.Name != w.cfg.Name || rec.Version != w.cfg.Version {
		return false, nil
	}

	has, err := w.precached(ctx)
	if err != nil {
		return false, fmt.Errorf("offline: check static cache: %w", err)
	}
	if !has {
		return false, nil
	}

	r.updateMu.Lock()
	defer r.updateMu.Unlock()
	if err := w.adopt(); err != nil {
		return false, err
	}

	r.mu.Lock()
	r.swap(w)
	r.mu.Unlock()

	r.logger.Info(ctx, "worker restored", observe.F("version", w.cfg.Version))
	return true, nil
}

// RoundTrip implements http.RoundTripper by delegating to the active
// worker, or to the fallback transport when none is active.
func (r *Registration) RoundTrip(req *http.Request) (*http.Response, error) {
	w := r.Active()
	if w == nil {
		return r.fallback.RoundTrip(req)
	}
	return w.RoundTrip(req)
}

// Wait blocks until background revalidations of every worker this
// registration has activated are finished.
func (r *Registration) Wait() {
	r.mu.RLock()
	workers := slices.Clone(r.workers)
	r.mu.RUnlock()

	for _, w := range workers {
		w.Wait()
	}
}

// CacheStatus describes one cache in storage.
type CacheStatus struct {
	Name    string
	Entries int
	// Current marks caches belonging to the active version.
	Current bool
}

// Status is a snapshot of the registration.
type Status struct {
	// Version is the active version, or empty.
	Version string
	State   State
	Caches  []CacheStatus
}

// Status lists every cache in storage with its entry count.
func (r *Registration) Status(ctx context.Context) (Status, error) {
	var st Status
	var current []string
	if w := r.Active(); w != nil {
		st.Version = w.cfg.Version
		st.State = w.State()
		current = w.cfg.Whitelist()
	}

	names, err := r.storage.Names(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("offline: list caches: %w", err)
	}
	slices.Sort(names)

	for _, name := range names {
		c, err := r.storage.Open(ctx, name)
		if err != nil {
			return Status{}, fmt.Errorf("offline: open %s: %w", name, err)
		}
		keys, err := c.Keys(ctx)
		if err != nil {
			return Status{}, fmt.Errorf("offline: list %s: %w", name, err)
		}
		st.Caches = append(st.Caches, CacheStatus{
			Name:    name,
			Entries: len(keys),
			Current: slices.Contains(current, name),
		})
	}
	return st, nil
}

var _ http.RoundTripper = (*Registration)(nil)
