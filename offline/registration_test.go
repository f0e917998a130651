package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/toolshelf/cache"
	"github.com/jonwraymond/toolshelf/kv"
)

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func roundTrip(t *testing.T, rt http.RoundTripper, url string) string {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip(%s) failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestRegistration_FallbackWithoutWorker(t *testing.T) {
	origin := newFakeOrigin()
	reg := NewRegistration(cache.NewMemoryStorage(), nil, WithFallbackTransport(origin))

	if reg.Active() != nil {
		t.Fatal("new registration has an active worker")
	}
	if body := roundTrip(t, reg, testOrigin+"/style.css"); body != "asset /style.css" {
		t.Errorf("body = %q", body)
	}
}

func TestRegistration_UpdateReplacesWorker(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	store := kv.NewMemory()
	origin := newFakeOrigin()
	reg := NewRegistration(storage, store, WithFallbackTransport(origin))

	v1 := newWorker(t, testConfig("v1"), storage, origin)
	if err := reg.Update(ctx, v1); err != nil {
		t.Fatalf("Update(v1) failed: %v", err)
	}
	if reg.Active() != v1 {
		t.Fatal("v1 not active")
	}
	_ = roundTrip(t, reg, testOrigin+"/tools.json")
	reg.Wait()

	v2 := newWorker(t, testConfig("v2"), storage, origin)
	if err := reg.Update(ctx, v2); err != nil {
		t.Fatalf("Update(v2) failed: %v", err)
	}
	if reg.Active() != v2 || v1.State() != StateRedundant {
		t.Errorf("active = %v, v1 state = %s", reg.Active() == v2, v1.State())
	}

	names, _ := storage.Names(ctx)
	if diff := cmp.Diff([]string{"pro-toolbox-static-v2"}, sortedCopy(names)); diff != "" {
		t.Errorf("caches after update mismatch (-want +got):\n%s", diff)
	}

	raw, ok, _ := store.Get(ctx, ActiveVersionKey)
	if !ok || raw != `{"name":"pro-toolbox","version":"v2"}` {
		t.Errorf("recorded version = %s, %v", raw, ok)
	}
}

func TestRegistration_FailedUpdateKeepsCurrentWorker(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	origin := newFakeOrigin()
	reg := NewRegistration(storage, kv.NewMemory(), WithFallbackTransport(origin))

	v1 := newWorker(t, testConfig("v1"), storage, origin)
	if err := reg.Update(ctx, v1); err != nil {
		t.Fatal(err)
	}

	origin.set(testOrigin+"/index.html", http.StatusInternalServerError, "")
	v2 := newWorker(t, testConfig("v2"), storage, origin)
	if err := reg.Update(ctx, v2); !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("Update(v2) = %v, want ErrInstallFailed", err)
	}

	if reg.Active() != v1 || v1.State() != StateActivated {
		t.Fatal("v1 must stay active")
	}
	if v2.State() != StateRedundant {
		t.Errorf("v2 state = %s", v2.State())
	}
	// v1 still serves its precache, including the asset that now fails.
	if body := roundTrip(t, reg, testOrigin+"/index.html"); body != "asset /index.html" {
		t.Errorf("body = %q", body)
	}
	if ok, _ := storage.Has(ctx, "pro-toolbox-static-v1"); !ok {
		t.Error("v1 static cache purged by a failed update")
	}
}

func TestRegistration_Restore(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	store := kv.NewMemory()
	origin := newFakeOrigin()

	first := NewRegistration(storage, store, WithFallbackTransport(origin))
	if err := first.Update(ctx, newWorker(t, testConfig("v1"), storage, origin)); err != nil {
		t.Fatal(err)
	}
	hits := origin.hitCount(testOrigin + "/")

	// A fresh process with the same storage adopts v1 without downloading.
	second := NewRegistration(storage, store, WithFallbackTransport(origin))
	w := newWorker(t, testConfig("v1"), storage, origin)
	restored, err := second.Restore(ctx, w)
	if err != nil || !restored {
		t.Fatalf("Restore() = %v, %v", restored, err)
	}
	if w.State() != StateActivated || second.Active() != w {
		t.Errorf("state = %s", w.State())
	}
	if origin.hitCount(testOrigin+"/") != hits {
		t.Error("Restore must not reinstall")
	}

	// A different version is not adopted.
	third := NewRegistration(storage, store)
	restored, err = third.Restore(ctx, newWorker(t, testConfig("v2"), storage, origin))
	if err != nil || restored {
		t.Errorf("Restore(v2) = %v, %v", restored, err)
	}
}

func TestRegistration_RestoreRequiresCaches(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	store := kv.NewMemory()
	_ = kv.SetJSON(ctx, store, ActiveVersionKey, map[string]string{"name": "pro-toolbox", "version": "v1"})

	reg := NewRegistration(storage, store)
	restored, err := reg.Restore(ctx, newWorker(t, testConfig("v1"), storage, newFakeOrigin()))
	if err != nil || restored {
		t.Errorf("Restore without caches = %v, %v", restored, err)
	}

	noStore := NewRegistration(storage, nil)
	if restored, _ := noStore.Restore(ctx, newWorker(t, testConfig("v1"), storage, newFakeOrigin())); restored {
		t.Error("Restore without a kv store should not adopt")
	}
}

func TestRegistration_Status(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	origin := newFakeOrigin()
	reg := NewRegistration(storage, nil, WithFallbackTransport(origin))

	st, err := reg.Status(ctx)
	if err != nil || st.Version != "" || len(st.Caches) != 0 {
		t.Fatalf("empty Status() = %+v, %v", st, err)
	}

	_ = reg.Update(ctx, newWorker(t, testConfig("v1"), storage, origin))
	_ = roundTrip(t, reg, testOrigin+"/tools.json")
	reg.Wait()
	_, _ = storage.Open(ctx, "scratch")

	st, err = reg.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Status{
		Version: "v1",
		State:   StateActivated,
		Caches: []CacheStatus{
			{Name: "pro-toolbox-dynamic-v1", Entries: 1, Current: true},
			{Name: "pro-toolbox-static-v1", Entries: 4, Current: true},
			{Name: "scratch", Entries: 0},
		},
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("Status() mismatch (-want +got):\n%s", diff)
	}
}

func TestProxy(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	origin := newFakeOrigin()
	reg := NewRegistration(storage, nil, WithFallbackTransport(origin))
	_ = reg.Update(ctx, newWorker(t, testConfig("v1"), storage, origin))

	proxy, err := NewProxy(testOrigin, reg, nil)
	if err != nil {
		t.Fatal(err)
	}

	origin.set(testOrigin+"/style.css", 0, "")
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://localhost:8080/style.css", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "asset /style.css" {
		t.Errorf("cached asset through proxy = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://localhost:8080/offline-only", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("uncached path status = %d", rec.Code)
	}

	origin.set(testOrigin+"/down", 0, "")
	rec = httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://localhost:8080/down", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("network failure status = %d, want 502", rec.Code)
	}
}

func TestNewProxy_InvalidOrigin(t *testing.T) {
	for _, origin := range []string{"", "toolbox.test", "ftp://toolbox.test"} {
		if _, err := NewProxy(origin, http.DefaultTransport, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("NewProxy(%q) = %v", origin, err)
		}
	}
}

func TestRegistration_ActivatePreinstalled(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	origin := newFakeOrigin()
	reg := NewRegistration(storage, kv.NewMemory(), WithFallbackTransport(origin))

	if err := reg.Activate(ctx, newWorker(t, testConfig("v1"), storage, origin)); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("Activate without install = %v", err)
	}

	// Install in one worker, activate a fresh one as a later process would.
	if err := newWorker(t, testConfig("v1"), storage, origin).Install(ctx); err != nil {
		t.Fatal(err)
	}
	w := newWorker(t, testConfig("v1"), storage, origin)
	if err := reg.Activate(ctx, w); err != nil {
		t.Fatalf("Activate() = %v", err)
	}
	if reg.Active() != w || w.State() != StateActivated {
		t.Errorf("state = %s", w.State())
	}
}

func TestRegistration_RestoreRejectsPartialCache(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	store := kv.NewMemory()
	origin := newFakeOrigin()

	first := NewRegistration(storage, store, WithFallbackTransport(origin))
	_ = first.Update(ctx, newWorker(t, testConfig("v1"), storage, origin))

	static, _ := storage.Open(ctx, "pro-toolbox-static-v1")
	_ = static.Delete(ctx, "GET "+testOrigin+"/script.js")

	restored, err := NewRegistration(storage, store).Restore(ctx, newWorker(t, testConfig("v1"), storage, origin))
	if err != nil || restored {
		t.Errorf("Restore with missing asset = %v, %v", restored, err)
	}
}

func TestRegistration_RetiredWorkerFinishesRoutedRequests(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	origin := newFakeOrigin()
	reg := NewRegistration(storage, kv.NewMemory(), WithFallbackTransport(origin))

	v1 := newWorker(t, testConfig("v1"), storage, origin)
	if err := reg.Update(ctx, v1); err != nil {
		t.Fatal(err)
	}
	routed := reg.Active()

	if err := reg.Update(ctx, newWorker(t, testConfig("v2"), storage, origin)); err != nil {
		t.Fatal(err)
	}
	if routed.State() != StateRedundant {
		t.Fatalf("v1 state = %s", routed.State())
	}

	// A request picked up before the swap still completes on v1.
	origin.set(testOrigin+"/index.html", 0, "")
	if status, body, err := get(t, routed, ctx, testOrigin+"/index.html"); err != nil || status != http.StatusOK || body != "asset /index.html" {
		t.Errorf("retired cached fetch = %d %q %v", status, body, err)
	}
	if _, _, err := get(t, routed, ctx, testOrigin+"/tools.json"); err != nil {
		t.Errorf("retired dynamic fetch = %v", err)
	}
	routed.Wait()

	// The retired worker must not recreate its purged caches.
	names, _ := storage.Names(ctx)
	if diff := cmp.Diff([]string{"pro-toolbox-static-v2"}, sortedCopy(names)); diff != "" {
		t.Errorf("caches mismatch (-want +got):\n%s", diff)
	}

	// A worker that never activated still refuses.
	origin.set(testOrigin+"/index.html", http.StatusInternalServerError, "")
	failed := newWorker(t, testConfig("v3"), storage, origin)
	_ = reg.Update(ctx, failed)
	if _, _, err := get(t, failed, ctx, testOrigin+"/"); !errors.Is(err, ErrNotActive) {
		t.Errorf("never-activated fetch = %v", err)
	}
}
