package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/toolshelf/kv"
	"github.com/jonwraymond/toolshelf/observe"
)

// fakeSurface records everything the controller shows.
type fakeSurface struct {
	mu       sync.Mutex
	search   string
	views    []View
	toggles  []ToggleState
	tops     []float64
	height   float64
	revealed []int
}

func (s *fakeSurface) SearchText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

func (s *fakeSurface) setSearch(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = v
}

func (s *fakeSurface) Render(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, v)
}

func (s *fakeSurface) SetFavoritesToggle(ts ToggleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles = append(s.toggles, ts)
}

func (s *fakeSurface) CardTops() []float64     { return s.tops }
func (s *fakeSurface) ViewportHeight() float64 { return s.height }

func (s *fakeSurface) Reveal(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revealed = append(s.revealed, i)
}

func (s *fakeSurface) last(t *testing.T) View {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		t.Fatal("nothing rendered")
	}
	return s.views[len(s.views)-1]
}

func cardNames(v View) []string {
	out := make([]string, len(v.Cards))
	for i, c := range v.Cards {
		out[i] = c.Name
	}
	return out
}

func staticSource(tools ...Tool) Source {
	return SourceFunc(func(context.Context) ([]Tool, error) { return tools, nil })
}

var abCatalog = []Tool{
	{Name: "A", URL: "https://a.test", Description: "first", Tags: []string{"x"}},
	{Name: "B", URL: "https://b.test", Description: "second", Tags: []string{"y"}},
}

type harness struct {
	ctrl    *Controller
	surface *fakeSurface
	store   kv.Store
	opened  []string
}

func newHarness(t *testing.T, tools []Tool, favorites string) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{surface: &fakeSurface{height: 1000}, store: kv.NewMemory()}
	if favorites != "" {
		if err := h.store.Set(ctx, FavoritesKey, favorites); err != nil {
			t.Fatal(err)
		}
	}
	opener := OpenerFunc(func(_ context.Context, url string) error {
		h.opened = append(h.opened, url)
		return nil
	})
	ctrl, err := New(ctx, staticSource(tools...), h.surface, h.store, WithOpener(opener))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.ctrl = ctrl
	return h
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
}

func TestController_FavoritesScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, abCatalog, `["B"]`)
	h.load(t)

	if diff := cmp.Diff([]string{"B", "A"}, cardNames(h.surface.last(t))); diff != "" {
		t.Fatalf("initial order mismatch (-want +got):\n%s", diff)
	}

	h.surface.setSearch("x")
	if err := h.ctrl.Dispatch(ctx, Event{Type: EventInput}); err != nil {
		t.Fatalf("input: %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, cardNames(h.surface.last(t))); diff != "" {
		t.Fatalf("search order mismatch (-want +got):\n%s", diff)
	}

	if err := h.ctrl.Dispatch(ctx, Event{Type: EventToggleFavorite, Name: "A"}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	v := h.surface.last(t)
	if len(v.Cards) != 1 || !v.Cards[0].SuppressAnimation || v.Cards[0].Animate || !v.Cards[0].Favorited {
		t.Errorf("card after toggle = %+v", v.Cards)
	}
	if diff := cmp.Diff([]string{"B", "A"}, h.ctrl.Favorites()); diff != "" {
		t.Errorf("favorites mismatch (-want +got):\n%s", diff)
	}
	raw, _, _ := h.store.Get(ctx, FavoritesKey)
	if raw != `["B","A"]` {
		t.Errorf("persisted favorites = %s", raw)
	}

	// Suppression lasts a single render.
	_ = h.ctrl.Dispatch(ctx, Event{Type: EventInput})
	if h.surface.last(t).Cards[0].SuppressAnimation {
		t.Error("suppression carried into the next render")
	}
}

func TestController_ToggleWithoutSearchDoesNotSuppress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, abCatalog, "")
	h.load(t)

	// Whitespace-only search counts as no search for suppression.
	h.surface.setSearch("   ")
	if err := h.ctrl.ToggleFavorite(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	for _, c := range h.surface.last(t).Cards {
		if c.SuppressAnimation {
			t.Errorf("card %s suppressed without a search", c.Name)
		}
	}

	// Removing while searching never suppresses.
	h.surface.setSearch("x")
	if err := h.ctrl.ToggleFavorite(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	if h.surface.last(t).Cards[0].SuppressAnimation {
		t.Error("removal should not suppress animation")
	}
}

func TestController_InitialAnimation(t *testing.T) {
	tools := []Tool{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	h := newHarness(t, tools, "")
	h.load(t)

	first := h.surface.last(t)
	for i, c := range first.Cards {
		if !c.Animate || c.AnimationDelay != time.Duration(i)*AnimationStep {
			t.Errorf("card %d: Animate=%v delay=%v", i, c.Animate, c.AnimationDelay)
		}
	}

	_ = h.ctrl.FilterAndRender()
	for _, c := range h.surface.last(t).Cards {
		if c.Animate || c.AnimationDelay != 0 {
			t.Errorf("card %s animated after first render", c.Name)
		}
	}
}

func TestController_InitialAnimationSurvivesEmptyRender(t *testing.T) {
	h := newHarness(t, abCatalog, "")
	h.surface.setSearch("zzz")
	h.load(t)

	if !h.surface.last(t).Empty() {
		t.Fatal("expected empty view")
	}
	h.surface.setSearch("")
	_ = h.ctrl.FilterAndRender()
	if !h.surface.last(t).Cards[0].Animate {
		t.Error("first non-empty render should animate")
	}
}

func TestController_CardTagsCapped(t *testing.T) {
	h := newHarness(t, []Tool{{Name: "A", Tags: []string{"t1", "t2", "t3", "t4", "t5"}}}, "")
	h.load(t)

	if diff := cmp.Diff([]string{"t1", "t2", "t3"}, h.surface.last(t).Cards[0].Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestController_EmptyMessages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, abCatalog, "")
	h.load(t)

	h.surface.setSearch("nothing-matches")
	_ = h.ctrl.Dispatch(ctx, Event{Type: EventInput})
	if v := h.surface.last(t); v.Message == nil || *v.Message != MsgNoTools {
		t.Errorf("search miss view = %+v", v)
	}

	h.surface.setSearch("")
	_ = h.ctrl.Dispatch(ctx, Event{Type: EventToggleView})
	if v := h.surface.last(t); v.Message == nil || *v.Message != MsgNoFavorites {
		t.Errorf("empty favorites view = %+v", v)
	}
}

func TestController_ToggleView(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, abCatalog, `["A"]`)
	h.load(t)

	_ = h.ctrl.ToggleFavoritesView()
	if !h.ctrl.FavoritesView() {
		t.Fatal("favorites view should be on")
	}
	if diff := cmp.Diff([]string{"A"}, cardNames(h.surface.last(t))); diff != "" {
		t.Errorf("favorites view mismatch (-want +got):\n%s", diff)
	}

	_ = h.ctrl.Dispatch(ctx, Event{Type: EventToggleView})
	want := []ToggleState{
		{Active: true, Icon: StarSolid, Label: " Show All"},
		{Active: false, Icon: StarRegular, Label: " Show Favorites"},
	}
	if diff := cmp.Diff(want, h.surface.toggles); diff != "" {
		t.Errorf("toggle states mismatch (-want +got):\n%s", diff)
	}
	if len(h.surface.last(t).Cards) != 2 {
		t.Error("all tools should be shown again")
	}
}

func TestController_Enter(t *testing.T) {
	tests := []struct {
		name       string
		search     string
		wantOpened []string
	}{
		{"single match opens", "first", []string{"https://a.test"}},
		{"several matches", "", nil},
		{"no match", "nope", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, abCatalog, "")
			h.load(t)
			h.surface.setSearch(tt.search)

			opened, err := h.ctrl.HandleEnter(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if opened != (len(tt.wantOpened) == 1) {
				t.Errorf("HandleEnter() = %v", opened)
			}
			if diff := cmp.Diff(tt.wantOpened, h.opened); diff != "" {
				t.Errorf("opened mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestController_EnterWithoutOpener(t *testing.T) {
	ctx := context.Background()
	surface := &fakeSurface{search: "first"}
	ctrl, _ := New(ctx, staticSource(abCatalog...), surface, kv.NewMemory())
	_ = ctrl.Load(ctx)

	if _, err := ctrl.HandleEnter(ctx); !errors.Is(err, ErrNoOpener) {
		t.Errorf("HandleEnter() error = %v, want ErrNoOpener", err)
	}
}

func TestController_Scroll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, abCatalog, "")
	h.load(t)
	h.surface.tops = []float64{100, 749, 750, 900}

	_ = h.ctrl.Dispatch(ctx, Event{Type: EventScroll})
	if diff := cmp.Diff([]int{0, 1}, h.surface.revealed); diff != "" {
		t.Errorf("revealed mismatch (-want +got):\n%s", diff)
	}

	// Any raw search text disables reveal, even whitespace.
	h.surface.revealed = nil
	h.surface.setSearch(" ")
	_ = h.ctrl.HandleScroll()
	if len(h.surface.revealed) != 0 {
		t.Errorf("revealed while searching: %v", h.surface.revealed)
	}
}

func TestController_LoadFailure(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection refused")
	surface := &fakeSurface{}
	failing := SourceFunc(func(context.Context) ([]Tool, error) { return nil, cause })
	ctrl, _ := New(ctx, failing, surface, kv.NewMemory())

	err := ctrl.Load(ctx)
	if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, cause) {
		t.Fatalf("Load() error = %v", err)
	}
	if v := surface.last(t); v.Message == nil || *v.Message != MsgLoadError {
		t.Errorf("failure view = %+v", v)
	}

	if err := ctrl.Load(ctx); !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("second Load() = %v", err)
	}
	if err := ctrl.Dispatch(ctx, Event{Type: EventInput}); !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("Dispatch after failure = %v", err)
	}
	if err := ctrl.ToggleFavorite(ctx, "A"); !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("ToggleFavorite after failure = %v", err)
	}
}

func TestController_LoadRejectsInvalidCatalog(t *testing.T) {
	ctx := context.Background()
	ctrl, _ := New(ctx, staticSource(Tool{Name: "A"}, Tool{Name: "A"}), &fakeSurface{}, kv.NewMemory())

	if err := ctrl.Load(ctx); !errors.Is(err, ErrInvalidCatalog) {
		t.Errorf("Load() error = %v, want ErrInvalidCatalog", err)
	}
}

func TestController_EventsBeforeLoad(t *testing.T) {
	h := newHarness(t, abCatalog, "")
	ctx := context.Background()

	if err := h.ctrl.Dispatch(ctx, Event{Type: EventScroll}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Dispatch before Load = %v", err)
	}
	if _, err := h.ctrl.HandleEnter(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("HandleEnter before Load = %v", err)
	}
	if err := h.ctrl.Render(abCatalog); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Render before Load = %v", err)
	}
}

func TestController_LoadIsIdempotent(t *testing.T) {
	calls := 0
	src := SourceFunc(func(context.Context) ([]Tool, error) {
		calls++
		return abCatalog, nil
	})
	ctx := context.Background()
	ctrl, _ := New(ctx, src, &fakeSurface{}, kv.NewMemory())
	_ = ctrl.Load(ctx)
	_ = ctrl.Load(ctx)
	if calls != 1 {
		t.Errorf("source loaded %d times", calls)
	}
}

func TestController_UnknownEvent(t *testing.T) {
	h := newHarness(t, abCatalog, "")
	h.load(t)
	if err := h.ctrl.Dispatch(context.Background(), Event{Type: "resize"}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Dispatch(resize) = %v", err)
	}
}

func TestController_ToggleUnknownTool(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, abCatalog, `["Retired"]`)
	h.load(t)

	if err := h.ctrl.ToggleFavorite(ctx, "Nope"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("ToggleFavorite(Nope) = %v", err)
	}
	// A stale favorite can still be removed.
	if err := h.ctrl.ToggleFavorite(ctx, "Retired"); err != nil {
		t.Errorf("ToggleFavorite(Retired) = %v", err)
	}
	if len(h.ctrl.Favorites()) != 0 {
		t.Errorf("favorites = %v", h.ctrl.Favorites())
	}
}

func TestController_PersistFailure(t *testing.T) {
	ctx := context.Background()
	surface := &fakeSurface{}
	store := failingStore{Store: kv.NewMemory(), err: errors.New("read-only")}
	ctrl, _ := New(ctx, staticSource(abCatalog...), surface, store)
	_ = ctrl.Load(ctx)

	err := ctrl.ToggleFavorite(ctx, "B")
	if !errors.Is(err, ErrPersistFavorites) {
		t.Fatalf("ToggleFavorite() = %v, want ErrPersistFavorites", err)
	}
	v := surface.last(t)
	if v.Cards[0].Name != "B" || !v.Cards[0].Favorited {
		t.Errorf("view not updated after failed persist: %+v", v.Cards)
	}
}

func TestController_CorruptFavoritesStartEmpty(t *testing.T) {
	h := newHarness(t, abCatalog, `not json`)
	h.load(t)
	if len(h.ctrl.Favorites()) != 0 {
		t.Errorf("favorites = %v", h.ctrl.Favorites())
	}
}

func TestController_ConcurrentEvents(t *testing.T) {
	h := newHarness(t, abCatalog, "")
	h.load(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.ctrl.Dispatch(ctx, Event{Type: EventToggleFavorite, Name: "A"})
			_ = h.ctrl.Dispatch(ctx, Event{Type: EventInput})
		}()
	}
	wg.Wait()

	// An even number of toggles leaves A out.
	if len(h.ctrl.Favorites()) != 0 {
		t.Errorf("favorites = %v", h.ctrl.Favorites())
	}
}

func TestController_RecordsOperations(t *testing.T) {
	ctx := context.Background()
	rec := &recordingMetrics{}
	mw := observe.NewMiddleware(nil, rec, nil)
	ctrl, _ := New(ctx, staticSource(abCatalog...), &fakeSurface{}, kv.NewMemory(), WithMiddleware(mw))

	_ = ctrl.Load(ctx)
	_ = ctrl.ToggleFavorite(ctx, "A")

	want := []string{"catalog.load", "catalog.toggle_favorite"}
	if diff := cmp.Diff(want, rec.ops); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(context.Background(), nil, &fakeSurface{}, kv.NewMemory()); err == nil {
		t.Error("expected error for nil source")
	}
}

type recordingMetrics struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingMetrics) RecordOperation(_ context.Context, meta observe.Meta, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, meta.Component+"."+meta.Operation)
}

func (r *recordingMetrics) RecordCacheLookup(context.Context, string, bool) {}
