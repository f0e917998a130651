package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolshelf/kv"
	"github.com/jonwraymond/toolshelf/observe"
)

// Controller holds one session's catalog, favorites and view state.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use; they are
//     serialized, so a render never interleaves with another event.
//   - Lifecycle: call Load once; events before a successful Load return
//     ErrNotLoaded, and after a failed Load ErrCatalogUnavailable.
type Controller struct {
	mu sync.Mutex

	source    Source
	surface   Surface
	opener    Opener
	favorites *Favorites
	mw        *observe.Middleware
	logger    observe.Logger
	session   string

	tools  []Tool
	loaded bool
	failed bool

	favoritesView bool
	initialLoad   bool

	// suppress names the card whose animation is suppressed on the next
	// render.
	suppress string
}

// Option configures a Controller.
type Option func(*Controller)

// WithOpener sets how tool URLs are opened.
func WithOpener(o Opener) Option {
	return func(c *Controller) {
		if o != nil {
			c.opener = o
		}
	}
}

// WithMiddleware instruments Load and favorite persistence.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *Controller) {
		if mw != nil {
			c.mw = mw
		}
	}
}

// WithFavoritesView starts the controller in the favorites-only view.
func WithFavoritesView(on bool) Option {
	return func(c *Controller) { c.favoritesView = on }
}

// New creates a controller and reads the favorites set from store once.
// An unreadable favorites value is logged and replaced by an empty set.
func New(ctx context.Context, source Source, surface Surface, store kv.Store, opts ...Option) (*Controller, error) {
	if source == nil || surface == nil || store == nil {
		return nil, errors.New("catalog: source, surface and store are required")
	}

	c := &Controller{
		source:      source,
		surface:     surface,
		opener:      noOpener,
		mw:          observe.Nop(),
		session:     uuid.NewString(),
		initialLoad: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.mw.Logger().With(observe.Meta{Component: "catalog"})

	favs, err := LoadFavorites(ctx, store)
	if err != nil {
		c.logger.Warn(ctx, "favorites unreadable, starting empty",
			observe.F("session", c.session),
			observe.F("error", err),
		)
	}
	c.favorites = favs
	return c, nil
}

// Session returns the session identifier used in log lines.
func (c *Controller) Session() string { return c.session }

// Favorites returns the current favorite names in insertion order.
func (c *Controller) Favorites() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.favorites.Names()
}

// FavoritesView reports whether the favorites-only view is on.
func (c *Controller) FavoritesView() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.favoritesView
}

// Tools returns the loaded catalog.
func (c *Controller) Tools() []Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tools)
}

func (c *Controller) ready() error {
	switch {
	case c.failed:
		return ErrCatalogUnavailable
	case !c.loaded:
		return ErrNotLoaded
	default:
		return nil
	}
}

// Load fetches the catalog and renders it. A failure shows MsgLoadError and
// ends the session; it is not retried. Calling Load again after success is a
// no-op.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed {
		return ErrCatalogUnavailable
	}
	if c.loaded {
		return nil
	}

	var tools []Tool
	meta := observe.Meta{Component: "catalog", Operation: "load"}
	err := c.mw.Run(ctx, meta, func(ctx context.Context) error {
		var err error
		tools, err = c.source.Load(ctx)
		if err != nil {
			return err
		}
		return Validate(tools)
	})
	if err != nil {
		c.failed = true
		msg := MsgLoadError
		c.surface.Render(View{Message: &msg})
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	c.tools = tools
	c.loaded = true
	c.logger.Info(ctx, "catalog loaded",
		observe.F("session", c.session),
		observe.F("tools", len(tools)),
		observe.F("favorites", c.favorites.Len()),
	)
	c.filterAndRender()
	return nil
}

// FilterAndRender recomputes the visible list from the current search text
// and view mode and renders it.
func (c *Controller) FilterAndRender() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	c.filterAndRender()
	return nil
}

func (c *Controller) filterAndRender() {
	visible := Filter(c.tools, c.surface.SearchText(), c.favoritesView, c.favorites.Contains)
	c.render(SortFavoritesFirst(visible, c.favorites.Contains))
}

// Render shows tools as given, without filtering or sorting.
func (c *Controller) Render(tools []Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	c.render(tools)
	return nil
}

func (c *Controller) render(tools []Tool) {
	if len(tools) == 0 {
		msg := MsgNoTools
		if c.favoritesView {
			msg = MsgNoFavorites
		}
		c.surface.Render(View{Message: &msg})
		c.suppress = ""
		return
	}

	cards := make([]Card, len(tools))
	for i, t := range tools {
		tags := t.Tags
		if len(tags) > MaxCardTags {
			tags = tags[:MaxCardTags]
		}
		card := Card{
			Name:        t.Name,
			URL:         t.URL,
			Description: t.Description,
			Tags:        slices.Clone(tags),
			Favorited:   c.favorites.Contains(t.Name),
		}
		if c.initialLoad {
			card.Animate = true
			card.AnimationDelay = time.Duration(i) * AnimationStep
		}
		if c.suppress != "" && t.Name == c.suppress {
			card.SuppressAnimation = true
			card.Animate = false
		}
		cards[i] = card
	}

	c.surface.Render(View{Cards: cards})
	c.initialLoad = false
	c.suppress = ""
}

// ToggleFavorite adds name to the favorites or removes it, persists the set
// and re-renders. Adding while a search is active suppresses the card's
// animation on that render.
//
// If persisting fails the in-memory change is kept, the view is still
// rendered, and the returned error wraps ErrPersistFavorites.
func (c *Controller) ToggleFavorite(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	return c.toggleFavorite(ctx, name)
}

func (c *Controller) toggleFavorite(ctx context.Context, name string) error {
	if !c.favorites.Contains(name) && !slices.ContainsFunc(c.tools, func(t Tool) bool { return t.Name == name }) {
		return fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	searching := strings.TrimSpace(c.surface.SearchText()) != ""

	var added bool
	meta := observe.Meta{Component: "catalog", Operation: "toggle_favorite"}
	err := c.mw.Run(ctx, meta, func(ctx context.Context) error {
		var err error
		added, err = c.favorites.Toggle(ctx, name)
		return err
	})
	if added && searching {
		c.suppress = name
	}

	c.filterAndRender()

	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFavorites, err)
	}
	return nil
}

// HandleEnter opens the only matching tool. With zero or several matches it
// does nothing and reports false.
func (c *Controller) HandleEnter(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return false, err
	}
	return c.handleEnter(ctx)
}

func (c *Controller) handleEnter(ctx context.Context) (bool, error) {
	matches := Filter(c.tools, c.surface.SearchText(), c.favoritesView, c.favorites.Contains)
	if len(matches) != 1 {
		return false, nil
	}
	if err := c.opener.Open(ctx, matches[0].URL); err != nil {
		return false, fmt.Errorf("catalog: open %s: %w", matches[0].URL, err)
	}
	return true, nil
}

// ToggleFavoritesView flips between all tools and favorites only.
func (c *Controller) ToggleFavoritesView() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	c.toggleFavoritesView()
	return nil
}

func (c *Controller) toggleFavoritesView() {
	c.favoritesView = !c.favoritesView
	c.surface.SetFavoritesToggle(toggleState(c.favoritesView))
	c.filterAndRender()
}

// HandleScroll reveals every card whose top edge is above RevealThreshold of
// the viewport. It does nothing while any search text is present.
func (c *Controller) HandleScroll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	c.handleScroll()
	return nil
}

func (c *Controller) handleScroll() {
	if c.surface.SearchText() != "" {
		return
	}
	limit := c.surface.ViewportHeight() * RevealThreshold
	for i, top := range c.surface.CardTops() {
		if top < limit {
			c.surface.Reveal(i)
		}
	}
}
