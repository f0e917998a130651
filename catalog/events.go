package catalog

import (
	"context"
	"fmt"
)

// EventType enumerates the user events the controller handles.
type EventType string

const (
	EventInput          EventType = "input"
	EventEnter          EventType = "enter"
	EventToggleFavorite EventType = "toggle-favorite"
	EventToggleView     EventType = "toggle-view"
	EventScroll         EventType = "scroll"
)

// Event is one user action. Name is the tool name for EventToggleFavorite.
type Event struct {
	Type EventType
	Name string
}

type handlerFunc func(c *Controller, ctx context.Context, ev Event) error

var handlers = map[EventType]handlerFunc{
	EventInput: func(c *Controller, _ context.Context, _ Event) error {
		c.filterAndRender()
		return nil
	},
	EventEnter: func(c *Controller, ctx context.Context, _ Event) error {
		_, err := c.handleEnter(ctx)
		return err
	},
	EventToggleFavorite: func(c *Controller, ctx context.Context, ev Event) error {
		return c.toggleFavorite(ctx, ev.Name)
	},
	EventToggleView: func(c *Controller, _ context.Context, _ Event) error {
		c.toggleFavoritesView()
		return nil
	},
	EventScroll: func(c *Controller, _ context.Context, _ Event) error {
		c.handleScroll()
		return nil
	},
}

// Dispatch handles one event. Events are handled one at a time.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	h, ok := handlers[ev.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	return h(c, ctx, ev)
}
