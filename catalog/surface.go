package catalog

import "context"

// Surface is the display the controller renders into. Implementations own
// the search text input.
type Surface interface {
	// SearchText returns the current raw search input.
	SearchText() string

	// Render replaces everything shown with v.
	Render(v View)

	// SetFavoritesToggle updates the favorites-view toggle control.
	SetFavoritesToggle(s ToggleState)

	// CardTops returns the top edge of each rendered card, in render order,
	// in the same units as ViewportHeight.
	CardTops() []float64
	ViewportHeight() float64

	// Reveal marks the card at index as visible. Reveals are never undone.
	Reveal(index int)
}

// Opener opens a URL in a new browsing context.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string) error

func (f OpenerFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

var noOpener = OpenerFunc(func(context.Context, string) error { return ErrNoOpener })
