// Package catalog implements the tool directory: loading the tool list,
// keeping a persisted favorites set, filtering and ordering the list for
// display, and reacting to user events.
//
// The Controller owns all session state. Display is delegated to a Surface
// supplied by the host (a terminal renderer, a test fake), and opening a
// tool's URL to an Opener. Events are handled one at a time; a render is
// always a single Surface.Render call with the complete view.
//
// Filtering and ordering are pure functions ([Tokenize], [Matches],
// [Filter], [SortFavoritesFirst]) so they can be tested without a surface.
//
// A failed Load is terminal for the session: the error message is shown and
// every later event returns [ErrCatalogUnavailable].
package catalog
