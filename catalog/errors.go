package catalog

import "errors"

var (
	// ErrNotLoaded is returned for events handled before Load succeeded.
	ErrNotLoaded = errors.New("catalog: not loaded")

	// ErrCatalogUnavailable is returned for every event after a failed Load.
	ErrCatalogUnavailable = errors.New("catalog: unavailable for this session")

	// ErrLoadFailed wraps the cause of a failed Load.
	ErrLoadFailed = errors.New("catalog: load failed")

	// ErrInvalidCatalog indicates a record with an empty or duplicate name.
	ErrInvalidCatalog = errors.New("catalog: invalid tool list")

	// ErrUnexpectedStatus indicates a non-2xx response from an HTTP source.
	ErrUnexpectedStatus = errors.New("catalog: unexpected response status")

	// ErrUnknownEvent indicates an event type with no handler.
	ErrUnknownEvent = errors.New("catalog: unknown event type")

	// ErrUnknownTool indicates a favorite toggle for a name that is neither
	// in the catalog nor already a favorite.
	ErrUnknownTool = errors.New("catalog: unknown tool")

	// ErrPersistFavorites indicates the favorites set could not be saved.
	// The in-memory set is still updated.
	ErrPersistFavorites = errors.New("catalog: favorites not persisted")

	// ErrNoOpener is returned by the default Opener.
	ErrNoOpener = errors.New("catalog: no opener configured")
)
