package catalog

import (
	"context"
	"slices"

	"github.com/jonwraymond/toolshelf/kv"
)

// FavoritesKey is the store key holding the favorites list.
const FavoritesKey = "toolboxFavorites"

// Favorites is the ordered set of favorite tool names. Names are not
// checked against the catalog; stale names are kept and never match.
//
// Favorites is not safe for concurrent use; the Controller serializes access.
type Favorites struct {
	store kv.Store
	names []string
}

// LoadFavorites reads the set from store. A missing key is an empty set.
// On a decode error the returned set is empty and usable, and the error is
// reported so the caller can log it.
func LoadFavorites(ctx context.Context, store kv.Store) (*Favorites, error) {
	f := &Favorites{store: store}
	var names []string
	if _, err := kv.GetJSON(ctx, store, FavoritesKey, &names); err != nil {
		return f, err
	}
	for _, n := range names {
		if !slices.Contains(f.names, n) {
			f.names = append(f.names, n)
		}
	}
	return f, nil
}

// Contains reports whether name is a favorite.
func (f *Favorites) Contains(name string) bool {
	return slices.Contains(f.names, name)
}

// Names returns the favorites in insertion order.
func (f *Favorites) Names() []string {
	return slices.Clone(f.names)
}

// Len returns the number of favorites.
func (f *Favorites) Len() int { return len(f.names) }

// Toggle removes name if present, otherwise appends it, then rewrites the
// whole set to the store. The in-memory change stands even if the write
// fails.
func (f *Favorites) Toggle(ctx context.Context, name string) (added bool, err error) {
	if i := slices.Index(f.names, name); i >= 0 {
		f.names = slices.Delete(f.names, i, i+1)
	} else {
		f.names = append(f.names, name)
		added = true
	}
	names := f.names
	if names == nil {
		names = []string{}
	}
	return added, kv.SetJSON(ctx, f.store, FavoritesKey, names)
}
