package catalog

import (
	"sort"
	"strings"
)

// Tokenize lower-cases search and splits it on whitespace. Empty tokens are
// discarded, so blank input yields no tokens.
func Tokenize(search string) []string {
	return strings.Fields(strings.ToLower(search))
}

// Matches reports whether every token is a substring of the tool's search
// text. No tokens matches everything.
func Matches(t Tool, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	text := t.SearchText()
	for _, tok := range tokens {
		if !strings.Contains(text, tok) {
			return false
		}
	}
	return true
}

// Filter restricts tools to favorites when favoritesOnly is set, then keeps
// the ones matching search. Catalog order is preserved.
func Filter(tools []Tool, search string, favoritesOnly bool, isFavorite func(name string) bool) []Tool {
	tokens := Tokenize(search)
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if favoritesOnly && !isFavorite(t.Name) {
			continue
		}
		if Matches(t, tokens) {
			out = append(out, t)
		}
	}
	return out
}

// SortFavoritesFirst returns a copy of tools with favorites before the rest.
// Relative order within each group is unchanged.
func SortFavoritesFirst(tools []Tool, isFavorite func(name string) bool) []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	sort.SliceStable(out, func(i, j int) bool {
		return isFavorite(out[i].Name) && !isFavorite(out[j].Name)
	})
	return out
}
