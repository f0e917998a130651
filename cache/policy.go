package cache

import (
	"net/http"
	"strings"
)

// Strategy selects how a request is answered.
type Strategy int

const (
	// CacheFirst answers from any cache and falls back to the network
	// without storing the result.
	CacheFirst Strategy = iota

	// StaleWhileRevalidate answers from the dynamic cache when possible and
	// refreshes it from the network for the next request.
	StaleWhileRevalidate
)

func (s Strategy) String() string {
	switch s {
	case CacheFirst:
		return "cache-first"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	default:
		return "unknown"
	}
}

// DefaultDynamicSuffix is the path suffix of the tool list resource.
const DefaultDynamicSuffix = "/tools.json"

// Policy maps requests to strategies.
type Policy struct {
	// DynamicSuffixes are URL path suffixes served stale-while-revalidate.
	DynamicSuffixes []string
}

// DefaultPolicy serves /tools.json stale-while-revalidate and everything
// else cache-first.
func DefaultPolicy() Policy {
	return Policy{DynamicSuffixes: []string{DefaultDynamicSuffix}}
}

// StrategyFor returns the strategy for req.
func (p Policy) StrategyFor(req *http.Request) Strategy {
	if req == nil || req.URL == nil {
		return CacheFirst
	}
	for _, suffix := range p.DynamicSuffixes {
		if suffix != "" && strings.HasSuffix(req.URL.Path, suffix) {
			return StaleWhileRevalidate
		}
	}
	return CacheFirst
}

// Cacheable reports whether responses to req may be stored or matched.
// Only GET requests are.
func Cacheable(req *http.Request) bool {
	if req == nil {
		return false
	}
	return req.Method == "" || req.Method == http.MethodGet
}
