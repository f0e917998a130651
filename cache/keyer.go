package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Keyer derives cache keys from requests.
//
// Contract:
// - Determinism: requests for the same method and URL produce the same key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(req *http.Request) (string, error)
}

// DefaultKeyer keys requests by method and URL, ignoring the fragment.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: "<METHOD> <url>", or "sha256:<hex>" of that string when it would
// exceed MaxKeyLength.
func (k *DefaultKeyer) Key(req *http.Request) (string, error) {
	if req == nil || req.URL == nil {
		return "", ErrInvalidKey
	}

	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	// Server-side parsing leaves a literal fragment in the path.
	if i := strings.IndexByte(u.Path, '#'); i >= 0 {
		u.Path = u.Path[:i]
		u.RawPath = ""
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	key := method + " " + u.String()
	if len(key) > MaxKeyLength {
		sum := sha256.Sum256([]byte(key))
		key = "sha256:" + hex.EncodeToString(sum[:])
	}

	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

var _ Keyer = (*DefaultKeyer)(nil)
