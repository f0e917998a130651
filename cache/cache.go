package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilStorage     = errors.New("cache: storage is nil")
	ErrInvalidKey     = errors.New("cache: key is invalid")
	ErrKeyTooLong     = errors.New("cache: key exceeds max length")
	ErrInvalidName    = errors.New("cache: cache name is invalid")
	ErrStorageClosed  = errors.New("cache: storage is closed")
	ErrNotCacheable   = errors.New("cache: request is not cacheable")
	ErrNilResponse    = errors.New("cache: response is nil")
	ErrCorruptedEntry = errors.New("cache: stored entry is corrupted")
)

// Entry is a stored response.
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	StoredAt time.Time   `json:"stored_at"`
}

// OK reports whether the stored status is 2xx.
func (e Entry) OK() bool {
	return e.Status >= 200 && e.Status < 300
}

// Response rebuilds an *http.Response for req. Each call returns an
// independent body reader.
func (e Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func (e Entry) clone() Entry {
	e.Header = e.Header.Clone()
	e.Body = bytes.Clone(e.Body)
	return e
}

// ReadEntry drains and closes resp.Body into an Entry.
func ReadEntry(resp *http.Response) (Entry, error) {
	if resp == nil {
		return Entry{}, ErrNilResponse
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("cache: read response body: %w", err)
	}

	var url string
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}
	return Entry{
		URL:      url,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}

// Record pairs a key with an entry for batch writes.
type Record struct {
	Key   string
	Entry Entry
}

// Cache is one named cache.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Match returns (Entry{}, false, nil) on miss.
type Cache interface {
	Name() string
	Match(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, entry Entry) error

	// PutAll stores all records or none of them.
	PutAll(ctx context.Context, records []Record) error

	// Delete removes an entry. Idempotent.
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Storage is a set of named caches.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Open creates the named cache when it does not exist.
// - Delete reports whether a cache was removed.
type Storage interface {
	Open(ctx context.Context, name string) (Cache, error)
	Has(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) (bool, error)
	Names(ctx context.Context) ([]string, error)

	// Match looks the key up in every cache and returns the first hit.
	Match(ctx context.Context, key string) (Entry, bool, error)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// ValidateName checks if a cache name is usable.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "\n\r") {
		return ErrInvalidName
	}
	return nil
}
