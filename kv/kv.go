package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrUnknownBackend = errors.New("kv: unknown backend")
	ErrInvalidKey     = errors.New("kv: key is invalid")
	ErrClosed         = errors.New("kv: store is closed")
	ErrPathRequired   = errors.New("kv: path is required")
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// ValidBackends lists the backend names Open accepts.
var ValidBackends = []string{BackendMemory, BackendFile, BackendBolt, BackendSQLite}

// Store is a string key-value store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get returns ("", false, nil) on a missing key.
// - Close is idempotent; operations after Close return ErrClosed.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open returns the store for backend. path is ignored by the memory backend.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendFile:
		return OpenFile(path)
	case BackendBolt:
		return OpenBolt(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// GetJSON decodes the value under key into v. ok is false when the key is
// missing; v is then left untouched.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// Ping reports whether s can serve a read.
func Ping(ctx context.Context, s Store) error {
	_, _, err := s.Get(ctx, "__ping")
	return err
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
	_ Store = (*Bolt)(nil)
	_ Store = (*SQLite)(nil)
)
