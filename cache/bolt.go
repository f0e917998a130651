package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var rootBucket = []byte("caches")

// BoltStorage persists caches to a bbolt database. Each cache is a nested
// bucket under a single root bucket; entries are JSON-encoded.
// Names are returned in lexical order.
type BoltStorage struct {
	mu     sync.RWMutex
	db     *bolt.DB
	closed bool
}

// OpenBoltStorage opens (creating if needed) the database at path.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("cache: bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("cache: ensure cache dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

// Close closes the database. Idempotent.
func (s *BoltStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *BoltStorage) view(ctx context.Context, fn func(root *bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStorageClosed
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(rootBucket))
	})
}

func (s *BoltStorage) update(ctx context.Context, fn func(root *bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStorageClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(rootBucket))
	})
}

func (s *BoltStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := s.update(ctx, func(root *bolt.Bucket) error {
		_, err := root.CreateBucketIfNotExists([]byte(name))
		return err
	}); err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", name, err)
	}
	return &boltCache{storage: s, name: name}, nil
}

func (s *BoltStorage) Has(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := s.view(ctx, func(root *bolt.Bucket) error {
		ok = root.Bucket([]byte(name)) != nil
		return nil
	})
	return ok, err
}

func (s *BoltStorage) Delete(ctx context.Context, name string) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(root *bolt.Bucket) error {
		if root.Bucket([]byte(name)) == nil {
			return nil
		}
		deleted = true
		return root.DeleteBucket([]byte(name))
	})
	if err != nil {
		return false, fmt.Errorf("cache: delete %s: %w", name, err)
	}
	return deleted, nil
}

func (s *BoltStorage) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := s.view(ctx, func(root *bolt.Bucket) error {
		return root.ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	return names, err
}

func (s *BoltStorage) Match(ctx context.Context, key string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)
	err := s.view(ctx, func(root *bolt.Bucket) error {
		return root.ForEach(func(k, v []byte) error {
			if found || v != nil {
				return nil
			}
			raw := root.Bucket(k).Get([]byte(key))
			if raw == nil {
				return nil
			}
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("%w: %s in %s", ErrCorruptedEntry, key, k)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, found, nil
}

type boltCache struct {
	storage *BoltStorage
	name    string
}

func (c *boltCache) Name() string { return c.name }

// bucket returns the cache bucket, or nil when the cache was deleted.
func (c *boltCache) bucket(root *bolt.Bucket) *bolt.Bucket {
	return root.Bucket([]byte(c.name))
}

func (c *boltCache) Match(ctx context.Context, key string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)
	err := c.storage.view(ctx, func(root *bolt.Bucket) error {
		b := c.bucket(root)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("%w: %s", ErrCorruptedEntry, key)
		}
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, found, nil
}

func (c *boltCache) Put(ctx context.Context, key string, entry Entry) error {
	return c.PutAll(ctx, []Record{{Key: key, Entry: entry}})
}

// PutAll writes every record in one transaction. Writes through a handle
// whose cache has been deleted are dropped, as with MemoryStorage.
func (c *boltCache) PutAll(ctx context.Context, records []Record) error {
	encoded := make([][]byte, len(records))
	for i, r := range records {
		if err := ValidateKey(r.Key); err != nil {
			return err
		}
		data, err := json.Marshal(r.Entry)
		if err != nil {
			return fmt.Errorf("cache: encode %s: %w", r.Key, err)
		}
		encoded[i] = data
	}
	return c.storage.update(ctx, func(root *bolt.Bucket) error {
		b := c.bucket(root)
		if b == nil {
			return nil
		}
		for i, r := range records {
			if err := b.Put([]byte(r.Key), encoded[i]); err != nil {
				return fmt.Errorf("cache: put %s: %w", r.Key, err)
			}
		}
		return nil
	})
}

func (c *boltCache) Delete(ctx context.Context, key string) error {
	return c.storage.update(ctx, func(root *bolt.Bucket) error {
		b := c.bucket(root)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (c *boltCache) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.storage.view(ctx, func(root *bolt.Bucket) error {
		b := c.bucket(root)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

var (
	_ Storage = (*BoltStorage)(nil)
	_ Cache   = (*boltCache)(nil)
)
