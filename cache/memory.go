package cache

import (
	"context"
	"sync"
)

// MemoryStorage is an in-process Storage. Names and keys keep insertion order.
type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]*memoryCache
	order  []string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*memoryCache)}
}

// Open returns the named cache, creating it if absent.
func (s *MemoryStorage) Open(_ context.Context, name string) (Cache, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[name]
	if !ok {
		c = &memoryCache{name: name, entries: make(map[string]Entry)}
		s.caches[name] = c
		s.order = append(s.order, name)
	}
	return c, nil
}

func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.caches[name]
	s.mu.RUnlock()
	return ok, nil
}

// Delete removes the named cache. Handles already opened keep working but
// are no longer reachable through the storage.
func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caches[name]; !ok {
		return false, nil
	}
	delete(s.caches, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryStorage) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.order))
	copy(names, s.order)
	return names, nil
}

// Match searches caches in creation order.
func (s *MemoryStorage) Match(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	caches := make([]*memoryCache, 0, len(s.order))
	for _, name := range s.order {
		caches = append(caches, s.caches[name])
	}
	s.mu.RUnlock()

	for _, c := range caches {
		if e, ok, _ := c.Match(ctx, key); ok {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

type memoryCache struct {
	name    string
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

func (c *memoryCache) Name() string { return c.name }

func (c *memoryCache) Match(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	return e.clone(), true, nil
}

func (c *memoryCache) Put(_ context.Context, key string, entry Entry) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	c.put(key, entry)
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) PutAll(_ context.Context, records []Record) error {
	for _, r := range records {
		if err := ValidateKey(r.Key); err != nil {
			return err
		}
	}
	c.mu.Lock()
	for _, r := range records {
		c.put(r.Key, r.Entry)
	}
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) put(key string, entry Entry) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry.clone()
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return nil
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *memoryCache) Keys(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys, nil
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Cache   = (*memoryCache)(nil)
)
