package clientstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements Store on an in-process cache. It is used in
// tests and in redis-less local development. Values go through JSON the
// same way the redis store does, so malformed-blob behaviour matches.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates an in-memory store with periodic eviction.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// Get reads and unmarshals the JSON blob at key.
func (s *MemoryStore) Get(_ context.Context, key string, result any) (bool, error) {
	const op = "clientstate.MemoryStore.Get"
	raw, found := s.c.Get(key)
	if !found {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, fmt.Errorf("%s: unexpected value type for key %s", op, key)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set marshals the value to JSON and stores it with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	const op = "clientstate.MemoryStore.Set"
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	s.c.Set(key, data, expiration)
	return nil
}

// Clear removes the key.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

// SetRaw stores an already-encoded blob, bypassing marshalling. Tests use
// it to simulate corrupt legacy data.
func (s *MemoryStore) SetRaw(key string, data []byte) {
	s.c.Set(key, data, gocache.NoExpiration)
}
