package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// Store keeps the association between a session id and the user
	// that owns it.
	Store interface {
		Save(ctx context.Context, id string, userID int64) error
		Lookup(ctx context.Context, id string) (userID int64, found bool, err error)
		Delete(ctx context.Context, id string) error
	}

	memStore struct {
		cache *bigcache.BigCache
	}
)

// InMemoryStore returns a Store that forgets sessions after ttl or when the
// process exits, whatever comes first.
func InMemoryStore(ttl time.Duration) (Store, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10_000
	cfg.MaxEntrySize = 64
	cfg.CleanWindow = ttl / 4
	if cfg.CleanWindow < time.Second {
		cfg.CleanWindow = time.Second
	}
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create session cache, cause %w", err)
	}
	return &memStore{
		cache: cache,
	}, nil
}

func (m *memStore) Save(ctx context.Context, id string, userID int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(userID))
	return m.cache.Set(id, buf[:])
}

func (m *memStore) Lookup(ctx context.Context, id string) (int64, bool, error) {
	buf, err := m.cache.Get(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	if len(buf) != 8 {
		return 0, false, fmt.Errorf("session %v holds %v bytes, expecting 8", id, len(buf))
	}
	return int64(binary.BigEndian.Uint64(buf)), true, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	err := m.cache.Delete(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}
