// Package signalbus coalesces bursts of "please rewrite and reload" requests
// into a single deferred action per artifact kind. Mutations set an idempotent
// pending flag in shared state; a sweep at the end of the unit of work clears
// each flag and runs the action once. Two workers racing on the same flag can
// at worst both write, which converges to the same on-disk state.
package signalbus

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Kind identifies one generated artifact.
type Kind string

const (
	KindConfig Kind = "config"
	KindRules  Kind = "rules"
	KindURLs   Kind = "urls"
)

// PendingStore holds the cross-process pending flags. Set must be idempotent
// (a flag, not a counter); Clear must atomically report whether the flag was
// set while removing it.
type PendingStore interface {
	Set(ctx context.Context, kind Kind) error
	Clear(ctx context.Context, kind Kind) (bool, error)
}

// Action performs the actual write-and-reload for one kind.
type Action func(ctx context.Context) error

// Bus wires pending flags to registered actions.
type Bus struct {
	store PendingStore

	mu      sync.RWMutex
	actions map[Kind]Action
}

func New(store PendingStore) *Bus {
	return &Bus{store: store, actions: make(map[Kind]Action)}
}

func (b *Bus) Register(kind Kind, action Action) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions[kind] = action
}

// Queue marks the kind as pending. Safe to call any number of times per unit
// of work; the sweep runs the action once.
func (b *Bus) Queue(ctx context.Context, kind Kind) {
	if err := b.store.Set(ctx, kind); err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("signalbus: failed to set pending flag")
		return
	}
	log.Debug().Str("kind", string(kind)).Msg("signalbus: queued")
}

// Sweep clears every pending flag and executes the matching action exactly
// once per set flag. Kinds that were not queued perform no I/O.
func (b *Bus) Sweep(ctx context.Context) {
	b.mu.RLock()
	kinds := make([]Kind, 0, len(b.actions))
	for kind := range b.actions {
		kinds = append(kinds, kind)
	}
	b.mu.RUnlock()

	for _, kind := range kinds {
		wasSet, err := b.store.Clear(ctx, kind)
		if err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("signalbus: failed to clear pending flag")
			continue
		}
		if !wasSet {
			continue
		}
		log.Info().Str("kind", string(kind)).Msg("signalbus: executing deferred write")
		if err := b.run(ctx, kind); err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("signalbus: deferred write failed")
		}
	}
}

// Force executes the action immediately, bypassing the pending check.
// Bulk operations use this for an unconditional write.
func (b *Bus) Force(ctx context.Context, kind Kind) error {
	// Drop a possibly pending flag so the following sweep does not repeat
	// the work we are about to do.
	if _, err := b.store.Clear(ctx, kind); err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("signalbus: failed to clear pending flag")
	}
	return b.run(ctx, kind)
}

func (b *Bus) run(ctx context.Context, kind Kind) error {
	b.mu.RLock()
	action, ok := b.actions[kind]
	b.mu.RUnlock()
	if !ok {
		log.Warn().Str("kind", string(kind)).Msg("signalbus: no action registered")
		return nil
	}
	return action(ctx)
}

// MemoryStore is an in-process PendingStore for tests and single-node use.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[Kind]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[Kind]bool)}
}

func (s *MemoryStore) Set(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[kind] = true
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, kind Kind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.pending[kind]
	delete(s.pending, kind)
	return was, nil
}

// RedisStore keeps pending flags in a shared redis instance so every process
// serving mutations sees the same state. Flags have no TTL; they live until
// a sweep clears them.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "promfleet:pending:"}
}

func (s *RedisStore) Set(ctx context.Context, kind Kind) error {
	return s.rdb.Set(ctx, s.prefix+string(kind), "1", 0).Err()
}

func (s *RedisStore) Clear(ctx context.Context, kind Kind) (bool, error) {
	_, err := s.rdb.GetDel(ctx, s.prefix+string(kind)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
