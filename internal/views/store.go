// Package views persists which date groups a user has expanded in the
// daily log views.
package views

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itayakad/juno-master/internal/aggregate"
)

// Store keeps one expansion state per user and log kind.
type Store interface {
	Get(ctx context.Context, userID, kind string) (aggregate.ExpansionState, error)
	Toggle(ctx context.Context, userID, kind, date string) (aggregate.ExpansionState, error)
}

// MemoryStore keeps expansion state in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]aggregate.ExpansionState
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]aggregate.ExpansionState)}
}

// Get returns a copy of the stored state; unknown users get an empty one.
func (s *MemoryStore) Get(_ context.Context, userID, kind string) (aggregate.ExpansionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := maps.Clone(s.states[stateKey(userID, kind)])
	if state == nil {
		state = aggregate.ExpansionState{}
	}
	return state, nil
}

// Toggle flips one date and returns the new state.
func (s *MemoryStore) Toggle(_ context.Context, userID, kind, date string) (aggregate.ExpansionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stateKey(userID, kind)
	next := aggregate.ToggleExpansion(date, s.states[key])
	s.states[key] = next
	return maps.Clone(next), nil
}

// RedisStore keeps expansion state in a Redis hash per user and kind.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. Idle states expire after ttl; zero keeps them forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, userID, kind string) (aggregate.ExpansionState, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(userID, kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("load expansion state: %w", err)
	}
	return decodeState(fields), nil
}

// Toggle implements Store. The read-flip-write runs under WATCH so
// concurrent toggles of the same state retry instead of overwriting.
func (s *RedisStore) Toggle(ctx context.Context, userID, kind, date string) (aggregate.ExpansionState, error) {
	key := redisKey(userID, kind)
	var next aggregate.ExpansionState

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		next = aggregate.ToggleExpansion(date, decodeState(fields))
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, date, encodeFlag(next[date]))
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("toggle expansion state: %w", err)
		}
	}
	return nil, fmt.Errorf("toggle expansion state: %w", redis.TxFailedErr)
}

func decodeState(fields map[string]string) aggregate.ExpansionState {
	state := make(aggregate.ExpansionState, len(fields))
	for date, flag := range fields {
		state[date] = flag == "1"
	}
	return state
}

func encodeFlag(expanded bool) string {
	if expanded {
		return "1"
	}
	return "0"
}

func stateKey(userID, kind string) string {
	return userID + "|" + kind
}

func redisKey(userID, kind string) string {
	return "juno:expansion:" + userID + ":" + kind
}
