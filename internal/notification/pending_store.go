package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sapliy/reminder-engine/internal/reminder"
)

// PendingStore mirrors the local facility's pending queue so it survives a
// restart. Put replaces entries with the same id.
type PendingStore interface {
	Load(ctx context.Context) ([]reminder.Descriptor, error)
	Put(ctx context.Context, batch []reminder.Descriptor) error
	Delete(ctx context.Context, ids []int) error
}

type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[int]reminder.Descriptor
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{entries: make(map[int]reminder.Descriptor)}
}

func (s *MemoryPendingStore) Load(ctx context.Context) ([]reminder.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reminder.Descriptor, 0, len(s.entries))
	for _, d := range s.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryPendingStore) Put(ctx context.Context, batch []reminder.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range batch {
		s.entries[d.ID] = d
	}
	return nil
}

func (s *MemoryPendingStore) Delete(ctx context.Context, ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

const defaultPendingKey = "reminders:pending"

// RedisPendingStore keeps pending descriptors in a single hash keyed by id.
type RedisPendingStore struct {
	rdb *redis.Client
	key string
}

func NewRedisPendingStore(rdb *redis.Client, key string) *RedisPendingStore {
	if key == "" {
		key = defaultPendingKey
	}
	return &RedisPendingStore{rdb: rdb, key: key}
}

func (s *RedisPendingStore) Load(ctx context.Context) ([]reminder.Descriptor, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending notifications: %w", err)
	}
	out := make([]reminder.Descriptor, 0, len(raw))
	for field, value := range raw {
		var d reminder.Descriptor
		if err := json.Unmarshal([]byte(value), &d); err != nil {
			return nil, fmt.Errorf("corrupt pending entry %s: %w", field, err)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put writes the batch in one MULTI/EXEC so a failure leaves nothing behind.
func (s *RedisPendingStore) Put(ctx context.Context, batch []reminder.Descriptor) error {
	if len(batch) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(batch)*2)
	for _, d := range batch {
		body, err := json.Marshal(d)
		if err != nil {
			return err
		}
		values = append(values, strconv.Itoa(d.ID), body)
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store pending notifications: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Delete(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	fields := make([]string, 0, len(ids))
	for _, id := range ids {
		fields = append(fields, strconv.Itoa(id))
	}
	if err := s.rdb.HDel(ctx, s.key, fields...).Err(); err != nil {
		return fmt.Errorf("failed to delete pending notifications: %w", err)
	}
	return nil
}
