package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers which command ids have been applied. Claim reports true
// only the first time it sees an id.
type Ledger interface {
	Claim(ctx context.Context, commandID string) (bool, error)
	Release(ctx context.Context, commandID string) error
}

type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: map[string]struct{}{}}
}

func (m *MemoryLedger) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	m.seen[id] = struct{}{}
	return true, nil
}

func (m *MemoryLedger) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
	return nil
}

// RedisLedger keeps claimed ids in Redis so several server processes share
// one dedup window.
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLedger connects to redisURL (redis://host:port/db). ttl bounds how
// long an id is remembered; zero keeps ids forever.
func NewRedisLedger(redisURL string, ttl time.Duration) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisLedgerWithClient(client, ttl), nil
}

func NewRedisLedgerWithClient(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, prefix: "checkmate:cmd:", ttl: ttl}
}

func (l *RedisLedger) key(id string) string { return l.prefix + id }

func (l *RedisLedger) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(id), time.Now().UTC().Format(time.RFC3339Nano), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim command %s: %w", id, err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, id string) error {
	if err := l.client.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("release command %s: %w", id, err)
	}
	return nil
}

func (l *RedisLedger) Close() error { return l.client.Close() }
