package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "sqlflow"
	defaultTTL    = 72 * time.Hour
)

// RedisStore persists checkpoints to Redis.
// A single SET per save makes the latest-wins replacement atomic.
type RedisStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix (default "sqlflow").
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if strings.TrimSpace(prefix) != "" {
			s.prefix = strings.TrimSpace(prefix)
		}
	}
}

// WithRedisTTL sets the checkpoint expiry (default 72h, 0 disables expiry).
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithRedisClient supplies an existing client instead of dialing addr.
func WithRedisClient(client *goredis.Client) RedisOption {
	return func(s *RedisStore) {
		if client != nil {
			s.client = client
		}
	}
}

// NewRedisStore creates a Redis-backed checkpoint store.
func NewRedisStore(addr string, opts ...RedisOption) (*RedisStore, error) {
	s := &RedisStore{
		prefix: defaultPrefix,
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		if strings.TrimSpace(addr) == "" {
			return nil, fmt.Errorf("redis addr is required")
		}
		s.client = goredis.NewClient(&goredis.Options{Addr: addr})
	}

	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":checkpoint:" + sessionID
}

// Save implements Store.
func (s *RedisStore) Save(sessionID string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := s.client.Set(context.Background(), s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := s.client.Get(context.Background(), s.key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// Info implements Store.
func (s *RedisStore) Info(sessionID string) (Info, error) {
	data, err := s.Load(sessionID)
	if err != nil {
		return Info{}, err
	}

	cp, err := Unmarshal(data)
	if err != nil {
		return Info{}, fmt.Errorf("checkpoint info: %w", err)
	}

	return Info{
		SessionID: sessionID,
		NodeID:    cp.NodeID,
		Sequence:  cp.Sequence,
		Timestamp: cp.Timestamp,
		Size:      int64(len(data)),
	}, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(sessionID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := s.client.Del(context.Background(), s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
