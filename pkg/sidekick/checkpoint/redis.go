package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "sidekick:checkpoint:"

// RedisStore persists checkpoints to Redis. It is suitable for
// multi-process deployments where sessions migrate between hosts.
//
// Layout: one hash per session keyed by node ID, with a companion
// counter key for sequence assignment.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisOptions)

type redisOptions struct {
	password string
	db       int
	ttl      time.Duration
	prefix   string
}

// WithRedisPassword sets the AUTH password.
func WithRedisPassword(password string) RedisOption {
	return func(o *redisOptions) { o.password = password }
}

// WithRedisDB selects the logical database.
func WithRedisDB(db int) RedisOption {
	return func(o *redisOptions) { o.db = db }
}

// WithRedisTTL bounds checkpoint lifetime. Each Save refreshes the
// expiry. Zero (the default) means checkpoints never expire.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(o *redisOptions) { o.ttl = ttl }
}

// WithRedisKeyPrefix overrides the default key prefix.
func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(o *redisOptions) { o.prefix = prefix }
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(addr string, opts ...RedisOption) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address must not be empty")
	}

	options := redisOptions{prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(&options)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: options.password,
		DB:       options.db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: options.prefix,
		ttl:    options.ttl,
	}, nil
}

// redisEnvelope wraps checkpoint data with store-assigned metadata.
type redisEnvelope struct {
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

func (r *RedisStore) sessionKey(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) seqKey(sessionID string) string {
	return r.prefix + sessionID + ":seq"
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, sessionID, nodeID string, data []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStoreClosed
	}

	seq, err := r.client.Incr(ctx, r.seqKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("assign checkpoint sequence: %w", err)
	}

	payload, err := json.Marshal(redisEnvelope{
		Sequence:  int(seq),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint envelope: %w", err)
	}

	if err := r.client.HSet(ctx, r.sessionKey(sessionID), nodeID, payload).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	if r.ttl > 0 {
		r.client.Expire(ctx, r.sessionKey(sessionID), r.ttl)
		r.client.Expire(ctx, r.seqKey(sessionID), r.ttl)
	}
	return nil
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, sessionID, nodeID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrStoreClosed
	}

	payload, err := r.client.HGet(ctx, r.sessionKey(sessionID), nodeID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode checkpoint envelope: %w", err)
	}
	return env.Data, nil
}

// Latest implements Store.
func (r *RedisStore) Latest(ctx context.Context, sessionID string) ([]byte, error) {
	envs, err := r.envelopes(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, ErrNotFound
	}

	latest := envs[0]
	for _, env := range envs[1:] {
		if env.Sequence > latest.Sequence {
			latest = env
		}
	}
	return latest.Data, nil
}

// List implements Store.
func (r *RedisStore) List(ctx context.Context, sessionID string) ([]Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrStoreClosed
	}

	fields, err := r.client.HGetAll(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	infos := make([]Info, 0, len(fields))
	for nodeID, payload := range fields {
		var env redisEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return nil, fmt.Errorf("decode checkpoint envelope: %w", err)
		}
		infos = append(infos, Info{
			SessionID: sessionID,
			NodeID:    nodeID,
			Sequence:  env.Sequence,
			Timestamp: env.Timestamp,
			Size:      int64(len(env.Data)),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})

	return infos, nil
}

// envelopes fetches and decodes every checkpoint for a session.
func (r *RedisStore) envelopes(ctx context.Context, sessionID string) ([]redisEnvelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrStoreClosed
	}

	fields, err := r.client.HGetAll(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}

	envs := make([]redisEnvelope, 0, len(fields))
	for _, payload := range fields {
		var env redisEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return nil, fmt.Errorf("decode checkpoint envelope: %w", err)
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, sessionID, nodeID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStoreClosed
	}

	if err := r.client.HDel(ctx, r.sessionKey(sessionID), nodeID).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DeleteSession implements Store.
func (r *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStoreClosed
	}

	if err := r.client.Del(ctx, r.sessionKey(sessionID), r.seqKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	return r.client.Close()
}
