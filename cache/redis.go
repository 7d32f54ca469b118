package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wtthornton/TappMCP-sub003/knowledge"
	"github.com/wtthornton/TappMCP-sub003/observe"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	// Default: "localhost:6379"
	Addr string

	// Password authenticates the connection. Optional.
	Password string

	// DB selects the logical database.
	// Default: 0
	DB int

	// KeyPrefix namespaces every key.
	// Default: "knowcache"
	KeyPrefix string

	// PoolSize is the connection pool size.
	// Default: 10
	PoolSize int

	// MinIdleConns keeps warm connections ready.
	// Default: 2
	MinIdleConns int

	// DialTimeout, ReadTimeout and WriteTimeout bound socket operations.
	// Defaults: 5s, 3s, 3s
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger for storage faults. Optional.
	Logger observe.Logger
}

// envelope is the stored JSON shape. Entry metadata rides along so a shared
// store round-trips the same view of freshness every process sees locally.
type envelope struct {
	Key       string    `json:"key"`
	Topic     string    `json:"topic"`
	Content   []byte    `json:"content"`
	Source    string    `json:"source,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStore is a Store backed by Redis, for deployments that want entries
// shared across processes or surviving restarts.
//
// Capacity differs from MemoryStore: expiry is native (SweepExpired is a
// no-op) and memory bounds are enforced by the server's maxmemory policy.
// Run allkeys-lru for Put's displacement semantics; a server refusing writes
// at its memory limit surfaces as ErrNoRoom from PutIfRoom. Stats therefore
// reports no entry or byte totals.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger observe.Logger

	expired  atomic.Int64
	rejected atomic.Int64
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "knowcache"
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.MinIdleConns <= 0 {
		cfg.MinIdleConns = 2
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: cfg.Logger.WithComponent("redis-store"),
	}, nil
}

// Get retrieves a value. Undecodable or expired payloads are deleted and
// reported as misses.
func (r *RedisStore) Get(ctx context.Context, key string) (*knowledge.Result, bool) {
	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn(ctx, "redis get failed",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: err.Error()})
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.Warn(ctx, "dropping undecodable entry",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err.Error()})
		r.client.Del(ctx, r.fullKey(key))
		return nil, false
	}

	// Native TTL should have reclaimed this already; guard against clock
	// skew between writers.
	if time.Now().After(env.ExpiresAt) {
		r.client.Del(ctx, r.fullKey(key))
		r.expired.Add(1)
		return nil, false
	}

	return &knowledge.Result{
		Topic:     env.Topic,
		Content:   env.Content,
		Source:    env.Source,
		FetchedAt: env.FetchedAt,
	}, true
}

// Put stores value under key for ttl.
func (r *RedisStore) Put(ctx context.Context, key string, value *knowledge.Result, ttl time.Duration) error {
	data, err := r.encode(key, value, ttl)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.fullKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %q: %w", key, err)
	}
	return nil
}

// PutIfRoom stores value unless the server refuses writes at its memory
// limit, which maps to ErrNoRoom.
func (r *RedisStore) PutIfRoom(ctx context.Context, key string, value *knowledge.Result, ttl time.Duration) error {
	data, err := r.encode(key, value, ttl)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.fullKey(key), data, ttl).Err(); err != nil {
		if isRedisOOM(err) {
			r.rejected.Add(1)
			return ErrNoRoom
		}
		return fmt.Errorf("cache: redis set %q: %w", key, err)
	}
	return nil
}

// Fresh reports whether key is present. Expiry is native, so presence
// implies freshness.
func (r *RedisStore) Fresh(ctx context.Context, key string) bool {
	n, err := r.client.Exists(ctx, r.fullKey(key)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Invalidate removes key and reports whether it was present.
func (r *RedisStore) Invalidate(ctx context.Context, key string) bool {
	n, err := r.client.Del(ctx, r.fullKey(key)).Result()
	if err != nil {
		r.logger.Warn(ctx, "redis del failed",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err.Error()})
		return false
	}
	return n > 0
}

// InvalidateAll removes every key under the prefix and returns the count.
func (r *RedisStore) InvalidateAll(ctx context.Context) int {
	removed := 0
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 256).Iterator()
	batch := make([]string, 0, 256)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			r.logger.Warn(ctx, "redis batch delete failed",
				observe.Field{Key: "error", Value: err.Error()})
			return
		}
		removed += int(n)
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 256 {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		r.logger.Warn(ctx, "redis scan failed",
			observe.Field{Key: "error", Value: err.Error()})
	}
	return removed
}

// SweepExpired is a no-op: Redis reclaims expired keys natively.
func (r *RedisStore) SweepExpired(context.Context) int {
	return 0
}

// Stats returns the counters this adapter can observe client-side. Entry
// and byte totals live in the server and are reported as zero, which also
// disables local memory-utilization health checks.
func (r *RedisStore) Stats() StoreStats {
	return StoreStats{
		Expired:  r.expired.Load(),
		Rejected: r.rejected.Load(),
	}
}

// Close releases the client's connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) encode(key string, value *knowledge.Result, ttl time.Duration) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, ErrNilValue
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	now := time.Now()
	data, err := json.Marshal(envelope{
		Key:       key,
		Topic:     value.Topic,
		Content:   value.Content,
		Source:    value.Source,
		FetchedAt: value.FetchedAt,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: encode entry %q: %w", key, err)
	}
	return data, nil
}

func (r *RedisStore) fullKey(key string) string {
	return r.prefix + ":" + key
}

// isRedisOOM matches the server's refusal to allocate under maxmemory with
// a noeviction policy.
func isRedisOOM(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "OOM")
}

var _ Store = (*RedisStore)(nil)
