package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/54b3r/helpdesk-rag/internal/logging"
)

var tracer = otel.Tracer("github.com/54b3r/helpdesk-rag/internal/session")

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// redisClient is the subset of *redis.Client used here.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisConfig holds connection parameters for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Config
}

// RedisMemory implements Memory on Redis with one string key per session.
type RedisMemory struct {
	client redisClient
	cfg    Config
	now    func() time.Time
}

// NewRedisMemory connects to Redis and verifies the connection with PING.
func NewRedisMemory(ctx context.Context, cfg RedisConfig) (*RedisMemory, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("session: failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return newRedisMemory(rdb, cfg.Config), nil
}

func newRedisMemory(client redisClient, cfg Config) *RedisMemory {
	return &RedisMemory{client: client, cfg: cfg.withDefaults(), now: time.Now}
}

// History implements Memory.
func (m *RedisMemory) History(ctx context.Context, sessionID string) ([]Message, error) {
	ctx, span := tracer.Start(ctx, "session.History",
		trace.WithAttributes(attribute.String("session.key", Key(sessionID))))
	defer span.End()

	history, err := m.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("session.messages", len(history)))
	return history, nil
}

// AddExchange implements Memory. The read-modify-write is not atomic across
// clients; concurrent writers to one session resolve as last write wins.
func (m *RedisMemory) AddExchange(ctx context.Context, sessionID, userText, assistantText string) error {
	key := Key(sessionID)
	ctx, span := tracer.Start(ctx, "session.AddExchange",
		trace.WithAttributes(
			attribute.String("session.key", key),
			attribute.Int64("session.ttl_ms", m.cfg.TTL.Milliseconds()),
		))
	defer span.End()

	history, err := m.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	history = appendExchange(history, userText, assistantText, m.now().UTC(), m.cfg.MaxMessages)

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to encode history: %w", err)
	}
	if err := m.client.Set(ctx, key, data, m.cfg.TTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to save %s: %w", key, err)
	}

	logging.FromContext(ctx).Debug("session: exchange saved",
		slog.String("session_id", sessionID),
		slog.Int("messages", len(history)),
	)
	return nil
}

// Clear implements Memory.
func (m *RedisMemory) Clear(ctx context.Context, sessionID string) (bool, error) {
	key := Key(sessionID)
	ctx, span := tracer.Start(ctx, "session.Clear",
		trace.WithAttributes(attribute.String("session.key", key)))
	defer span.End()

	n, err := m.client.Del(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: failed to delete %s: %w", key, err)
	}
	return n > 0, nil
}

// List implements Memory using SCAN over the session key prefix.
func (m *RedisMemory) List(ctx context.Context, limit int) ([]string, error) {
	ctx, span := tracer.Start(ctx, "session.List")
	defer span.End()

	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := m.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("session: scan failed: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, idFromKey(k))
		}
		cursor = next
		if cursor == 0 || (limit > 0 && len(ids) >= limit) {
			break
		}
	}

	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	span.SetAttributes(attribute.Int("session.count", len(ids)))
	return ids, nil
}

// Info implements Memory.
func (m *RedisMemory) Info(ctx context.Context, sessionID string) (*Info, error) {
	key := Key(sessionID)
	ctx, span := tracer.Start(ctx, "session.Info",
		trace.WithAttributes(attribute.String("session.key", key)))
	defer span.End()

	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: exists check failed: %w", err)
	}
	info := &Info{SessionID: sessionID}
	if n == 0 {
		return info, nil
	}

	history, err := m.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	ttl, err := m.client.TTL(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: ttl lookup failed: %w", err)
	}

	info.Exists = true
	info.MessageCount = len(history)
	if ttl > 0 {
		info.TTL = ttl
	}
	return info, nil
}

// Ping checks the Redis connection; used by the readiness endpoint.
func (m *RedisMemory) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.Ping")
	defer span.End()

	if err := m.client.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: redis ping failed: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (m *RedisMemory) Close() error {
	return m.client.Close()
}

// load reads and decodes a session. A missing key is an empty history.
func (m *RedisMemory) load(ctx context.Context, sessionID string) ([]Message, error) {
	key := Key(sessionID)
	raw, err := m.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: failed to read %s: %w", key, err)
	}

	var history []Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("session: corrupt history at %s: %w", key, err)
	}
	return history, nil
}
