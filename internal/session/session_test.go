package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory redisClient built on go-redis result constructors.
type fakeRedis struct {
	mu     sync.Mutex
	data   map[string]string
	ttl    map[string]time.Duration
	getErr error
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttl[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			delete(f.ttl, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) TTL(_ context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	ttl, ok := f.ttl[key]
	if !ok {
		return redis.NewDurationResult(-2, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

// Scan returns every matching key in one page.
func (f *fakeRedis) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.data {
		if ok, _ := path.Match(match, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return redis.NewScanCmdResult(keys, 0, nil)
}

func (f *fakeRedis) Ping(_ context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error { return nil }

// backends runs fn against both Memory implementations.
func backends(t *testing.T, cfg Config, fn func(t *testing.T, m Memory)) {
	t.Helper()
	t.Run("redis", func(t *testing.T) {
		t.Parallel()
		fn(t, newRedisMemory(newFakeRedis(), cfg))
	})
	t.Run("local", func(t *testing.T) {
		t.Parallel()
		fn(t, NewLocalMemory(cfg))
	})
}

func TestMemory_AddExchangeAndHistory(t *testing.T) {
	t.Parallel()
	backends(t, Config{}, func(t *testing.T, m Memory) {
		ctx := context.Background()

		got, err := m.History(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, m.AddExchange(ctx, "s1", "cara install vpn?", "Unduh FortiClient."))
		got, err = m.History(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, RoleUser, got[0].Role)
		assert.Equal(t, "cara install vpn?", got[0].Content)
		assert.Equal(t, RoleAssistant, got[1].Role)
		assert.Equal(t, got[0].Timestamp, got[1].Timestamp)
	})
}

func TestMemory_TrimsToMaxMessages(t *testing.T) {
	t.Parallel()
	backends(t, Config{MaxMessages: 4}, func(t *testing.T, m Memory) {
		ctx := context.Background()
		for i := range 3 {
			require.NoError(t, m.AddExchange(ctx, "s", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
		}
		got, err := m.History(ctx, "s")
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, "q1", got[0].Content)
		assert.Equal(t, "a2", got[3].Content)
	})
}

func TestMemory_ClearListInfo(t *testing.T) {
	t.Parallel()
	backends(t, Config{TTL: time.Hour}, func(t *testing.T, m Memory) {
		ctx := context.Background()
		for _, id := range []string{"b", "a", "c"} {
			require.NoError(t, m.AddExchange(ctx, id, "q", "a"))
		}

		ids, err := m.List(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids)

		ids, err = m.List(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, ids, 2)

		info, err := m.Info(ctx, "a")
		require.NoError(t, err)
		assert.True(t, info.Exists)
		assert.Equal(t, 2, info.MessageCount)
		require.NotNil(t, info.TTLSeconds())
		assert.InDelta(t, 3600, *info.TTLSeconds(), 5)

		existed, err := m.Clear(ctx, "a")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = m.Clear(ctx, "a")
		require.NoError(t, err)
		assert.False(t, existed)

		info, err = m.Info(ctx, "a")
		require.NoError(t, err)
		assert.False(t, info.Exists)
		assert.Nil(t, info.TTLSeconds())
	})
}

func TestRedisMemory_StoresJSONUnderPrefixedKey(t *testing.T) {
	t.Parallel()
	fr := newFakeRedis()
	m := newRedisMemory(fr, Config{})

	require.NoError(t, m.AddExchange(context.Background(), "anon_1", "halo", "hai"))
	raw, ok := fr.data["chat_history:anon_1"]
	require.True(t, ok)
	assert.Contains(t, raw, `"role":"user"`)
	assert.Equal(t, DefaultTTL, fr.ttl["chat_history:anon_1"])
}

func TestRedisMemory_ReadErrorDoesNotOverwrite(t *testing.T) {
	t.Parallel()
	fr := newFakeRedis()
	m := newRedisMemory(fr, Config{})
	ctx := context.Background()
	require.NoError(t, m.AddExchange(ctx, "s", "q", "a"))
	before := fr.data["chat_history:s"]

	fr.getErr = errors.New("i/o timeout")
	_, err := m.History(ctx, "s")
	assert.Error(t, err)
	assert.Error(t, m.AddExchange(ctx, "s", "q2", "a2"))
	assert.Equal(t, before, fr.data["chat_history:s"])
}

func TestRedisMemory_CorruptValue(t *testing.T) {
	t.Parallel()
	fr := newFakeRedis()
	fr.data["chat_history:s"] = "not json"
	m := newRedisMemory(fr, Config{})

	_, err := m.History(context.Background(), "s")
	assert.ErrorContains(t, err, "corrupt history")
}

func TestRedisMemory_SetError(t *testing.T) {
	t.Parallel()
	fr := newFakeRedis()
	fr.setErr = errors.New("READONLY")
	m := newRedisMemory(fr, Config{})

	err := m.AddExchange(context.Background(), "s", "q", "a")
	assert.ErrorContains(t, err, "READONLY")
	assert.Empty(t, fr.data)
}

func TestLocalMemory_HistoryIsCopy(t *testing.T) {
	t.Parallel()
	m := NewLocalMemory(Config{})
	ctx := context.Background()
	require.NoError(t, m.AddExchange(ctx, "s", "q", "a"))

	got, err := m.History(ctx, "s")
	require.NoError(t, err)
	got[0].Content = "mutated"

	again, err := m.History(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "q", again[0].Content)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "")
	t.Setenv("REDIS_ADDR", "")
	m, err := FromEnv(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &LocalMemory{}, m)

	t.Setenv("SESSION_BACKEND", "etcd")
	_, err = FromEnv(context.Background())
	assert.ErrorContains(t, err, "unknown backend")
}
