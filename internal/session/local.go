package session

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// LocalMemory implements Memory in process with go-cache. Sessions expire
// after the configured TTL and are lost on restart.
type LocalMemory struct {
	// mu serializes read-modify-write in AddExchange.
	mu    sync.Mutex
	items *cache.Cache
	cfg   Config
	now   func() time.Time
}

// NewLocalMemory returns an empty in-process Memory.
func NewLocalMemory(cfg Config) *LocalMemory {
	cfg = cfg.withDefaults()
	return &LocalMemory{
		items: cache.New(cfg.TTL, 10*time.Minute),
		cfg:   cfg,
		now:   time.Now,
	}
}

// History implements Memory.
func (m *LocalMemory) History(_ context.Context, sessionID string) ([]Message, error) {
	return m.get(sessionID), nil
}

// AddExchange implements Memory.
func (m *LocalMemory) AddExchange(_ context.Context, sessionID, userText, assistantText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := appendExchange(m.get(sessionID), userText, assistantText, m.now().UTC(), m.cfg.MaxMessages)
	m.items.Set(Key(sessionID), history, m.cfg.TTL)
	return nil
}

// Clear implements Memory.
func (m *LocalMemory) Clear(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(sessionID)
	if _, ok := m.items.Get(key); !ok {
		return false, nil
	}
	m.items.Delete(key)
	return true, nil
}

// List implements Memory.
func (m *LocalMemory) List(_ context.Context, limit int) ([]string, error) {
	ids := make([]string, 0)
	for k := range m.items.Items() {
		if strings.HasPrefix(k, keyPrefix) {
			ids = append(ids, idFromKey(k))
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Info implements Memory.
func (m *LocalMemory) Info(_ context.Context, sessionID string) (*Info, error) {
	info := &Info{SessionID: sessionID}
	v, exp, ok := m.items.GetWithExpiration(Key(sessionID))
	if !ok {
		return info, nil
	}
	info.Exists = true
	info.MessageCount = len(v.([]Message))
	if !exp.IsZero() {
		if ttl := exp.Sub(m.now()); ttl > 0 {
			info.TTL = ttl
		}
	}
	return info, nil
}

// get returns a copy so callers cannot mutate the cached slice.
func (m *LocalMemory) get(sessionID string) []Message {
	v, ok := m.items.Get(Key(sessionID))
	if !ok {
		return []Message{}
	}
	return slices.Clone(v.([]Message))
}
