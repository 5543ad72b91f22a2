// Package session stores short-term conversation memory per session id.
// Each session is one JSON-encoded list of messages kept for a fixed TTL and
// trimmed to the most recent messages on every write.
//
// Two backends share the same semantics: Redis for multi-instance
// deployments and an in-process cache for single-node and development use.
package session

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long an idle session is kept.
	DefaultTTL = 2 * time.Hour

	// DefaultMaxMessages is the number of messages retained per session.
	DefaultMaxMessages = 10

	// keyPrefix namespaces session keys in the backing store.
	keyPrefix = "chat_history:"
)

// Message roles stored in history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one stored conversation message.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Info describes a stored session.
type Info struct {
	SessionID    string `json:"session_id"`
	Exists       bool   `json:"exists"`
	MessageCount int    `json:"message_count"`
	// TTL is the remaining lifetime; zero when unknown or the session is absent.
	TTL time.Duration `json:"-"`
}

// TTLSeconds returns the remaining lifetime in whole seconds, or nil when unknown.
func (i *Info) TTLSeconds() *int64 {
	if i.TTL <= 0 {
		return nil
	}
	s := int64(i.TTL / time.Second)
	return &s
}

// Memory is conversation memory keyed by session id.
// Implementations must be safe for concurrent use.
type Memory interface {
	// History returns the stored messages, oldest first. A missing session
	// yields an empty slice and no error.
	History(ctx context.Context, sessionID string) ([]Message, error)

	// AddExchange appends a user message and the assistant reply in a single
	// write, trims to the configured maximum, and refreshes the TTL.
	AddExchange(ctx context.Context, sessionID, userText, assistantText string) error

	// Clear deletes a session and reports whether it existed.
	Clear(ctx context.Context, sessionID string) (bool, error)

	// List returns session ids in ascending order. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]string, error)

	// Info returns metadata about a session.
	Info(ctx context.Context, sessionID string) (*Info, error)
}

// Config holds the retention settings shared by all backends.
type Config struct {
	TTL         time.Duration
	MaxMessages int
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	return c
}

// Key returns the storage key for sessionID.
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// idFromKey strips the key prefix.
func idFromKey(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}

// appendExchange adds both sides of an exchange with one timestamp and trims
// to the newest max messages.
func appendExchange(history []Message, userText, assistantText string, now time.Time, maxMessages int) []Message {
	history = append(history,
		Message{Role: RoleUser, Content: userText, Timestamp: now},
		Message{Role: RoleAssistant, Content: assistantText, Timestamp: now},
	)
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}
	return history
}
