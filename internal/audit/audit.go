// Package audit provides structured audit records for CLI command invocations
// and answered helpdesk queries. Command records carry the resolved
// configuration with secrets reduced to presence/absence. Query records carry
// who asked and how the query was resolved, never the question text.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// secretEnvKeys lists environment variable names whose values must never be
// logged. Only presence ("set") or absence ("unset") is recorded.
var secretEnvKeys = map[string]bool{
	"OPENAI_API_KEY":        true,
	"AZURE_OPENAI_API_KEY":  true,
	"GOOGLE_API_KEY":        true,
	"EMBEDDING_API_KEY":     true,
	"QDRANT_API_KEY":        true,
	"ARK_API_KEY":           true,
	"REDIS_PASSWORD":        true,
	"HELPDESK_API_KEYS":     true,
	"LANGFUSE_PUBLIC_KEY":   true,
	"LANGFUSE_SECRET_KEY":   true,
}

// LogCommandStart emits a structured audit log entry when a CLI command begins.
// It records the command name, config file source, and sanitised environment.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}

	// Log key operational env vars with sanitisation.
	for _, entry := range auditKeys {
		val := os.Getenv(entry.key)
		if entry.secret {
			attrs = append(attrs, slog.String(entry.key, presence(val)))
		} else {
			attrs = append(attrs, slog.String(entry.key, valOrUnset(val)))
		}
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	// key is the environment variable name.
	key string
	// secret indicates the value should be redacted to presence/absence.
	secret bool
}

// auditKeys is the ordered list of env vars included in every audit log entry.
var auditKeys = []auditEntry{
	{"MODEL_PROVIDER", false},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"OPENAI_API_KEY", true},
	{"OPENAI_MODEL", false},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"AZURE_OPENAI_DEPLOYMENT", false},
	{"GOOGLE_API_KEY", true},
	{"GEMINI_MODEL", false},
	{"ARK_API_KEY", true},
	{"ARK_MODEL", false},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	{"QDRANT_HOST", false},
	{"QDRANT_PORT", false},
	{"QDRANT_COLLECTION", false},
	{"QDRANT_API_KEY", true},
	{"RAG_TOP_K", false},
	{"SIMILARITY_THRESHOLD", false},
	{"HYBRID_SEARCH", false},
	{"SESSION_BACKEND", false},
	{"REDIS_ADDR", false},
	{"REDIS_PASSWORD", true},
	{"HELPDESK_API_KEYS", true},
	{"HELPDESK_CHECKPOINT_DB", false},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
}

// Query outcomes recorded by LogQuery.
const (
	OutcomeAnswered = "answered"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// QueryRecord describes one answered (or failed) query.
type QueryRecord struct {
	SessionID       string
	Role            string
	Outcome         string
	RejectionReason string
	Documents       int
	UsedTools       bool
	Duration        time.Duration
	// Err is set when Outcome is OutcomeFailed.
	Err error
}

// LogQuery emits one audit record for a query. Failed queries are logged at
// warn level.
func LogQuery(ctx context.Context, log *slog.Logger, rec QueryRecord) {
	attrs := []slog.Attr{
		slog.String("session_id", rec.SessionID),
		slog.String("role", rec.Role),
		slog.String("outcome", rec.Outcome),
		slog.Int("documents", rec.Documents),
		slog.Bool("used_tools", rec.UsedTools),
		slog.Duration("duration", rec.Duration),
	}
	if rec.RejectionReason != "" {
		attrs = append(attrs, slog.String("rejection_reason", rec.RejectionReason))
	}

	level := slog.LevelInfo
	if rec.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", rec.Err.Error()))
	}
	log.LogAttrs(ctx, level, "audit: query", attrs...)
}

// SanitiseKey returns "set" or "unset" for known secret keys, or the actual
// value for non-secret keys. This is safe to use in log messages.
func SanitiseKey(key, value string) string {
	if secretEnvKeys[key] {
		return presence(value)
	}
	return valOrUnset(value)
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	// Redact home directory for privacy in logs.
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
