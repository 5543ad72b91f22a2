package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("expected 'azure', got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.helpdesk/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.helpdesk/config.yaml" {
			t.Errorf("expected '~/.helpdesk/config.yaml', got %q", got)
		}
	}
}

func TestSanitiseKey_HelpdeskSecrets(t *testing.T) {
	t.Parallel()
	for _, k := range []string{"REDIS_PASSWORD", "HELPDESK_API_KEYS", "ARK_API_KEY"} {
		if got := SanitiseKey(k, "hunter2"); got != "set" {
			t.Errorf("%s: expected 'set', got %q", k, got)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("HELPDESK_API_KEYS", "k1:admin")
	t.Setenv("SESSION_BACKEND", "redis")

	var buf bytes.Buffer
	LogCommandStart(slog.New(slog.NewJSONHandler(&buf, nil)), "serve", "")

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "k1:admin") {
		t.Fatalf("secret value leaked into audit log: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["REDIS_PASSWORD"] != "set" || rec["SESSION_BACKEND"] != "redis" || rec["config_file"] != "none" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestLogQuery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogQuery(context.Background(), log, QueryRecord{
		SessionID:       "anon_1",
		Role:            "student",
		Outcome:         OutcomeRejected,
		RejectionReason: "insufficient_permissions",
		Duration:        150 * time.Millisecond,
	})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["level"] != "INFO" || rec["outcome"] != "rejected" || rec["rejection_reason"] != "insufficient_permissions" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestLogQuery_FailedIsWarn(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	LogQuery(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)), QueryRecord{
		Outcome: OutcomeFailed,
		Err:     errors.New("retrieval: search failed"),
	})
	if !strings.Contains(buf.String(), `"level":"WARN"`) || !strings.Contains(buf.String(), "search failed") {
		t.Errorf("unexpected record: %s", buf.String())
	}
	if strings.Contains(buf.String(), "rejection_reason") {
		t.Errorf("empty rejection reason should be omitted: %s", buf.String())
	}
}
