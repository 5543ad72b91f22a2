package commands

import (
	"bytes"
	"strings"
	"testing"
)

// run executes the root command with args and returns its error.
func run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	return root.Execute()
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()
	root := NewRootCmd()
	want := []string{"ask", "serve", "ingest", "sessions", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestAsk_RejectsBadFlags(t *testing.T) {
	t.Setenv("HELPDESK_CONFIG", "")

	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown role", []string{"ask", "--role", "dean", "vpn?"}, "unknown role"},
		{"top-k too large", []string{"ask", "--top-k", "21", "vpn?"}, "--top-k"},
		{"no question", []string{"ask"}, "arg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := run(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestIngest_RejectsUnknownSensitivity(t *testing.T) {
	t.Setenv("HELPDESK_CONFIG", "")
	err := run(t, "ingest", "--sensitivity", "secret")
	if err == nil || !strings.Contains(err.Error(), "unknown sensitivity") {
		t.Fatalf("expected unknown sensitivity error, got %v", err)
	}
}

func TestSessionsList_RejectsBadLimit(t *testing.T) {
	t.Setenv("HELPDESK_CONFIG", "")
	err := run(t, "sessions", "list", "--limit", "0")
	if err == nil || !strings.Contains(err.Error(), "--limit") {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("HELPDESK_TEST_INT", "7")
	t.Setenv("HELPDESK_TEST_BAD", "x")
	t.Setenv("HELPDESK_TEST_DUR", "3s")

	if got := getEnvInt("HELPDESK_TEST_INT", 1); got != 7 {
		t.Errorf("getEnvInt = %d, want 7", got)
	}
	if got := getEnvInt("HELPDESK_TEST_BAD", 1); got != 1 {
		t.Errorf("getEnvInt with bad value = %d, want fallback 1", got)
	}
	if got := getEnvFloat("HELPDESK_TEST_BAD", 2.5); got != 2.5 {
		t.Errorf("getEnvFloat with bad value = %v, want fallback 2.5", got)
	}
	if got := getEnvDuration("HELPDESK_TEST_DUR", 0); got.Seconds() != 3 {
		t.Errorf("getEnvDuration = %v, want 3s", got)
	}
	if got := getEnvOrDefault("HELPDESK_TEST_UNSET", "fb"); got != "fb" {
		t.Errorf("getEnvOrDefault = %q, want fb", got)
	}
}
