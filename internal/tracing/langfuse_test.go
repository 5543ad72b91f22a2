package tracing

import "testing"

func TestConfigFromEnv_DefaultHost(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	cfg := ConfigFromEnv()
	if cfg.Host != defaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host, defaultHost)
	}
	if cfg.Enabled() {
		t.Error("Enabled() = true without keys")
	}
}

func TestConfig_EnabledNeedsBothKeys(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"none", Config{}, false},
		{"public only", Config{PublicKey: "pk"}, false},
		{"secret only", Config{SecretKey: "sk"}, false},
		{"both", Config{PublicKey: "pk", SecretKey: "sk"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Enabled(); got != tc.want {
				t.Errorf("Enabled() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSetup_DisabledReturnsNil(t *testing.T) {
	handler, flush, ok := Setup(Config{})
	if ok || handler != nil || flush != nil {
		t.Fatalf("Setup(disabled) = (%v, %v, %v), want all zero", handler, flush != nil, ok)
	}
}

func TestInstall_DisabledFlushIsNoop(t *testing.T) {
	flush, ok := Install(Config{})
	if ok {
		t.Fatal("Install(disabled) reported ok")
	}
	flush()
}
