//go:build integration

package embedder

import (
	"context"
	"math"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration embeds two knowledge-base chunks and a
// question against a running Ollama and checks that the question lands
// nearer the chunk that answers it, and that the vector size matches the
// configured collection size.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve
//
// Run with:
//
//	EMBEDDING_PROVIDER=ollama go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
func TestOllamaEmbedder_Integration(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", string(BackendOllama))
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	emb, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"Cara install VPN FortiClient di Windows: unduh installer dari portal IT lalu login dengan akun SSO.",
		"Reset password akun email kampus melalui portal SSO, menu Lupa Password.",
		"Bagaimana cara menghubungkan laptop ke VPN kampus?",
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed() failed: %v\n\nEnsure Ollama is running at %s and the model is pulled:\n  ollama pull %s", err, cfg.Endpoint, cfg.Model)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != cfg.Dimensions {
			t.Errorf("embedding[%d]: dim=%d, collection expects %d", i, len(v), cfg.Dimensions)
		}
	}

	vpn, password := cosine(vecs[2], vecs[0]), cosine(vecs[2], vecs[1])
	t.Logf("model=%s vpn=%.3f password=%.3f", cfg.Model, vpn, password)
	if vpn <= password {
		t.Errorf("VPN question is closer to the password chunk (%.3f) than the VPN chunk (%.3f)", password, vpn)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
