package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// httpHealthCheck probes a backend with a single GET that lists models.
// Listing models costs no tokens.
type httpHealthCheck struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// HealthCheck implements HealthCheckConfig. Any 2xx status is healthy.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: build health request: %w", err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider: health check returned %d", resp.StatusCode)
	}
	return nil
}

// NewHealthCheck returns a token-free probe for the configured backend, or
// nil when the backend has no listing endpoint to probe.
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 5 * time.Second}

	switch cfg.Backend {
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			client: client,
		}
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &httpHealthCheck{
			url:     strings.TrimRight(base, "/") + "/models",
			headers: map[string]string{"Authorization": "Bearer " + cfg.OpenAI.APIKey},
			client:  client,
		}
	case BackendAzure:
		az := cfg.AzureOpenAI
		return &httpHealthCheck{
			url:     strings.TrimRight(az.Endpoint, "/") + "/openai/models?api-version=" + url.QueryEscape(az.APIVersion),
			headers: map[string]string{"api-key": az.APIKey},
			client:  client,
		}
	case BackendGemini:
		return &httpHealthCheck{
			url:     "https://generativelanguage.googleapis.com/v1beta/models",
			headers: map[string]string{"x-goog-api-key": cfg.Gemini.APIKey},
			client:  client,
		}
	default:
		return nil
	}
}
