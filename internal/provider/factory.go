package provider

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
)

// Vision modes accepted by MODEL_VISION.
const (
	VisionAuto = "auto"
	VisionOn   = "on"
	VisionOff  = "off"
)

// visionModelMarkers are substrings of model names that accept image parts.
var visionModelMarkers = []string{
	"llava", "bakllava", "llama3.2-vision", "minicpm-v", "moondream", "qwen2.5vl", "gemma3",
	"gpt-4o", "gpt-4.1", "gpt-4-turbo", "gpt-5",
	"gemini",
	"doubao-vision", "doubao-1.5-vision", "doubao-seed",
}

// ConfigFromEnv resolves a Config from environment variables. MODEL_PROVIDER
// selects the backend; each provider reads its own credential variables.
//
//	MODEL_PROVIDER = ollama | openai | azure | ark | gemini (default: ollama)
//
//	Ollama: OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llava)
//	OpenAI: OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o), OPENAI_BASE_URL
//	Azure:  AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	        AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Ark:    ARK_API_KEY, ARK_MODEL, ARK_BASE_URL
//	Gemini: GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-pro)
//
//	MODEL_MAX_TOKENS (default: 2048), MODEL_TEMPERATURE (default: 0.2),
//	MODEL_VISION = auto | on | off (default: auto)
func ConfigFromEnv() *Config {
	env := os.Getenv
	return &Config{
		Backend: Backend(strings.ToLower(envOr("MODEL_PROVIDER", string(BackendOllama)))),
		Ollama: ProviderOllama{
			Host:  envOr("OLLAMA_HOST", "http://localhost:11434"),
			Model: envOr("OLLAMA_MODEL", "llava"),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  env("OPENAI_API_KEY"),
			Model:   envOr("OPENAI_MODEL", "gpt-4o"),
			BaseURL: env("OPENAI_BASE_URL"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     env("AZURE_OPENAI_API_KEY"),
			Endpoint:   env("AZURE_OPENAI_ENDPOINT"),
			Deployment: env("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: envOr("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Ark: ProviderArk{
			APIKey:  env("ARK_API_KEY"),
			Model:   env("ARK_MODEL"),
			BaseURL: env("ARK_BASE_URL"),
		},
		Gemini: ProviderGemini{
			APIKey: env("GOOGLE_API_KEY"),
			Model:  envOr("GEMINI_MODEL", "gemini-1.5-pro"),
		},
		Tuning: SharedTuning{
			MaxTokens:   envInt("MODEL_MAX_TOKENS", 2048),
			Temperature: envFloat32("MODEL_TEMPERATURE", 0.2),
		},
		Vision: strings.ToLower(envOr("MODEL_VISION", VisionAuto)),
	}
}

// ModelName returns the model or deployment name of the selected backend.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

// SupportsVision reports whether image chunks should be sent to the chat
// model as inline image parts. An explicit MODEL_VISION wins; otherwise the
// model name is matched against known multimodal families.
func (c *Config) SupportsVision() bool {
	switch c.Vision {
	case VisionOn:
		return true
	case VisionOff:
		return false
	}
	name := strings.ToLower(c.ModelName())
	for _, marker := range visionModelMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// NewFromEnv constructs a ChatModel from ConfigFromEnv.
func NewFromEnv(ctx context.Context) (model.ToolCallingChatModel, error) {
	return New(ctx, ConfigFromEnv())
}

// New validates cfg and constructs the ChatModel for its backend.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build := map[Backend]func(context.Context, *Config) (model.ToolCallingChatModel, error){
		BackendOllama: newOllama,
		BackendOpenAI: newOpenAI,
		BackendAzure:  newAzure,
		BackendArk:    newArk,
		BackendGemini: newGemini,
	}
	return build[cfg.Backend](ctx, cfg)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return i
	}
	return fallback
}

func envFloat32(key string, fallback float32) float32 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 32); err == nil {
		return float32(f)
	}
	return fallback
}
