// Package tracing wires optional Langfuse tracing into the eino callback
// chain so every conversation graph run is recorded as a trace.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/helpdesk-rag/internal/version"
)

const defaultHost = "http://localhost:3000"

// Config holds the Langfuse connection settings.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
	// Name is the trace name shown in the Langfuse UI.
	Name string
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}
	return Config{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
		Name:      "helpdesk",
	}
}

// Setup builds the Langfuse callback handler when cfg is enabled. The returned
// flush function must run before process exit so buffered traces are sent.
// When tracing is not configured the handler and flush are nil and ok is false.
func Setup(cfg Config) (handler callbacks.Handler, flush func(), ok bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      cfg.Name,
		Release:   version.Version,
	})
	return handler, flush, true
}

// Install registers the handler globally so every compiled graph reports to
// Langfuse. It returns the flush function, or a no-op when disabled.
func Install(cfg Config) (flush func(), ok bool) {
	handler, flush, ok := Setup(cfg)
	if !ok {
		return func() {}, false
	}
	callbacks.AppendGlobalHandlers(handler)
	return flush, true
}
