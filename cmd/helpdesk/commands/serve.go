package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/provider"
	"github.com/54b3r/helpdesk-rag/internal/server"
	"github.com/54b3r/helpdesk-rag/internal/session"
	"github.com/54b3r/helpdesk-rag/internal/tracing"
)

// NewServeCmd constructs the `helpdesk serve` command, which starts the HTTP
// query API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the helpdesk HTTP API",
		Long: `Start the helpdesk HTTP API.

The server answers questions on POST /api/query and exposes session
maintenance, health, readiness and Prometheus metrics endpoints.

Callers authenticate with an API key (Authorization: Bearer <key> or
X-API-Key) mapped to a role by HELPDESK_API_KEYS, e.g.
"k1:student,k2:lecturer,k3:admin". Requests without a key are anonymous.

Examples:
  helpdesk serve
  helpdesk serve --port 9090
  QDRANT_HOST=localhost REDIS_ADDR=localhost:6379 helpdesk serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in and a no-op if keys are absent.
			flush, ok := tracing.Install(tracing.ConfigFromEnv())
			defer flush()
			if ok {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			roleKeys, err := server.ParseRoleKeys(os.Getenv("HELPDESK_API_KEYS"))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			st, err := buildStack(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer st.Close()

			srv, err := server.New(st.agent, &server.Config{
				Host:         host,
				Port:         port,
				Logger:       log,
				Pingers:      buildPingers(st),
				RoleKeys:     roleKeys,
				RateLimit:    getEnvFloat("HELPDESK_RATE_LIMIT", 0),
				RateBurst:    getEnvInt("HELPDESK_RATE_BURST", 0),
				QueryTimeout: getEnvDuration("HELPDESK_QUERY_TIMEOUT", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", getEnvOrDefault("HELPDESK_HOST", "127.0.0.1"), "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", getEnvInt("HELPDESK_PORT", 8080), "TCP port to listen on")

	return cmd
}

// buildPingers returns a readiness probe for each remote dependency the
// stack actually uses. Session memory is optional: answers still work
// without history.
func buildPingers(st *stack) []server.Pinger {
	var pingers []server.Pinger
	if hc := provider.NewHealthCheck(st.providerCfg); hc != nil {
		pingers = append(pingers, server.NewLLMPinger(hc, string(st.providerCfg.Backend)))
	}
	if st.qdrant != nil {
		pingers = append(pingers, server.NewQdrantPinger(st.qdrant.Client(), st.qdrant.Collection()))
	}
	if rm, ok := st.sessions.(*session.RedisMemory); ok {
		pingers = append(pingers, server.Optional(server.NewPingFunc("redis", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return rm.Ping(ctx)
		})))
	}
	return pingers
}
