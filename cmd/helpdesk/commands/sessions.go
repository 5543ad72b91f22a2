package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/session"
)

// NewSessionsCmd constructs the `helpdesk sessions` command group for
// inspecting and clearing conversation sessions.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clear conversation sessions",
		Long: `Inspect and clear conversation sessions held in session memory.

Sessions only outlive a single process with the redis backend
(SESSION_BACKEND=redis or REDIS_ADDR set).

Examples:
  helpdesk sessions list --limit 20
  helpdesk sessions show 7f1c...
  helpdesk sessions clear 7f1c...`,
	}

	cmd.AddCommand(newSessionsListCmd(), newSessionsShowCmd(), newSessionsClearCmd())
	return cmd
}

// withSessionStores opens session memory and the checkpoint store, runs fn,
// and closes both.
func withSessionStores(cmd *cobra.Command, fn func(*stack, *slog.Logger) error) error {
	log := logging.New()
	ctx := logging.WithLogger(cmd.Context(), log)

	mem, err := session.FromEnv(ctx)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	st := &stack{sessions: mem}
	if rm, ok := mem.(*session.RedisMemory); ok {
		st.closers = append(st.closers, rm.Close)
	}
	defer st.Close()
	return fn(st, log)
}

func newSessionsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List session ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > 1000 {
				return fmt.Errorf("sessions: --limit must be between 1 and 1000")
			}
			return withSessionStores(cmd, func(st *stack, _ *slog.Logger) error {
				ids, err := st.sessions.List(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("sessions: %w", err)
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of sessions to list")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session's info and history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessionStores(cmd, func(st *stack, _ *slog.Logger) error {
				ctx := cmd.Context()
				info, err := st.sessions.Info(ctx, args[0])
				if err != nil {
					return fmt.Errorf("sessions: %w", err)
				}
				if !info.Exists {
					return fmt.Errorf("sessions: session %q not found", args[0])
				}
				history, err := st.sessions.History(ctx, args[0])
				if err != nil {
					return fmt.Errorf("sessions: %w", err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					SessionID    string            `json:"session_id"`
					MessageCount int               `json:"message_count"`
					TTLSeconds   *int64            `json:"ttl_seconds,omitempty"`
					Messages     []session.Message `json:"messages"`
				}{args[0], info.MessageCount, info.TTLSeconds(), history})
			})
		},
	}
}

func newSessionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Delete a session's memory and conversation thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessionStores(cmd, func(st *stack, log *slog.Logger) error {
				ctx := cmd.Context()
				cleared, err := st.sessions.Clear(ctx, args[0])
				if err != nil {
					return fmt.Errorf("sessions: %w", err)
				}
				if cs := st.openCheckpoints(log); cs != nil {
					deleted, err := cs.Delete(ctx, args[0])
					if err != nil {
						return fmt.Errorf("sessions: %w", err)
					}
					cleared = cleared || deleted
				}
				if !cleared {
					fmt.Fprintf(cmd.OutOrStdout(), "session %s not found\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s cleared\n", args[0])
				return nil
			})
		},
	}
}
