package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/agent"
	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/retrieval"
)

// NewAskCmd constructs the `helpdesk ask` command, which answers a single
// question as the given role and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	var (
		role      string
		sessionID string
		topK      int
		sources   bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the helpdesk a question",
		Long: `Ask the helpdesk agent an IT support question.

The answer is grounded in the knowledge base documents visible to --role.
Pass --session to continue an earlier conversation; the session id is
printed after every answer.

Examples:
  helpdesk ask "how do I connect to the VPN on my mac?"
  helpdesk ask --role lecturer "how do I reset a student's password?"
  helpdesk ask --session 7f1c... --sources "and on windows?"
  helpdesk ask --json "printer is offline"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			r, err := access.ParseRole(role)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			if topK < 0 || topK > retrieval.MaxTopK {
				return fmt.Errorf("ask: --top-k must be between 1 and %d", retrieval.MaxTopK)
			}

			st, err := buildStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer st.Close()

			resp, err := st.agent.AnswerQuery(ctx, agent.Request{
				Question:       strings.Join(args, " "),
				SessionID:      sessionID,
				Role:           r,
				TopK:           topK,
				IncludeSources: sources,
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Fprintln(out, resp.Answer)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "session: %s\n", resp.SessionID)
			if resp.Metadata.RejectionReason != "" {
				log.Debug("ask: retrieval rejected", slog.String("reason", resp.Metadata.RejectionReason))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", string(access.RoleAnonymous), "Role to answer as (anonymous, student, lecturer, admin)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to continue")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of documents to retrieve (default: RAG_TOP_K)")
	cmd.Flags().BoolVar(&sources, "sources", false, "Append source links to the answer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response with retrieval metadata as JSON")

	return cmd
}
