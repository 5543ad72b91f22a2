package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/embedder"
	"github.com/54b3r/helpdesk-rag/internal/ingestion"
	"github.com/54b3r/helpdesk-rag/internal/logging"
)

// NewIngestCmd constructs the `helpdesk ingest` command, which embeds
// pre-extracted knowledge base chunks and stores them in Qdrant.
func NewIngestCmd() *cobra.Command {
	var (
		file        string
		batchSize   int
		concurrency int
		sensitivity string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest knowledge base chunks into the vector store",
		Long: `Embed and index knowledge base chunks into the Qdrant vector store.

Input is JSON Lines, one chunk per line, as produced by the document
extraction step. Each chunk carries a summary (the embedded text), its
document id and name, a content type (text, table or image) and optionally
a sensitivity level, source link, keywords, FAQ questions and a base64
image. Missing category, platform and keywords are inferred from the text.

Chunk ids are derived from document id and position, so re-ingesting the
same file overwrites rather than duplicates.

Environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: helpdesk-kb)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_*          Embedding backend overrides (see README)

Examples:
  helpdesk ingest --file chunks.jsonl
  helpdesk ingest --file chunks.jsonl --sensitivity internal
  extract-docs ./manuals | helpdesk ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			switch sensitivity {
			case access.SensitivityPublic, access.SensitivityInternal, access.SensitivityConfidential:
			default:
				return fmt.Errorf("ingest: unknown sensitivity %q, valid values: public, internal, confidential", sensitivity)
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				defer f.Close()
				in = f
			}

			records, err := ingestion.ReadRecords(in)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if len(records) == 0 {
				return fmt.Errorf("ingest: no records in input")
			}

			emb, embCfg, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			embedder.WarnMisconfig(log, embCfg)
			log.Info("embedder initialised",
				slog.String("backend", string(embCfg.Backend)),
				slog.String("model", embCfg.Model),
				slog.Int("dimensions", embCfg.Dimensions),
			)

			st := &stack{}
			defer st.Close()
			vs, err := st.openVectorStore(ctx, log, embCfg.Dimensions, true)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			pipeline, err := ingestion.NewPipeline(emb, vs, &ingestion.Config{
				BatchSize:          batchSize,
				Concurrency:        concurrency,
				DefaultSensitivity: sensitivity,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			start := time.Now()
			stats, err := pipeline.Ingest(ctx, records, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingest complete",
				slog.Int("texts", stats.Texts),
				slog.Int("tables", stats.Tables),
				slog.Int("images", stats.Images),
				slog.Int("total", stats.Total()),
				slog.Duration("duration", time.Since(start)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks (%d text, %d table, %d image)\n",
				stats.Total(), stats.Texts, stats.Tables, stats.Images)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSONL file of chunks to ingest (default: stdin)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 32, "Chunks embedded per request")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Batches embedded in parallel")
	cmd.Flags().StringVar(&sensitivity, "sensitivity", access.SensitivityPublic, "Sensitivity for chunks that do not set one (public, internal, confidential)")

	return cmd
}
