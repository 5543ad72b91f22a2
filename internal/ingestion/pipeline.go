// Package ingestion loads summarized knowledge-base chunks into the vector
// store. Chunks arrive as JSON Lines produced by the PDF processor, one record
// per text, table or image element. Each batch is embedded concurrently and
// upserted with its metadata. This pipeline is invoked by `helpdesk ingest`.
package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/rag"
)

// Record is one chunk line in the JSONL input.
type Record struct {
	// ID is an optional UUID. When empty a stable ID is derived from
	// DocumentID and the record's position so re-ingesting replaces points.
	ID           string   `json:"id,omitempty"`
	DocumentID   string   `json:"document_id"`
	DocumentName string   `json:"document_name"`
	SourceLink   string   `json:"source_link,omitempty"`
	ContentType  string   `json:"content_type"`
	Sensitivity  string   `json:"sensitivity,omitempty"`
	Summary      string   `json:"summary"`
	Keywords     []string `json:"keywords,omitempty"`
	Category     string   `json:"category,omitempty"`
	Platform     string   `json:"platform,omitempty"`
	FAQQuestions []string `json:"faq_questions,omitempty"`
	Image        string   `json:"image,omitempty"`
	Page         int      `json:"page,omitempty"`
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the number of chunks embedded per request. Defaults to 32.
	BatchSize int

	// Concurrency caps the number of batches embedded at once. Defaults to 4.
	Concurrency int

	// DefaultSensitivity applies to records without one. Defaults to public.
	DefaultSensitivity string
}

// Stats summarizes an ingestion run.
type Stats struct {
	Texts  int
	Tables int
	Images int
}

// Total is the number of chunks stored.
func (s Stats) Total() int { return s.Texts + s.Tables + s.Images }

// ErrInvalidRecord marks input that cannot be stored.
var ErrInvalidRecord = errors.New("ingestion: invalid record")

// pointNamespace seeds derived point IDs.
var pointNamespace = uuid.MustParse("6f1d3c1e-9c7a-4a53-8f0e-2b7d1d4f5a10")

// Pipeline orchestrates the read → enrich → embed → upsert flow.
type Pipeline struct {
	// embedder converts chunk summaries into dense vector embeddings.
	embedder rag.Embedder

	// store is the destination vector store.
	store rag.VectorStore

	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.DefaultSensitivity == "" {
		cfg.DefaultSensitivity = access.SensitivityPublic
	}

	return &Pipeline{embedder: embedder, store: store, cfg: cfg}, nil
}

// ReadRecords decodes JSON Lines from r. Blank lines are skipped. Lines can
// be long because image records carry base64 data.
func ReadRecords(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	var out []Record
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRecord, line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingestion: read records: %w", err)
	}
	return out, nil
}

// Ingest converts records into documents, embeds them in concurrent batches
// and upserts each batch. The first failure cancels the remaining batches.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, records []Record, progress func(msg string)) (Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}

	docs := make([]rag.Document, 0, len(records))
	var stats Stats
	for i, rec := range records {
		doc, err := p.toDocument(rec, i)
		if err != nil {
			return Stats{}, err
		}
		switch doc.Metadata.ContentType {
		case rag.ContentTable:
			stats.Tables++
		case rag.ContentImage:
			stats.Images++
		default:
			stats.Texts++
		}
		docs = append(docs, doc)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for start := 0; start < len(docs); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(docs))
		batch := docs[start:end]
		g.Go(func() error {
			if err := p.storeBatch(gctx, batch); err != nil {
				return fmt.Errorf("ingestion: batch %d-%d: %w", start, end-1, err)
			}
			progress(fmt.Sprintf("ingested chunks %d-%d", start, end-1))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (p *Pipeline) storeBatch(ctx context.Context, batch []rag.Document) error {
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.Content
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
	}
	if err := p.store.Upsert(ctx, batch, embeddings); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// toDocument validates rec and fills missing metadata.
func (p *Pipeline) toDocument(rec Record, index int) (rag.Document, error) {
	if strings.TrimSpace(rec.Summary) == "" {
		return rag.Document{}, fmt.Errorf("%w: record %d has no summary", ErrInvalidRecord, index)
	}
	if rec.DocumentID == "" {
		return rag.Document{}, fmt.Errorf("%w: record %d has no document_id", ErrInvalidRecord, index)
	}

	contentType := rec.ContentType
	switch contentType {
	case "":
		contentType = rag.ContentText
	case rag.ContentText, rag.ContentTable, rag.ContentImage:
	default:
		return rag.Document{}, fmt.Errorf("%w: record %d has content_type %q", ErrInvalidRecord, index, rec.ContentType)
	}

	sensitivity := rec.Sensitivity
	if sensitivity == "" {
		sensitivity = p.cfg.DefaultSensitivity
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewSHA1(pointNamespace, fmt.Appendf(nil, "%s#%d", rec.DocumentID, index)).String()
	} else if _, err := uuid.Parse(id); err != nil {
		return rag.Document{}, fmt.Errorf("%w: record %d id %q is not a UUID", ErrInvalidRecord, index, id)
	}

	inferred := InferMetadata(rec.Summary)
	meta := rag.Metadata{
		DocumentID:   rec.DocumentID,
		DocumentName: rec.DocumentName,
		SourceLink:   rec.SourceLink,
		ContentType:  contentType,
		Sensitivity:  sensitivity,
		Keywords:     rec.Keywords,
		Category:     rec.Category,
		Platform:     rec.Platform,
		FAQQuestions: rec.FAQQuestions,
		Image:        rec.Image,
		Page:         rec.Page,
	}
	if meta.Category == "" {
		meta.Category = inferred.Category
	}
	if meta.Platform == "" {
		meta.Platform = inferred.Platform
	}
	if len(meta.Keywords) == 0 {
		meta.Keywords = inferred.Keywords
	}

	return rag.Document{ID: id, Content: rec.Summary, Metadata: meta}, nil
}
