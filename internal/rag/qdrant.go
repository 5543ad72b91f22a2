package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/helpdesk-rag/internal/access"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Payload keys written for every point.
const (
	payloadContent      = "content"
	payloadDocumentID   = "document_id"
	payloadDocumentName = "document_name"
	payloadSourceLink   = "source_link"
	payloadContentType  = "content_type"
	payloadKeywords     = "keywords"
	payloadCategory     = "category"
	payloadPlatform     = "platform"
	payloadFAQ          = "faq_questions"
	payloadImage        = "image"
	payloadPage         = "page"
)

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// Collection returns the collection name the store reads and writes.
func (s *QdrantStore) Collection() string { return s.cfg.Collection }

// ensureCollection creates the Qdrant collection if it does not already exist,
// along with a keyword index on the sensitivity field used by every filtered query.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.cfg.Collection,
		FieldName:      access.SensitivityKey,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to index %q: %w", access.SensitivityKey, err)
	}

	return nil
}

// Upsert stores or updates a batch of documents with their embeddings.
// Document IDs must be UUID strings.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(encodePayload(doc)),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search restricted by filter and
// returns the top-k results with scores clamped to [0,1].
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int, filter *access.VisibilityFilter) ([]Document, error) {
	limit := uint64(topK) //nolint:gosec // topK is validated by callers
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         qdrantFilter(filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := decodePayload(r.Payload)
		doc.ID = r.Id.GetUuid()
		doc.Score = clampScore(float64(r.Score))
		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete removes documents from the collection by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// qdrantFilter translates a visibility filter into a Qdrant payload filter.
func qdrantFilter(f *access.VisibilityFilter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	var cond *qdrant.Condition
	if len(f.In) > 0 {
		cond = qdrant.NewMatchKeywords(access.SensitivityKey, f.In...)
	} else {
		cond = qdrant.NewMatch(access.SensitivityKey, f.Equals)
	}
	return &qdrant.Filter{Must: []*qdrant.Condition{cond}}
}

// encodePayload flattens a Document into the point payload.
func encodePayload(doc Document) map[string]any {
	m := doc.Metadata
	payload := map[string]any{
		payloadContent:        doc.Content,
		payloadDocumentID:     m.DocumentID,
		payloadDocumentName:   m.DocumentName,
		payloadContentType:    m.ContentType,
		access.SensitivityKey: m.Sensitivity,
	}
	if m.SourceLink != "" {
		payload[payloadSourceLink] = m.SourceLink
	}
	if len(m.Keywords) > 0 {
		payload[payloadKeywords] = stringList(m.Keywords)
	}
	if m.Category != "" {
		payload[payloadCategory] = m.Category
	}
	if m.Platform != "" {
		payload[payloadPlatform] = m.Platform
	}
	if len(m.FAQQuestions) > 0 {
		payload[payloadFAQ] = stringList(m.FAQQuestions)
	}
	if m.Image != "" {
		payload[payloadImage] = m.Image
	}
	if m.Page > 0 {
		payload[payloadPage] = int64(m.Page)
	}
	return payload
}

// decodePayload rebuilds a Document from a point payload. Unknown keys are ignored.
func decodePayload(p map[string]*qdrant.Value) Document {
	var doc Document
	if p == nil {
		return doc
	}
	str := func(k string) string {
		if v, ok := p[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	list := func(k string) []string {
		v, ok := p[k]
		if !ok {
			return nil
		}
		vals := v.GetListValue().GetValues()
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s := item.GetStringValue(); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	doc.Content = str(payloadContent)
	doc.Metadata = Metadata{
		DocumentID:   str(payloadDocumentID),
		DocumentName: str(payloadDocumentName),
		SourceLink:   str(payloadSourceLink),
		ContentType:  str(payloadContentType),
		Sensitivity:  str(access.SensitivityKey),
		Keywords:     list(payloadKeywords),
		Category:     str(payloadCategory),
		Platform:     str(payloadPlatform),
		FAQQuestions: list(payloadFAQ),
		Image:        str(payloadImage),
	}
	if v, ok := p[payloadPage]; ok {
		doc.Metadata.Page = int(v.GetIntegerValue())
	}
	return doc
}

// stringList converts a string slice into the []any shape NewValueMap accepts.
func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// clampScore keeps cosine similarity in [0,1]; Qdrant reports [-1,1].
func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
