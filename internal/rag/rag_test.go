package rag

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/helpdesk-rag/internal/access"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	docs := []Document{
		{ID: "a", Content: "vpn public", Metadata: Metadata{Sensitivity: access.SensitivityPublic}},
		{ID: "b", Content: "vpn internal", Metadata: Metadata{Sensitivity: access.SensitivityInternal}},
		{ID: "c", Content: "vpn confidential", Metadata: Metadata{Sensitivity: access.SensitivityConfidential}},
	}
	vecs := [][]float32{{1, 0}, {1, 0.1}, {1, 0.2}}
	if err := s.Upsert(context.Background(), docs, vecs); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return s
}

func Test_MemoryStore_FilterByRole(t *testing.T) {
	t.Parallel()
	s := seededStore(t)
	ctx := context.Background()

	tests := []struct {
		role access.Role
		want int
	}{
		{access.RoleStudent, 1},
		{access.RoleLecturer, 2},
		{access.RoleAdmin, 3},
	}
	for _, tc := range tests {
		got, err := s.Search(ctx, []float32{1, 0}, 10, access.BuildFilter(tc.role))
		if err != nil {
			t.Fatalf("%s: search: %v", tc.role, err)
		}
		if len(got) != tc.want {
			t.Errorf("%s: want %d docs, got %d", tc.role, tc.want, len(got))
		}
	}
}

func Test_MemoryStore_OrdersByScore(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	got, err := s.Search(context.Background(), []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 docs, got %d", len(got))
	}
	if got[0].ID != "a" || got[0].Score < got[1].Score {
		t.Errorf("want a first with highest score, got %s (%v) then %s (%v)", got[0].ID, got[0].Score, got[1].ID, got[1].Score)
	}
}

func Test_Searcher_EmbedsThenSearches(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vectors: map[string][]float32{"vpn": {1, 0}}}
	searcher, err := NewSearcher(emb, seededStore(t), 4)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}

	docs, err := searcher.SimilaritySearch(context.Background(), "vpn", 0, access.BuildFilter(access.RoleStudent))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Errorf("want only public doc a, got %+v", docs)
	}
}

// Test_Searcher_ReusesQueryEmbedding covers the filtered search followed by
// the unrestricted probe for the same question.
func Test_Searcher_ReusesQueryEmbedding(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vectors: map[string][]float32{"VPN  setup": {1, 0}}}
	searcher, err := NewSearcher(emb, seededStore(t), 4)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	ctx := context.Background()

	if _, err := searcher.SimilaritySearch(ctx, "VPN  setup", 4, access.BuildFilter(access.RoleStudent)); err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	probe, err := searcher.SimilaritySearch(ctx, "vpn setup", 1, nil)
	if err != nil {
		t.Fatalf("probe search: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("want one embedding call for both searches, got %d", emb.calls)
	}
	if len(probe) != 1 {
		t.Errorf("want one probe hit, got %d", len(probe))
	}
}

func Test_Searcher_EmptyEmbedding(t *testing.T) {
	t.Parallel()
	searcher, err := NewSearcher(&fakeEmbedder{vectors: map[string][]float32{}}, NewMemoryStore(), 4)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	if _, err := searcher.SimilaritySearch(context.Background(), "unknown", 1, nil); err == nil {
		t.Error("want error for an empty query embedding")
	}
}

func Test_Searcher_EmbedError(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("boom")
	searcher, err := NewSearcher(&fakeEmbedder{err: sentinel}, NewMemoryStore(), 4)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	if _, err := searcher.SimilaritySearch(context.Background(), "q", 1, nil); !errors.Is(err, sentinel) {
		t.Errorf("want wrapped sentinel, got %v", err)
	}
}

func Test_NewSearcher_NilDeps(t *testing.T) {
	t.Parallel()
	if _, err := NewSearcher(nil, NewMemoryStore(), 1); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewSearcher(&fakeEmbedder{}, nil, 1); err == nil {
		t.Error("want error for nil store")
	}
}

func Test_Payload_EncodeDecode(t *testing.T) {
	t.Parallel()
	doc := Document{
		Content: "Cara install VPN di Windows",
		Metadata: Metadata{
			DocumentID:   "doc-1",
			DocumentName: "vpn-guide.pdf",
			SourceLink:   "https://kb.example.ac.id/vpn.pdf",
			ContentType:  ContentText,
			Sensitivity:  access.SensitivityPublic,
			Keywords:     []string{"vpn", "forticlient"},
			Category:     "vpn",
			Platform:     "windows",
			FAQQuestions: []string{"bagaimana install vpn di windows"},
			Page:         3,
		},
	}

	got := decodePayload(qdrant.NewValueMap(encodePayload(doc)))
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("decoded payload mismatch:\nwant %+v\ngot  %+v", doc, got)
	}
}

func Test_QdrantFilter(t *testing.T) {
	t.Parallel()
	if f := qdrantFilter(nil); f != nil {
		t.Errorf("want nil filter for admin, got %v", f)
	}
	student := qdrantFilter(access.BuildFilter(access.RoleStudent))
	if student == nil || len(student.GetMust()) != 1 {
		t.Fatalf("want one must condition, got %v", student)
	}
	if key := student.GetMust()[0].GetField().GetKey(); key != access.SensitivityKey {
		t.Errorf("want key %q, got %q", access.SensitivityKey, key)
	}
	lecturer := qdrantFilter(access.BuildFilter(access.RoleLecturer))
	kw := lecturer.GetMust()[0].GetField().GetMatch().GetKeywords().GetStrings()
	if !reflect.DeepEqual(kw, []string{"public", "internal"}) {
		t.Errorf("want public+internal keywords, got %v", kw)
	}
}

func Test_ClampScore(t *testing.T) {
	t.Parallel()
	for in, want := range map[float64]float64{-0.3: 0, 0.42: 0.42, 1.2: 1} {
		if got := clampScore(in); got != want {
			t.Errorf("clampScore(%v) = %v, want %v", in, got, want)
		}
	}
}
