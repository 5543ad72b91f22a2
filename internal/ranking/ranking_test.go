package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/helpdesk-rag/internal/rag"
)

func TestScoreBM25(t *testing.T) {
	t.Parallel()

	docs := []string{
		"cara install vpn di windows",
		"reset password email kampus",
		"vpn vpn forticlient konfigurasi",
	}

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		first := ScoreBM25("install vpn", docs)
		for range 5 {
			assert.Equal(t, first, ScoreBM25("install vpn", docs))
		}
	})

	t.Run("empty documents", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ScoreBM25("vpn", nil))
	})

	t.Run("absent terms score zero", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []float64{0, 0, 0}, ScoreBM25("printer toner", docs))
	})

	t.Run("matching doc outranks non-matching", func(t *testing.T) {
		t.Parallel()
		scores := ScoreBM25("install vpn", docs)
		require.Len(t, scores, 3)
		assert.Greater(t, scores[0], scores[1])
		assert.Zero(t, scores[1])
		assert.Greater(t, scores[2], 0.0)
	})

	t.Run("case insensitive", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ScoreBM25("vpn", docs), ScoreBM25("VPN", docs))
	})
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{name: "empty", in: nil, want: []float64{}},
		{name: "constant", in: []float64{0.3, 0.3, 0.3}, want: []float64{1, 1, 1}},
		{name: "constant zero", in: []float64{0, 0}, want: []float64{1, 1}},
		{name: "min-max", in: []float64{2, 4, 3}, want: []float64{0, 1, 0.5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDeltaSlice(t, tc.want, Normalize(tc.in), 1e-9)
		})
	}
}

func TestWeights_Normalized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       Weights
		adjusted bool
	}{
		{name: "default", in: DefaultWeights(), adjusted: false},
		{name: "over one", in: Weights{Vector: 2, BM25: 2}, adjusted: true},
		{name: "under one", in: Weights{Vector: 0.35, BM25: 0.15}, adjusted: true},
		{name: "zero", in: Weights{}, adjusted: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, adjusted := tc.in.Normalized()
			assert.Equal(t, tc.adjusted, adjusted)
			assert.InDelta(t, 1.0, got.Vector+got.BM25, 1e-9)
		})
	}
}

func TestFuse(t *testing.T) {
	t.Parallel()

	got := Fuse([]float64{0.9, 0.5}, []float64{0, 2}, Weights{Vector: 7, BM25: 3})
	// vector normalizes to [1,0], bm25 to [0,1]; effective weights 0.7/0.3.
	assert.InDeltaSlice(t, []float64{0.7, 0.3}, got, 1e-9)

	assert.Len(t, Fuse([]float64{1, 2, 3}, []float64{1}, DefaultWeights()), 1)
}

func TestRanker_Rerank(t *testing.T) {
	t.Parallel()
	r := New(DefaultWeights(), DefaultMetadataBoosts(), nil)

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, r.Rerank("vpn", nil))
	})

	t.Run("keyword match lifts lower vector score", func(t *testing.T) {
		t.Parallel()
		in := FromDocuments([]rag.Document{
			{ID: "a", Content: "kebijakan cuti pegawai", Score: 0.80},
			{ID: "b", Content: "install vpn forticlient", Score: 0.79},
			{ID: "c", Content: "jadwal ujian semester", Score: 0.50},
		})
		out := r.Rerank("install vpn", in)
		require.Len(t, out, 3)
		assert.Equal(t, "b", out[0].ID)
		assert.Equal(t, "a", in[0].ID, "input must not be reordered")
	})

	t.Run("stable on ties", func(t *testing.T) {
		t.Parallel()
		in := FromDocuments([]rag.Document{
			{ID: "first", Content: "sama", Score: 0.5},
			{ID: "second", Content: "sama", Score: 0.5},
			{ID: "third", Content: "sama", Score: 0.5},
		})
		out := r.Rerank("lain", in)
		assert.Equal(t, []string{"first", "second", "third"}, ids(out))
	})

	t.Run("weights renormalized", func(t *testing.T) {
		t.Parallel()
		w := New(Weights{Vector: 1.4, BM25: 0.6}, DefaultMetadataBoosts(), nil).Weights()
		assert.InDelta(t, 0.7, w.Vector, 1e-9)
		assert.InDelta(t, 0.3, w.BM25, 1e-9)
	})
}

func TestRanker_BoostByMetadata(t *testing.T) {
	t.Parallel()
	r := New(DefaultWeights(), DefaultMetadataBoosts(), nil)

	in := []Result{
		{Document: rag.Document{ID: "plain"}, HybridScore: 0.6},
		{Document: rag.Document{ID: "meta", Metadata: rag.Metadata{
			Keywords: []string{"VPN", "forticlient"},
			Category: "vpn",
			Platform: "Windows",
		}}, HybridScore: 0.4},
		{Document: rag.Document{ID: "capped", Metadata: rag.Metadata{Keywords: []string{"vpn"}}}, HybridScore: 0.95},
	}

	out := r.BoostByMetadata("cara install vpn di windows", in)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"capped", "meta", "plain"}, ids(out))

	assert.InDelta(t, 1.0, out[0].HybridScore, 1e-9)
	// one keyword (0.15) + category (0.10) + platform (0.05)
	assert.InDelta(t, 0.70, out[1].HybridScore, 1e-9)
	assert.ElementsMatch(t, []string{TagKeywords, TagCategory, TagPlatform}, out[1].Boosts)
	assert.Empty(t, out[2].Boosts)
}

func TestBoostFAQ(t *testing.T) {
	t.Parallel()

	faq := []string{"bagaimana install vpn di windows"}

	tests := []struct {
		name    string
		query   string
		score   float64
		want    float64
		boosted bool
	}{
		{name: "full overlap", query: "bagaimana install vpn di windows", score: 0.7, want: 0.85, boosted: true},
		{name: "capped", query: "Bagaimana install VPN di Windows", score: 0.95, want: 1.0, boosted: true},
		{name: "exactly sixty percent is not enough", query: "install vpn di printer scanner", score: 0.7, want: 0.7, boosted: false},
		{name: "no overlap", query: "reset password", score: 0.7, want: 0.7, boosted: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := FromDocuments([]rag.Document{{ID: "d", Score: tc.score, Metadata: rag.Metadata{FAQQuestions: faq}}})
			out := BoostFAQ(tc.query, in)
			require.Len(t, out, 1)
			assert.InDelta(t, tc.want, out[0].VectorScore, 1e-9)
			assert.InDelta(t, tc.want, out[0].Score, 1e-9)
			assert.Equal(t, tc.boosted, out[0].HasBoost(TagFAQ))
		})
	}
}

func TestBoostFAQ_OncePerDocumentAndResorts(t *testing.T) {
	t.Parallel()

	in := FromDocuments([]rag.Document{
		{ID: "top", Score: 0.8},
		{ID: "faq", Score: 0.7, Metadata: rag.Metadata{FAQQuestions: []string{
			"reset password email",
			"reset password email kampus",
		}}},
	})
	out := BoostFAQ("reset password email", in)
	assert.Equal(t, []string{"faq", "top"}, ids(out))
	assert.InDelta(t, 0.85, out[0].VectorScore, 1e-9)
	assert.Equal(t, []string{TagFAQ}, out[0].Boosts)
}

func ids(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
