package generator

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

// stubEmbedder returns canned vectors keyed by input text, or a fixed error.
type stubEmbedder struct {
	vectors map[string][]float32
	deflt   []float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := s.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = s.deflt
		}
	}
	return out, nil
}

func semanticTickers() []model.Ticker {
	return []model.Ticker{
		{ID: 1, Symbol: "GAZP", Name: "Газпром", Description: "газовая компания"},
		{ID: 2, Symbol: "SBER", Name: "Сбербанк", Description: "крупнейший банк"},
	}
}

func TestSemantic_AboveFloorEmitted(t *testing.T) {
	emb := &stubEmbedder{
		vectors: map[string][]float32{
			"GAZP Газпром газовая компания":  {1, 0},
			"SBER Сбербанк крупнейший банк":  {0, 1},
			"добыча газа выросла за квартал": {0.9, 0.1},
		},
		deflt: []float32{0, 0},
	}
	g := NewSemantic(emb, 0.6)
	require.NoError(t, g.Prepare(context.Background(), semanticTickers()))

	signals, err := g.Generate(context.Background(), "добыча газа выросла за квартал")
	require.NoError(t, err)
	require.Contains(t, signals, int64(1))
	assert.NotContains(t, signals, int64(2))

	sig := signals[1]
	assert.Equal(t, model.MethodSemantic, sig.Method)
	assert.Equal(t, "Газпром", sig.MentionText)
	assert.Greater(t, sig.RawScore, 0.6)
}

func TestSemantic_BelowFloorDropped(t *testing.T) {
	emb := &stubEmbedder{
		vectors: map[string][]float32{
			"GAZP Газпром газовая компания": {1, 0},
			"SBER Сбербанк крупнейший банк": {1, 0},
		},
		deflt: []float32{0, 1}, // orthogonal to every ticker
	}
	g := NewSemantic(emb, 0.6)
	require.NoError(t, g.Prepare(context.Background(), semanticTickers()))

	signals, err := g.Generate(context.Background(), "прогноз погоды на выходные")
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestSemantic_EmbedderFailureSurfaces(t *testing.T) {
	good := &stubEmbedder{deflt: []float32{1, 0}}
	g := NewSemantic(good, 0.6)
	require.NoError(t, g.Prepare(context.Background(), semanticTickers()))

	// Swap in a failing embedder for the article call; the orchestrator
	// degrades this to an empty signal set.
	g.embedder = &stubEmbedder{err: eris.New("embedding service unavailable")}
	_, err := g.Generate(context.Background(), "любой текст")
	require.Error(t, err)
}

func TestSemantic_PrepareFailure(t *testing.T) {
	g := NewSemantic(&stubEmbedder{err: eris.New("boom")}, 0.6)
	err := g.Prepare(context.Background(), semanticTickers())
	require.Error(t, err)
}

func TestSemantic_NoDescriptions(t *testing.T) {
	emb := &stubEmbedder{deflt: []float32{1, 0}}
	g := NewSemantic(emb, 0.6)
	require.NoError(t, g.Prepare(context.Background(), nil))

	signals, err := g.Generate(context.Background(), "текст")
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Zero(t, emb.calls) // nothing to embed, no calls made
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 0.001)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 0.001)
	assert.Zero(t, cosine([]float32{1, 0}, []float32{1, 0, 0})) // dimension mismatch
	assert.Zero(t, cosine(nil, nil))
}
