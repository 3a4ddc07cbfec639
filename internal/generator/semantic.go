package generator

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

// Embedder is the externally supplied scoring capability for the semantic
// detector. The core never trains or owns embedding models; it only calls
// this interface.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Semantic scores articles against ticker descriptions in a shared vector
// space. Ticker vectors are computed once in Prepare; each article costs one
// embedding call. Similarities below the floor are dropped.
type Semantic struct {
	embedder Embedder
	floor    float64

	tickerIDs []int64
	mentions  map[int64]string // representative mention text per ticker
	vectors   [][]float32
}

// NewSemantic creates a semantic detector backed by the given embedder.
func NewSemantic(embedder Embedder, floor float64) *Semantic {
	return &Semantic{embedder: embedder, floor: floor}
}

func (g *Semantic) Name() model.Method { return model.MethodSemantic }

func (g *Semantic) Prepare(ctx context.Context, tickers []model.Ticker) error {
	var texts []string
	var ids []int64
	mentions := make(map[int64]string, len(tickers))
	for _, t := range tickers {
		text := descriptiveText(t)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		ids = append(ids, t.ID)
		mention := t.Name
		if mention == "" {
			mention = t.Symbol
		}
		mentions[t.ID] = mention
	}
	if len(texts) == 0 {
		g.tickerIDs, g.vectors, g.mentions = nil, nil, mentions
		return nil
	}

	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		return eris.Wrap(err, "semantic: embed ticker descriptions")
	}
	if len(vectors) != len(ids) {
		return eris.Errorf("semantic: embedder returned %d vectors for %d tickers", len(vectors), len(ids))
	}

	g.tickerIDs = ids
	g.vectors = vectors
	g.mentions = mentions
	return nil
}

func (g *Semantic) Generate(ctx context.Context, text string) (map[int64]model.CandidateSignal, error) {
	if len(g.tickerIDs) == 0 {
		return map[int64]model.CandidateSignal{}, nil
	}

	embedded, err := g.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, eris.Wrap(err, "semantic: embed article")
	}
	if len(embedded) != 1 {
		return nil, eris.Errorf("semantic: embedder returned %d vectors for one text", len(embedded))
	}
	articleVec := embedded[0]

	results := make(map[int64]model.CandidateSignal)
	for i, tickerID := range g.tickerIDs {
		sim := cosine(articleVec, g.vectors[i])
		if sim < g.floor {
			continue
		}
		results[tickerID] = model.CandidateSignal{
			TickerID:    tickerID,
			MentionText: g.mentions[tickerID],
			MentionType: model.MentionTypeName,
			Method:      model.MethodSemantic,
			RawScore:    sim,
		}
	}
	return results, nil
}

// descriptiveText builds the embedding input for one ticker: primary name
// first, then the remaining names and the description as context.
func descriptiveText(t model.Ticker) string {
	parts := t.AllNames()
	if t.Description != "" {
		parts = append(parts, t.Description)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
