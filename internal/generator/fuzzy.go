package generator

import (
	"context"

	"github.com/agext/levenshtein"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

type fuzzyAlias struct {
	surface    string
	normalized string
	tokenCount int
	mtype      model.MentionType
}

// Fuzzy detects approximate mentions: it slides a token window the width of
// each alias across the article text and scores the window against the alias
// with Levenshtein similarity. Only similarities at or above the floor are
// emitted, so a misspelled or inflected company name still produces a signal
// while unrelated text stays silent.
type Fuzzy struct {
	floor   float64
	aliases map[int64][]fuzzyAlias
}

// NewFuzzy creates a fuzzy detector with the given similarity floor.
func NewFuzzy(floor float64) *Fuzzy {
	return &Fuzzy{floor: floor}
}

func (g *Fuzzy) Name() model.Method { return model.MethodFuzzy }

func (g *Fuzzy) Prepare(_ context.Context, tickers []model.Ticker) error {
	aliases := make(map[int64][]fuzzyAlias, len(tickers))
	for _, t := range tickers {
		var list []fuzzyAlias
		add := func(surface string, mtype model.MentionType) {
			norm := normalizeText(surface)
			if norm == "" {
				return
			}
			list = append(list, fuzzyAlias{
				surface:    surface,
				normalized: norm,
				tokenCount: len(tokens(norm)),
				mtype:      mtype,
			})
		}
		if t.Name != "" {
			add(t.Name, model.MentionTypeName)
		}
		for _, a := range t.Aliases {
			if a != "" {
				add(a, model.MentionTypeAlias)
			}
		}
		if len(list) > 0 {
			aliases[t.ID] = list
		}
	}
	g.aliases = aliases
	return nil
}

func (g *Fuzzy) Generate(_ context.Context, text string) (map[int64]model.CandidateSignal, error) {
	words := tokens(normalizeText(text))
	if len(words) == 0 {
		return map[int64]model.CandidateSignal{}, nil
	}

	results := make(map[int64]model.CandidateSignal)
	for tickerID, list := range g.aliases {
		var best model.CandidateSignal
		for _, alias := range list {
			score := g.bestWindowScore(words, alias)
			if score > best.RawScore {
				best = model.CandidateSignal{
					TickerID:    tickerID,
					MentionText: alias.surface,
					MentionType: alias.mtype,
					Method:      model.MethodFuzzy,
					RawScore:    score,
				}
			}
		}
		if best.RawScore >= g.floor {
			results[tickerID] = best
		}
	}
	return results, nil
}

// bestWindowScore compares every window of alias-width tokens in the text
// against the alias and returns the highest similarity.
func (g *Fuzzy) bestWindowScore(words []string, alias fuzzyAlias) float64 {
	width := alias.tokenCount
	if width > len(words) {
		width = len(words)
	}
	best := 0.0
	for i := 0; i+width <= len(words); i++ {
		window := joinTokens(words[i : i+width])
		sim := levenshtein.Similarity(window, alias.normalized, nil)
		if sim > best {
			best = sim
			if best == 1.0 {
				return best
			}
		}
	}
	return best
}

func joinTokens(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	}
	n := len(words) - 1
	for _, w := range words {
		n += len(w)
	}
	b := make([]byte, 0, n)
	for i, w := range words {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, w...)
	}
	return string(b)
}
