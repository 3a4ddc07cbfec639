package generator

import (
	"context"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

const (
	substringSymbolScore = 1.0
	substringAliasScore  = 0.8
)

type dictEntry struct {
	surface    string // dictionary form, carried as mention text
	normalized string
	mtype      model.MentionType
}

// Substring is the highest-precision detector: case-insensitive whole-word
// match of a ticker's symbol, name or alias. Symbol hits score 1.0, name and
// alias hits 0.8.
type Substring struct {
	entries map[int64][]dictEntry
}

// NewSubstring creates an unprepared substring detector.
func NewSubstring() *Substring {
	return &Substring{}
}

func (g *Substring) Name() model.Method { return model.MethodSubstring }

func (g *Substring) Prepare(_ context.Context, tickers []model.Ticker) error {
	entries := make(map[int64][]dictEntry, len(tickers))
	for _, t := range tickers {
		var list []dictEntry
		if t.Symbol != "" {
			list = append(list, dictEntry{t.Symbol, normalizeText(t.Symbol), model.MentionTypeSymbol})
		}
		if t.Name != "" {
			list = append(list, dictEntry{t.Name, normalizeText(t.Name), model.MentionTypeName})
		}
		for _, a := range t.Aliases {
			if a != "" {
				list = append(list, dictEntry{a, normalizeText(a), model.MentionTypeAlias})
			}
		}
		if len(list) > 0 {
			entries[t.ID] = list
		}
	}
	g.entries = entries
	return nil
}

func (g *Substring) Generate(_ context.Context, text string) (map[int64]model.CandidateSignal, error) {
	haystack := normalizeText(text)
	results := make(map[int64]model.CandidateSignal)
	for tickerID, list := range g.entries {
		// Entries are ordered symbol, name, aliases; the first hit is the
		// most precise one for this ticker.
		for _, e := range list {
			if !containsWord(haystack, e.normalized) {
				continue
			}
			score := substringAliasScore
			if e.mtype == model.MentionTypeSymbol {
				score = substringSymbolScore
			}
			results[tickerID] = model.CandidateSignal{
				TickerID:    tickerID,
				MentionText: e.surface,
				MentionType: e.mtype,
				Method:      model.MethodSubstring,
				RawScore:    score,
			}
			break
		}
	}
	return results, nil
}
