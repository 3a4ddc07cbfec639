// Package generator holds the candidate detectors that scan article text
// against the ticker dictionary. Each detector is pure after Prepare: it
// shares no mutable state and is safe to invoke concurrently.
package generator

import (
	"context"

	"github.com/marketpulse/newsdesk-cli/internal/config"
	"github.com/marketpulse/newsdesk-cli/internal/model"
)

// Generator is the common contract for all candidate detectors. Prepare is
// called once per run with the read-only ticker snapshot; Generate may then
// be called concurrently for any number of articles. An article mentioning
// no known ticker yields an empty map, not an error.
type Generator interface {
	Name() model.Method
	Prepare(ctx context.Context, tickers []model.Ticker) error
	Generate(ctx context.Context, text string) (map[int64]model.CandidateSignal, error)
}

// Enabled constructs the detectors selected by configuration, in precedence
// order. The semantic detector requires an Embedder; if none is supplied it
// is skipped regardless of the flag.
func Enabled(cfg *config.Config, embedder Embedder) []Generator {
	var gens []Generator
	if cfg.Generators.Substring {
		gens = append(gens, NewSubstring())
	}
	if cfg.Generators.NER {
		gens = append(gens, NewNER())
	}
	if cfg.Generators.Fuzzy {
		gens = append(gens, NewFuzzy(cfg.Generators.FuzzyFloor))
	}
	if cfg.Generators.Semantic && embedder != nil {
		gens = append(gens, NewSemantic(embedder, cfg.Generators.SemanticFloor))
	}
	return gens
}
