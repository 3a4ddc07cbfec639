package generator

import (
	"context"
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

const (
	nerExactScore       = 0.95
	nerContainmentScore = 0.85
	nerBaseScore        = 0.70
	nerLongSpanBonus    = 0.05
	nerMinScore         = 0.50
	nerResolveFloor     = 0.80
)

// orgSuffixPattern captures capitalized spans adjoining a company-form
// suffix, covering entities the statistical model misses (notably non-Latin
// company names).
var orgSuffixPattern = regexp.MustCompile(
	`(?:ООО|ОАО|ЗАО|ПАО|АО|НКО|LLC|Inc|Corp|Ltd|Limited|Group|Holding|Группа|Холдинг|Банк|Bank)[\s«"']*([\p{Lu}][\p{L}\d&.-]*(?:\s+[\p{Lu}][\p{L}\d&.-]*){0,3})|([\p{Lu}][\p{L}\d&.-]*(?:\s+[\p{Lu}][\p{L}\d&.-]*){0,3})\s+(?:ООО|ОАО|ЗАО|ПАО|АО|LLC|Inc|Corp|Ltd|Limited|Group|Holding|Банк|Bank)`,
)

// NER extracts entity spans from the text and resolves each span against the
// ticker dictionary by name similarity. Spans come from two extractors: the
// prose statistical model and the company-suffix pattern; resolution against
// the dictionary filters spans that name nothing tradable.
type NER struct {
	names map[int64][]dictEntry
}

// NewNER creates an unprepared NER detector.
func NewNER() *NER {
	return &NER{}
}

func (g *NER) Name() model.Method { return model.MethodNER }

func (g *NER) Prepare(_ context.Context, tickers []model.Ticker) error {
	names := make(map[int64][]dictEntry, len(tickers))
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
			names[t.ID] = list
		}
	}
	g.names = names
	return nil
}

func (g *NER) Generate(ctx context.Context, text string) (map[int64]model.CandidateSignal, error) {
	spans := g.extractSpans(ctx, text)
	if len(spans) == 0 {
		return map[int64]model.CandidateSignal{}, nil
	}

	results := make(map[int64]model.CandidateSignal)
	for tickerID, entries := range g.names {
		var best model.CandidateSignal
		for _, span := range spans {
			normSpan := normalizeText(span)
			if normSpan == "" {
				continue
			}
			for _, e := range entries {
				score := resolveScore(span, normSpan, e.normalized)
				if score > best.RawScore {
					best = model.CandidateSignal{
						TickerID:    tickerID,
						MentionText: span,
						MentionType: e.mtype,
						Method:      model.MethodNER,
						RawScore:    score,
					}
				}
			}
		}
		if best.RawScore >= nerMinScore {
			results[tickerID] = best
		}
	}
	return results, nil
}

// extractSpans returns candidate entity spans from both extractors. A model
// failure degrades to pattern extraction alone.
func (g *NER) extractSpans(ctx context.Context, text string) []string {
	seen := make(map[string]bool)
	var spans []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		spans = append(spans, s)
	}

	if ctx.Err() == nil {
		doc, err := prose.NewDocument(text)
		if err != nil {
			zap.L().Warn("ner: entity model failed, using pattern extraction only", zap.Error(err))
		} else {
			for _, ent := range doc.Entities() {
				add(ent.Text)
			}
		}
	}

	for _, m := range orgSuffixPattern.FindAllStringSubmatch(text, -1) {
		for _, group := range m[1:] {
			if group != "" {
				add(group)
			}
		}
	}
	return spans
}

// resolveScore grades how well an extracted span names a dictionary entry.
// Exact matches score highest, then containment, then similarity above the
// resolution floor; longer spans get a small specificity bonus.
func resolveScore(span, normSpan, normEntry string) float64 {
	var score float64
	switch {
	case normSpan == normEntry:
		score = nerExactScore
	case strings.Contains(normEntry, normSpan) || strings.Contains(normSpan, normEntry):
		score = nerContainmentScore
	case levenshtein.Similarity(normSpan, normEntry, nil) >= nerResolveFloor:
		score = nerBaseScore
	default:
		return 0
	}
	if len([]rune(span)) > 10 && score < nerExactScore {
		score += nerLongSpanBonus
	}
	if score > nerExactScore {
		score = nerExactScore
	}
	return score
}
