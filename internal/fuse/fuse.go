// Package fuse merges per-detector candidate signals into one confidence
// score per ticker and applies the confirmation policy.
package fuse

import (
	"github.com/marketpulse/newsdesk-cli/internal/config"
	"github.com/marketpulse/newsdesk-cli/internal/model"
)

// Fuser combines the signal sets of all generators for one article. The
// default policy is a weighted maximum over methods: independent detectors
// frequently agree on the same true mention, and summing would inflate
// confidence for well-known tickers. Additive mode is the recall-favoring
// alternative, selected by configuration.
type Fuser struct {
	weights  map[model.Method]float64
	additive bool
}

// New builds a Fuser from the fusion configuration. Methods missing from the
// weight table contribute nothing.
func New(cfg config.FusionConfig) *Fuser {
	weights := make(map[model.Method]float64, len(cfg.Weights))
	for method, w := range cfg.Weights {
		weights[model.Method(method)] = w
	}
	return &Fuser{
		weights:  weights,
		additive: cfg.Mode == "additive",
	}
}

// Fuse merges the generators' signal sets into one FusedResult per ticker.
// Fusion is commutative over its inputs: no ordering among generators is
// required. The representative mention text and type are taken from the
// signal with the maximum weighted contribution; ties prefer the more
// precise method (substring > ner > fuzzy > semantic).
func (f *Fuser) Fuse(signalSets []map[int64]model.CandidateSignal) map[int64]model.FusedResult {
	byTicker := make(map[int64]map[model.Method]model.CandidateSignal)
	for _, set := range signalSets {
		for tickerID, sig := range set {
			if byTicker[tickerID] == nil {
				byTicker[tickerID] = make(map[model.Method]model.CandidateSignal, 4)
			}
			// One signal per method per ticker; keep the stronger if a
			// generator is somehow run twice.
			if prev, ok := byTicker[tickerID][sig.Method]; !ok || sig.RawScore > prev.RawScore {
				byTicker[tickerID][sig.Method] = sig
			}
		}
	}

	fused := make(map[int64]model.FusedResult, len(byTicker))
	for tickerID, byMethod := range byTicker {
		var best model.CandidateSignal
		bestContribution := -1.0
		var sum float64

		// model.Methods is in precedence order, so a strict comparison
		// keeps the higher-precision method on ties.
		for _, method := range model.Methods {
			sig, ok := byMethod[method]
			if !ok {
				continue
			}
			contribution := f.weights[method] * sig.RawScore
			sum += contribution
			if contribution > bestContribution {
				bestContribution = contribution
				best = sig
			}
		}
		if bestContribution < 0 {
			continue
		}

		score := bestContribution
		if f.additive {
			score = sum
			if score > 1.0 {
				score = 1.0
			}
		}
		fused[tickerID] = model.FusedResult{
			TickerID:    tickerID,
			MentionText: best.MentionText,
			MentionType: best.MentionType,
			Method:      best.Method,
			FusedScore:  score,
		}
	}
	return fused
}

// Confirm filters fused results to those meeting the threshold. The boundary
// is inclusive: a score exactly equal to the threshold is confirmed. Entries
// below are dropped entirely; the system keeps no speculative low-confidence
// rows.
func Confirm(fused map[int64]model.FusedResult, threshold float64) map[int64]model.FusedResult {
	confirmed := make(map[int64]model.FusedResult, len(fused))
	for tickerID, result := range fused {
		if result.FusedScore >= threshold {
			confirmed[tickerID] = result
		}
	}
	return confirmed
}
