// Package pipeline orchestrates one ingestion run: deduplicate each raw
// article, fan candidate detectors out over the new ones, fuse their
// signals, and persist the confirmed mentions.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketpulse/newsdesk-cli/internal/config"
	"github.com/marketpulse/newsdesk-cli/internal/dedup"
	"github.com/marketpulse/newsdesk-cli/internal/fuse"
	"github.com/marketpulse/newsdesk-cli/internal/generator"
	"github.com/marketpulse/newsdesk-cli/internal/model"
	"github.com/marketpulse/newsdesk-cli/internal/store"
)

// Orchestrator coordinates one batch through dedup, detection, fusion and
// persistence. Detector failures degrade to missing signals; persistence
// failures abort the run.
type Orchestrator struct {
	store       store.Store
	generators  []generator.Generator
	fuser       *fuse.Fuser
	threshold   float64
	concurrency int
	genTimeout  time.Duration
}

// New builds an Orchestrator from configuration and an already-constructed
// detector set.
func New(st store.Store, gens []generator.Generator, fuser *fuse.Fuser, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store:       st,
		generators:  gens,
		fuser:       fuser,
		threshold:   cfg.Fusion.Threshold,
		concurrency: cfg.Pipeline.Concurrency,
		genTimeout:  time.Duration(cfg.Pipeline.GeneratorTimeoutSecs) * time.Second,
	}
}

// Run processes one batch of raw articles and records exactly one
// processing_runs row on every exit path. The returned ProcessingRun carries
// the final counters; the error is non-nil when the run did not complete
// cleanly.
func (o *Orchestrator) Run(ctx context.Context, batch []model.RawArticle) (model.ProcessingRun, error) {
	run := model.ProcessingRun{
		BatchID:   uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(zap.String("batch_id", run.BatchID))

	tickers, err := o.store.ListTickers(ctx)
	if err != nil {
		return o.finish(ctx, run, eris.Wrap(err, "pipeline: load tickers"))
	}
	if len(tickers) == 0 {
		log.Warn("ticker dictionary is empty, no mentions can be produced")
	}

	// Prepare detectors once against the ticker snapshot. A detector that
	// fails to prepare is dropped for the whole run.
	ready := make([]generator.Generator, 0, len(o.generators))
	for _, gen := range o.generators {
		if err := gen.Prepare(ctx, tickers); err != nil {
			log.Warn("generator prepare failed, disabling for this run",
				zap.String("generator", string(gen.Name())),
				zap.Error(err))
			continue
		}
		ready = append(ready, gen)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, raw := range batch {
		g.Go(func() error {
			newArticle, mentions, err := o.processOne(gctx, ready, raw, log)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				run.Failed++
				return err
			}
			if newArticle {
				run.NewArticles++
				run.Mentions += mentions
			} else {
				run.Duplicates++
			}
			return nil
		})
	}

	return o.finish(ctx, run, g.Wait())
}

// processOne handles one raw article end to end. The bool result reports
// whether the article was new; duplicates skip detection entirely.
func (o *Orchestrator) processOne(ctx context.Context, gens []generator.Generator, raw model.RawArticle, log *zap.Logger) (bool, int, error) {
	article := model.Article{
		Title:       raw.Title,
		Body:        raw.Body,
		URL:         raw.URL,
		PublishedAt: raw.PublishedAt,
		SourceID:    raw.SourceID,
		Hash:        dedup.Fingerprint(raw.Title, raw.URL),
	}

	articleID, wasNew, err := o.store.InsertArticleIfNew(ctx, article)
	if err != nil {
		return false, 0, eris.Wrap(err, "pipeline: insert article")
	}
	if !wasNew {
		log.Debug("duplicate article skipped", zap.String("url", raw.URL))
		return false, 0, nil
	}
	article.ID = articleID

	signalSets := make([]map[int64]model.CandidateSignal, 0, len(gens))
	for _, gen := range gens {
		signals := o.generate(ctx, gen, article.Text(), log)
		if len(signals) > 0 {
			signalSets = append(signalSets, signals)
		}
	}

	confirmed := fuse.Confirm(o.fuser.Fuse(signalSets), o.threshold)
	for _, result := range confirmed {
		mention := model.Mention{
			ArticleID:   articleID,
			TickerID:    result.TickerID,
			MentionText: result.MentionText,
			MentionType: result.MentionType,
			FusedScore:  result.FusedScore,
			Confirmed:   true,
		}
		if err := o.store.InsertMention(ctx, mention); err != nil {
			return false, 0, eris.Wrap(err, "pipeline: insert mention")
		}
	}
	return true, len(confirmed), nil
}

// generate invokes one detector under the per-detector timeout. Any failure
// degrades to an empty signal set so the remaining detectors still count.
func (o *Orchestrator) generate(ctx context.Context, gen generator.Generator, text string, log *zap.Logger) map[int64]model.CandidateSignal {
	genCtx, cancel := context.WithTimeout(ctx, o.genTimeout)
	defer cancel()

	signals, err := gen.Generate(genCtx, text)
	if err != nil {
		log.Warn("generator failed, continuing without its signals",
			zap.String("generator", string(gen.Name())),
			zap.Error(err))
		return nil
	}
	return signals
}

// finish derives the terminal status, records the audit row and folds any
// recording failure into the returned error.
func (o *Orchestrator) finish(ctx context.Context, run model.ProcessingRun, runErr error) (model.ProcessingRun, error) {
	run.FinishedAt = time.Now().UTC()
	switch {
	case runErr == nil:
		run.Status = model.RunStatusSuccess
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		run.Status = model.RunStatusPartial
		run.Log = runErr.Error()
	default:
		run.Status = model.RunStatusFailed
		run.Log = runErr.Error()
	}

	// The audit row is written on every exit path, including after a
	// cancellation, so recording uses a fresh context.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	id, err := o.store.RecordRun(recordCtx, run)
	if err != nil {
		err = eris.Wrap(err, "pipeline: record run")
		if runErr != nil {
			return run, errors.Join(runErr, err)
		}
		return run, err
	}
	run.ID = id

	zap.L().Info("run finished",
		zap.String("batch_id", run.BatchID),
		zap.String("status", string(run.Status)),
		zap.Int("new_articles", run.NewArticles),
		zap.Int("duplicates", run.Duplicates),
		zap.Int("failed", run.Failed),
		zap.Int("mentions", run.Mentions))
	return run, runErr
}
