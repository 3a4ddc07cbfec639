package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/newsdesk-cli/internal/config"
	"github.com/marketpulse/newsdesk-cli/internal/fuse"
	"github.com/marketpulse/newsdesk-cli/internal/generator"
	"github.com/marketpulse/newsdesk-cli/internal/model"
	"github.com/marketpulse/newsdesk-cli/internal/store"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu            sync.Mutex
	nextID        int64
	articleByHash map[string]int64
	mentions      []model.Mention
	tickers       []model.Ticker
	runs          []model.ProcessingRun

	insertArticleErr error
	insertMentionErr error
}

func newMemStore(tickers []model.Ticker) *memStore {
	return &memStore{
		articleByHash: make(map[string]int64),
		tickers:       tickers,
	}
}

func (m *memStore) EnsureSource(_ context.Context, _ string) (int64, error) { return 1, nil }

func (m *memStore) InsertArticleIfNew(ctx context.Context, a model.Article) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertArticleErr != nil {
		return 0, false, m.insertArticleErr
	}
	if id, ok := m.articleByHash[a.Hash]; ok {
		return id, false, nil
	}
	m.nextID++
	m.articleByHash[a.Hash] = m.nextID
	return m.nextID, true, nil
}

func (m *memStore) InsertMention(_ context.Context, mention model.Mention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertMentionErr != nil {
		return m.insertMentionErr
	}
	m.mentions = append(m.mentions, mention)
	return nil
}

func (m *memStore) MentionsForDate(_ context.Context, _ time.Time) ([]model.MentionFact, error) {
	return nil, nil
}

func (m *memStore) ListTickers(_ context.Context) ([]model.Ticker, error) {
	return m.tickers, nil
}

func (m *memStore) UpsertTickers(_ context.Context, tickers []model.Ticker) (int, error) {
	m.tickers = tickers
	return len(tickers), nil
}

func (m *memStore) RecordRun(_ context.Context, run model.ProcessingRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return int64(len(m.runs)), nil
}

func (m *memStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.ProcessingRun, error) {
	return m.runs, nil
}

func (m *memStore) Migrate(_ context.Context) error { return nil }
func (m *memStore) Close() error                    { return nil }

// stubGen emits a fixed signal set, or fails on demand.
type stubGen struct {
	method     model.Method
	prepareErr error
	genErr     error
	signals    map[int64]model.CandidateSignal
}

func (s *stubGen) Name() model.Method { return s.method }

func (s *stubGen) Prepare(_ context.Context, _ []model.Ticker) error { return s.prepareErr }

func (s *stubGen) Generate(_ context.Context, _ string) (map[int64]model.CandidateSignal, error) {
	if s.genErr != nil {
		return nil, s.genErr
	}
	return s.signals, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Fusion: config.FusionConfig{
			Mode: "max",
			Weights: map[string]float64{
				"substring": 1.0,
				"fuzzy":     0.8,
				"ner":       0.9,
				"semantic":  0.7,
			},
			Threshold: 0.75,
		},
		Pipeline: config.PipelineConfig{Concurrency: 2, GeneratorTimeoutSecs: 5},
	}
}

func gazpTickers() []model.Ticker {
	return []model.Ticker{
		{ID: 1, Symbol: "GAZP", Name: "Газпром", Aliases: []string{"Gazprom"}},
		{ID: 2, Symbol: "SBER", Name: "Сбербанк", Aliases: []string{"Sberbank"}},
	}
}

func rawBatch() []model.RawArticle {
	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return []model.RawArticle{
		{
			Title:       "Акции GAZP выросли после отчета",
			Body:        "Подробности квартального отчета.",
			URL:         "https://example.com/gazp-report",
			PublishedAt: published,
			SourceID:    1,
		},
		{
			Title:       "Прогноз погоды на выходные",
			Body:        "Без упоминаний компаний.",
			URL:         "https://example.com/weather",
			PublishedAt: published,
			SourceID:    1,
		},
	}
}

func TestRun_SymbolMatchConfirmedAtFullConfidence(t *testing.T) {
	st := newMemStore(gazpTickers())
	cfg := testConfig()
	o := New(st, []generator.Generator{generator.NewSubstring()}, fuse.New(cfg.Fusion), cfg)

	run, err := o.Run(context.Background(), rawBatch())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, run.NewArticles)
	assert.Equal(t, 0, run.Duplicates)
	assert.Equal(t, 1, run.Mentions)

	require.Len(t, st.mentions, 1)
	m := st.mentions[0]
	assert.Equal(t, int64(1), m.TickerID)
	assert.Equal(t, 1.0, m.FusedScore)
	assert.Equal(t, model.MentionTypeSymbol, m.MentionType)
	assert.True(t, m.Confirmed)
}

func TestRun_RerunCountsDuplicates(t *testing.T) {
	st := newMemStore(gazpTickers())
	cfg := testConfig()
	o := New(st, []generator.Generator{generator.NewSubstring()}, fuse.New(cfg.Fusion), cfg)

	first, err := o.Run(context.Background(), rawBatch())
	require.NoError(t, err)
	assert.Equal(t, 2, first.NewArticles)

	second, err := o.Run(context.Background(), rawBatch())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, second.Status)
	assert.Equal(t, 0, second.NewArticles)
	assert.Equal(t, 2, second.Duplicates)
	assert.Equal(t, 0, second.Mentions)

	// Duplicates never produce extra mention rows.
	assert.Len(t, st.mentions, 1)
	assert.Len(t, st.runs, 2)
}

func TestRun_GeneratorFailureDegrades(t *testing.T) {
	st := newMemStore(gazpTickers())
	cfg := testConfig()
	failing := &stubGen{method: model.MethodNER, genErr: eris.New("model unavailable")}
	o := New(st, []generator.Generator{generator.NewSubstring(), failing}, fuse.New(cfg.Fusion), cfg)

	run, err := o.Run(context.Background(), rawBatch())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, 1, run.Mentions)
}

func TestRun_PrepareFailureDisablesGenerator(t *testing.T) {
	st := newMemStore(gazpTickers())
	cfg := testConfig()
	failing := &stubGen{method: model.MethodSemantic, prepareErr: eris.New("embed service down")}
	o := New(st, []generator.Generator{failing}, fuse.New(cfg.Fusion), cfg)

	run, err := o.Run(context.Background(), rawBatch())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, run.NewArticles)
	assert.Zero(t, run.Mentions)
}

func TestRun_BelowThresholdNotPersisted(t *testing.T) {
	st := newMemStore(gazpTickers())
	cfg := testConfig()
	weak := &stubGen{
		method: model.MethodFuzzy,
		signals: map[int64]model.CandidateSignal{
			1: {TickerID: 1, MentionText: "Gazprm", MentionType: model.MentionTypeAlias, Method: model.MethodFuzzy, RawScore: 0.8},
		},
	}
	// 0.8 weight * 0.8 raw = 0.64, below the 0.75 threshold.
	o := New(st, []generator.Generator{weak}, fuse.New(cfg.Fusion), cfg)

	run, err := o.Run(context.Background(), rawBatch())
	require.NoError(t, err)
	assert.Zero(t, run.Mentions)
	assert.Empty(t, st.mentions)
}

func TestRun_PersistenceFailureFailsRun(t *testing.T) {
	st := newMemStore(gazpTickers())
	st.insertArticleErr = eris.New("disk full")
	cfg := testConfig()
	o := New(st, []generator.Generator{generator.NewSubstring()}, fuse.New(cfg.Fusion), cfg)

	run, err := o.Run(context.Background(), rawBatch())
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Log)

	// The audit row is still recorded.
	require.Len(t, st.runs, 1)
	assert.Equal(t, model.RunStatusFailed, st.runs[0].Status)
}

func TestRun_MentionPersistenceFailureFailsRun(t *testing.T) {
	st := newMemStore(gazpTickers())
	st.insertMentionErr = eris.New("constraint violation")
	cfg := testConfig()
	o := New(st, []generator.Generator{generator.NewSubstring()}, fuse.New(cfg.Fusion), cfg)

	run, err := o.Run(context.Background(), rawBatch())
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
}

func TestRun_CancelledContextEndsPartial(t *testing.T) {
	st := newMemStore(gazpTickers())
	cfg := testConfig()
	o := New(st, []generator.Generator{generator.NewSubstring()}, fuse.New(cfg.Fusion), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := o.Run(ctx, rawBatch())
	require.Error(t, err)
	assert.Equal(t, model.RunStatusPartial, run.Status)

	// Interrupted runs still leave an audit row.
	require.Len(t, st.runs, 1)
	assert.Equal(t, model.RunStatusPartial, st.runs[0].Status)
}

func TestRun_EmptyBatch(t *testing.T) {
	st := newMemStore(gazpTickers())
	cfg := testConfig()
	o := New(st, []generator.Generator{generator.NewSubstring()}, fuse.New(cfg.Fusion), cfg)

	run, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Zero(t, run.NewArticles)
	assert.Zero(t, run.Duplicates)
}
