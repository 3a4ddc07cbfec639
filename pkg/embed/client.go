// Package embed provides a client for the sentence-embedding service used
// by the semantic detector.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/marketpulse/newsdesk-cli/internal/config"
	"github.com/marketpulse/newsdesk-cli/internal/resilience"
)

// Client calls an HTTP embedding service. Requests are rate limited and
// retried on transient failures.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
	backoff resilience.Backoff
	breaker *resilience.Breaker
}

// Option configures the embedding client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBackoff overrides the default retry policy.
func WithBackoff(b resilience.Backoff) Option {
	return func(c *Client) {
		c.backoff = b
	}
}

// NewClient creates an embedding client from configuration.
func NewClient(cfg config.EmbedConfig, opts ...Option) *Client {
	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	backoff := resilience.EmbedBackoff()
	backoff.Notify = resilience.LogRetries("embed request")

	c := &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.Key,
		model:   cfg.Model,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1),
		backoff: backoff,
		breaker: resilience.NewBreaker(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "embed: rate limit wait")
	}

	payload, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, eris.Wrap(err, "embed: marshal request")
	}

	// A persistently failing service trips the breaker, which fails later
	// batches fast instead of burning the whole generator timeout.
	vectors, err := resilience.Retry(ctx, c.backoff, func(ctx context.Context) ([][]float32, error) {
		return resilience.Guard(ctx, c.breaker, func(ctx context.Context) ([][]float32, error) {
			return c.post(ctx, payload)
		})
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, eris.Errorf("embed: got %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

func (c *Client) post(ctx context.Context, payload []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "embed: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.MarkRetryable(eris.Wrap(err, "embed: request"), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, resilience.MarkRetryable(eris.Wrap(err, "embed: read response"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("embed: status %d: %s", resp.StatusCode, truncate(body, 256))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.MarkRetryable(err, resp.StatusCode)
		}
		return nil, err
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "embed: decode response")
	}
	return parsed.Embeddings, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
