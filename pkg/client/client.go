// Package client is the completion client: it checks the response cache,
// throttles, retries rate-limited calls and writes results back to the cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jxzhangjhu/guidance/pkg/cache"
	"github.com/jxzhangjhu/guidance/pkg/config"
	"github.com/jxzhangjhu/guidance/pkg/models"
	"github.com/jxzhangjhu/guidance/pkg/ratelimit"
	"github.com/jxzhangjhu/guidance/pkg/retry"
	"github.com/jxzhangjhu/guidance/pkg/tokenizer"
	"github.com/jxzhangjhu/guidance/pkg/tracker"
	"github.com/jxzhangjhu/guidance/pkg/transcript"
	"github.com/jxzhangjhu/guidance/pkg/transport"
)

// Client sends completions through a cache, a soft throttle and a retry loop.
// It is safe for concurrent use.
type Client struct {
	cfg        config.Config
	transport  transport.Transport
	httpClient *http.Client
	cache      cache.Cache
	tracker    tracker.Tracker
	limiter    *ratelimit.Limiter
	caller     *retry.Caller
	parser     transcript.Parser
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error

	tokOnce   sync.Once
	tokenizer tokenizer.Tokenizer
	tokErr    error
}

// New creates a Client from cfg. The configuration is copied; later changes
// to cfg do not affect the client.
//
// Without WithCache the client keeps responses in memory only, so they are
// lost when the process exits. Callers that want results to survive a
// restart must inject a durable store such as cache/sqlite or cache/redis.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:   cfg,
		now:   time.Now,
		sleep: ratelimit.Sleep,
	}
	for _, o := range opts {
		o(c)
	}
	if c.cfg.Model == "" {
		c.cfg.Model = config.DefaultModel
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.cache == nil {
		c.cache = cache.NewMemory()
	}
	if c.transport == nil {
		t, err := c.newTransport()
		if err != nil {
			return nil, err
		}
		c.transport = t
	}

	ceiling := c.cfg.MaxCallsPerMinute
	if ceiling <= 0 {
		ceiling = config.Default().MaxCallsPerMinute
	}
	limiterOpts := []ratelimit.Option{ratelimit.WithClock(c.now, c.sleep)}
	if c.cfg.ThrottleDelay > 0 {
		limiterOpts = append(limiterOpts, ratelimit.WithDelay(c.cfg.ThrottleDelay))
	}
	c.limiter = ratelimit.New(ceiling, limiterOpts...)

	c.caller = &retry.Caller{
		MaxRetries: c.cfg.MaxRetries,
		Backoff:    c.cfg.RetryBackoff,
		OnAttempt:  c.limiter.Record,
		Sleep:      c.sleep,
		Logger:     c.logger,
	}
	return c, nil
}

func (c *Client) newTransport() (transport.Transport, error) {
	hc := c.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: c.cfg.Timeout}
	}

	var t transport.Transport
	if c.cfg.Endpoint != "" {
		h, err := transport.NewHTTP(c.cfg.Endpoint, c.cfg.Token, hc)
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		t = h
	} else {
		t = transport.NewNative(transport.NativeConfig{Token: c.cfg.Token, HTTPClient: hc})
	}

	if b := c.cfg.Breaker; b.Enabled {
		t = transport.NewBreaker(t, transport.BreakerSettings{
			Name:             c.cfg.Model,
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval,
			Timeout:          b.Timeout,
			ReadyToTripRatio: b.ReadyToTripRatio,
			Logger:           c.logger,
		})
	}
	return t, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// Limiter exposes the call-rate tracker.
func (c *Client) Limiter() *ratelimit.Limiter { return c.limiter }

// Complete generates a completion of prompt. Identical calls are answered
// from the cache when caching is enabled; every successful provider call is
// written to the cache regardless.
func (c *Client) Complete(ctx context.Context, prompt string, opts ...CallOption) (*models.Response, error) {
	p := defaultParams()
	for _, o := range opts {
		o(&p)
	}
	temperature := c.cfg.Temperature
	if p.temperature != nil {
		temperature = *p.temperature
	}

	fp, err := cache.Fingerprint(cache.Key{
		Model:       c.cfg.Model,
		Prompt:      prompt,
		Stop:        p.stop,
		Temperature: temperature,
		N:           p.n,
		MaxTokens:   p.maxTokens,
		Logprobs:    p.logprobs,
		Echo:        p.echo,
		LogitBias:   p.logitBias,
		CacheSeed:   p.cacheSeed,
		TopP:        p.topP,
		Chat:        c.cfg.ChatCompletion,
	})
	if err != nil {
		return nil, err
	}
	start := c.now()

	if c.cfg.Caching {
		if resp, ok := c.lookup(ctx, fp); ok {
			c.logger.Debug("cache hit", "fingerprint", fp)
			c.record(ctx, fp, resp, true, 0, start)
			return resp, nil
		}
	}

	slept, err := c.limiter.Throttle(ctx)
	if err != nil {
		return nil, err
	}
	if slept {
		c.logger.Info("throttled", "load", c.limiter.CurrentLoad(), "ceiling", c.limiter.Ceiling())
	}

	req := &models.CompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   p.maxTokens,
		Temperature: temperature,
		TopP:        p.topP,
		N:           p.n,
		Stop:        p.stop,
		LogitBias:   p.logitBias,
	}
	if c.cfg.ChatCompletion {
		turns, err := c.parser.Parse(prompt)
		if err != nil {
			return nil, err
		}
		req.Chat = true
		req.Messages = turns
	} else {
		req.Prompt = prompt
		req.Logprobs = p.logprobs
		req.Echo = p.echo
	}

	res, err := c.caller.Call(ctx, c.transport, req)
	if err != nil {
		return nil, err
	}
	resp := res.Response
	if resp == nil {
		return nil, errors.New("transport returned no response")
	}
	if req.Chat {
		transcript.Annotate(resp)
	}

	c.store(ctx, fp, resp)
	c.record(ctx, fp, resp, false, res.Attempts, start)
	return resp, nil
}

func (c *Client) lookup(ctx context.Context, fp string) (*models.Response, bool) {
	data, ok, err := c.cache.Get(ctx, fp)
	if err != nil {
		c.logger.Warn("cache read failed", "fingerprint", fp, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var resp models.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("cache entry unreadable", "fingerprint", fp, "error", err)
		return nil, false
	}
	return &resp, true
}

func (c *Client) store(ctx context.Context, fp string, resp *models.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("encode response for cache", "fingerprint", fp, "error", err)
		return
	}
	if err := c.cache.Put(ctx, fp, data); err != nil {
		c.logger.Warn("cache write failed", "fingerprint", fp, "error", err)
	}
}

func (c *Client) record(ctx context.Context, fp string, resp *models.Response, cached bool, attempts int, start time.Time) {
	if c.tracker == nil {
		return
	}
	rec := models.UsageRecord{
		Model:       c.cfg.Model,
		Fingerprint: fp,
		Cached:      cached,
		Attempts:    attempts,
		LatencyMs:   c.now().Sub(start).Milliseconds(),
		CreatedAt:   start.UTC(),
	}
	if resp.Usage != nil {
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
		rec.TotalTokens = resp.Usage.TotalTokens
	}
	if err := c.tracker.Record(ctx, rec); err != nil {
		c.logger.Warn("record usage", "error", err)
	}
}

func (c *Client) loadTokenizer() (tokenizer.Tokenizer, error) {
	c.tokOnce.Do(func() {
		if c.tokenizer != nil {
			return
		}
		c.tokenizer, c.tokErr = tokenizer.ForModel(c.cfg.Model)
	})
	return c.tokenizer, c.tokErr
}

// Encode returns the token ids of text for the configured model.
func (c *Client) Encode(text string) ([]int, error) {
	t, err := c.loadTokenizer()
	if err != nil {
		return nil, err
	}
	return t.Encode(text), nil
}

// Decode returns the text of token ids for the configured model.
func (c *Client) Decode(tokens []int) (string, error) {
	t, err := c.loadTokenizer()
	if err != nil {
		return "", err
	}
	return t.Decode(tokens), nil
}

// Close releases the cache and tracker when they hold resources.
func (c *Client) Close() error {
	var errs []error
	if closer, ok := c.cache.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if c.tracker != nil {
		errs = append(errs, c.tracker.Close())
	}
	return errors.Join(errs...)
}
