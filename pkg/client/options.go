package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jxzhangjhu/guidance/pkg/cache"
	"github.com/jxzhangjhu/guidance/pkg/tokenizer"
	"github.com/jxzhangjhu/guidance/pkg/tracker"
	"github.com/jxzhangjhu/guidance/pkg/transport"
)

// Option configures a Client at construction.
type Option func(*Client)

// WithCache sets the response cache. Defaults to an in-memory cache.
func WithCache(c cache.Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithTransport replaces the transport chosen from the configuration.
// The breaker setting is not applied to an injected transport.
func WithTransport(t transport.Transport) Option {
	return func(cl *Client) { cl.transport = t }
}

// WithHTTPClient sets the HTTP client used by the default transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(cl *Client) { cl.httpClient = hc }
}

// WithTokenizer sets the tokenizer used by Encode and Decode.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(cl *Client) { cl.tokenizer = t }
}

// WithTracker records every completed call in t.
func WithTracker(t tracker.Tracker) Option {
	return func(cl *Client) { cl.tracker = t }
}

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithClock replaces the time source and the sleep used by the throttle and
// the retry backoff.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
		if sleep != nil {
			cl.sleep = sleep
		}
	}
}

// WithStrictParsing makes chat mode reject prompts whose start and end
// markers do not pair up.
func WithStrictParsing() Option {
	return func(cl *Client) { cl.parser.Strict = true }
}

// CallOption overrides one completion parameter.
type CallOption func(*params)

type params struct {
	stop        []string
	temperature *float64
	n           int
	maxTokens   int
	logprobs    *int
	topP        float64
	echo        bool
	logitBias   map[string]int
	cacheSeed   int
}

func defaultParams() params {
	return params{n: 1, maxTokens: 1000, topP: 1.0}
}

// WithStop sets the stop sequences.
func WithStop(stop ...string) CallOption {
	return func(p *params) { p.stop = stop }
}

// WithTemperature overrides the configured temperature.
func WithTemperature(t float64) CallOption {
	return func(p *params) { p.temperature = &t }
}

// WithN sets the number of choices.
func WithN(n int) CallOption {
	return func(p *params) { p.n = n }
}

// WithMaxTokens sets the completion length limit.
func WithMaxTokens(n int) CallOption {
	return func(p *params) { p.maxTokens = n }
}

// WithLogprobs requests the top n log probabilities per token.
func WithLogprobs(n int) CallOption {
	return func(p *params) { p.logprobs = &n }
}

// WithTopP sets nucleus sampling.
func WithTopP(v float64) CallOption {
	return func(p *params) { p.topP = v }
}

// WithEcho echoes the prompt in the completion.
func WithEcho(echo bool) CallOption {
	return func(p *params) { p.echo = echo }
}

// WithLogitBias biases token ids.
func WithLogitBias(bias map[string]int) CallOption {
	return func(p *params) { p.logitBias = bias }
}

// WithCacheSeed separates otherwise identical calls in the cache.
func WithCacheSeed(seed int) CallOption {
	return func(p *params) { p.cacheSeed = seed }
}
