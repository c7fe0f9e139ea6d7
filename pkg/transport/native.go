package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

// Native calls the provider through the go-openai client library.
type Native struct {
	client *openai.Client
}

// NativeConfig configures the go-openai client.
type NativeConfig struct {
	Token string
	// BaseURL overrides the library default API base, e.g. for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// NewNative creates a Native transport.
func NewNative(cfg NativeConfig) *Native {
	clientConfig := openai.DefaultConfig(cfg.Token)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	return &Native{client: openai.NewClientWithConfig(clientConfig)}
}

// ErrZeroLogprobs is returned by Native for a completion request asking for
// logprobs=0. go-openai omits a zero LogProbs field, so the request would
// silently go out without it; use the HTTP transport to send logprobs=0.
var ErrZeroLogprobs = errors.New("logprobs=0 cannot be sent through go-openai")

// Complete sends one completion or chat completion request.
func (n *Native) Complete(ctx context.Context, req *models.CompletionRequest) (*models.Response, error) {
	if !req.Chat && req.Logprobs != nil && *req.Logprobs == 0 {
		return nil, &Error{Err: ErrZeroLogprobs}
	}
	var (
		out any
		err error
	)
	if req.Chat {
		out, err = n.client.CreateChatCompletion(ctx, chatRequest(req))
	} else {
		out, err = n.client.CreateCompletion(ctx, completionRequest(req))
	}
	if err != nil {
		return nil, classify(err)
	}
	return convertResponse(out)
}

func completionRequest(req *models.CompletionRequest) openai.CompletionRequest {
	r := openai.CompletionRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature(req.Temperature),
		TopP:        float32(req.TopP),
		N:           req.N,
		Stop:        req.Stop,
		Echo:        req.Echo,
		LogitBias:   req.LogitBias,
	}
	if req.Logprobs != nil {
		r.LogProbs = *req.Logprobs
	}
	return r
}

func chatRequest(req *models.CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, t := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: t.Role, Content: t.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature(req.Temperature),
		TopP:        float32(req.TopP),
		N:           req.N,
		Stop:        req.Stop,
		LogitBias:   req.LogitBias,
	}
}

// temperature maps 0 to the smallest positive float32; go-openai omits a
// zero temperature and the API would then apply its own default of 1.
func temperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// convertResponse re-encodes a go-openai response into models.Response.
// Both follow the OpenAI wire format, so the JSON tags line up.
func convertResponse(v any) (*models.Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("encode provider response: %w", err)}
	}
	var resp models.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Err: fmt.Errorf("decode provider response: %w", err)}
	}
	return &resp, nil
}

// classify maps go-openai errors onto the transport error taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &RateLimitError{Message: apiErr.Message, Err: err}
		}
		return &Error{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &RateLimitError{Message: string(reqErr.Body), Err: err}
		}
		return &Error{StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body), Err: err}
	}
	return &Error{Err: err}
}
