package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

const defaultHTTPTimeout = 90 * time.Second

// HTTP posts completion requests as JSON to a fixed endpoint URL.
type HTTP struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTP creates an HTTP transport. An empty token sends no Authorization
// header; a nil client gets a default with a 90s timeout.
func NewHTTP(endpoint, token string, client *http.Client) (*HTTP, error) {
	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid endpoint URL %q: scheme and host required", endpoint)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTP{endpoint: target.String(), token: token, client: client}, nil
}

// Complete sends one request. Any non-200 status is a fatal *Error.
func (h *HTTP) Complete(ctx context.Context, req *models.CompletionRequest) (*models.Response, error) {
	body, err := json.Marshal(buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out models.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

// buildPayload lays out the request body. Chat requests carry messages and
// drop prompt, echo, logprobs and stream.
func buildPayload(req *models.CompletionRequest) map[string]any {
	data := map[string]any{
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"top_p":       req.TopP,
		"n":           req.N,
		"stop":        req.Stop,
	}
	if req.Model != "" {
		data["model"] = req.Model
	}
	if req.LogitBias != nil {
		data["logit_bias"] = req.LogitBias
	}

	if req.Chat {
		data["messages"] = req.Messages
		return data
	}

	data["prompt"] = req.Prompt
	data["stream"] = false
	data["echo"] = req.Echo
	if req.Logprobs != nil {
		data["logprobs"] = *req.Logprobs
	} else {
		data["logprobs"] = nil
	}
	return data
}
