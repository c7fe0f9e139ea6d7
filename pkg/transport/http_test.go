package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

func captureServer(t *testing.T, status int, respBody string) (*httptest.Server, *map[string]any, *http.Header) {
	t.Helper()
	var body map[string]any
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &body, &header
}

func TestHTTPCompletionPayload(t *testing.T) {
	srv, body, header := captureServer(t, http.StatusOK, `{"id":"cmpl-1","choices":[{"index":0,"text":" world","finish_reason":"stop"}]}`)

	tr, err := NewHTTP(srv.URL+"/v1/completions", "sk-abc", nil)
	require.NoError(t, err)

	lp := 2
	resp, err := tr.Complete(context.Background(), &models.CompletionRequest{
		Prompt:      "hello",
		MaxTokens:   16,
		Temperature: 0,
		TopP:        1,
		N:           1,
		Stop:        []string{"\n"},
		Logprobs:    &lp,
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, " world", resp.Choices[0].Text)

	assert.Equal(t, "Bearer sk-abc", header.Get("Authorization"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))

	b := *body
	assert.Equal(t, "hello", b["prompt"])
	assert.Equal(t, false, b["stream"])
	assert.Equal(t, false, b["echo"])
	assert.EqualValues(t, 2, b["logprobs"])
	assert.EqualValues(t, 16, b["max_tokens"])
	assert.NotContains(t, b, "messages")
	assert.NotContains(t, b, "model")
}

func TestHTTPChatPayload(t *testing.T) {
	srv, body, header := captureServer(t, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Hi there"}}]}`)

	tr, err := NewHTTP(srv.URL, "", nil)
	require.NoError(t, err)

	lp := 1
	resp, err := tr.Complete(context.Background(), &models.CompletionRequest{
		Model:    "local-chat",
		Chat:     true,
		Messages: []models.Turn{{Role: "user", Content: "Hi"}},
		Logprobs: &lp,
		Echo:     true,
		N:        1,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Choices[0].Message)
	assert.Equal(t, "Hi there", resp.Choices[0].Message.Content)

	assert.Empty(t, header.Get("Authorization"))

	b := *body
	assert.Equal(t, "local-chat", b["model"])
	assert.NotContains(t, b, "prompt")
	assert.NotContains(t, b, "echo")
	assert.NotContains(t, b, "stream")
	assert.NotContains(t, b, "logprobs")
	msgs, ok := b["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{"role": "user", "content": "Hi"}, msgs[0])
}

func TestHTTPNon200IsFatal(t *testing.T) {
	srv, _, _ := captureServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`)

	tr, err := NewHTTP(srv.URL, "tok", nil)
	require.NoError(t, err)

	_, err = tr.Complete(context.Background(), &models.CompletionRequest{Prompt: "x"})
	require.Error(t, err)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusTooManyRequests, terr.StatusCode)
	assert.Contains(t, terr.Body, "slow down")
	assert.False(t, IsRateLimit(err))
}

func TestNewHTTPRejectsBadURL(t *testing.T) {
	_, err := NewHTTP("not a url", "", nil)
	assert.Error(t, err)
}
